package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

const passwordSymbols = `!@#$%^&*()_+-=[]{};':"|,.<>/?`

var validate = validator.New()

// validateRegistration requires an e-mail username and a password of at
// least minPasswordLength characters mixing upper case, lower case, digits
// and symbols.
func validateRegistration(username, password string) error {
	if err := validate.Var(username, "required,email"); err != nil {
		return fmt.Errorf("%w: username must be a valid e-mail address", common.ErrorValidation)
	}

	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	switch {
	case !upper:
		return fmt.Errorf("%w: password must contain an upper-case letter", common.ErrorValidation)
	case !lower:
		return fmt.Errorf("%w: password must contain a lower-case letter", common.ErrorValidation)
	case !digit:
		return fmt.Errorf("%w: password must contain a digit", common.ErrorValidation)
	case !symbol:
		return fmt.Errorf("%w: password must contain a symbol", common.ErrorValidation)
	}
	return nil
}
