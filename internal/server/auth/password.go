package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

// UserFinder is the slice of the credential store the verifier needs.
type UserFinder interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// PasswordVerifier checks username/password pairs against bcrypt hashes.
type PasswordVerifier struct {
	users UserFinder
	cost  int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordVerifier builds a verifier hashing with the given bcrypt cost
// (bcrypt.DefaultCost when cost is 0).
func NewPasswordVerifier(users UserFinder, cost int) *PasswordVerifier {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordVerifier{users: users, cost: cost}
}

// Hash returns the bcrypt hash of password.
func (v *PasswordVerifier) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(h), nil
}

// Verify returns the user when password matches. Unknown users and wrong
// passwords both yield common.ErrInvalidCredentials; unknown users still pay
// for a bcrypt comparison. Store failures are returned as-is.
func (v *PasswordVerifier) Verify(ctx context.Context, username, password string) (*models.User, error) {
	user, err := v.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(v.dummyHash(), []byte(password))
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}

func (v *PasswordVerifier) dummyHash() []byte {
	v.dummyOnce.Do(func() {
		pw := common.GenerateRandByteArray(32)
		if pw == nil {
			pw = []byte("dummy-password")
		}
		v.dummy, _ = bcrypt.GenerateFromPassword(pw, v.cost)
	})
	return v.dummy
}
