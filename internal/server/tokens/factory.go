// Package tokens mints opaque refresh tokens. It never touches storage.
package tokens

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
)

// tokenBytes is the amount of crypto/rand entropy per token (256 bits).
const tokenBytes = 32

// Factory issues refresh tokens with a fixed lifetime.
type Factory struct {
	lifetime time.Duration
	now      func() time.Time
}

type Option func(*Factory)

// WithClock overrides the time source used for Created/Expires.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) { f.now = now }
}

func NewFactory(lifetime time.Duration, opts ...Option) *Factory {
	f := &Factory{lifetime: lifetime, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Issue returns a fresh, unrevoked token created by originIP. Token values
// are assumed unique; collisions are not checked.
func (f *Factory) Issue(originIP string) (*models.RefreshToken, error) {
	value, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}
	now := f.now()
	return &models.RefreshToken{
		Token:       value,
		Created:     now,
		Expires:     now.Add(f.lifetime),
		CreatedByIP: originIP,
	}, nil
}

// Lifetime is the validity period stamped on every issued token.
func (f *Factory) Lifetime() time.Duration { return f.lifetime }
