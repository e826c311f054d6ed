// Package services contains server-side business logic. SessionService is
// the refresh-token engine: login, rotation with reuse detection, logout and
// validity checks over one user's token chain at a time.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/logging"
	"github.com/dmitrijs2005/antecipa/internal/server/config"
	"github.com/dmitrijs2005/antecipa/internal/server/credentials"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
	"github.com/dmitrijs2005/antecipa/internal/server/telemetry"
	"github.com/google/uuid"
)

// PasswordVerifier checks credentials and hashes new passwords.
type PasswordVerifier interface {
	Verify(ctx context.Context, username, password string) (*models.User, error)
	Hash(password string) (string, error)
}

// AccessTokenIssuer mints short-lived access tokens.
type AccessTokenIssuer interface {
	Mint(userID, role string) (string, error)
}

// RefreshTokenFactory issues new refresh tokens.
type RefreshTokenFactory interface {
	Issue(originIP string) (*models.RefreshToken, error)
}

// AuthResult is returned by a successful login or rotation.
type AuthResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

type SessionService struct {
	store     credentials.Store
	passwords PasswordVerifier
	issuer    AccessTokenIssuer
	factory   RefreshTokenFactory

	retention   time.Duration
	maxHops     int
	maxAttempts int

	log     logging.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

type Option func(*SessionService)

func WithLogger(l logging.Logger) Option {
	return func(s *SessionService) { s.log = l.With("component", "sessions") }
}

// WithClock overrides the time source used for expiry, revocation and
// pruning decisions.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *SessionService) { s.metrics = m }
}

// NewSessionService builds the engine. Inactive tokens are pruned once they
// are older than cfg.RefreshTokenLifetime + cfg.RefreshTokenGracePeriod.
func NewSessionService(store credentials.Store, passwords PasswordVerifier, issuer AccessTokenIssuer,
	factory RefreshTokenFactory, cfg *config.Config, opts ...Option) *SessionService {
	s := &SessionService{
		store:       store,
		passwords:   passwords,
		issuer:      issuer,
		factory:     factory,
		retention:   cfg.RefreshTokenLifetime + cfg.RefreshTokenGracePeriod,
		maxHops:     max(cfg.MaxChainHops, 1),
		maxAttempts: max(cfg.MaxPersistAttempts, 1),
		log:         logging.NewNop(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Authenticate verifies the credentials and starts a new chain link for the
// user. Unknown users and wrong passwords both yield
// common.ErrInvalidCredentials.
func (s *SessionService) Authenticate(ctx context.Context, username, password, ip string) (*AuthResult, error) {
	user, err := s.passwords.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}

	var result *AuthResult
	err = s.withRetry(ctx, "authenticate", func(attempt int) error {
		if attempt > 1 {
			if user, err = s.store.FindUserByID(ctx, user.ID); err != nil {
				return err
			}
		}

		token, err := s.factory.Issue(ip)
		if err != nil {
			return err
		}
		user.RefreshTokens = append(user.RefreshTokens, token)
		pruned := s.prune(user, s.now())

		if err := s.store.Persist(ctx, user); err != nil {
			return err
		}
		s.metrics.Pruned(ctx, pruned)

		result, err = s.result(user, token)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Login(ctx)
	return result, nil
}

// Rotate exchanges an active refresh token for a new one. Presenting a token
// that was already revoked revokes every active descendant in its chain
// before failing with common.ErrInvalidToken.
func (s *SessionService) Rotate(ctx context.Context, presented, ip string) (*AuthResult, error) {
	var result *AuthResult
	err := s.withRetry(ctx, "rotate", func(int) error {
		var err error
		result, err = s.rotate(ctx, presented, ip)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SessionService) rotate(ctx context.Context, presented, ip string) (*AuthResult, error) {
	user, token, err := s.locate(ctx, presented)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if token.IsRevoked() {
		if err := s.remediate(ctx, user, token, ip, now); err != nil {
			return nil, err
		}
		s.metrics.Rotation(ctx, telemetry.OutcomeReplay)
		return nil, common.ErrInvalidToken
	}
	if !token.IsActive(now) {
		s.metrics.Rotation(ctx, telemetry.OutcomeRejected)
		return nil, common.ErrInvalidToken
	}

	next, err := s.factory.Issue(ip)
	if err != nil {
		return nil, err
	}
	token.Revoke(now, ip, models.ReasonReplaced, next.Token)
	user.RefreshTokens = append(user.RefreshTokens, next)
	pruned := s.prune(user, now)

	if err := s.store.Persist(ctx, user); err != nil {
		return nil, err
	}
	s.metrics.Pruned(ctx, pruned)
	s.metrics.Rotation(ctx, telemetry.OutcomeRotated)

	return s.result(user, next)
}

// remediate revokes the active descendants of a replayed token and persists
// the result even if ctx is cancelled meanwhile.
func (s *SessionService) remediate(ctx context.Context, user *models.User, token *models.RefreshToken, ip string, now time.Time) error {
	revoked := s.revokeDescendants(ctx, user, token, ip, now)

	s.log.Warn(ctx, "refresh token reuse detected",
		"user_id", user.ID, "ip", ip, "revoked_descendants", revoked)

	if revoked == 0 {
		return nil
	}
	if err := s.store.Persist(context.WithoutCancel(ctx), user); err != nil {
		return err
	}
	s.metrics.Remediated(ctx, revoked)
	return nil
}

// revokeDescendants follows ReplacedByToken from token and revokes every
// active token it reaches, stamping each with the current request's ip. The
// walk stops at a missing link, after maxHops steps, or on a cycle.
func (s *SessionService) revokeDescendants(ctx context.Context, user *models.User, token *models.RefreshToken, ip string, now time.Time) int {
	revoked := 0
	seen := map[string]struct{}{token.Token: {}}

	cur := token
	for hops := 0; cur.ReplacedByToken != ""; hops++ {
		if hops >= s.maxHops {
			s.log.Warn(ctx, "refresh token chain exceeds hop limit",
				"user_id", user.ID, "max_hops", s.maxHops)
			break
		}
		if _, ok := seen[cur.ReplacedByToken]; ok {
			s.log.Warn(ctx, "refresh token chain contains a cycle",
				"user_id", user.ID, "token_prefix", prefix(cur.ReplacedByToken))
			break
		}

		child := user.FindToken(cur.ReplacedByToken)
		if child == nil {
			// pruned
			break
		}
		seen[child.Token] = struct{}{}

		if child.IsActive(now) {
			child.Revoke(now, ip, models.ReasonReuse, "")
			revoked++
		}
		cur = child
	}
	return revoked
}

// Revoke revokes an active token for logout. It reports false without
// touching the store when the token is already inactive, and never walks
// descendants.
func (s *SessionService) Revoke(ctx context.Context, presented, ip string) (bool, error) {
	var revoked bool
	err := s.withRetry(ctx, "revoke", func(int) error {
		user, token, err := s.locate(ctx, presented)
		if err != nil {
			return err
		}
		now := s.now()
		if !token.IsActive(now) {
			revoked = false
			return nil
		}

		token.Revoke(now, ip, models.ReasonLogout, "")
		if err := s.store.Persist(ctx, user); err != nil {
			return err
		}
		revoked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if revoked {
		s.metrics.Revocation(ctx)
	}
	return revoked, nil
}

// IsValid reports whether token exists and is active. It has no side
// effects; only store failures are returned as errors.
func (s *SessionService) IsValid(ctx context.Context, token string) (bool, error) {
	user, err := s.store.FindUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	t := user.FindToken(token)
	return t != nil && t.IsActive(s.now()), nil
}

// Register creates a user with the default role. The password policy is
// enforced here; duplicate usernames yield common.ErrorAlreadyExists.
func (s *SessionService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if err := validateRegistration(username, password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		UserName:     username,
		PasswordHash: hash,
		Role:         common.DefaultRole,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// locate finds the user owning presented and the matching token in its
// chain.
func (s *SessionService) locate(ctx context.Context, presented string) (*models.User, *models.RefreshToken, error) {
	if presented == "" {
		return nil, nil, common.ErrInvalidToken
	}

	user, err := s.store.FindUserByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidToken
		}
		return nil, nil, err
	}

	token := user.FindToken(presented)
	if token == nil {
		s.log.Warn(ctx, "store returned user without the presented token", "user_id", user.ID)
		return nil, nil, common.ErrInvalidToken
	}
	return user, token, nil
}

// prune drops inactive tokens created before now - retention and returns
// how many were removed. Active tokens are always kept.
func (s *SessionService) prune(user *models.User, now time.Time) int {
	cutoff := now.Add(-s.retention)

	kept := user.RefreshTokens[:0]
	for _, t := range user.RefreshTokens {
		if t.IsActive(now) || !t.Created.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	pruned := len(user.RefreshTokens) - len(kept)
	clear(user.RefreshTokens[len(kept):])
	user.RefreshTokens = kept
	return pruned
}

func (s *SessionService) result(user *models.User, token *models.RefreshToken) (*AuthResult, error) {
	access, err := s.issuer.Mint(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("error minting access token: %w", err)
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: token.Token}, nil
}

// withRetry re-runs fn from scratch while it fails with
// common.ErrVersionConflict, up to maxAttempts times. fn must reload
// whatever state it mutates.
func (s *SessionService) withRetry(ctx context.Context, op string, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if !errors.Is(err, common.ErrVersionConflict) {
			if err != nil && !isExpected(err) {
				s.log.Error(ctx, "session operation failed", "op", op, "error", err)
			}
			return err
		}

		s.metrics.Conflict(ctx)
		if attempt >= s.maxAttempts {
			s.log.Warn(ctx, "giving up after persist conflicts", "op", op, "attempts", attempt)
			return err
		}
		s.log.Info(ctx, "persist conflict, retrying", "op", op, "attempt", attempt)
	}
}

func isExpected(err error) bool {
	return errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrInvalidCredentials)
}

func prefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
