package credentials

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUser(id, name string) *models.User {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.User{
		ID:           id,
		UserName:     name,
		PasswordHash: "hash",
		Role:         "User",
		CreatedAt:    now,
	}
}

func sampleToken(value string) *models.RefreshToken {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.RefreshToken{Token: value, Created: now, Expires: now.Add(7 * 24 * time.Hour), CreatedByIP: "10.0.0.1"}
}

// testStoreContract runs the behaviour every Store implementation shares.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, sampleUser("u1", "alice")))

		byID, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.UserName)
		assert.Equal(t, int64(0), byID.Version)

		byName, err := s.FindUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "u1", byName.ID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, sampleUser("u1", "alice")))
		assert.ErrorIs(t, s.CreateUser(ctx, sampleUser("u2", "alice")), common.ErrorAlreadyExists)
	})

	t.Run("not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindUserByID(ctx, "missing")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		_, err = s.FindUserByUsername(ctx, "missing")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		_, err = s.FindUserByToken(ctx, "missing")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("persist keeps chain order and advances version", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, sampleUser("u1", "alice")))

		u, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)
		u.RefreshTokens = append(u.RefreshTokens, sampleToken("t1"), sampleToken("t2"))
		require.NoError(t, s.Persist(ctx, u))
		assert.Equal(t, int64(1), u.Version)

		got, err := s.FindUserByToken(ctx, "t2")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.ID)
		assert.Equal(t, int64(1), got.Version)
		require.Len(t, got.RefreshTokens, 2)
		assert.Equal(t, "t1", got.RefreshTokens[0].Token)
		assert.Equal(t, "t2", got.RefreshTokens[1].Token)
		assert.True(t, got.RefreshTokens[0].Expires.Equal(u.RefreshTokens[0].Expires))
	})

	t.Run("persist round-trips revocation fields", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, sampleUser("u1", "alice")))

		u, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)
		old, cur := sampleToken("t1"), sampleToken("t2")
		old.Revoke(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "10.0.0.9", models.ReasonReplaced, "t2")
		u.RefreshTokens = []*models.RefreshToken{old, cur}
		require.NoError(t, s.Persist(ctx, u))

		got, err := s.FindUserByToken(ctx, "t1")
		require.NoError(t, err)
		tok := got.FindToken("t1")
		require.NotNil(t, tok)
		require.NotNil(t, tok.Revoked)
		assert.Equal(t, "10.0.0.9", tok.RevokedByIP)
		assert.Equal(t, models.ReasonReplaced, tok.ReasonRevoked)
		assert.Equal(t, "t2", tok.ReplacedByToken)
		assert.False(t, got.FindToken("t2").IsRevoked())
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, sampleUser("u1", "alice")))

		a, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)
		b, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)

		a.RefreshTokens = append(a.RefreshTokens, sampleToken("ta"))
		require.NoError(t, s.Persist(ctx, a))

		b.RefreshTokens = append(b.RefreshTokens, sampleToken("tb"))
		assert.ErrorIs(t, s.Persist(ctx, b), common.ErrVersionConflict)
		assert.Equal(t, int64(0), b.Version)

		_, err = s.FindUserByToken(ctx, "tb")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("pruned tokens are no longer found", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, sampleUser("u1", "alice")))

		u, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)
		u.RefreshTokens = []*models.RefreshToken{sampleToken("t1"), sampleToken("t2")}
		require.NoError(t, s.Persist(ctx, u))

		u.RefreshTokens = u.RefreshTokens[1:]
		require.NoError(t, s.Persist(ctx, u))

		_, err = s.FindUserByToken(ctx, "t1")
		assert.ErrorIs(t, err, common.ErrorNotFound)
		_, err = s.FindUserByToken(ctx, "t2")
		assert.NoError(t, err)
	})

	t.Run("returned users are detached copies", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, sampleUser("u1", "alice")))

		u, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)
		u.RefreshTokens = []*models.RefreshToken{sampleToken("t1")}
		require.NoError(t, s.Persist(ctx, u))

		u.RefreshTokens[0].Revoke(time.Now(), "x", models.ReasonLogout, "")

		fresh, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, fresh.FindToken("t1").IsRevoked())
	})

	t.Run("concurrent persists of the same version", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, sampleUser("u1", "alice")))

		const racers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok, clash int
		)
		for i := 0; i < racers; i++ {
			u, err := s.FindUserByID(ctx, "u1")
			require.NoError(t, err)
			wg.Add(1)
			go func(u *models.User, i int) {
				defer wg.Done()
				u.RefreshTokens = append(u.RefreshTokens, sampleToken(string(rune('a'+i))))
				err := s.Persist(ctx, u)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else if assert.ErrorIs(t, err, common.ErrVersionConflict) {
					clash++
				}
			}(u, i)
		}
		wg.Wait()

		assert.Equal(t, 1, ok)
		assert.Equal(t, racers-1, clash)

		final, err := s.FindUserByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), final.Version)
		assert.Len(t, final.RefreshTokens, 1)
	})
}
