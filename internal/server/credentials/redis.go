package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each user as one JSON document with two secondary
// indexes:
//
//	<prefix>:user:<id>          user document including the chain
//	<prefix>:username:<name>    -> id
//	<prefix>:token:<token>      -> id
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) userKey(id string) string     { return s.prefix + ":user:" + id }
func (s *RedisStore) usernameKey(n string) string  { return s.prefix + ":username:" + n }
func (s *RedisStore) tokenKey(token string) string { return s.prefix + ":token:" + token }

func (s *RedisStore) FindUserByToken(ctx context.Context, token string) (*models.User, error) {
	id, err := s.get(ctx, s.tokenKey(token))
	if err != nil {
		return nil, err
	}
	user, err := s.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// the index may briefly outlive a pruned token
	if user.FindToken(token) == nil {
		return nil, common.ErrorNotFound
	}
	return user, nil
}

func (s *RedisStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	data, err := s.get(ctx, s.userKey(id))
	if err != nil {
		return nil, err
	}
	return decodeUser([]byte(data))
}

func (s *RedisStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := s.get(ctx, s.usernameKey(username))
	if err != nil {
		return nil, err
	}
	return s.FindUserByID(ctx, id)
}

// CreateUser claims the username index and writes the document in one
// MULTI/EXEC guarded by WATCH on the index key.
func (s *RedisStore) CreateUser(ctx context.Context, user *models.User) error {
	nameKey := s.usernameKey(user.UserName)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, nameKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return common.ErrorAlreadyExists
		}

		data, err := json.Marshal(user)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.userKey(user.ID), data, 0)
			pipe.Set(ctx, nameKey, user.ID, 0)
			for _, t := range user.RefreshTokens {
				pipe.Set(ctx, s.tokenKey(t.Token), user.ID, 0)
			}
			return nil
		})
		return err
	}, nameKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorAlreadyExists), errors.Is(err, redis.TxFailedErr):
		return common.ErrorAlreadyExists
	default:
		return unavailable(err)
	}
}

// Persist compares the stored version under WATCH, then swaps in the new
// document and reconciles the token index in a single transaction.
func (s *RedisStore) Persist(ctx context.Context, user *models.User) error {
	key := s.userKey(user.ID)

	next := user.Clone()
	next.Version = user.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("error encoding user: %w", err)
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return common.ErrorNotFound
			}
			return err
		}
		stored, err := decodeUser(raw)
		if err != nil {
			return err
		}
		if stored.Version != user.Version {
			return common.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			for _, t := range stored.RefreshTokens {
				if next.FindToken(t.Token) == nil {
					pipe.Del(ctx, s.tokenKey(t.Token))
				}
			}
			for _, t := range next.RefreshTokens {
				pipe.Set(ctx, s.tokenKey(t.Token), user.ID, 0)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		user.Version = next.Version
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return common.ErrVersionConflict
	case errors.Is(err, common.ErrVersionConflict), errors.Is(err, common.ErrorNotFound), errors.Is(err, errDecode):
		return err
	default:
		return unavailable(err)
	}
}

func (s *RedisStore) get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrorNotFound
		}
		return "", unavailable(err)
	}
	return v, nil
}

var errDecode = errors.New("malformed user document")

func decodeUser(data []byte) (*models.User, error) {
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", errDecode, err)
	}
	return &u, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}
