package credentials

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/dmitrijs2005/antecipa/internal/server/models"
)

// MemoryStore is a process-local Store. Callers always receive and hand
// over deep copies, so mutating a returned user never touches stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	byName  map[string]string
	byToken map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*models.User),
		byName:  make(map[string]string),
		byToken: make(map[string]string),
	}
}

func (s *MemoryStore) FindUserByToken(_ context.Context, token string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byToken[token])
}

func (s *MemoryStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(id)
}

func (s *MemoryStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byName[username])
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[user.UserName]; ok {
		return common.ErrorAlreadyExists
	}
	if _, ok := s.users[user.ID]; ok {
		return common.ErrorAlreadyExists
	}
	s.put(user.Clone())
	return nil
}

func (s *MemoryStore) Persist(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if stored.Version != user.Version {
		return common.ErrVersionConflict
	}

	for _, t := range stored.RefreshTokens {
		delete(s.byToken, t.Token)
	}
	next := user.Clone()
	next.Version++
	s.put(next)

	user.Version = next.Version
	return nil
}

func (s *MemoryStore) lookup(id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryStore) put(u *models.User) {
	s.users[u.ID] = u
	s.byName[u.UserName] = u.ID
	for _, t := range u.RefreshTokens {
		s.byToken[t.Token] = u.ID
	}
}
