package credentials

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_PersistUnknownUser(t *testing.T) {
	s := NewMemoryStore()
	err := s.Persist(context.Background(), sampleUser("ghost", "ghost"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryStore_CreateUserIsCopied(t *testing.T) {
	s := NewMemoryStore()
	u := sampleUser("u1", "alice")
	assert.NoError(t, s.CreateUser(context.Background(), u))

	u.Role = "Admin"

	got, err := s.FindUserByID(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, "User", got.Role)
}
