package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticate_ByEmailAndUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "ALICE@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, u.ID)

	u, err = svc.Authenticate(ctx, "  Alice ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, u.ID)
}

func TestAuthenticate_UniformFailure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)

	_, wrongPw := svc.Authenticate(ctx, "alice@example.com", "Wrong-Pass 1!")
	_, unknown := svc.Authenticate(ctx, "nobody@example.com", testPassword)
	_, empty := svc.Authenticate(ctx, "", "")

	for _, err := range []error{wrongPw, unknown, empty} {
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
	}
	assert.Equal(t, wrongPw.Error(), unknown.Error(), "failures must be indistinguishable")
}

func TestAuthenticate_InactiveUserReturned(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)

	off := false
	_, err = svc.Update(ctx, reg.ID, UpdateRequest{IsActive: &off})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "alice", testPassword)
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	assert.True(t, errors.Is(CheckActive(u), ErrAccountInactive))
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) GetUserByEmail(context.Context, string) (User, error) {
	return User{}, errors.New("connection reset")
}

func TestAuthenticate_StoreFailureNotMasked(t *testing.T) {
	svc, err := NewService(failingStore{NewMemoryStore()}, testHasher())
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "alice@example.com", testPassword)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestAuthenticate_RehashesLegacyBcrypt(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	u, err := store.CreateUser(ctx, CreateUserInput{
		Username:     "legacy",
		Email:        "legacy@example.com",
		PasswordHash: string(legacy),
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "legacy", testPassword)
	require.NoError(t, err)

	after, err := store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, after.PasswordHash, "$argon2id$")
}

type readOnlyStore struct {
	*MemoryStore
}

func (readOnlyStore) UpdateUser(context.Context, string, UpdateUserInput) (User, error) {
	return User{}, errors.New("read-only replica")
}

func TestAuthenticate_RehashFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	core, logs := observer.New(zapcore.WarnLevel)
	svc, err := NewService(readOnlyStore{mem}, testHasher(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := mem.CreateUser(ctx, CreateUserInput{
		Username:     "legacy",
		Email:        "legacy@example.com",
		PasswordHash: string(legacy),
	})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "legacy", testPassword)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	entries := logs.FilterMessage("identity.rehash.fail").All()
	require.Len(t, entries, 1)
	assert.Equal(t, u.ID, entries[0].ContextMap()["user_id"])
	assert.Equal(t, "read-only replica", entries[0].ContextMap()["error"])

	after, err := mem.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, string(legacy), after.PasswordHash)
}
