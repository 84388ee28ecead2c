package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zrdt80/beetrack/cmd/security/password"
)

// Hasher is the password hashing capability consumed by identity.
// security/password.Config satisfies it.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(digest, password string) (bool, error)
}

// rehasher is optionally implemented by a Hasher that can flag outdated digests.
type rehasher interface {
	NeedsRehash(digest string) bool
}

const dummyPassword = "Dummy-Timing-Passw0rd!"

// Service implements account operations (registration, updates) and the Credential Verifier.
type Service struct {
	store  Store
	hasher Hasher
	now    func() time.Time
	log    *zap.Logger

	// dummyHash keeps Authenticate timing uniform for unknown identities.
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for best-effort background work.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService constructs a Service. It hashes a throwaway password once for timing resistance.
func NewService(store Store, hasher Hasher, opts ...ServiceOption) (*Service, error) {
	if store == nil || hasher == nil {
		return nil, fmt.Errorf("identity: nil store or hasher")
	}
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("identity: dummy hash: %w", err)
	}
	s := &Service{
		store:     store,
		hasher:    hasher,
		now:       func() time.Time { return time.Now().UTC() },
		log:       zap.NewNop(),
		dummyHash: dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store exposes the underlying user store for read paths.
func (s *Service) Store() Store { return s.store }

// RegisterInput is a self-service registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new active worker account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Register"

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if !validUsername(username) {
		return User{}, invalid(op, "username must be 3-64 characters without spaces or '@'")
	}
	if !validEmail(email) {
		return User{}, invalid(op, "invalid email")
	}

	digest, err := s.hashPassword(op, in.Password)
	if err != nil {
		return User{}, err
	}

	return s.store.CreateUser(ctx, CreateUserInput{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		Role:         RoleWorker,
		Now:          s.now(),
	})
}

// UpdateRequest is a partial account update. Role and IsActive are honored
// only when the caller passes them (admin paths).
type UpdateRequest struct {
	Username *string
	Email    *string
	Password *string
	Role     *Role
	IsActive *bool
}

// Update applies req to the user with the given ID, hashing a new password if present.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (User, error) {
	const op = "identity.Update"

	in := UpdateUserInput{Role: req.Role, IsActive: req.IsActive, Now: s.now()}

	if req.Username != nil {
		v := strings.TrimSpace(*req.Username)
		if !validUsername(v) {
			return User{}, invalid(op, "username must be 3-64 characters without spaces or '@'")
		}
		in.Username = &v
	}
	if req.Email != nil {
		v := strings.TrimSpace(*req.Email)
		if !validEmail(v) {
			return User{}, invalid(op, "invalid email")
		}
		in.Email = &v
	}
	if req.Role != nil && !req.Role.Valid() {
		return User{}, invalid(op, "unknown role")
	}
	if req.Password != nil {
		digest, err := s.hashPassword(op, *req.Password)
		if err != nil {
			return User{}, err
		}
		in.PasswordHash = &digest
	}

	return s.store.UpdateUser(ctx, id, in)
}

func (s *Service) hashPassword(op, plain string) (string, error) {
	if plain == "" {
		return "", invalid(op, "password is required")
	}
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		if password.IsPolicyError(err) {
			return "", invalid(op, err.Error())
		}
		return "", fmt.Errorf("%s: hash password: %w", op, err)
	}
	return digest, nil
}
