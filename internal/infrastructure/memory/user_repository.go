package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/repository"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

// UserRepository keeps users in a map guarded by a mutex.
// Handy for tests and for running the API without a database.
type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*entity.User

	Now func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: map[uuid.UUID]*entity.User{}, Now: time.Now}
}

func (r *UserRepository) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *UserRepository) emailTaken(email valueobject.EmailAddress, except uuid.UUID) bool {
	for id, u := range r.users {
		if id != except && u.Email.Equal(email) {
			return true
		}
	}
	return false
}

func (r *UserRepository) Create(_ context.Context, nu entity.NewUser) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(nu.Email, uuid.Nil) {
		return uuid.Nil, apperror.ErrDuplicateEmail()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, apperror.ErrUnknown(err)
	}
	now := r.now()
	r.users[id] = &entity.User{
		ID:           id,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id, nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound()
	}
	return clone(u), nil
}

func (r *UserRepository) SetConfirmationToken(_ context.Context, id uuid.UUID, token string, newEmail *valueobject.EmailAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return apperror.ErrUserNotFound()
	}
	now := r.now()
	u.ConfirmationToken = &token
	u.ConfirmationSentAt = &now
	if newEmail != nil {
		e := *newEmail
		u.NewEmail = &e
	}
	u.UpdatedAt = now
	return nil
}

func (r *UserRepository) MarkConfirmed(_ context.Context, id uuid.UUID, newEmail *valueobject.EmailAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return apperror.ErrUserNotFound()
	}
	if newEmail != nil {
		if r.emailTaken(*newEmail, id) {
			return apperror.ErrEmailInUse()
		}
		u.Email = *newEmail
		u.NewEmail = nil
	}
	now := r.now()
	u.EmailConfirmedAt = &now
	u.ConfirmationToken = nil
	u.ConfirmationSentAt = nil
	u.UpdatedAt = now
	return nil
}

func clone(u *entity.User) *entity.User {
	c := *u
	if u.NewEmail != nil {
		e := *u.NewEmail
		c.NewEmail = &e
	}
	if u.EmailConfirmedAt != nil {
		t := *u.EmailConfirmedAt
		c.EmailConfirmedAt = &t
	}
	if u.ConfirmationToken != nil {
		s := *u.ConfirmationToken
		c.ConfirmationToken = &s
	}
	if u.ConfirmationSentAt != nil {
		t := *u.ConfirmationSentAt
		c.ConfirmationSentAt = &t
	}
	return &c
}

var _ repository.UserRepository = (*UserRepository)(nil)
