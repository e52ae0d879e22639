// Package repositorytest holds the behaviour every UserRepository backend must share.
package repositorytest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/repository"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

// Run exercises repo against the UserRepository contract.
// newRepo must return an empty repository for every call.
func Run(t *testing.T, newRepo func(t *testing.T) repository.UserRepository) {
	ctx := context.Background()

	create := func(t *testing.T, r repository.UserRepository, email string) uuid.UUID {
		t.Helper()
		id, err := r.Create(ctx, entity.NewUser{Email: valueobject.MustEmailAddress(email), PasswordHash: "$2a$10$hash"})
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, id)
		return id
	}

	t.Run("create then get", func(t *testing.T) {
		r := newRepo(t)
		id := create(t, r, "email@example.com")

		u, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "email@example.com", u.Email.String())
		assert.Equal(t, "$2a$10$hash", u.PasswordHash)
		assert.Nil(t, u.NewEmail)
		assert.Nil(t, u.EmailConfirmedAt)
		assert.Nil(t, u.ConfirmationToken)
		assert.Nil(t, u.ConfirmationSentAt)
		assert.Equal(t, entity.StateUnconfirmed, u.ConfirmationState())
	})

	t.Run("duplicate email", func(t *testing.T) {
		r := newRepo(t)
		create(t, r, "email@example.com")

		_, err := r.Create(ctx, entity.NewUser{Email: valueobject.MustEmailAddress("email@example.com"), PasswordHash: "x"})
		assert.True(t, apperror.Is(err, apperror.CodeDuplicateEmail), "got %v", err)
	})

	t.Run("get unknown id", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.GetByID(ctx, uuid.New())
		assert.True(t, apperror.Is(err, apperror.CodeUserNotFound), "got %v", err)
	})

	t.Run("set token stamps sent at and overwrites", func(t *testing.T) {
		r := newRepo(t)
		id := create(t, r, "email@example.com")

		require.NoError(t, r.SetConfirmationToken(ctx, id, "first", nil))
		require.NoError(t, r.SetConfirmationToken(ctx, id, "second", nil))

		u, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, u.ConfirmationToken)
		require.NotNil(t, u.ConfirmationSentAt)
		assert.Equal(t, "second", *u.ConfirmationToken)
		assert.False(t, u.ConfirmationSentAt.IsZero())
		assert.Nil(t, u.NewEmail)
		assert.Equal(t, entity.StateConfirmationPending, u.ConfirmationState())
	})

	t.Run("set token on unknown id", func(t *testing.T) {
		r := newRepo(t)
		err := r.SetConfirmationToken(ctx, uuid.New(), "tok", nil)
		assert.True(t, apperror.Is(err, apperror.CodeUserNotFound), "got %v", err)
	})

	t.Run("mark confirmed clears token", func(t *testing.T) {
		r := newRepo(t)
		id := create(t, r, "email@example.com")
		require.NoError(t, r.SetConfirmationToken(ctx, id, "tok", nil))

		require.NoError(t, r.MarkConfirmed(ctx, id, nil))

		u, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, u.EmailConfirmedAt)
		assert.Nil(t, u.ConfirmationToken)
		assert.Nil(t, u.ConfirmationSentAt)
		assert.Equal(t, "email@example.com", u.Email.String())
		assert.Equal(t, entity.StateConfirmed, u.ConfirmationState())
	})

	t.Run("mark confirmed on unknown id", func(t *testing.T) {
		r := newRepo(t)
		err := r.MarkConfirmed(ctx, uuid.New(), nil)
		assert.True(t, apperror.Is(err, apperror.CodeUserNotFound), "got %v", err)
	})

	t.Run("email change is promoted on confirm", func(t *testing.T) {
		r := newRepo(t)
		id := create(t, r, "old@example.com")
		newEmail := valueobject.MustEmailAddress("new@example.com")

		require.NoError(t, r.SetConfirmationToken(ctx, id, "tok", &newEmail))
		u, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, u.NewEmail)
		assert.Equal(t, "new@example.com", u.NewEmail.String())
		assert.Equal(t, "old@example.com", u.Email.String())

		// a resend without a new address keeps the pending one
		require.NoError(t, r.SetConfirmationToken(ctx, id, "tok2", nil))
		u, err = r.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, u.NewEmail)

		require.NoError(t, r.MarkConfirmed(ctx, id, u.NewEmail))
		u, err = r.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", u.Email.String())
		assert.Nil(t, u.NewEmail)
		assert.NotNil(t, u.EmailConfirmedAt)
	})

	t.Run("email change collides with a later account", func(t *testing.T) {
		r := newRepo(t)
		id := create(t, r, "old@example.com")
		newEmail := valueobject.MustEmailAddress("taken@example.com")
		require.NoError(t, r.SetConfirmationToken(ctx, id, "tok", &newEmail))

		create(t, r, "taken@example.com")

		err := r.MarkConfirmed(ctx, id, &newEmail)
		assert.True(t, apperror.Is(err, apperror.CodeEmailInUse), "got %v", err)

		u, err := r.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "old@example.com", u.Email.String())
		assert.NotNil(t, u.NewEmail)
		assert.NotNil(t, u.ConfirmationToken)
	})
}
