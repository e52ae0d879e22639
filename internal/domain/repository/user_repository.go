package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

// UserRepository persists the User aggregate.
// Implementations return *apperror.Error values; driver errors only travel as Cause.
type UserRepository interface {
	// Create stores a new user and returns its id.
	// A taken email yields duplicate_email.
	Create(ctx context.Context, u entity.NewUser) (uuid.UUID, error)

	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// SetConfirmationToken stores token with sent-at = now, replacing any
	// previous token. A non-nil newEmail is recorded as the pending address;
	// nil leaves the pending address as it is.
	SetConfirmationToken(ctx context.Context, id uuid.UUID, token string, newEmail *valueobject.EmailAddress) error

	// MarkConfirmed stamps the confirmation time and clears the token.
	// A non-nil newEmail replaces Email after checking, in the same
	// transaction, that no other account owns it (email_in_use otherwise).
	MarkConfirmed(ctx context.Context, id uuid.UUID, newEmail *valueobject.EmailAddress) error
}
