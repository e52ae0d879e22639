package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

// ConfirmationTTL is how long a confirmation token stays valid after it was sent.
const ConfirmationTTL = 24 * time.Hour

// ConfirmationState is derived from the confirmation fields of a User.
type ConfirmationState string

const (
	StateUnconfirmed         ConfirmationState = "unconfirmed"
	StateConfirmationPending ConfirmationState = "confirmation_pending"
	StateConfirmed           ConfirmationState = "confirmed"
	StateNewEmailPending     ConfirmationState = "new_email_pending"
)

// User is the aggregate root for the account domain.
// Only the bcrypt hash of the password is kept.
//
// ConfirmationToken and ConfirmationSentAt are set and cleared together.
// NewEmail is non-nil while an email change waits for confirmation; Email
// stays authoritative until then.
type User struct {
	ID                 uuid.UUID
	Email              valueobject.EmailAddress
	PasswordHash       string
	NewEmail           *valueobject.EmailAddress
	EmailConfirmedAt   *time.Time
	ConfirmationToken  *string
	ConfirmationSentAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUser is the input to UserRepository.Create.
type NewUser struct {
	Email        valueobject.EmailAddress
	PasswordHash string
}

func (u *User) IsConfirmed() bool { return u.EmailConfirmedAt != nil }

func (u *User) HasPendingEmailChange() bool { return u.NewEmail != nil }

func (u *User) HasConfirmationToken() bool {
	return u.ConfirmationToken != nil && u.ConfirmationSentAt != nil
}

// ConfirmationExpiresAt returns the expiry of the outstanding token, if any.
func (u *User) ConfirmationExpiresAt() (time.Time, bool) {
	if u.ConfirmationSentAt == nil {
		return time.Time{}, false
	}
	return u.ConfirmationSentAt.Add(ConfirmationTTL), true
}

// ConfirmationRecipient is the address a confirmation mail goes to:
// the pending new email during a change, the current one otherwise.
func (u *User) ConfirmationRecipient() valueobject.EmailAddress {
	if u.NewEmail != nil {
		return *u.NewEmail
	}
	return u.Email
}

func (u *User) ConfirmationState() ConfirmationState {
	switch {
	case u.NewEmail != nil:
		return StateNewEmailPending
	case u.EmailConfirmedAt != nil:
		return StateConfirmed
	case u.HasConfirmationToken():
		return StateConfirmationPending
	default:
		return StateUnconfirmed
	}
}
