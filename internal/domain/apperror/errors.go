package apperror

import (
	"errors"
	"fmt"
)

// Kind groups error codes by meaning. It carries no transport status;
// the HTTP layer decides how each kind is presented.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindToken      Kind = "token"
	KindMail       Kind = "mail"
	KindUnknown    Kind = "unknown"
)

// Stable machine codes. Clients and tests match on these.
const (
	CodeEmptyEmail                = "empty_email"
	CodeInvalidEmail              = "invalid_email"
	CodeEmailUnchanged            = "email_unchanged"
	CodePasswordTooShort          = "password_too_short"
	CodePasswordTooLong           = "password_too_long"
	CodePasswordTooWeak           = "password_too_weak"
	CodeDuplicateEmail            = "duplicate_email"
	CodeEmailInUse                = "email_in_use"
	CodeUserNotFound              = "user_not_found"
	CodeEmailAlreadyConfirmed     = "email_already_confirmed"
	CodeConfirmationTokenExpired  = "confirmation_token_expired"
	CodeConfirmationTokenMismatch = "confirmation_token_mismatch"
	CodeMailSendFailed            = "mail_send_failed"
	CodeMailInvalidRecipient      = "mail_invalid_recipient"
	CodeMailUnknown               = "mail_unknown"
	CodeHashFailed                = "hash_failed"
	CodeUnknown                   = "unknown"
)

// Error is a structured domain error.
// Message is safe to show to clients. Cause is kept for logs only.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is match on Code, so sentinel-style comparisons work
// against freshly constructed values.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf returns the kind of the first domain error in the chain,
// or KindUnknown for anything else.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// As returns the first domain error in the chain, if any.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ----------------------
// Validation
// ----------------------

func ErrEmptyEmail() *Error {
	return New(KindValidation, CodeEmptyEmail, "email address is empty")
}

func ErrInvalidEmail() *Error {
	return New(KindValidation, CodeInvalidEmail, "email address is invalid")
}

func ErrEmailUnchanged() *Error {
	return New(KindValidation, CodeEmailUnchanged, "new email address equals the current one")
}

func ErrPasswordTooShort(min int) *Error {
	return WithMeta(New(KindValidation, CodePasswordTooShort, "password is too short"), map[string]string{
		"min": fmt.Sprint(min),
	})
}

func ErrPasswordTooLong(max int) *Error {
	return WithMeta(New(KindValidation, CodePasswordTooLong, "password is too long"), map[string]string{
		"max": fmt.Sprint(max),
	})
}

func ErrPasswordTooWeak() *Error {
	return New(KindValidation, CodePasswordTooWeak, "password is too weak")
}

// ----------------------
// Conflict / not found
// ----------------------

func ErrDuplicateEmail() *Error {
	return New(KindConflict, CodeDuplicateEmail, "an account with this email already exists")
}

func ErrEmailInUse() *Error {
	return New(KindConflict, CodeEmailInUse, "email address is already in use by another account")
}

func ErrEmailAlreadyConfirmed() *Error {
	return New(KindConflict, CodeEmailAlreadyConfirmed, "email address is already confirmed")
}

func ErrUserNotFound() *Error {
	return New(KindNotFound, CodeUserNotFound, "user not found")
}

// ----------------------
// Confirmation token
// ----------------------

func ErrConfirmationTokenExpired() *Error {
	return New(KindToken, CodeConfirmationTokenExpired, "confirmation token has expired")
}

func ErrConfirmationTokenMismatch() *Error {
	return New(KindToken, CodeConfirmationTokenMismatch, "confirmation token does not match")
}

// ----------------------
// Mail
// ----------------------

func ErrMailSendFailed(cause error) *Error {
	return Wrap(KindMail, CodeMailSendFailed, "failed to send email", cause)
}

func ErrMailInvalidRecipient(cause error) *Error {
	return Wrap(KindMail, CodeMailInvalidRecipient, "invalid email recipient", cause)
}

func ErrMailUnknown(cause error) *Error {
	return Wrap(KindMail, CodeMailUnknown, "unexpected mailer failure", cause)
}

// ----------------------
// Unknown
// ----------------------

func ErrHashFailed(cause error) *Error {
	return Wrap(KindUnknown, CodeHashFailed, "failed to hash password", cause)
}

func ErrUnknown(cause error) *Error {
	return Wrap(KindUnknown, CodeUnknown, "internal error", cause)
}
