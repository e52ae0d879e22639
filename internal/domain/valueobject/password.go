package valueobject

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 100

	// zxcvbn scores run 0..4; 3 is "safely unguessable".
	PasswordMinScore = 3

	masked = "********"
)

// Password holds a plaintext password that passed the length and strength
// checks. It never prints its content.
type Password struct {
	value string
}

func NewPassword(raw string) (Password, error) {
	n := utf8.RuneCountInString(raw)
	if n < PasswordMinLength {
		return Password{}, apperror.ErrPasswordTooShort(PasswordMinLength)
	}
	if n > PasswordMaxLength {
		return Password{}, apperror.ErrPasswordTooLong(PasswordMaxLength)
	}
	if zxcvbn.PasswordStrength(raw, nil).Score < PasswordMinScore {
		return Password{}, apperror.ErrPasswordTooWeak()
	}
	return Password{value: raw}, nil
}

// Bytes exposes the plaintext for hashing only.
func (p Password) Bytes() []byte { return []byte(p.value) }

func (p Password) String() string { return masked }

func (p Password) GoString() string { return masked }

func (p Password) MarshalJSON() ([]byte, error) { return json.Marshal(masked) }
