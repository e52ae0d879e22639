package valueobject

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
)

// local@domain.tld, no whitespace and a single @.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// EmailAddress is a validated, trimmed email address.
// The zero value is not a valid address; build one with NewEmailAddress.
type EmailAddress struct {
	value string
}

func NewEmailAddress(raw string) (EmailAddress, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return EmailAddress{}, apperror.ErrEmptyEmail()
	}
	if !emailPattern.MatchString(v) {
		return EmailAddress{}, apperror.ErrInvalidEmail()
	}
	return EmailAddress{value: v}, nil
}

// MustEmailAddress is for values already validated elsewhere, such as rows
// read back from storage. It panics on invalid input.
func MustEmailAddress(raw string) EmailAddress {
	e, err := NewEmailAddress(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func (e EmailAddress) String() string { return e.value }

func (e EmailAddress) Equal(other EmailAddress) bool { return e.value == other.value }

func (e EmailAddress) MarshalJSON() ([]byte, error) { return json.Marshal(e.value) }
