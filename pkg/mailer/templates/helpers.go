package templates

import (
	"time"
)

// Brand carries the product details shown in every email.
type Brand struct {
	AppName     string
	CompanyName string
	SupportURL  string
}

// ConfirmEmailData feeds the confirm_email templates.
type ConfirmEmailData struct {
	Link  string
	Email string

	AppName     string
	CompanyName string
	SupportURL  string

	ExpiresAt     time.Time
	ExpiresAtText string
}

// Option pattern
type Option func(*ConfirmEmailData)

func WithExpiresAt(t time.Time) Option {
	return func(d *ConfirmEmailData) {
		utc := t.UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04 MST")
	}
}

func NewConfirmEmailData(b Brand, email, link string, opts ...Option) ConfirmEmailData {
	d := ConfirmEmailData{
		Link:        link,
		Email:       email,
		AppName:     b.AppName,
		CompanyName: b.CompanyName,
		SupportURL:  b.SupportURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
