package application

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/mailer"
	repo "github.com/oksasatya/go-ddd-account-service/internal/domain/repository"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
	"github.com/oksasatya/go-ddd-account-service/pkg/helpers"
	mailtpl "github.com/oksasatya/go-ddd-account-service/pkg/mailer/templates"
)

// Service owns account creation and the email confirmation lifecycle.
// It keeps no per-account state; everything lives in Repo.
type Service struct {
	Repo       repo.UserRepository
	Mailer     mailer.Mailer
	Dispatcher ConfirmationDispatcher
	Logger     *logrus.Logger

	// BaseURL prefixes links in confirmation jobs queued by CreateUser.
	BaseURL string
	Brand   mailtpl.Brand

	HashPassword func(plain []byte) (string, error)
	Now          func() time.Time
}

func NewService(repo repo.UserRepository, m mailer.Mailer, logger *logrus.Logger, baseURL string, brand mailtpl.Brand) *Service {
	return &Service{
		Repo:         repo,
		Mailer:       m,
		Dispatcher:   NoopDispatcher{Logger: logger},
		Logger:       logger,
		BaseURL:      baseURL,
		Brand:        brand,
		HashPassword: helpers.HashPassword,
		Now:          time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *logrus.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logrus.StandardLogger()
}

// translate keeps domain errors as they are and hides anything else behind unknown.
func translate(err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.ErrUnknown(err)
}

// CreateUser stores a new account and queues its first confirmation email.
// The returned id does not depend on whether that email goes out.
func (s *Service) CreateUser(ctx context.Context, email valueobject.EmailAddress, password valueobject.Password) (uuid.UUID, error) {
	hash, err := s.HashPassword(password.Bytes())
	if err != nil {
		return uuid.Nil, apperror.ErrHashFailed(err)
	}

	id, err := s.Repo.Create(ctx, entity.NewUser{Email: email, PasswordHash: hash})
	if err != nil {
		return uuid.Nil, translate(err)
	}
	s.log().WithField("user_id", id).Info("user created")

	if s.Dispatcher != nil {
		s.Dispatcher.Dispatch(ctx, ConfirmationJob{
			MessageID:   uuid.NewString(),
			UserID:      id,
			BaseURL:     s.BaseURL,
			RequestedAt: s.now().UTC(),
		})
	}
	return id, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// SendEmailConfirmation issues a new token, replacing any earlier one, and
// mails the link. It returns when the token expires.
func (s *Service) SendEmailConfirmation(ctx context.Context, u *entity.User, baseURL string) (time.Time, error) {
	if u.IsConfirmed() && !u.HasPendingEmailChange() {
		return time.Time{}, apperror.ErrEmailAlreadyConfirmed()
	}
	return s.issueConfirmation(ctx, u, u.ConfirmationRecipient(), nil, baseURL)
}

// RequestEmailChange records newEmail as pending and mails a confirmation
// link to it. The current email stays in effect until ConfirmEmail succeeds.
func (s *Service) RequestEmailChange(ctx context.Context, u *entity.User, newEmail valueobject.EmailAddress, baseURL string) (time.Time, error) {
	if newEmail.Equal(u.Email) {
		return time.Time{}, apperror.ErrEmailUnchanged()
	}
	return s.issueConfirmation(ctx, u, newEmail, &newEmail, baseURL)
}

func (s *Service) issueConfirmation(ctx context.Context, u *entity.User, to valueobject.EmailAddress, newEmail *valueobject.EmailAddress, baseURL string) (time.Time, error) {
	issuedAt := s.now()
	token, err := GenerateConfirmationToken(u.ID, issuedAt)
	if err != nil {
		return time.Time{}, apperror.ErrUnknown(err)
	}

	// The token must be stored before anyone can receive it.
	if err := s.Repo.SetConfirmationToken(ctx, u.ID, token, newEmail); err != nil {
		return time.Time{}, translate(err)
	}
	expiresAt := issuedAt.Add(entity.ConfirmationTTL)

	data := mailtpl.NewConfirmEmailData(s.Brand, to.String(), ConfirmationLink(baseURL, u.ID, token), mailtpl.WithExpiresAt(expiresAt))
	subject, plain, html, err := mailtpl.Render(mailtpl.ConfirmEmail, data)
	if err != nil {
		return time.Time{}, apperror.ErrUnknown(err)
	}

	if err := s.Mailer.Send(ctx, to, subject, html, plain); err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).Warn("send confirmation email failed")
		return time.Time{}, apperror.ErrUnknown(err)
	}
	return expiresAt, nil
}

// ConfirmEmail checks presented against the stored token and marks the
// account confirmed, promoting a pending new email if there is one. The
// check runs against the current row, not the caller's copy of u, so a
// token rotated or consumed since u was loaded no longer matches.
func (s *Service) ConfirmEmail(ctx context.Context, u *entity.User, presented string) error {
	u, err := s.Repo.GetByID(ctx, u.ID)
	if err != nil {
		return translate(err)
	}
	if u.IsConfirmed() && !u.HasPendingEmailChange() {
		return apperror.ErrEmailAlreadyConfirmed()
	}
	if !u.HasConfirmationToken() {
		return apperror.ErrConfirmationTokenMismatch()
	}
	if expiresAt, _ := u.ConfirmationExpiresAt(); s.now().After(expiresAt) {
		return apperror.ErrConfirmationTokenExpired()
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(*u.ConfirmationToken)) != 1 {
		return apperror.ErrConfirmationTokenMismatch()
	}

	if err := s.Repo.MarkConfirmed(ctx, u.ID, u.NewEmail); err != nil {
		return translate(err)
	}
	s.log().WithField("user_id", u.ID).Info("email confirmed")
	return nil
}

// ProcessConfirmationJob sends the confirmation email a job asks for.
// Accounts confirmed in the meantime are skipped.
func (s *Service) ProcessConfirmationJob(ctx context.Context, job ConfirmationJob) error {
	u, err := s.GetUser(ctx, job.UserID)
	if err != nil {
		return err
	}
	if u.IsConfirmed() && !u.HasPendingEmailChange() {
		return nil
	}
	baseURL := job.BaseURL
	if baseURL == "" {
		baseURL = s.BaseURL
	}
	_, err = s.SendEmailConfirmation(ctx, u, baseURL)
	return err
}
