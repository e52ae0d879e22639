package application

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
	"github.com/oksasatya/go-ddd-account-service/internal/infrastructure/memory"
	mailtpl "github.com/oksasatya/go-ddd-account-service/pkg/mailer/templates"
)

var errBoom = errors.New("boom")

type sentMail struct {
	To      string
	Subject string
	HTML    string
	Plain   string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to valueobject.EmailAddress, subject, htmlBody, plainBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to.String(), Subject: subject, HTML: htmlBody, Plain: plainBody})
	return m.err
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// tokenFrom pulls the token out of the plain-text body.
func (s sentMail) tokenFrom() string {
	i := strings.Index(s.Plain, "token=")
	if i < 0 {
		return ""
	}
	return s.Plain[i+len("token="):]
}

// faultyRepo wraps the in-memory repo and fails selected calls.
type faultyRepo struct {
	*memory.UserRepository

	createErr   error
	getErr      error
	setTokenErr error
	confirmErr  error
}

func (r *faultyRepo) Create(ctx context.Context, u entity.NewUser) (uuid.UUID, error) {
	if r.createErr != nil {
		return uuid.Nil, r.createErr
	}
	return r.UserRepository.Create(ctx, u)
}

func (r *faultyRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.UserRepository.GetByID(ctx, id)
}

func (r *faultyRepo) SetConfirmationToken(ctx context.Context, id uuid.UUID, token string, newEmail *valueobject.EmailAddress) error {
	if r.setTokenErr != nil {
		return r.setTokenErr
	}
	return r.UserRepository.SetConfirmationToken(ctx, id, token, newEmail)
}

func (r *faultyRepo) MarkConfirmed(ctx context.Context, id uuid.UUID, newEmail *valueobject.EmailAddress) error {
	if r.confirmErr != nil {
		return r.confirmErr
	}
	return r.UserRepository.MarkConfirmed(ctx, id, newEmail)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []ConfirmationJob
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job ConfirmationJob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

type processorFunc func(ctx context.Context, job ConfirmationJob) error

func (f processorFunc) ProcessConfirmationJob(ctx context.Context, job ConfirmationJob) error {
	return f(ctx, job)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fastHash(plain []byte) (string, error) { return "hashed:" + string(plain), nil }

type fixture struct {
	svc    *Service
	repo   *faultyRepo
	mailer *recordingMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := &faultyRepo{UserRepository: memory.NewUserRepository()}
	m := &recordingMailer{}
	svc := NewService(r, m, quietLogger(), "https://example.com", mailtpl.Brand{AppName: "Accounts"})
	svc.HashPassword = fastHash
	return &fixture{svc: svc, repo: r, mailer: m}
}

func (f *fixture) seedUser(t *testing.T, email string) *entity.User {
	t.Helper()
	id, err := f.repo.UserRepository.Create(context.Background(), entity.NewUser{
		Email:        valueobject.MustEmailAddress(email),
		PasswordHash: "h",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return f.reload(t, id)
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *entity.User {
	t.Helper()
	u, err := f.repo.UserRepository.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code=%q, got nil", code)
	}
	if !apperror.Is(err, code) {
		t.Fatalf("expected code=%q, got err=%v", code, err)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
