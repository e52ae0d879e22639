package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "github.com/oksasatya/go-ddd-account-service/internal/application"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
	"github.com/oksasatya/go-ddd-account-service/internal/infrastructure/memory"
	mailtpl "github.com/oksasatya/go-ddd-account-service/pkg/mailer/templates"
	"github.com/oksasatya/go-ddd-account-service/pkg/validation"
)

const strongPassword = "correct horse battery staple 42!"

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

type outbox struct {
	mu    sync.Mutex
	plain []string
	to    []string
	err   error
}

func (o *outbox) Send(_ context.Context, to valueobject.EmailAddress, _, _, plainBody string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.to = append(o.to, to.String())
	o.plain = append(o.plain, plainBody)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.plain)
	last := o.plain[len(o.plain)-1]
	i := strings.Index(last, "token=")
	require.GreaterOrEqual(t, i, 0)
	return last[i+len("token="):]
}

type apiFixture struct {
	engine *gin.Engine
	repo   *memory.UserRepository
	mail   *outbox
	svc    *userapp.Service
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := memory.NewUserRepository()
	mail := &outbox{}
	svc := userapp.NewService(repo, mail, logger, "https://accounts.example.com", mailtpl.Brand{AppName: "Accounts"})
	svc.HashPassword = func(p []byte) (string, error) { return "hashed", nil }
	h := NewUserHandler(svc, logger, "https://accounts.example.com")

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/users", h.CreateUser)
	v1.GET("/users/:id", h.GetUser)
	v1.POST("/users/:id/email/confirmation", h.SendConfirmation)
	v1.GET("/users/:id/email/confirmation", h.ConfirmEmail)
	v1.POST("/users/:id/email/change", h.ChangeEmail)
	v1.GET("/uptime", h.Uptime)
	return &apiFixture{engine: r, repo: repo, mail: mail, svc: svc}
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(t, w.Code, env.Status)
	return w.Code, env
}

func (f *apiFixture) createUser(t *testing.T, email string) string {
	t.Helper()
	code, env := f.do(t, http.MethodPost, "/api/v1/users", `{"email":"`+email+`","password":"`+strongPassword+`"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.ID
}

func TestCreateUser(t *testing.T) {
	f := newAPI(t)
	id := f.createUser(t, "alice@example.com")
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	code, env := f.do(t, http.MethodPost, "/api/v1/users", `{"email":"alice@example.com","password":"`+strongPassword+`"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperror.CodeDuplicateEmail, env.Error.Code)
}

func TestCreateUser_Validation(t *testing.T) {
	f := newAPI(t)
	cases := []struct {
		body string
		code string
	}{
		{`{"email":"","password":"` + strongPassword + `"}`, apperror.CodeEmptyEmail},
		{`{"email":"nope","password":"` + strongPassword + `"}`, apperror.CodeInvalidEmail},
		{`{"email":"a@example.com","password":"short"}`, apperror.CodePasswordTooShort},
		{`{"email":"a@example.com","password":"password"}`, apperror.CodePasswordTooWeak},
	}
	for _, tc := range cases {
		code, env := f.do(t, http.MethodPost, "/api/v1/users", tc.body)
		assert.Equal(t, http.StatusUnprocessableEntity, code, tc.body)
		assert.Equal(t, tc.code, env.Error.Code, tc.body)
	}

	code, env := f.do(t, http.MethodPost, "/api/v1/users", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_payload", env.Error.Code)
}

func TestGetUser(t *testing.T) {
	f := newAPI(t)
	id := f.createUser(t, "bob@example.com")

	code, env := f.do(t, http.MethodGet, "/api/v1/users/"+id, "")
	require.Equal(t, http.StatusOK, code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "bob@example.com", view["email"])
	assert.Equal(t, "unconfirmed", view["confirmation_state"])
	assert.NotContains(t, view, "password_hash")

	code, env = f.do(t, http.MethodGet, "/api/v1/users/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, apperror.CodeUserNotFound, env.Error.Code)

	code, env = f.do(t, http.MethodGet, "/api/v1/users/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_user_id", env.Error.Code)
	assert.Contains(t, env.Error.Details, "id")
}

func TestConfirmationFlow(t *testing.T) {
	f := newAPI(t)
	id := f.createUser(t, "carol@example.com")

	code, env := f.do(t, http.MethodPost, "/api/v1/users/"+id+"/email/confirmation", "")
	require.Equal(t, http.StatusAccepted, code)
	assert.Contains(t, string(env.Data), "expires_at")
	token := f.mail.lastToken(t)
	assert.Len(t, token, 44)

	code, env = f.do(t, http.MethodGet, "/api/v1/users/"+id+"/email/confirmation?token=wrong", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, apperror.CodeConfirmationTokenMismatch, env.Error.Code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/users/"+id+"/email/confirmation?token="+token, "")
	require.Equal(t, http.StatusOK, code)

	code, env = f.do(t, http.MethodGet, "/api/v1/users/"+id+"/email/confirmation?token="+token, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperror.CodeEmailAlreadyConfirmed, env.Error.Code)

	code, env = f.do(t, http.MethodPost, "/api/v1/users/"+id+"/email/confirmation", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperror.CodeEmailAlreadyConfirmed, env.Error.Code)
}

func TestConfirmEmail_Expired(t *testing.T) {
	f := newAPI(t)
	id := f.createUser(t, "dave@example.com")

	past := time.Now().Add(-25 * time.Hour)
	f.repo.Now = func() time.Time { return past }
	f.svc.Now = func() time.Time { return past }
	code, _ := f.do(t, http.MethodPost, "/api/v1/users/"+id+"/email/confirmation", "")
	require.Equal(t, http.StatusAccepted, code)
	f.svc.Now = time.Now

	code, env := f.do(t, http.MethodGet, "/api/v1/users/"+id+"/email/confirmation?token="+f.mail.lastToken(t), "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, apperror.CodeConfirmationTokenExpired, env.Error.Code)
}

func TestChangeEmail(t *testing.T) {
	f := newAPI(t)
	id := f.createUser(t, "erin@example.com")

	code, env := f.do(t, http.MethodPost, "/api/v1/users/"+id+"/email/change", `{"email":"erin@example.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, apperror.CodeEmailUnchanged, env.Error.Code)

	code, _ = f.do(t, http.MethodPost, "/api/v1/users/"+id+"/email/change", `{"email":"erin@new.example.com"}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "erin@new.example.com", f.mail.to[len(f.mail.to)-1])

	code, _ = f.do(t, http.MethodGet, "/api/v1/users/"+id+"/email/confirmation?token="+f.mail.lastToken(t), "")
	require.Equal(t, http.StatusOK, code)

	_, env = f.do(t, http.MethodGet, "/api/v1/users/"+id, "")
	var view map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "erin@new.example.com", view["email"])
	assert.NotContains(t, view, "new_email")
}

func TestChangeEmail_InUse(t *testing.T) {
	f := newAPI(t)
	f.createUser(t, "taken@example.com")
	id := f.createUser(t, "frank@example.com")

	code, _ := f.do(t, http.MethodPost, "/api/v1/users/"+id+"/email/change", `{"email":"taken@example.com"}`)
	require.Equal(t, http.StatusAccepted, code)

	code, env := f.do(t, http.MethodGet, "/api/v1/users/"+id+"/email/confirmation?token="+f.mail.lastToken(t), "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, apperror.CodeEmailInUse, env.Error.Code)
}

func TestMailerFailureIsOpaque(t *testing.T) {
	f := newAPI(t)
	id := f.createUser(t, "gina@example.com")
	f.mail.err = apperror.ErrMailSendFailed(errors.New("smtp 451 at mx.internal"))

	code, env := f.do(t, http.MethodPost, "/api/v1/users/"+id+"/email/confirmation", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, apperror.CodeUnknown, env.Error.Code)
	assert.NotContains(t, env.Message, "mx.internal")
}

func TestUptime(t *testing.T) {
	f := newAPI(t)
	code, env := f.do(t, http.MethodGet, "/api/v1/uptime", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "uptime")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(apperror.ErrInvalidEmail()))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(apperror.ErrConfirmationTokenExpired()))
	assert.Equal(t, http.StatusNotFound, StatusFor(apperror.ErrUserNotFound()))
	assert.Equal(t, http.StatusConflict, StatusFor(apperror.ErrEmailInUse()))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperror.ErrUnknown(errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("raw")))
}
