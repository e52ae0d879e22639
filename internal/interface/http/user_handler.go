package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-ddd-account-service/internal/application"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
	"github.com/oksasatya/go-ddd-account-service/pkg/response"
	"github.com/oksasatya/go-ddd-account-service/pkg/validation"
)

type UserHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	BaseURL string
	Started time.Time
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger, baseURL string) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, BaseURL: baseURL, Started: time.Now()}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changeEmailRequest struct {
	Email string `json:"email"`
}

type userURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type confirmQuery struct {
	Token string `form:"token" binding:"max=128"`
}

type userView struct {
	ID                string                   `json:"id"`
	Email             string                   `json:"email"`
	NewEmail          *string                  `json:"new_email,omitempty"`
	EmailConfirmedAt  *time.Time               `json:"email_confirmed_at,omitempty"`
	ConfirmationState entity.ConfirmationState `json:"confirmation_state"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

func toUserView(u *entity.User) userView {
	v := userView{
		ID:                u.ID.String(),
		Email:             u.Email.String(),
		EmailConfirmedAt:  u.EmailConfirmedAt,
		ConfirmationState: u.ConfirmationState(),
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
	if u.NewEmail != nil {
		s := u.NewEmail.String()
		v.NewEmail = &s
	}
	return v
}

// bindUser resolves the :id path parameter to a stored user. It writes the
// error response itself and returns nil when the request cannot continue.
func (h *UserHandler) bindUser(c *gin.Context) *entity.User {
	var uri userURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid user id", response.ErrorBody{Code: "invalid_user_id", Details: validation.ToDetails(err)})
		return nil
	}
	u, err := h.Svc.GetUser(c.Request.Context(), uuid.MustParse(uri.ID))
	if err != nil {
		h.fail(c, err)
		return nil
	}
	return u
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.ErrorBody{Code: "invalid_payload", Details: validation.ToDetails(err)})
		return
	}
	email, err := valueobject.NewEmailAddress(req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	password, err := valueobject.NewPassword(req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	id, err := h.Svc.CreateUser(c.Request.Context(), email, password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/api/v1/users/"+id.String())
	response.Success(c, http.StatusCreated, gin.H{"id": id.String()}, "user created", nil)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	u := h.bindUser(c)
	if u == nil {
		return
	}
	response.Success(c, http.StatusOK, toUserView(u), "user", nil)
}

func (h *UserHandler) SendConfirmation(c *gin.Context) {
	u := h.bindUser(c)
	if u == nil {
		return
	}
	expiresAt, err := h.Svc.SendEmailConfirmation(c.Request.Context(), u, h.BaseURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"expires_at": expiresAt}, "confirmation email sent", nil)
}

func (h *UserHandler) ConfirmEmail(c *gin.Context) {
	var q confirmQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid token", response.ErrorBody{Code: "invalid_payload", Details: validation.ToDetails(err)})
		return
	}
	u := h.bindUser(c)
	if u == nil {
		return
	}
	if err := h.Svc.ConfirmEmail(c.Request.Context(), u, q.Token); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"confirmed": true}, "email confirmed", nil)
}

func (h *UserHandler) ChangeEmail(c *gin.Context) {
	var req changeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.ErrorBody{Code: "invalid_payload", Details: validation.ToDetails(err)})
		return
	}
	email, err := valueobject.NewEmailAddress(req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	u := h.bindUser(c)
	if u == nil {
		return
	}
	expiresAt, err := h.Svc.RequestEmailChange(c.Request.Context(), u, email, h.BaseURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"expires_at": expiresAt}, "confirmation email sent", nil)
}

func (h *UserHandler) Uptime(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"uptime": int64(time.Since(h.Started).Seconds())}, "uptime", nil)
}
