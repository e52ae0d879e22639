package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/pkg/response"
)

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindToken:
		return http.StatusUnprocessableEntity
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error envelope. Causes go to the log, never to the client.
func (h *UserHandler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	de, ok := apperror.As(err)
	if !ok || status == http.StatusInternalServerError {
		h.Logger.WithError(err).
			WithField("request_id", c.GetString("request_id")).
			WithField("path", c.FullPath()).
			Error("request failed")
		response.Error[any](c, http.StatusInternalServerError, "internal server error", response.ErrorBody{Code: apperror.CodeUnknown})
		return
	}
	response.Error[any](c, status, de.Message, response.ErrorBody{Code: de.Code, Details: de.Meta})
}
