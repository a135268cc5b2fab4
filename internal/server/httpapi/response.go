package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloomweaver/backend/internal/common"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, common.ErrorNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, common.ErrorLimitReached):
		RespondError(c, http.StatusTooManyRequests, "limit_reached", err)
	case errors.Is(err, common.ErrorUpstream):
		RespondError(c, http.StatusBadGateway, "upstream_error", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
