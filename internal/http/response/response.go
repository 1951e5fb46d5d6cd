package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/babyshield/crownsafe-backend/internal/platform/ctxutil"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the uniform response body. Every endpoint, success or failure,
// answers with it so clients parse one shape.
type Envelope struct {
	OK      bool      `json:"ok"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	TraceID string    `json:"traceId,omitempty"`
}

func RespondOK(c *gin.Context, payload any) {
	respond(c, http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	respond(c, http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	respond(c, http.StatusAccepted, payload)
}

func respond(c *gin.Context, status int, payload any) {
	c.JSON(status, Envelope{
		OK:      true,
		Data:    payload,
		TraceID: ctxutil.TraceID(c.Request.Context()),
	})
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, Envelope{
		OK:      false,
		Error:   &APIError{Code: code, Message: msg},
		TraceID: ctxutil.TraceID(c.Request.Context()),
	})
}
