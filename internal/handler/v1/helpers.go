package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/ingestion"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/registration"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/service"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/session"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string                   `json:"error"`
	Fields registration.FieldErrors `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondAccepted(c *gin.Context, data any, message string) {
	c.JSON(http.StatusAccepted, APIResponse[any]{Data: data, Message: message})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *registration.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found", Code: "SESSION_NOT_FOUND"})

	case errors.Is(err, registration.ErrProfileLocked),
		errors.Is(err, registration.ErrInvalidTransition),
		errors.Is(err, ingestion.ErrSlotClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "REGISTRATION_LOCKED"})

	case errors.Is(err, registration.ErrUnknownField),
		errors.Is(err, registration.ErrWrongFieldKind),
		errors.Is(err, registration.ErrInvalidValue),
		errors.Is(err, ingestion.ErrNoFiles),
		errors.Is(err, service.ErrUnknownSection),
		errors.Is(err, dashboard.ErrInvalidReminder):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

func parseParamInt(c *gin.Context, param string) (int, bool) {
	v, err := strconv.Atoi(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be an integer"})
		return 0, false
	}
	return v, true
}

// sessionID is set by the session middleware.
func sessionID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ctxSessionID)
	sid, _ := id.(uuid.UUID)
	return sid
}
