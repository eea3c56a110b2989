package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/ingestion"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/registration"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/service"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/session"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/auth"
)

type Handler struct {
	sessions       *session.Manager
	tokens         *auth.TokenManager
	intake         *service.IntakeService
	dashboard      *service.DashboardService
	maxUploadBytes int64
	log            *zap.Logger
}

type sessionResponse struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) createSession(c *gin.Context) {
	s := h.sessions.Create()

	tok, err := h.tokens.Issue(s.ID)
	if err != nil {
		h.log.Error("failed to issue session token", zap.Error(err))
		_ = h.sessions.Remove(s.ID)
		respondError(c, http.StatusInternalServerError, "could not start session")
		return
	}

	respondCreated(c, sessionResponse{
		SessionID: s.ID.String(),
		Token:     tok.Token,
		TokenType: tok.TokenType,
		ExpiresAt: tok.ExpiresAt,
	})
}

func (h *Handler) endSession(c *gin.Context) {
	if err := h.sessions.Remove(sessionID(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type vocabularyResponse struct {
	MedicalConditions    []string                           `json:"medicalConditions"`
	Languages            []string                           `json:"languages"`
	Genders              []registration.Gender              `json:"genders"`
	NotificationChannels []registration.NotificationChannel `json:"notificationChannels"`
	Sections             []dashboard.Section                `json:"sections"`
}

func (h *Handler) vocabulary(c *gin.Context) {
	respondOK(c, vocabularyResponse{
		MedicalConditions:    registration.MedicalConditions,
		Languages:            registration.Languages,
		Genders:              registration.Genders,
		NotificationChannels: registration.NotificationChannels,
		Sections:             dashboard.Sections,
	})
}

// readFiles copies every "file" part into memory. Zero parts is a valid
// event; the caller decides what it means.
func (h *Handler) readFiles(c *gin.Context) ([]ingestion.Source, ingestion.Trigger, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return nil, "", false
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			h.log.Warn("failed to remove multipart temp files", zap.Error(err))
		}
	}()

	var trigger string
	if vs := form.Value["trigger"]; len(vs) > 0 {
		trigger = vs[0]
	}
	return ingestion.FromFileHeaders(form.File["file"]), ingestion.ParseTrigger(trigger), true
}

func (h *Handler) health(extractionState func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":   "ok",
			"sessions": h.sessions.Len(),
		}
		if extractionState != nil {
			body["extraction"] = extractionState()
		}
		c.JSON(http.StatusOK, body)
	}
}
