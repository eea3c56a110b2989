package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
)

type setSectionRequest struct {
	Section string `json:"section" binding:"required"`
}

func (h *Handler) getDashboard(c *gin.Context) {
	v, err := h.dashboard.View(c.Request.Context(), sessionID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, v)
}

func (h *Handler) setSection(c *gin.Context) {
	var req setSectionRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := h.dashboard.SetSection(c.Request.Context(), sessionID(c), dashboard.Section(req.Section))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, v)
}

func (h *Handler) searchPrescriptions(c *gin.Context) {
	rxs, err := h.dashboard.SearchPrescriptions(c.Request.Context(), sessionID(c), c.Query("search"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rxs)
}

func (h *Handler) toggleReminder(c *gin.Context) {
	id, ok := parseParamInt(c, "id")
	if !ok {
		return
	}

	rs, err := h.dashboard.ToggleReminder(c.Request.Context(), sessionID(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rs)
}

func (h *Handler) createReminder(c *gin.Context) {
	var draft dashboard.ReminderDraft
	if !bindJSON(c, &draft) {
		return
	}

	id, err := h.dashboard.CreateReminder(c.Request.Context(), sessionID(c), draft)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, gin.H{"id": id})
}

func (h *Handler) uploadPrescriptions(c *gin.Context) {
	srcs, trigger, ok := h.readFiles(c)
	if !ok {
		return
	}

	receipt, err := h.dashboard.Upload(c.Request.Context(), sessionID(c), trigger, srcs)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondAccepted(c, receipt, "upload sent for extraction")
}

func (h *Handler) voiceInput(c *gin.Context) {
	text, err := h.dashboard.Transcribe(c.Request.Context(), sessionID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"text": text})
}
