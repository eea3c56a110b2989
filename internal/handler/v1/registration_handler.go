package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/registration"
)

type setFieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

type toggleAttributeRequest struct {
	Attribute string `json:"attribute" binding:"required"`
	Value     string `json:"value" binding:"required"`
	Included  *bool  `json:"included" binding:"required"`
}

func (h *Handler) getRegistration(c *gin.Context) {
	v, err := h.intake.View(c.Request.Context(), sessionID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, v)
}

func (h *Handler) setField(c *gin.Context) {
	var req setFieldRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := h.intake.SetField(c.Request.Context(), sessionID(c), registration.Field(req.Field), req.Value)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, v)
}

func (h *Handler) toggleAttribute(c *gin.Context) {
	var req toggleAttributeRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := h.intake.ToggleAttribute(c.Request.Context(), sessionID(c), registration.Field(req.Attribute), req.Value, *req.Included)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, v)
}

func (h *Handler) ingestPrescriptionImage(c *gin.Context) {
	srcs, trigger, ok := h.readFiles(c)
	if !ok {
		return
	}

	ticket, err := h.intake.IngestImage(c.Request.Context(), sessionID(c), trigger, srcs)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondAccepted(c, ticket, "prescription image is being read")
}

func (h *Handler) removePrescriptionImage(c *gin.Context) {
	v, err := h.intake.RemoveImage(c.Request.Context(), sessionID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, v)
}

func (h *Handler) submitRegistration(c *gin.Context) {
	v, err := h.intake.Submit(c.Request.Context(), sessionID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse[any]{Data: v, Message: "registration successful, redirecting"})
}
