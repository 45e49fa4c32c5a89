package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/internal/service"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
	"github.com/noah-isme/lms-attendance-api/pkg/response"
)

type checkinService interface {
	CheckIn(ctx context.Context, code, studentID string, location service.LocationSource, clientTime *time.Time) (*dto.CheckinResult, error)
	ManualOverride(ctx context.Context, sessionID, studentID string, req dto.OverrideRequest, actor *models.JWTClaims) (*dto.OverrideResult, error)
}

// CheckinHandler accepts student check-ins and instructor overrides.
type CheckinHandler struct {
	service checkinService
}

// NewCheckinHandler builds a new handler.
func NewCheckinHandler(service checkinService) *CheckinHandler {
	return &CheckinHandler{service: service}
}

// CheckIn godoc
// @Summary Check in to a session with a scanned code
// @Tags Checkins
// @Accept json
// @Produce json
// @Param payload body dto.CheckinRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /checkins [post]
func (h *CheckinHandler) CheckIn(c *gin.Context) {
	claims, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	result, err := h.service.CheckIn(c.Request.Context(), req.Code, claims.UserID, service.LocationFromRequest(req.Location), req.ClientTime)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusCreated, result.Record, result.Warnings)
}

// Override godoc
// @Summary Set a student's attendance status manually
// @Tags Checkins
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Param payload body dto.OverrideRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/records/{studentId} [put]
func (h *CheckinHandler) Override(c *gin.Context) {
	var req dto.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}
	result, err := h.service.ManualOverride(c.Request.Context(), c.Param("id"), c.Param("studentId"), req, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
