package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
	"github.com/noah-isme/lms-attendance-api/pkg/qr"
	"github.com/noah-isme/lms-attendance-api/pkg/response"
)

type sessionService interface {
	IssueSession(ctx context.Context, req dto.IssueSessionRequest, actor *models.JWTClaims) (*dto.IssuedSession, error)
	GetSession(ctx context.Context, id string, actor *models.JWTClaims) (*models.Session, error)
	EditSession(ctx context.Context, id string, req dto.EditSessionRequest, actor *models.JWTClaims) (*models.Session, error)
	DeleteSession(ctx context.Context, id string, actor *models.JWTClaims) error
}

// SessionHandler exposes attendance session endpoints for instructors.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler builds a new handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Issue godoc
// @Summary Issue an attendance session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.IssueSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Issue(c *gin.Context) {
	var req dto.IssueSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	issued, err := h.service.IssueSession(c.Request.Context(), req, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusCreated, issued.Session, issued.Warnings)
}

// Get godoc
// @Summary Get an attendance session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Edit godoc
// @Summary Change expiry or geofence of a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.EditSessionRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [patch]
func (h *SessionHandler) Edit(c *gin.Context) {
	var req dto.EditSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session patch"))
		return
	}
	session, err := h.service.EditSession(c.Request.Context(), c.Param("id"), req, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete a session with its records and audit trail
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), c.Param("id"), currentActor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// QR godoc
// @Summary Render the session code as a QR image
// @Tags Sessions
// @Produce png
// @Param id path string true "Session ID"
// @Param size query int false "Edge length in pixels"
// @Success 200 {file} binary
// @Router /sessions/{id}/qr [get]
func (h *SessionHandler) QR(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	png, err := qr.PNG(session.Code, size)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render QR code"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
