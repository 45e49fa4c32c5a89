package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/pkg/response"
)

type ledgerService interface {
	RecordsForSession(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.CheckinRecordDetail, error)
	Summary(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.AttendanceSummary, error)
	EditHistory(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.AttendanceEditEntry, error)
	RateForStudent(ctx context.Context, studentID string, sessionIDs []string, actor *models.JWTClaims) (*models.StudentAttendanceRate, error)
}

// LedgerHandler serves attendance reads.
type LedgerHandler struct {
	service ledgerService
}

// NewLedgerHandler builds a new handler.
func NewLedgerHandler(service ledgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// Records godoc
// @Summary List check-in records of a session
// @Tags Ledger
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/records [get]
func (h *LedgerHandler) Records(c *gin.Context) {
	rows, err := h.service.RecordsForSession(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Summary godoc
// @Summary Per-status attendance counts for a session
// @Tags Ledger
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/summary [get]
func (h *LedgerHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Edits godoc
// @Summary Override audit trail of a session
// @Tags Ledger
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/edits [get]
func (h *LedgerHandler) Edits(c *gin.Context) {
	entries, err := h.service.EditHistory(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// StudentRate godoc
// @Summary Attendance rate of a student over a set of sessions
// @Tags Ledger
// @Produce json
// @Param id path string true "Student ID"
// @Param sessionIds query string true "Comma separated session IDs"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance-rate [get]
func (h *LedgerHandler) StudentRate(c *gin.Context) {
	var ids []string
	for _, raw := range c.QueryArray("sessionIds") {
		ids = append(ids, strings.Split(raw, ",")...)
	}
	rate, err := h.service.RateForStudent(c.Request.Context(), c.Param("id"), ids, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rate, nil)
}
