package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
	"github.com/noah-isme/lms-attendance-api/pkg/response"
)

type recurringScheduleService interface {
	List(ctx context.Context, query dto.ScheduleQuery, actor *models.JWTClaims) ([]models.RecurringSchedule, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.RecurringSchedule, error)
	Create(ctx context.Context, req dto.CreateScheduleRequest, actor *models.JWTClaims) (*models.RecurringSchedule, error)
	Update(ctx context.Context, id string, req dto.UpdateScheduleRequest, actor *models.JWTClaims) (*models.RecurringSchedule, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

type sessionGenerator interface {
	GenerateForActor(ctx context.Context, req dto.GenerateSessionsRequest, actor *models.JWTClaims) (*models.ScheduleGenerationResult, error)
}

// RecurringScheduleHandler manages weekly schedules and session generation.
type RecurringScheduleHandler struct {
	schedules recurringScheduleService
	generator sessionGenerator
}

// NewRecurringScheduleHandler builds a new handler.
func NewRecurringScheduleHandler(schedules recurringScheduleService, generator sessionGenerator) *RecurringScheduleHandler {
	return &RecurringScheduleHandler{schedules: schedules, generator: generator}
}

// List godoc
// @Summary List recurring schedules
// @Tags Schedules
// @Produce json
// @Param courseId query string false "Course filter"
// @Param instructorId query string false "Instructor filter (admin only)"
// @Param activeOnly query bool false "Only active schedules"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *RecurringScheduleHandler) List(c *gin.Context) {
	var query dto.ScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.schedules.List(c.Request.Context(), query, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a recurring schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *RecurringScheduleHandler) Get(c *gin.Context) {
	item, err := h.schedules.Get(c.Request.Context(), c.Param("id"), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create a recurring schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *RecurringScheduleHandler) Create(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	item, err := h.schedules.Create(c.Request.Context(), req, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Replace a recurring schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.UpdateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *RecurringScheduleHandler) Update(c *gin.Context) {
	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	item, err := h.schedules.Update(c.Request.Context(), c.Param("id"), req, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a recurring schedule
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *RecurringScheduleHandler) Delete(c *gin.Context) {
	if err := h.schedules.Delete(c.Request.Context(), c.Param("id"), currentActor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Generate godoc
// @Summary Generate the sessions of a week from recurring schedules
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateSessionsRequest true "Week to generate"
// @Success 200 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *RecurringScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	result, err := h.generator.GenerateForActor(c.Request.Context(), req, currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
