package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

type recurringScheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.RecurringSchedule, int, error)
	FindByID(ctx context.Context, id string) (*models.RecurringSchedule, error)
	Create(ctx context.Context, schedule *models.RecurringSchedule) error
	Update(ctx context.Context, schedule *models.RecurringSchedule) error
	Delete(ctx context.Context, id string) error
}

// RecurringScheduleService manages weekly class slots.
type RecurringScheduleService struct {
	repo      recurringScheduleRepository
	courses   courseReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecurringScheduleService constructs the service.
func NewRecurringScheduleService(repo recurringScheduleRepository, courses courseReader, validate *validator.Validate, logger *zap.Logger) *RecurringScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RecurringScheduleService{repo: repo, courses: courses, validator: validate, logger: logger}
	mustRegisterValidation(svc.validator, "clock", func(fl validator.FieldLevel) bool {
		_, _, err := ParseClock(fl.Field().String())
		return err == nil
	})
	return svc
}

// List returns schedules; faculty only see their own.
func (s *RecurringScheduleService) List(ctx context.Context, query dto.ScheduleQuery, actor *models.JWTClaims) ([]models.RecurringSchedule, *models.Pagination, error) {
	if actor == nil || (actor.Role != models.RoleFaculty && !actor.IsAdmin()) {
		return nil, nil, appErrors.ErrForbidden
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 50
	}
	filter := models.ScheduleFilter{
		CourseID:     query.CourseID,
		InstructorID: query.InstructorID,
		ActiveOnly:   query.ActiveOnly,
		Page:         page,
		PageSize:     size,
	}
	if !actor.IsAdmin() {
		filter.InstructorID = actor.UserID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to list schedules")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single schedule.
func (s *RecurringScheduleService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.RecurringSchedule, error) {
	schedule, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, schedule.InstructorID) {
		return nil, appErrors.ErrForbidden
	}
	return schedule, nil
}

// Create stores a new weekly slot for a course the caller teaches.
func (s *RecurringScheduleService) Create(ctx context.Context, req dto.CreateScheduleRequest, actor *models.JWTClaims) (*models.RecurringSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load course")
	}
	if !canManage(actor, course.InstructorID) {
		return nil, appErrors.ErrForbidden
	}

	schedule := &models.RecurringSchedule{
		CourseID:     course.ID,
		InstructorID: course.InstructorID,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Room:         req.Room,
		IsActive:     true,
	}
	if req.IsActive != nil {
		schedule.IsActive = *req.IsActive
	}
	if err := applyWindow(schedule, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "failed to create schedule")
	}
	s.logger.Info("recurring schedule created", zap.String("schedule_id", schedule.ID), zap.String("course_id", schedule.CourseID))
	return schedule, nil
}

// Update replaces the mutable fields of a schedule.
func (s *RecurringScheduleService) Update(ctx context.Context, id string, req dto.UpdateScheduleRequest, actor *models.JWTClaims) (*models.RecurringSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	schedule, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, schedule.InstructorID) {
		return nil, appErrors.ErrForbidden
	}
	schedule.DayOfWeek = req.DayOfWeek
	schedule.StartTime = req.StartTime
	schedule.EndTime = req.EndTime
	schedule.Room = req.Room
	schedule.IsActive = req.IsActive
	if err := applyWindow(schedule, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, schedule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "failed to update schedule")
	}
	return schedule, nil
}

// Delete removes a schedule; sessions generated from it are kept.
func (s *RecurringScheduleService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	schedule, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(actor, schedule.InstructorID) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "failed to delete schedule")
	}
	return nil
}

func (s *RecurringScheduleService) load(ctx context.Context, id string) (*models.RecurringSchedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load schedule")
	}
	return schedule, nil
}

// applyWindow sets the validity dates and checks the time range.
func applyWindow(schedule *models.RecurringSchedule, startDate string, endDate *string) error {
	sh, sm, _ := ParseClock(schedule.StartTime)
	eh, em, _ := ParseClock(schedule.EndTime)
	if eh*60+em <= sh*60+sm {
		return appErrors.Clone(appErrors.ErrValidation, "endTime must be after startTime")
	}
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid startDate, expected YYYY-MM-DD")
	}
	schedule.StartDate = start
	schedule.EndDate = nil
	if endDate != nil && *endDate != "" {
		end, err := time.Parse("2006-01-02", *endDate)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "invalid endDate, expected YYYY-MM-DD")
		}
		if end.Before(start) {
			return appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
		}
		schedule.EndDate = &end
	}
	return nil
}
