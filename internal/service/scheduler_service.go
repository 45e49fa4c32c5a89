package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

type scheduledSessionStore interface {
	ExistsForSlot(ctx context.Context, courseID string, scheduledFor time.Time) (bool, error)
	Create(ctx context.Context, session *models.Session) error
}

type activeScheduleSource interface {
	ListActive(ctx context.Context) ([]models.RecurringSchedule, error)
}

// SchedulerConfig governs recurring generation.
type SchedulerConfig struct {
	// DefaultRadiusMeters is stored on generated sessions, which have no
	// anchor until the instructor sets one at class time.
	DefaultRadiusMeters float64
	Location            *time.Location
	CodePrefix          string
	CodeAttempts        int
}

// SchedulerService projects recurring schedules into dated sessions.
type SchedulerService struct {
	sessions  scheduledSessionStore
	schedules activeScheduleSource
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       SchedulerConfig
	codes     CodeGenerator
	now       func() time.Time
}

// NewSchedulerService constructs the scheduler.
func NewSchedulerService(sessions scheduledSessionStore, schedules activeScheduleSource, metrics *MetricsService, logger *zap.Logger, cfg SchedulerConfig) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultRadiusMeters < 0 {
		cfg.DefaultRadiusMeters = 0
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = 5
	}
	return &SchedulerService{
		sessions:  sessions,
		schedules: schedules,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		codes:     NewCodeGenerator(cfg.CodePrefix),
		now:       time.Now,
	}
}

// GenerateForActor runs generation on behalf of an API caller. Faculty only
// generate from their own schedules.
func (s *SchedulerService) GenerateForActor(ctx context.Context, req dto.GenerateSessionsRequest, actor *models.JWTClaims) (*models.ScheduleGenerationResult, error) {
	if actor == nil || (actor.Role != models.RoleFaculty && !actor.IsAdmin()) {
		return nil, appErrors.ErrForbidden
	}
	weekStart, err := time.ParseInLocation("2006-01-02", req.WeekStart, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekStart must be a YYYY-MM-DD date")
	}
	instructorID := ""
	if !actor.IsAdmin() {
		instructorID = actor.UserID
	}
	return s.RunWeek(ctx, weekStart, req.CourseID, instructorID)
}

// RunWeek loads active schedules, optionally narrowed to a course or
// instructor, and generates the sessions of the week starting at weekStart.
func (s *SchedulerService) RunWeek(ctx context.Context, weekStart time.Time, courseID, instructorID string) (*models.ScheduleGenerationResult, error) {
	schedules, err := s.schedules.ListActive(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load recurring schedules")
	}
	selected := schedules[:0]
	for _, sch := range schedules {
		if courseID != "" && sch.CourseID != courseID {
			continue
		}
		if instructorID != "" && sch.InstructorID != instructorID {
			continue
		}
		selected = append(selected, sch)
	}
	return s.GenerateSessions(ctx, selected, weekStart, s.now()), nil
}

// GenerateSessions creates one session per eligible schedule for the week
// beginning at weekStart. A failing schedule is reported in Errors and never
// stops the others; Created+Skipped+len(Errors) equals len(schedules).
func (s *SchedulerService) GenerateSessions(ctx context.Context, schedules []models.RecurringSchedule, weekStart, now time.Time) *models.ScheduleGenerationResult {
	loc := s.cfg.Location
	ws := weekStart.In(loc)
	ws = time.Date(ws.Year(), ws.Month(), ws.Day(), 0, 0, 0, 0, loc)
	result := &models.ScheduleGenerationResult{WeekStart: ws, SessionIDs: []string{}}

	for i := range schedules {
		sch := schedules[i]
		id, created, err := s.generateOne(ctx, sch, ws, now)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, models.ScheduleGenerationError{ScheduleID: sch.ID, CourseID: sch.CourseID, Reason: err.Error()})
			s.logger.Warn("schedule generation failed", zap.String("schedule_id", sch.ID), zap.Error(err))
		case created:
			result.Created++
			result.SessionIDs = append(result.SessionIDs, id)
		default:
			result.Skipped++
		}
	}

	s.metrics.RecordSessionsGenerated(result.Created)
	s.logger.Info("recurring sessions generated",
		zap.Time("week_start", ws),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Errors)),
	)
	return result
}

func (s *SchedulerService) generateOne(ctx context.Context, sch models.RecurringSchedule, weekStart, now time.Time) (string, bool, error) {
	if !sch.IsActive {
		return "", false, nil
	}
	start, end, err := Occurrence(sch, weekStart, s.cfg.Location)
	if err != nil {
		return "", false, err
	}
	if !inValidityWindow(sch, start) {
		return "", false, nil
	}
	if !end.After(now) {
		return "", false, nil
	}

	scheduledFor := start.UTC()
	exists, err := s.sessions.ExistsForSlot(ctx, sch.CourseID, scheduledFor)
	if err != nil {
		return "", false, fmt.Errorf("check existing session: %w", err)
	}
	if exists {
		return "", false, nil
	}

	radius := s.cfg.DefaultRadiusMeters
	scheduleID := sch.ID
	session := &models.Session{
		CourseID:        sch.CourseID,
		InstructorID:    sch.InstructorID,
		IssuedAt:        scheduledFor,
		ExpiresAt:       end.UTC(),
		GeofenceRadiusM: &radius,
		ScheduleID:      &scheduleID,
		ScheduledFor:    &scheduledFor,
	}
	err = createWithCode(ctx, s.sessions, s.codes, s.cfg.CodeAttempts, session)
	switch {
	case err == nil:
		return session.ID, true, nil
	case errors.Is(err, repository.ErrSessionSlotTaken):
		// A concurrent run created the slot first.
		return "", false, nil
	default:
		return "", false, fmt.Errorf("create session: %w", err)
	}
}

// Occurrence returns the start and end of the schedule's meeting in the week
// beginning at weekStart, interpreted in loc.
func Occurrence(sch models.RecurringSchedule, weekStart time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if sch.DayOfWeek < 0 || sch.DayOfWeek > 6 {
		return time.Time{}, time.Time{}, fmt.Errorf("day_of_week %d out of range", sch.DayOfWeek)
	}
	sh, sm, err := ParseClock(sch.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_time: %w", err)
	}
	eh, em, err := ParseClock(sch.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_time: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	ws := weekStart.In(loc)
	offset := (sch.DayOfWeek - int(ws.Weekday()) + 7) % 7
	day := time.Date(ws.Year(), ws.Month(), ws.Day()+offset, 0, 0, 0, 0, loc)

	start := time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, loc)
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("end_time must be after start_time")
	}
	return start, end, nil
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(v string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q, expected HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h, m, nil
}

func inValidityWindow(sch models.RecurringSchedule, start time.Time) bool {
	day := dateOnly(start)
	if day.Before(dateOnly(sch.StartDate)) {
		return false
	}
	if sch.EndDate != nil && day.After(dateOnly(*sch.EndDate)) {
		return false
	}
	return true
}

// dateOnly keeps the calendar date as written, ignoring the zone it was read in.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
