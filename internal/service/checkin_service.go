package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

type sessionFinder interface {
	FindByCode(ctx context.Context, code string) (*models.SessionLookup, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
}

type checkinStore interface {
	Exists(ctx context.Context, sessionID, studentID string) (bool, error)
	Create(ctx context.Context, record *models.CheckinRecord) error
	Override(ctx context.Context, params repository.OverrideParams) (*models.CheckinRecord, *models.AttendanceEditEntry, error)
}

type checkinNotifier interface {
	CheckinRecorded(ctx context.Context, record *models.CheckinRecord, courseID string) error
}

// CheckinServiceConfig holds the check-in policy.
type CheckinServiceConfig struct {
	// LateAfter is the grace period after issuance; later arrivals are marked
	// late. Zero disables the late status.
	LateAfter time.Duration
	// LocationTimeout bounds the wait for the device position.
	LocationTimeout time.Duration
	// ClockSkew is how far before the database clock a client timestamp is
	// still trusted as the submission time.
	ClockSkew time.Duration
}

// CheckinService validates student check-ins and applies instructor overrides.
type CheckinService struct {
	sessions  sessionFinder
	checkins  checkinStore
	courses   courseReader
	notifier  checkinNotifier
	cache     summaryInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CheckinServiceConfig
	now       func() time.Time
}

// NewCheckinService constructs the check-in validator.
func NewCheckinService(sessions sessionFinder, checkins checkinStore, courses courseReader, notifier checkinNotifier, cache summaryInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg CheckinServiceConfig) *CheckinService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LocationTimeout <= 0 {
		cfg.LocationTimeout = 5 * time.Second
	}
	if cfg.ClockSkew < 0 {
		cfg.ClockSkew = 0
	}
	svc := &CheckinService{
		sessions:  sessions,
		checkins:  checkins,
		courses:   courses,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
	mustRegisterValidation(svc.validator, "attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// CheckIn records a student's attendance against a presented code. Checks run
// in a fixed order: code lookup, expiry, geofence, duplicate, then the insert.
func (s *CheckinService) CheckIn(ctx context.Context, code, studentID string, location LocationSource, clientTime *time.Time) (*dto.CheckinResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		s.metrics.RecordCheckin(OutcomeInvalidCode)
		return nil, appErrors.ErrInvalidCode
	}
	if studentID == "" {
		return nil, appErrors.ErrUnauthorized
	}

	lookup, err := s.sessions.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordCheckin(OutcomeInvalidCode)
			return nil, appErrors.ErrInvalidCode
		}
		s.metrics.RecordCheckin(OutcomeError)
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to look up attendance code")
	}
	session := &lookup.Session
	now := lookup.DBNow
	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()
	log := s.logger.With(zap.String("session_id", session.ID), zap.String("student_id", studentID))

	if session.ExpiredAt(now) {
		s.metrics.RecordCheckin(OutcomeExpired)
		return nil, appErrors.ErrSessionExpired
	}
	// Generated sessions exist days before class; the code only works once
	// the class has started. ClockSkew absorbs drift between the app clock
	// that stamped issued_at and the database clock.
	if !session.OpenAt(now, s.cfg.ClockSkew) {
		s.metrics.RecordCheckin(OutcomeNotOpen)
		return nil, appErrors.ErrSessionNotOpen
	}
	if now.Before(session.IssuedAt) {
		now = session.IssuedAt
	}

	var reported *models.GeoPoint
	if session.EnforcesGeofence() {
		point, err := ResolveLocation(ctx, location, s.cfg.LocationTimeout)
		if err != nil {
			s.metrics.RecordCheckin(OutcomeLocationMissing)
			return nil, appErrors.ErrLocationRequired
		}
		distance := DistanceMeters(*session.Anchor(), point)
		s.metrics.ObserveDistance(distance)
		if !WithinRadius(*session.Anchor(), point, session.Radius()) {
			s.metrics.RecordCheckin(OutcomeOutOfRange)
			log.Info("checkin outside geofence", zap.Float64("distance_m", distance), zap.Float64("radius_m", session.Radius()))
			return nil, appErrors.ErrOutOfRange
		}
		reported = &point
	} else if location != nil {
		if point, err := ResolveLocation(ctx, location, s.cfg.LocationTimeout); err == nil {
			reported = &point
		}
	}

	exists, err := s.checkins.Exists(ctx, session.ID, studentID)
	if err != nil {
		s.metrics.RecordCheckin(OutcomeError)
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to check existing attendance")
	}
	if exists {
		s.metrics.RecordCheckin(OutcomeDuplicate)
		return nil, appErrors.ErrDuplicateCheckin
	}

	submittedAt := s.submissionTime(clientTime, session.IssuedAt, now)
	record := &models.CheckinRecord{
		SessionID:   session.ID,
		StudentID:   studentID,
		SubmittedAt: submittedAt,
		Status:      s.statusAt(session, submittedAt),
	}
	record.SetLocation(reported)

	if err := s.checkins.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrCheckinExists) {
			s.metrics.RecordCheckin(OutcomeDuplicate)
			return nil, appErrors.ErrDuplicateCheckin
		}
		s.metrics.RecordCheckin(OutcomeError)
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "failed to record attendance")
	}
	s.metrics.RecordCheckin(OutcomeAccepted)
	log.Info("checkin accepted", zap.String("status", string(record.Status)))

	if s.cache != nil {
		s.cache.InvalidateSummary(ctx, session.ID)
	}
	result := &dto.CheckinResult{Record: record}
	if s.notifier != nil {
		if err := s.notifier.CheckinRecorded(ctx, record, session.CourseID); err != nil {
			result.Warnings = append(result.Warnings, notificationWarning(err))
		}
	}
	return result, nil
}

// submissionTime trusts the client clock only within [issuedAt, dbNow] and no
// further than ClockSkew behind dbNow; otherwise the database clock is used.
func (s *CheckinService) submissionTime(clientTime *time.Time, issuedAt, dbNow time.Time) time.Time {
	if clientTime == nil || clientTime.IsZero() {
		return dbNow
	}
	t := clientTime.UTC()
	if t.After(dbNow) || t.Before(issuedAt) || dbNow.Sub(t) > s.cfg.ClockSkew {
		return dbNow
	}
	return t
}

func (s *CheckinService) statusAt(session *models.Session, submittedAt time.Time) models.AttendanceStatus {
	if s.cfg.LateAfter > 0 && submittedAt.After(session.IssuedAt.Add(s.cfg.LateAfter)) {
		return models.AttendanceStatusLate
	}
	return models.AttendanceStatusPresent
}

// ManualOverride sets a student's status regardless of expiry and geofence and
// appends the matching audit entry in the same transaction.
func (s *CheckinService) ManualOverride(ctx context.Context, sessionID, studentID string, req dto.OverrideRequest, actor *models.JWTClaims) (*dto.OverrideResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load session")
	}
	if err := authorizeSession(ctx, s.courses, session, actor); err != nil {
		return nil, err
	}

	var reason *string
	if req.Reason != nil {
		if trimmed := strings.TrimSpace(*req.Reason); trimmed != "" {
			reason = &trimmed
		}
	}
	record, entry, err := s.checkins.Override(ctx, repository.OverrideParams{
		SessionID: session.ID,
		StudentID: studentID,
		NewStatus: models.AttendanceStatus(strings.ToLower(req.Status)),
		EditorID:  actor.UserID,
		Reason:    reason,
		EditedAt:  s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrCheckinExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the record changed while saving, please retry")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "failed to override attendance")
	}
	if s.cache != nil {
		s.cache.InvalidateSummary(ctx, session.ID)
	}

	old := "none"
	if entry.OldStatus != nil {
		old = string(*entry.OldStatus)
	}
	s.logger.Info("attendance overridden",
		zap.String("session_id", session.ID),
		zap.String("student_id", studentID),
		zap.String("editor_id", actor.UserID),
		zap.String("old_status", old),
		zap.String("new_status", string(entry.NewStatus)),
	)
	return &dto.OverrideResult{Record: record, Edit: entry}, nil
}
