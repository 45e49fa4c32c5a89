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

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type sessionNotifier interface {
	SessionIssued(ctx context.Context, session *models.Session, courseName string) error
}

type summaryInvalidator interface {
	InvalidateSummary(ctx context.Context, sessionID string)
}

// SessionServiceConfig tunes issuance.
type SessionServiceConfig struct {
	CodePrefix   string
	CodeAttempts int
	MaxDuration  time.Duration
}

// SessionService issues, edits and deletes attendance sessions.
type SessionService struct {
	sessions  sessionStore
	courses   courseReader
	notifier  sessionNotifier
	cache     summaryInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SessionServiceConfig
	codes     CodeGenerator
	now       func() time.Time
}

// NewSessionService constructs the session issuer.
func NewSessionService(sessions sessionStore, courses courseReader, notifier sessionNotifier, cache summaryInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg SessionServiceConfig) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = 5
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 4 * time.Hour
	}
	return &SessionService{
		sessions:  sessions,
		courses:   courses,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		codes:     NewCodeGenerator(cfg.CodePrefix),
		now:       time.Now,
	}
}

// IssueSession opens a new attendance window and returns it with its code.
func (s *SessionService) IssueSession(ctx context.Context, req dto.IssueSessionRequest, actor *models.JWTClaims) (*dto.IssuedSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if err := validateGeofence(req.Anchor, req.GeofenceRadiusM); err != nil {
		return nil, err
	}
	duration := time.Duration(req.DurationMinutes) * time.Minute
	if duration > s.cfg.MaxDuration {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session duration exceeds the allowed maximum")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load course")
	}
	if !canManage(actor, course.InstructorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor or an admin can issue attendance")
	}

	issuedAt := s.now().UTC().Truncate(time.Millisecond)
	radius := req.GeofenceRadiusM
	session := &models.Session{
		CourseID:        course.ID,
		InstructorID:    actor.UserID,
		IssuedAt:        issuedAt,
		ExpiresAt:       issuedAt.Add(duration),
		GeofenceRadiusM: &radius,
	}
	if actor.IsAdmin() {
		session.InstructorID = course.InstructorID
	}
	session.SetAnchor(req.Anchor)

	if err := s.create(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.RecordSessionIssued()
	s.logger.Info("attendance session issued",
		zap.String("session_id", session.ID),
		zap.String("course_id", session.CourseID),
		zap.Time("expires_at", session.ExpiresAt),
		zap.Bool("geofenced", session.EnforcesGeofence()),
	)

	result := &dto.IssuedSession{Session: session}
	if s.notifier != nil {
		if err := s.notifier.SessionIssued(ctx, session, course.Name); err != nil {
			result.Warnings = append(result.Warnings, notificationWarning(err))
		}
	}
	return result, nil
}

func (s *SessionService) create(ctx context.Context, session *models.Session) error {
	err := createWithCode(ctx, s.sessions, s.codes, s.cfg.CodeAttempts, session)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errCodesExhausted):
		s.logger.Error("attendance code space exhausted", zap.Int("attempts", s.cfg.CodeAttempts))
		return appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "could not allocate a unique attendance code")
	default:
		return appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "failed to persist session")
	}
}

// GetSession returns a session visible to the caller's instructor or an admin.
func (s *SessionService) GetSession(ctx context.Context, id string, actor *models.JWTClaims) (*models.Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, session, actor); err != nil {
		return nil, err
	}
	return session, nil
}

// EditSession adjusts expiry, radius or anchor of an existing session.
func (s *SessionService) EditSession(ctx context.Context, id string, req dto.EditSessionRequest, actor *models.JWTClaims) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session patch")
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no changes supplied")
	}
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, session, actor); err != nil {
		return nil, err
	}

	if req.ExpiresAt != nil {
		expires := req.ExpiresAt.UTC()
		if !expires.After(session.IssuedAt) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "expiresAt must be after the session was issued")
		}
		if expires.Sub(session.IssuedAt) > s.cfg.MaxDuration {
			return nil, appErrors.Clone(appErrors.ErrValidation, "session duration exceeds the allowed maximum")
		}
		session.ExpiresAt = expires
	}
	if req.GeofenceRadiusM != nil {
		radius := *req.GeofenceRadiusM
		session.GeofenceRadiusM = &radius
	}
	switch {
	case req.ClearAnchor:
		session.SetAnchor(nil)
	case req.Anchor != nil:
		session.SetAnchor(req.Anchor)
	}
	// Generated sessions carry a default radius without an anchor, so the
	// anchor requirement only applies when this edit sets a radius.
	if req.GeofenceRadiusM != nil {
		if err := validateGeofence(session.Anchor(), *req.GeofenceRadiusM); err != nil {
			return nil, err
		}
	} else if err := validateGeofence(session.Anchor(), 0); err != nil {
		return nil, err
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "failed to update session")
	}
	s.logger.Info("attendance session edited", zap.String("session_id", session.ID), zap.String("editor_id", actor.UserID))
	return session, nil
}

// DeleteSession removes the session and its dependent records.
func (s *SessionService) DeleteSession(ctx context.Context, id string, actor *models.JWTClaims) error {
	session, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, session, actor); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.WrapAs(err, appErrors.ErrUpstreamWrite, "failed to delete session")
	}
	if s.cache != nil {
		s.cache.InvalidateSummary(ctx, id)
	}
	s.logger.Info("attendance session deleted", zap.String("session_id", id), zap.String("actor_id", actor.UserID))
	return nil
}

func (s *SessionService) load(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) authorize(ctx context.Context, session *models.Session, actor *models.JWTClaims) error {
	return authorizeSession(ctx, s.courses, session, actor)
}

func validateGeofence(anchor *models.GeoPoint, radius float64) error {
	if radius < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "geofence radius must not be negative")
	}
	if anchor != nil && !anchor.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "anchor coordinates are out of range")
	}
	if radius > 0 && anchor == nil {
		return appErrors.Clone(appErrors.ErrValidation, "an anchor location is required when a geofence radius is set")
	}
	return nil
}
