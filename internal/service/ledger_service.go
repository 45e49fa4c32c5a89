package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

const maxRateSessions = 500

type ledgerStore interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.CheckinRecordDetail, error)
	StatusCounts(ctx context.Context, sessionID string) (*models.SessionStatusCounts, error)
	StatusesForStudent(ctx context.Context, studentID string, sessionIDs []string) ([]models.StudentSessionStatus, error)
	ListEdits(ctx context.Context, sessionID string) ([]models.AttendanceEditEntry, error)
}

type sessionGetter interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)
}

type summaryCache interface {
	GetSummary(ctx context.Context, sessionID string) (*models.AttendanceSummary, bool)
	SummaryVersion(sessionID string) uint64
	PutSummary(ctx context.Context, summary *models.AttendanceSummary, version uint64)
}

// LedgerService answers read-side attendance questions.
type LedgerService struct {
	store    ledgerStore
	sessions sessionGetter
	courses  courseReader
	cache    summaryCache
	logger   *zap.Logger
}

// NewLedgerService constructs the ledger reader. cache may be nil.
func NewLedgerService(store ledgerStore, sessions sessionGetter, courses courseReader, cache summaryCache, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{store: store, sessions: sessions, courses: courses, cache: cache, logger: logger}
}

// RecordsForSession lists a session's records newest first. Students only see their own.
func (s *LedgerService) RecordsForSession(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.CheckinRecordDetail, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	studentView := actor != nil && actor.Role == models.RoleStudent
	if !studentView {
		if err := authorizeSession(ctx, s.courses, session, actor); err != nil {
			return nil, err
		}
	}
	rows, err := s.store.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to list attendance records")
	}
	if !studentView {
		return rows, nil
	}
	own := make([]models.CheckinRecordDetail, 0, 1)
	for _, row := range rows {
		if row.StudentID == actor.UserID {
			own = append(own, row)
		}
	}
	return own, nil
}

// Summary returns per-status counts for a session's enrolled students.
func (s *LedgerService) Summary(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.AttendanceSummary, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeSession(ctx, s.courses, session, actor); err != nil {
		return nil, err
	}
	var version uint64
	if s.cache != nil {
		if cached, ok := s.cache.GetSummary(ctx, session.ID); ok {
			return cached, nil
		}
		version = s.cache.SummaryVersion(session.ID)
	}
	counts, err := s.store.StatusCounts(ctx, session.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to summarise attendance")
	}
	summary := BuildSummary(session.ID, *counts)
	if s.cache != nil {
		s.cache.PutSummary(ctx, summary, version)
	}
	return summary, nil
}

// BuildSummary derives the not-recorded count and attendance rate. The
// enrolled figure is raised to the recorded total when needed so the status
// counts always partition it.
func BuildSummary(sessionID string, counts models.SessionStatusCounts) *models.AttendanceSummary {
	recorded := counts.Present + counts.Late + counts.Absent + counts.Excused
	enrolled := counts.Enrolled
	if enrolled < recorded {
		enrolled = recorded
	}
	summary := &models.AttendanceSummary{
		SessionID:   sessionID,
		Enrolled:    enrolled,
		Present:     counts.Present,
		Late:        counts.Late,
		Absent:      counts.Absent,
		Excused:     counts.Excused,
		NotRecorded: enrolled - recorded,
	}
	if enrolled > 0 {
		summary.AttendanceRate = float64(counts.Present+counts.Late) / float64(enrolled)
	}
	return summary
}

// RateForStudent is the fraction of the given sessions the student attended.
// Students may only ask about themselves.
func (s *LedgerService) RateForStudent(ctx context.Context, studentID string, sessionIDs []string, actor *models.JWTClaims) (*models.StudentAttendanceRate, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleStudent:
		if actor.UserID != studentID {
			return nil, appErrors.ErrForbidden
		}
	case models.RoleFaculty, models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}
	unique := dedupe(sessionIDs)
	if len(unique) > maxRateSessions {
		return nil, appErrors.Clone(appErrors.ErrValidation, "too many sessions requested")
	}
	if actor.Role == models.RoleFaculty {
		if err := s.authorizeSessions(ctx, unique, actor); err != nil {
			return nil, err
		}
	}
	result := &models.StudentAttendanceRate{StudentID: studentID, Sessions: len(unique)}
	if len(unique) == 0 {
		return result, nil
	}
	rows, err := s.store.StatusesForStudent(ctx, studentID, unique)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load student attendance")
	}
	for _, row := range rows {
		if row.Status.Attended() {
			result.Attended++
		}
	}
	result.Rate = float64(result.Attended) / float64(result.Sessions)
	return result, nil
}

// EditHistory returns the override audit trail of a session, oldest first.
func (s *LedgerService) EditHistory(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.AttendanceEditEntry, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeSession(ctx, s.courses, session, actor); err != nil {
		return nil, err
	}
	entries, err := s.store.ListEdits(ctx, session.ID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load edit history")
	}
	return entries, nil
}

// authorizeSessions requires the actor to manage every listed session. Course
// ownership is looked up once per course.
func (s *LedgerService) authorizeSessions(ctx context.Context, ids []string, actor *models.JWTClaims) error {
	allowed := make(map[string]bool)
	for _, id := range ids {
		session, err := s.loadSession(ctx, id)
		if err != nil {
			return err
		}
		if session.InstructorID == actor.UserID || allowed[session.CourseID] {
			continue
		}
		if err := authorizeSession(ctx, s.courses, session, actor); err != nil {
			return err
		}
		allowed[session.CourseID] = true
	}
	return nil
}

func (s *LedgerService) loadSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to load session")
	}
	return session, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
