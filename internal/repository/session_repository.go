package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/pkg/database"
)

// Constraint names declared in migrations/0001_attendance.sql.
const (
	SessionCodeConstraint = "attendance_sessions_code_key"
	SessionSlotConstraint = "attendance_sessions_course_slot_key"
)

var (
	// ErrSessionCodeTaken is returned when the generated code collides with an existing session.
	ErrSessionCodeTaken = errors.New("session code already in use")
	// ErrSessionSlotTaken is returned when a generated session already exists for the course slot.
	ErrSessionSlotTaken = errors.New("session already exists for course slot")
)

const sessionColumns = `id, course_id, instructor_id, code, issued_at, expires_at, anchor_latitude, anchor_longitude,
       geofence_radius_m, schedule_id, scheduled_for, created_at, updated_at`

// SessionRepository persists attendance sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session row.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt
	const query = `INSERT INTO attendance_sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.CourseID, session.InstructorID, session.Code, session.IssuedAt, session.ExpiresAt,
		session.AnchorLatitude, session.AnchorLongitude, session.GeofenceRadiusM, session.ScheduleID, session.ScheduledFor,
		session.CreatedAt, session.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err, SessionCodeConstraint):
		return ErrSessionCodeTaken
	case database.IsUniqueViolation(err, SessionSlotConstraint):
		return ErrSessionSlotTaken
	default:
		return fmt.Errorf("create session: %w", err)
	}
}

// GetByID fetches a session by identifier.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// FindByCode resolves a presented code and reads the database clock in the
// same round trip.
func (r *SessionRepository) FindByCode(ctx context.Context, code string) (*models.SessionLookup, error) {
	const query = `SELECT ` + sessionColumns + `, NOW() AS db_now FROM attendance_sessions WHERE code = $1`
	var lookup models.SessionLookup
	if err := r.db.GetContext(ctx, &lookup, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session by code: %w", err)
	}
	return &lookup, nil
}

// Update writes the mutable session columns.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance_sessions
SET expires_at = $2, anchor_latitude = $3, anchor_longitude = $4, geofence_radius_m = $5, updated_at = $6
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, session.ID, session.ExpiresAt, session.AnchorLatitude, session.AnchorLongitude, session.GeofenceRadiusM, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the session together with its check-in records and edit
// history in a single transaction.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_edit_entries WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session edit entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkin_records WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session checkins: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM attendance_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	committed = true
	return nil
}

// ExistsForSlot reports whether a session is already scheduled for the course at the given start.
func (r *SessionRepository) ExistsForSlot(ctx context.Context, courseID string, scheduledFor time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance_sessions WHERE course_id = $1 AND scheduled_for = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, courseID, scheduledFor); err != nil {
		return false, fmt.Errorf("check session slot: %w", err)
	}
	return exists, nil
}
