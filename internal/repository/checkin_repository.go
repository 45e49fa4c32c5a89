package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/pkg/database"
)

// CheckinUniqueConstraint guards one record per (session, student).
const CheckinUniqueConstraint = "checkin_records_session_student_key"

// ErrCheckinExists is returned when the database rejects a second record for the same student.
var ErrCheckinExists = errors.New("checkin already recorded")

const checkinColumns = `id, session_id, student_id, submitted_at, latitude, longitude, status, reason,
       edited_by, edited_at, previous_status, created_at`

// CheckinRepository persists check-in records and their override history.
type CheckinRepository struct {
	db *sqlx.DB
}

// NewCheckinRepository constructs the repository.
func NewCheckinRepository(db *sqlx.DB) *CheckinRepository {
	return &CheckinRepository{db: db}
}

// Exists reports whether the student already holds a record for the session.
func (r *CheckinRepository) Exists(ctx context.Context, sessionID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM checkin_records WHERE session_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, sessionID, studentID); err != nil {
		return false, fmt.Errorf("check existing checkin: %w", err)
	}
	return exists, nil
}

// Create inserts a new record. A unique violation on the (session, student)
// constraint is reported as ErrCheckinExists; any other failure is wrapped.
func (r *CheckinRepository) Create(ctx context.Context, record *models.CheckinRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO checkin_records (` + checkinColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.SessionID, record.StudentID, record.SubmittedAt, record.Latitude, record.Longitude,
		record.Status, record.Reason, record.EditedBy, record.EditedAt, record.PreviousStatus, record.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, CheckinUniqueConstraint) {
			return ErrCheckinExists
		}
		return fmt.Errorf("create checkin: %w", err)
	}
	return nil
}

// GetBySessionStudent returns the record for a (session, student) pair.
func (r *CheckinRepository) GetBySessionStudent(ctx context.Context, sessionID, studentID string) (*models.CheckinRecord, error) {
	const query = `SELECT ` + checkinColumns + ` FROM checkin_records WHERE session_id = $1 AND student_id = $2`
	var record models.CheckinRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get checkin: %w", err)
	}
	return &record, nil
}

// ListBySession returns the session's records newest first with the student's display identity.
func (r *CheckinRepository) ListBySession(ctx context.Context, sessionID string) ([]models.CheckinRecordDetail, error) {
	const query = `SELECT cr.id, cr.session_id, cr.student_id, cr.submitted_at, cr.latitude, cr.longitude, cr.status, cr.reason,
       cr.edited_by, cr.edited_at, cr.previous_status, cr.created_at,
       COALESCE(u.full_name, '') AS student_name, u.email AS student_email
FROM checkin_records cr
LEFT JOIN users u ON u.id = cr.student_id
WHERE cr.session_id = $1
ORDER BY cr.submitted_at DESC, cr.created_at DESC`
	var rows []models.CheckinRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session checkins: %w", err)
	}
	return rows, nil
}

// StatusCounts aggregates statuses of actively enrolled students for a session.
// Records of students no longer enrolled are excluded so the counts always fit
// inside the enrolled population.
func (r *CheckinRepository) StatusCounts(ctx context.Context, sessionID string) (*models.SessionStatusCounts, error) {
	const query = `SELECT
  (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = s.course_id AND e.status = 'ACTIVE') AS enrolled,
  COUNT(cr.id) FILTER (WHERE cr.status = 'present') AS present,
  COUNT(cr.id) FILTER (WHERE cr.status = 'late') AS late,
  COUNT(cr.id) FILTER (WHERE cr.status = 'absent') AS absent,
  COUNT(cr.id) FILTER (WHERE cr.status = 'excused') AS excused
FROM attendance_sessions s
LEFT JOIN checkin_records cr ON cr.session_id = s.id
  AND EXISTS (SELECT 1 FROM enrollments en WHERE en.course_id = s.course_id AND en.student_id = cr.student_id AND en.status = 'ACTIVE')
WHERE s.id = $1
GROUP BY s.id, s.course_id`
	var counts models.SessionStatusCounts
	if err := r.db.GetContext(ctx, &counts, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("session status counts: %w", err)
	}
	return &counts, nil
}

// StatusesForStudent returns the student's statuses for the given sessions.
func (r *CheckinRepository) StatusesForStudent(ctx context.Context, studentID string, sessionIDs []string) ([]models.StudentSessionStatus, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT session_id, status FROM checkin_records WHERE student_id = $1 AND session_id = ANY($2)`
	var rows []models.StudentSessionStatus
	if err := r.db.SelectContext(ctx, &rows, query, studentID, pq.Array(sessionIDs)); err != nil {
		return nil, fmt.Errorf("student session statuses: %w", err)
	}
	return rows, nil
}

// OverrideParams describes an instructor correction.
type OverrideParams struct {
	SessionID string
	StudentID string
	NewStatus models.AttendanceStatus
	EditorID  string
	Reason    *string
	EditedAt  time.Time
}

// Override updates (or creates) the record and appends the matching edit entry
// in one transaction. The existing row is locked so the captured old status is
// the one replaced.
func (r *CheckinRepository) Override(ctx context.Context, params OverrideParams) (*models.CheckinRecord, *models.AttendanceEditEntry, error) {
	if params.EditedAt.IsZero() {
		params.EditedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin override: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var record models.CheckinRecord
	var oldStatus *models.AttendanceStatus
	err = tx.GetContext(ctx, &record, `SELECT `+checkinColumns+` FROM checkin_records WHERE session_id = $1 AND student_id = $2 FOR UPDATE`, params.SessionID, params.StudentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		record = models.CheckinRecord{
			ID:          uuid.NewString(),
			SessionID:   params.SessionID,
			StudentID:   params.StudentID,
			SubmittedAt: params.EditedAt,
			Status:      params.NewStatus,
			Reason:      params.Reason,
			EditedBy:    &params.EditorID,
			EditedAt:    &params.EditedAt,
			CreatedAt:   params.EditedAt,
		}
		const insert = `INSERT INTO checkin_records (` + checkinColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		if _, err := tx.ExecContext(ctx, insert, record.ID, record.SessionID, record.StudentID, record.SubmittedAt, nil, nil,
			record.Status, record.Reason, record.EditedBy, record.EditedAt, nil, record.CreatedAt); err != nil {
			if database.IsUniqueViolation(err, CheckinUniqueConstraint) {
				return nil, nil, ErrCheckinExists
			}
			return nil, nil, fmt.Errorf("insert override checkin: %w", err)
		}
	case err != nil:
		return nil, nil, fmt.Errorf("lock checkin for override: %w", err)
	default:
		prev := record.Status
		oldStatus = &prev
		record.PreviousStatus = &prev
		record.Status = params.NewStatus
		record.Reason = params.Reason
		record.EditedBy = &params.EditorID
		record.EditedAt = &params.EditedAt
		const update = `UPDATE checkin_records
SET status = $2, reason = $3, previous_status = $4, edited_by = $5, edited_at = $6
WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, record.ID, record.Status, record.Reason, record.PreviousStatus, record.EditedBy, record.EditedAt); err != nil {
			return nil, nil, fmt.Errorf("update override checkin: %w", err)
		}
	}

	entry := &models.AttendanceEditEntry{
		ID:        uuid.NewString(),
		CheckinID: record.ID,
		SessionID: record.SessionID,
		StudentID: record.StudentID,
		EditorID:  params.EditorID,
		EditedAt:  params.EditedAt,
		OldStatus: oldStatus,
		NewStatus: params.NewStatus,
		Reason:    params.Reason,
	}
	const audit = `INSERT INTO attendance_edit_entries (id, checkin_id, session_id, student_id, editor_id, edited_at, old_status, new_status, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, audit, entry.ID, entry.CheckinID, entry.SessionID, entry.StudentID, entry.EditorID,
		entry.EditedAt, entry.OldStatus, entry.NewStatus, entry.Reason); err != nil {
		return nil, nil, fmt.Errorf("append edit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit override: %w", err)
	}
	committed = true
	return &record, entry, nil
}

// ListEdits returns a session's override history oldest first.
func (r *CheckinRepository) ListEdits(ctx context.Context, sessionID string) ([]models.AttendanceEditEntry, error) {
	const query = `SELECT id, checkin_id, session_id, student_id, editor_id, edited_at, old_status, new_status, reason
FROM attendance_edit_entries WHERE session_id = $1 ORDER BY edited_at ASC, id ASC`
	var entries []models.AttendanceEditEntry
	if err := r.db.SelectContext(ctx, &entries, query, sessionID); err != nil {
		return nil, fmt.Errorf("list edit entries: %w", err)
	}
	return entries, nil
}
