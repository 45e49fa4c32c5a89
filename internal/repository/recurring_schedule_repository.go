package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-attendance-api/internal/models"
)

const recurringScheduleColumns = `id, course_id, instructor_id, day_of_week, start_time, end_time, room, start_date, end_date,
       is_active, created_at, updated_at`

// RecurringScheduleRepository provides persistence for weekly class slots.
type RecurringScheduleRepository struct {
	db *sqlx.DB
}

// NewRecurringScheduleRepository creates a new repository.
func NewRecurringScheduleRepository(db *sqlx.DB) *RecurringScheduleRepository {
	return &RecurringScheduleRepository{db: db}
}

// List returns schedules with optional filtering and pagination.
func (r *RecurringScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.RecurringSchedule, int, error) {
	base := "FROM recurring_schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY day_of_week ASC, start_time ASC LIMIT %d OFFSET %d", recurringScheduleColumns, base, size, offset)
	var schedules []models.RecurringSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list recurring schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count recurring schedules: %w", err)
	}
	return schedules, total, nil
}

// ListActive returns every active schedule, used by generation runs.
func (r *RecurringScheduleRepository) ListActive(ctx context.Context) ([]models.RecurringSchedule, error) {
	query := "SELECT " + recurringScheduleColumns + " FROM recurring_schedules WHERE is_active = TRUE ORDER BY course_id, day_of_week, start_time"
	var schedules []models.RecurringSchedule
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("list active recurring schedules: %w", err)
	}
	return schedules, nil
}

// FindByID fetches a schedule by id.
func (r *RecurringScheduleRepository) FindByID(ctx context.Context, id string) (*models.RecurringSchedule, error) {
	query := "SELECT " + recurringScheduleColumns + " FROM recurring_schedules WHERE id = $1"
	var schedule models.RecurringSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find recurring schedule: %w", err)
	}
	return &schedule, nil
}

// Create inserts a schedule.
func (r *RecurringScheduleRepository) Create(ctx context.Context, schedule *models.RecurringSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO recurring_schedules (` + recurringScheduleColumns + `)
VALUES (:id, :course_id, :instructor_id, :day_of_week, :start_time, :end_time, :room, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create recurring schedule: %w", err)
	}
	return nil
}

// Update modifies an existing schedule.
func (r *RecurringScheduleRepository) Update(ctx context.Context, schedule *models.RecurringSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE recurring_schedules SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time,
room = :room, start_date = :start_date, end_date = :end_date, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, schedule)
	if err != nil {
		return fmt.Errorf("update recurring schedule: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a schedule. Sessions already generated from it keep their rows.
func (r *RecurringScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM recurring_schedules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete recurring schedule: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
