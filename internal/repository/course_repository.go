package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-attendance-api/internal/models"
)

// CourseRepository reads the course catalogue, enrollments and student contact details.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, instructor_id FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListRecipients returns actively enrolled students that have an email address.
func (r *CourseRepository) ListRecipients(ctx context.Context, courseID string) ([]models.CourseRecipient, error) {
	const query = `SELECT u.id AS student_id, u.full_name, u.email
FROM enrollments e
JOIN users u ON u.id = e.student_id
WHERE e.course_id = $1 AND e.status = 'ACTIVE' AND u.email <> ''
ORDER BY u.full_name`
	var recipients []models.CourseRecipient
	if err := r.db.SelectContext(ctx, &recipients, query, courseID); err != nil {
		return nil, fmt.Errorf("list course recipients: %w", err)
	}
	return recipients, nil
}

// FindStudent returns a student's display identity.
func (r *CourseRepository) FindStudent(ctx context.Context, studentID string) (*models.CourseRecipient, error) {
	const query = `SELECT id AS student_id, full_name, email FROM users WHERE id = $1`
	var student models.CourseRecipient
	if err := r.db.GetContext(ctx, &student, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}
