package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseRepositoryLookups(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, instructor_id FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "instructor_id"}).AddRow("course-1", "Distributed Systems", "inst-1"))
	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", course.InstructorID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses")).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "full_name", "email"}).
			AddRow("stu-1", "Ada", "ada@example.edu").
			AddRow("stu-2", "Bea", "bea@example.edu"))
	recipients, err := repo.ListRecipients(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Len(t, recipients, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
