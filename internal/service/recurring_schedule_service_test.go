package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

type scheduleRepoStub struct {
	items      map[string]*models.RecurringSchedule
	lastFilter models.ScheduleFilter
}

func (r *scheduleRepoStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.RecurringSchedule, int, error) {
	r.lastFilter = filter
	var out []models.RecurringSchedule
	for _, s := range r.items {
		if filter.InstructorID != "" && s.InstructorID != filter.InstructorID {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (r *scheduleRepoStub) FindByID(ctx context.Context, id string) (*models.RecurringSchedule, error) {
	s, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r *scheduleRepoStub) Create(ctx context.Context, s *models.RecurringSchedule) error {
	s.ID = uuid.NewString()
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *scheduleRepoStub) Update(ctx context.Context, s *models.RecurringSchedule) error {
	if _, ok := r.items[s.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *scheduleRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, id)
	return nil
}

func newScheduleFixture() (*scheduleRepoStub, *RecurringScheduleService) {
	repo := &scheduleRepoStub{items: map[string]*models.RecurringSchedule{}}
	courses := newCourseStub(models.Course{ID: "course-1", InstructorID: "instructor-1"})
	return repo, NewRecurringScheduleService(repo, courses, validator.New(), zap.NewNop())
}

func validCreate() dto.CreateScheduleRequest {
	end := "2026-06-30"
	return dto.CreateScheduleRequest{CourseID: "course-1", DayOfWeek: 2, StartTime: "08:00", EndTime: "09:40", StartDate: "2026-02-01", EndDate: &end}
}

func TestRecurringScheduleCreate(t *testing.T) {
	repo, svc := newScheduleFixture()

	created, err := svc.Create(context.Background(), validCreate(), faculty("instructor-1"))
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, "instructor-1", created.InstructorID)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), created.StartDate)
	require.NotNil(t, created.EndDate)
	assert.Contains(t, repo.items, created.ID)

	_, err = svc.Create(context.Background(), validCreate(), faculty("instructor-2"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRecurringScheduleCreateValidation(t *testing.T) {
	_, svc := newScheduleFixture()
	mutate := map[string]func(r *dto.CreateScheduleRequest){
		"day":        func(r *dto.CreateScheduleRequest) { r.DayOfWeek = 7 },
		"clock":      func(r *dto.CreateScheduleRequest) { r.StartTime = "8:00" },
		"reversed":   func(r *dto.CreateScheduleRequest) { r.EndTime = "07:00" },
		"start date": func(r *dto.CreateScheduleRequest) { r.StartDate = "01/02/2026" },
		"end before": func(r *dto.CreateScheduleRequest) { e := "2026-01-01"; r.EndDate = &e },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			req := validCreate()
			fn(&req)
			_, err := svc.Create(context.Background(), req, admin())
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestRecurringScheduleUpdateAndDelete(t *testing.T) {
	_, svc := newScheduleFixture()
	created, err := svc.Create(context.Background(), validCreate(), faculty("instructor-1"))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, dto.UpdateScheduleRequest{
		DayOfWeek: 4, StartTime: "10:00", EndTime: "11:00", StartDate: "2026-02-01", IsActive: false,
	}, faculty("instructor-1"))
	require.NoError(t, err)
	assert.Equal(t, 4, updated.DayOfWeek)
	assert.False(t, updated.IsActive)
	assert.Nil(t, updated.EndDate)

	_, err = svc.Get(context.Background(), created.ID, faculty("instructor-2"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), created.ID, admin()))
	_, err = svc.Get(context.Background(), created.ID, admin())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRecurringScheduleListScopesFaculty(t *testing.T) {
	repo, svc := newScheduleFixture()
	_, _, err := svc.List(context.Background(), dto.ScheduleQuery{InstructorID: "instructor-9"}, faculty("instructor-1"))
	require.NoError(t, err)
	assert.Equal(t, "instructor-1", repo.lastFilter.InstructorID)
	assert.Equal(t, 1, repo.lastFilter.Page)

	_, _, err = svc.List(context.Background(), dto.ScheduleQuery{}, student("s1"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
