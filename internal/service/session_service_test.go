package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestSessionService(store *memoryStore, notifier sessionNotifier) *SessionService {
	courses := newCourseStub(models.Course{ID: "course-1", Name: "Distributed Systems", InstructorID: "instructor-1"})
	svc := NewSessionService(store, courses, notifier, nil, nil, validator.New(), zap.NewNop(), SessionServiceConfig{CodePrefix: "ATT", MaxDuration: 2 * time.Hour})
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestIssueSessionStoresWindowAndGeofence(t *testing.T) {
	store := newMemoryStore(testNow)
	svc := newTestSessionService(store, nil)

	res, err := svc.IssueSession(context.Background(), dto.IssueSessionRequest{
		CourseID:        "course-1",
		DurationMinutes: 15,
		Anchor:          &models.GeoPoint{Latitude: 12.9716, Longitude: 77.5946},
		GeofenceRadiusM: 50,
	}, faculty("instructor-1"))
	require.NoError(t, err)

	s := res.Session
	assert.Equal(t, testNow, s.IssuedAt)
	assert.Equal(t, testNow.Add(15*time.Minute), s.ExpiresAt)
	assert.True(t, s.EnforcesGeofence())
	assert.Equal(t, "instructor-1", s.InstructorID)
	assert.Regexp(t, `^ATT-\d+-[0-9A-F]{8}$`, s.Code)
	assert.Contains(t, store.sessions, s.ID)
	assert.Empty(t, res.Warnings)
}

func TestIssueSessionValidation(t *testing.T) {
	svc := newTestSessionService(newMemoryStore(testNow), nil)
	actor := faculty("instructor-1")

	cases := map[string]dto.IssueSessionRequest{
		"zero duration":      {CourseID: "course-1", DurationMinutes: 0},
		"negative radius":    {CourseID: "course-1", DurationMinutes: 10, GeofenceRadiusM: -1},
		"radius sans anchor": {CourseID: "course-1", DurationMinutes: 10, GeofenceRadiusM: 50},
		"too long":           {CourseID: "course-1", DurationMinutes: 121},
		"bad anchor":         {CourseID: "course-1", DurationMinutes: 10, Anchor: &models.GeoPoint{Latitude: 95}, GeofenceRadiusM: 10},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.IssueSession(context.Background(), req, actor)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestIssueSessionAuthorization(t *testing.T) {
	svc := newTestSessionService(newMemoryStore(testNow), nil)
	req := dto.IssueSessionRequest{CourseID: "course-1", DurationMinutes: 10}

	_, err := svc.IssueSession(context.Background(), req, faculty("instructor-2"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = svc.IssueSession(context.Background(), req, student("student-1"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	res, err := svc.IssueSession(context.Background(), req, admin())
	require.NoError(t, err)
	assert.Equal(t, "instructor-1", res.Session.InstructorID)

	_, err = svc.IssueSession(context.Background(), dto.IssueSessionRequest{CourseID: "nope", DurationMinutes: 10}, admin())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestIssueSessionRetriesCodeCollision(t *testing.T) {
	store := newMemoryStore(testNow)
	store.createErrs = []error{repository.ErrSessionCodeTaken}
	svc := newTestSessionService(store, nil)

	res, err := svc.IssueSession(context.Background(), dto.IssueSessionRequest{CourseID: "course-1", DurationMinutes: 10}, faculty("instructor-1"))
	require.NoError(t, err)
	assert.Contains(t, store.sessions, res.Session.ID)
}

func TestIssueSessionWriteFailure(t *testing.T) {
	store := newMemoryStore(testNow)
	store.createErrs = []error{errors.New("db down")}
	svc := newTestSessionService(store, nil)

	_, err := svc.IssueSession(context.Background(), dto.IssueSessionRequest{CourseID: "course-1", DurationMinutes: 10}, faculty("instructor-1"))
	assert.ErrorIs(t, err, appErrors.ErrUpstreamWrite)
	assert.Empty(t, store.sessions)
}

func TestIssueSessionNotificationFailureIsWarning(t *testing.T) {
	store := newMemoryStore(testNow)
	notifier := &notifierStub{err: appErrors.Clone(appErrors.ErrNotification, "notification could not be queued")}
	svc := newTestSessionService(store, notifier)

	res, err := svc.IssueSession(context.Background(), dto.IssueSessionRequest{CourseID: "course-1", DurationMinutes: 10}, faculty("instructor-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"notification could not be queued"}, res.Warnings)
	assert.Len(t, notifier.issued, 1)
}

func TestEditSession(t *testing.T) {
	store := newMemoryStore(testNow)
	svc := newTestSessionService(store, nil)
	res, err := svc.IssueSession(context.Background(), dto.IssueSessionRequest{CourseID: "course-1", DurationMinutes: 10}, faculty("instructor-1"))
	require.NoError(t, err)
	id := res.Session.ID

	extended := testNow.Add(30 * time.Minute)
	radius := 75.0
	updated, err := svc.EditSession(context.Background(), id, dto.EditSessionRequest{
		ExpiresAt:       &extended,
		GeofenceRadiusM: &radius,
		Anchor:          &models.GeoPoint{Latitude: 1, Longitude: 1},
	}, faculty("instructor-1"))
	require.NoError(t, err)
	assert.Equal(t, extended, updated.ExpiresAt)
	assert.True(t, updated.EnforcesGeofence())

	before := testNow.Add(-time.Minute)
	_, err = svc.EditSession(context.Background(), id, dto.EditSessionRequest{ExpiresAt: &before}, faculty("instructor-1"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.EditSession(context.Background(), id, dto.EditSessionRequest{}, faculty("instructor-1"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.EditSession(context.Background(), id, dto.EditSessionRequest{ExpiresAt: &extended}, faculty("instructor-9"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.EditSession(context.Background(), "missing", dto.EditSessionRequest{ExpiresAt: &extended}, admin())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEditGeneratedSessionKeepsRadiusWithoutAnchor(t *testing.T) {
	store := newMemoryStore(testNow)
	svc := newTestSessionService(store, nil)
	radius := 100.0
	store.sessions["gen-1"] = &models.Session{ID: "gen-1", CourseID: "course-1", InstructorID: "instructor-1", Code: "ATT-1-AAAAAAAA",
		IssuedAt: testNow, ExpiresAt: testNow.Add(time.Hour), GeofenceRadiusM: &radius}

	later := testNow.Add(90 * time.Minute)
	updated, err := svc.EditSession(context.Background(), "gen-1", dto.EditSessionRequest{ExpiresAt: &later}, faculty("instructor-1"))
	require.NoError(t, err)
	assert.False(t, updated.EnforcesGeofence())

	updated, err = svc.EditSession(context.Background(), "gen-1", dto.EditSessionRequest{Anchor: &models.GeoPoint{Latitude: 10, Longitude: 10}}, faculty("instructor-1"))
	require.NoError(t, err)
	assert.True(t, updated.EnforcesGeofence())
}

func TestDeleteSession(t *testing.T) {
	store := newMemoryStore(testNow)
	svc := newTestSessionService(store, nil)
	res, err := svc.IssueSession(context.Background(), dto.IssueSessionRequest{CourseID: "course-1", DurationMinutes: 10}, faculty("instructor-1"))
	require.NoError(t, err)
	require.NoError(t, store.CreateCheckin(&models.CheckinRecord{SessionID: res.Session.ID, StudentID: "s1", Status: models.AttendanceStatusPresent}))

	assert.ErrorIs(t, svc.DeleteSession(context.Background(), res.Session.ID, student("s1")), appErrors.ErrForbidden)
	require.NoError(t, svc.DeleteSession(context.Background(), res.Session.ID, faculty("instructor-1")))
	assert.Empty(t, store.sessions)
	assert.Empty(t, store.records)
	assert.ErrorIs(t, svc.DeleteSession(context.Background(), res.Session.ID, admin()), appErrors.ErrNotFound)
}
