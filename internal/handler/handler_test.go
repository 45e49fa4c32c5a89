package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-attendance-api/internal/dto"
	"github.com/noah-isme/lms-attendance-api/internal/middleware"
	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/internal/service"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

type sessionServiceMock struct {
	issueResp *dto.IssuedSession
	issueErr  error
	session   *models.Session
	getErr    error
	deleteErr error
	lastReq   dto.IssueSessionRequest
}

func (m *sessionServiceMock) IssueSession(ctx context.Context, req dto.IssueSessionRequest, actor *models.JWTClaims) (*dto.IssuedSession, error) {
	m.lastReq = req
	return m.issueResp, m.issueErr
}

func (m *sessionServiceMock) GetSession(ctx context.Context, id string, actor *models.JWTClaims) (*models.Session, error) {
	return m.session, m.getErr
}

func (m *sessionServiceMock) EditSession(ctx context.Context, id string, req dto.EditSessionRequest, actor *models.JWTClaims) (*models.Session, error) {
	return m.session, m.getErr
}

func (m *sessionServiceMock) DeleteSession(ctx context.Context, id string, actor *models.JWTClaims) error {
	return m.deleteErr
}

type checkinServiceMock struct {
	result       *dto.CheckinResult
	err          error
	lastCode     string
	lastStudent  string
	lastLocation service.LocationSource
}

func (m *checkinServiceMock) CheckIn(ctx context.Context, code, studentID string, location service.LocationSource, clientTime *time.Time) (*dto.CheckinResult, error) {
	m.lastCode, m.lastStudent, m.lastLocation = code, studentID, location
	return m.result, m.err
}

func (m *checkinServiceMock) ManualOverride(ctx context.Context, sessionID, studentID string, req dto.OverrideRequest, actor *models.JWTClaims) (*dto.OverrideResult, error) {
	return &dto.OverrideResult{Record: &models.CheckinRecord{SessionID: sessionID, StudentID: studentID, Status: models.AttendanceStatus(req.Status)}}, m.err
}

type ledgerServiceMock struct {
	lastIDs []string
}

func (m *ledgerServiceMock) RecordsForSession(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.CheckinRecordDetail, error) {
	return nil, nil
}

func (m *ledgerServiceMock) Summary(ctx context.Context, sessionID string, actor *models.JWTClaims) (*models.AttendanceSummary, error) {
	return &models.AttendanceSummary{SessionID: sessionID, Enrolled: 2, Present: 1, NotRecorded: 1, AttendanceRate: 0.5}, nil
}

func (m *ledgerServiceMock) EditHistory(ctx context.Context, sessionID string, actor *models.JWTClaims) ([]models.AttendanceEditEntry, error) {
	return nil, appErrors.ErrForbidden
}

func (m *ledgerServiceMock) RateForStudent(ctx context.Context, studentID string, sessionIDs []string, actor *models.JWTClaims) (*models.StudentAttendanceRate, error) {
	m.lastIDs = sessionIDs
	return &models.StudentAttendanceRate{StudentID: studentID, Sessions: len(sessionIDs)}, nil
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func newContext(method, path, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestSessionHandlerIssueWithWarnings(t *testing.T) {
	mockSvc := &sessionServiceMock{issueResp: &dto.IssuedSession{
		Session:  &models.Session{ID: "sess-1", Code: "ATT-1-ABCDEF12"},
		Warnings: []string{"notification could not be queued"},
	}}
	h := NewSessionHandler(mockSvc)
	c, w := newContext(http.MethodPost, "/sessions", `{"courseId":"course-1","durationMinutes":15}`, &models.JWTClaims{UserID: "t1", Role: models.RoleFaculty})

	h.Issue(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 15, mockSvc.lastReq.DurationMinutes)
	env := decode(t, w)
	assert.Contains(t, string(env.Data), "ATT-1-ABCDEF12")
	assert.Equal(t, []interface{}{"notification could not be queued"}, env.Meta["warnings"])
}

func TestSessionHandlerIssueInvalidBody(t *testing.T) {
	h := NewSessionHandler(&sessionServiceMock{})
	c, w := newContext(http.MethodPost, "/sessions", `{"courseId":`, nil)
	h.Issue(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlerQR(t *testing.T) {
	h := NewSessionHandler(&sessionServiceMock{session: &models.Session{ID: "sess-1", Code: "ATT-1-ABCDEF12"}})
	c, w := newContext(http.MethodGet, "/sessions/sess-1/qr?size=128", "", &models.JWTClaims{UserID: "t1", Role: models.RoleFaculty})
	h.QR(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestSessionHandlerDeleteErrors(t *testing.T) {
	h := NewSessionHandler(&sessionServiceMock{deleteErr: appErrors.Clone(appErrors.ErrNotFound, "session not found")})
	c, w := newContext(http.MethodDelete, "/sessions/x", "", &models.JWTClaims{UserID: "t1", Role: models.RoleFaculty})
	h.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckinHandlerMapsErrors(t *testing.T) {
	cases := map[error]int{
		appErrors.ErrInvalidCode:      http.StatusNotFound,
		appErrors.ErrSessionExpired:   http.StatusGone,
		appErrors.ErrLocationRequired: http.StatusUnprocessableEntity,
		appErrors.ErrOutOfRange:       http.StatusForbidden,
		appErrors.ErrDuplicateCheckin: http.StatusConflict,
		errors.New("unexpected"):      http.StatusInternalServerError,
	}
	for err, status := range cases {
		h := NewCheckinHandler(&checkinServiceMock{err: err})
		c, w := newContext(http.MethodPost, "/checkins", `{"code":"ATT-1-X"}`, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
		h.CheckIn(c)
		assert.Equal(t, status, w.Code, err.Error())
	}
}

func TestCheckinHandlerPassesLocation(t *testing.T) {
	mockSvc := &checkinServiceMock{result: &dto.CheckinResult{Record: &models.CheckinRecord{ID: "r1", Status: models.AttendanceStatusPresent}}}
	h := NewCheckinHandler(mockSvc)
	c, w := newContext(http.MethodPost, "/checkins", `{"code":"ATT-1-X","location":{"latitude":12.97,"longitude":77.59}}`, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	h.CheckIn(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ATT-1-X", mockSvc.lastCode)
	assert.Equal(t, "s1", mockSvc.lastStudent)
	point, err := mockSvc.lastLocation.Locate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12.97, point.Latitude, 1e-9)
	assert.Nil(t, decode(t, w).Meta)
}

func TestCheckinHandlerRequiresClaims(t *testing.T) {
	h := NewCheckinHandler(&checkinServiceMock{})
	c, w := newContext(http.MethodPost, "/checkins", `{"code":"x"}`, nil)
	h.CheckIn(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckinHandlerOverride(t *testing.T) {
	h := NewCheckinHandler(&checkinServiceMock{})
	c, w := newContext(http.MethodPut, "/sessions/sess-1/records/s1", `{"status":"excused"}`, &models.JWTClaims{UserID: "t1", Role: models.RoleFaculty})
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "studentId", Value: "s1"}}
	h.Override(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"excused"`)
}

func TestLedgerHandlerStudentRateParsesIDs(t *testing.T) {
	mockSvc := &ledgerServiceMock{}
	h := NewLedgerHandler(mockSvc)
	c, w := newContext(http.MethodGet, "/students/s1/attendance-rate?sessionIds=a,b&sessionIds=c", "", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	h.StudentRate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b", "c"}, mockSvc.lastIDs)
}

func TestLedgerHandlerSummaryAndErrors(t *testing.T) {
	h := NewLedgerHandler(&ledgerServiceMock{})
	c, w := newContext(http.MethodGet, "/sessions/sess-1/summary", "", &models.JWTClaims{UserID: "t1", Role: models.RoleFaculty})
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"attendance_rate":0.5`)

	c, w = newContext(http.MethodGet, "/sessions/sess-1/edits", "", &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	h.Edits(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type pingStub struct{ err error }

func (p pingStub) PingContext(ctx context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"postgres": pingStub{}, "redis": PingerFunc(func(context.Context) error { return nil })})
	c, w := newContext(http.MethodGet, "/ready", "", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{"postgres": pingStub{err: errors.New("refused")}})
	c, w = newContext(http.MethodGet, "/ready", "", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "refused")

}

func TestMetricsHandlerPrometheus(t *testing.T) {
	c, w := newContext(http.MethodGet, "/metrics", "", nil)
	NewMetricsHandler(nil, nil).Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, c.IsAborted())

	metrics := service.NewMetricsService()
	metrics.RecordCheckin(service.OutcomeAccepted)
	c, w = newContext(http.MethodGet, "/metrics", "", nil)
	NewMetricsHandler(metrics, nil).Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "attendance_checkins_total")
}
