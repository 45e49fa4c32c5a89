package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	"github.com/noah-isme/lms-attendance-api/internal/repository"
)

// memoryStore is an in-memory stand-in for the session and check-in
// repositories. now plays the role of the database clock.
type memoryStore struct {
	mu       sync.Mutex
	now      time.Time
	sessions map[string]*models.Session
	records  map[string]*models.CheckinRecord
	edits    []models.AttendanceEditEntry
	enrolled map[string]int

	createErrs []error
	existsErr  error
}

func newMemoryStore(now time.Time) *memoryStore {
	return &memoryStore{
		now:      now,
		sessions: map[string]*models.Session{},
		records:  map[string]*models.CheckinRecord{},
		enrolled: map[string]int{},
	}
}

func recordKey(sessionID, studentID string) string { return sessionID + "/" + studentID }

func (m *memoryStore) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *memoryStore) Create(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, s := range m.sessions {
		if s.Code == session.Code {
			return repository.ErrSessionCodeTaken
		}
		if session.ScheduledFor != nil && s.ScheduledFor != nil && s.CourseID == session.CourseID && s.ScheduledFor.Equal(*session.ScheduledFor) {
			return repository.ErrSessionSlotTaken
		}
	}
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStore) FindByCode(ctx context.Context, code string) (*models.SessionLookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Code == code {
			return &models.SessionLookup{Session: *s, DBNow: m.now}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStore) Update(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.sessions, id)
	for key, r := range m.records {
		if r.SessionID == id {
			delete(m.records, key)
		}
	}
	return nil
}

func (m *memoryStore) ExistsForSlot(ctx context.Context, courseID string, scheduledFor time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.CourseID == courseID && s.ScheduledFor != nil && s.ScheduledFor.Equal(scheduledFor) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Exists(ctx context.Context, sessionID, studentID string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[recordKey(sessionID, studentID)]
	return ok, nil
}

func (m *memoryStore) CreateCheckin(record *models.CheckinRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(record.SessionID, record.StudentID)
	if _, ok := m.records[key]; ok {
		return repository.ErrCheckinExists
	}
	record.ID = uuid.NewString()
	record.CreatedAt = m.now
	cp := *record
	m.records[key] = &cp
	return nil
}

func (m *memoryStore) Override(ctx context.Context, p repository.OverrideParams) (*models.CheckinRecord, *models.AttendanceEditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(p.SessionID, p.StudentID)
	rec, ok := m.records[key]
	var old *models.AttendanceStatus
	if ok {
		prev := rec.Status
		old = &prev
		rec.PreviousStatus = &prev
	} else {
		rec = &models.CheckinRecord{ID: uuid.NewString(), SessionID: p.SessionID, StudentID: p.StudentID, SubmittedAt: p.EditedAt, CreatedAt: p.EditedAt}
		m.records[key] = rec
	}
	editor := p.EditorID
	edited := p.EditedAt
	rec.Status = p.NewStatus
	rec.Reason = p.Reason
	rec.EditedBy = &editor
	rec.EditedAt = &edited

	entry := models.AttendanceEditEntry{
		ID:        uuid.NewString(),
		CheckinID: rec.ID,
		SessionID: p.SessionID,
		StudentID: p.StudentID,
		EditorID:  p.EditorID,
		EditedAt:  p.EditedAt,
		OldStatus: old,
		NewStatus: p.NewStatus,
		Reason:    p.Reason,
	}
	m.edits = append(m.edits, entry)
	cp := *rec
	return &cp, &entry, nil
}

func (m *memoryStore) ListBySession(ctx context.Context, sessionID string) ([]models.CheckinRecordDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.CheckinRecordDetail{}
	for _, r := range m.records {
		if r.SessionID == sessionID {
			out = append(out, models.CheckinRecordDetail{CheckinRecord: *r, StudentName: r.StudentID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (m *memoryStore) StatusCounts(ctx context.Context, sessionID string) (*models.SessionStatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, sql.ErrNoRows
	}
	counts := &models.SessionStatusCounts{Enrolled: m.enrolled[sessionID]}
	for _, r := range m.records {
		if r.SessionID != sessionID {
			continue
		}
		switch r.Status {
		case models.AttendanceStatusPresent:
			counts.Present++
		case models.AttendanceStatusLate:
			counts.Late++
		case models.AttendanceStatusAbsent:
			counts.Absent++
		case models.AttendanceStatusExcused:
			counts.Excused++
		}
	}
	return counts, nil
}

func (m *memoryStore) StatusesForStudent(ctx context.Context, studentID string, sessionIDs []string) ([]models.StudentSessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StudentSessionStatus
	for _, id := range sessionIDs {
		if r, ok := m.records[recordKey(id, studentID)]; ok {
			out = append(out, models.StudentSessionStatus{SessionID: id, Status: r.Status})
		}
	}
	return out, nil
}

func (m *memoryStore) ListEdits(ctx context.Context, sessionID string) ([]models.AttendanceEditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AttendanceEditEntry
	for _, e := range m.edits {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// checkinRepo exposes memoryStore through the check-in repository method set,
// whose Create differs from the session repository's.
type checkinRepo struct {
	*memoryStore
	createErr error
}

func (r checkinRepo) Create(ctx context.Context, record *models.CheckinRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.CreateCheckin(record)
}

type courseStub struct {
	courses    map[string]*models.Course
	recipients map[string][]models.CourseRecipient
	err        error
}

func newCourseStub(courses ...models.Course) *courseStub {
	stub := &courseStub{courses: map[string]*models.Course{}, recipients: map[string][]models.CourseRecipient{}}
	for i := range courses {
		c := courses[i]
		stub.courses[c.ID] = &c
	}
	return stub
}

func (c *courseStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c.err != nil {
		return nil, c.err
	}
	course, ok := c.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *course
	return &cp, nil
}

func (c *courseStub) ListRecipients(ctx context.Context, courseID string) ([]models.CourseRecipient, error) {
	return c.recipients[courseID], nil
}

func (c *courseStub) FindStudent(ctx context.Context, studentID string) (*models.CourseRecipient, error) {
	for _, list := range c.recipients {
		for _, r := range list {
			if r.StudentID == studentID {
				cp := r
				return &cp, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

type notifierStub struct {
	mu       sync.Mutex
	err      error
	issued   []string
	receipts []string
}

func (n *notifierStub) SessionIssued(ctx context.Context, session *models.Session, courseName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, session.ID)
	return n.err
}

func (n *notifierStub) CheckinRecorded(ctx context.Context, record *models.CheckinRecord, courseID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, record.StudentID)
	return n.err
}

func faculty(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleFaculty}
}

func student(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func admin() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func overrideParams(sessionID, studentID string, status models.AttendanceStatus) repository.OverrideParams {
	return repository.OverrideParams{SessionID: sessionID, StudentID: studentID, NewStatus: status, EditorID: "instructor-1", EditedAt: testNow}
}
