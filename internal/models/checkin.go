package models

import "time"

// AttendanceStatus is the recorded outcome of a check-in.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attended counts late arrivals as attendance for rate purposes.
func (s AttendanceStatus) Attended() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusLate
}

// CheckinRecord is one student's attendance claim against one session.
type CheckinRecord struct {
	ID             string            `db:"id" json:"id"`
	SessionID      string            `db:"session_id" json:"session_id"`
	StudentID      string            `db:"student_id" json:"student_id"`
	SubmittedAt    time.Time         `db:"submitted_at" json:"submitted_at"`
	Latitude       *float64          `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64          `db:"longitude" json:"longitude,omitempty"`
	Status         AttendanceStatus  `db:"status" json:"status"`
	Reason         *string           `db:"reason" json:"reason,omitempty"`
	EditedBy       *string           `db:"edited_by" json:"edited_by,omitempty"`
	EditedAt       *time.Time        `db:"edited_at" json:"edited_at,omitempty"`
	PreviousStatus *AttendanceStatus `db:"previous_status" json:"previous_status,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}

// SetLocation stores the reported coordinate for audit.
func (r *CheckinRecord) SetLocation(p *GeoPoint) {
	if p == nil {
		r.Latitude, r.Longitude = nil, nil
		return
	}
	lat, lng := p.Latitude, p.Longitude
	r.Latitude, r.Longitude = &lat, &lng
}

// CheckinRecordDetail joins a record with the student's display identity.
type CheckinRecordDetail struct {
	CheckinRecord
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail *string `db:"student_email" json:"student_email,omitempty"`
}

// AttendanceEditEntry is the append-only audit row written by manual overrides.
type AttendanceEditEntry struct {
	ID        string            `db:"id" json:"id"`
	CheckinID string            `db:"checkin_id" json:"checkin_id"`
	SessionID string            `db:"session_id" json:"session_id"`
	StudentID string            `db:"student_id" json:"student_id"`
	EditorID  string            `db:"editor_id" json:"editor_id"`
	EditedAt  time.Time         `db:"edited_at" json:"edited_at"`
	OldStatus *AttendanceStatus `db:"old_status" json:"old_status,omitempty"`
	NewStatus AttendanceStatus  `db:"new_status" json:"new_status"`
	Reason    *string           `db:"reason" json:"reason,omitempty"`
}

// SessionStatusCounts are raw per-status counts among enrolled students.
type SessionStatusCounts struct {
	Enrolled int `db:"enrolled"`
	Present  int `db:"present"`
	Late     int `db:"late"`
	Absent   int `db:"absent"`
	Excused  int `db:"excused"`
}

// AttendanceSummary is the read-side aggregate for one session.
type AttendanceSummary struct {
	SessionID      string  `json:"session_id"`
	Enrolled       int     `json:"enrolled"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	Excused        int     `json:"excused"`
	NotRecorded    int     `json:"not_recorded"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// StudentAttendanceRate is a student's attendance over a set of sessions.
type StudentAttendanceRate struct {
	StudentID string  `json:"student_id"`
	Sessions  int     `json:"sessions"`
	Attended  int     `json:"attended"`
	Rate      float64 `json:"rate"`
}

// StudentSessionStatus is one (session, status) pair for a student.
type StudentSessionStatus struct {
	SessionID string           `db:"session_id"`
	Status    AttendanceStatus `db:"status"`
}
