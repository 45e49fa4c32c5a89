package models

import "time"

// RecurringSchedule is a weekly class slot used to project future sessions.
// DayOfWeek follows time.Weekday: 0 is Sunday.
type RecurringSchedule struct {
	ID           string     `db:"id" json:"id"`
	CourseID     string     `db:"course_id" json:"course_id"`
	InstructorID string     `db:"instructor_id" json:"instructor_id"`
	DayOfWeek    int        `db:"day_of_week" json:"day_of_week"`
	StartTime    string     `db:"start_time" json:"start_time"`
	EndTime      string     `db:"end_time" json:"end_time"`
	Room         *string    `db:"room" json:"room,omitempty"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter describes query params for listing recurring schedules.
type ScheduleFilter struct {
	CourseID     string
	InstructorID string
	ActiveOnly   bool
	Page         int
	PageSize     int
}

// ScheduleGenerationError describes one schedule that could not be materialised.
type ScheduleGenerationError struct {
	ScheduleID string `json:"schedule_id"`
	CourseID   string `json:"course_id"`
	Reason     string `json:"reason"`
}

// ScheduleGenerationResult is the partial-success outcome of a generation run.
type ScheduleGenerationResult struct {
	WeekStart  time.Time                 `json:"week_start"`
	Created    int                       `json:"created"`
	Skipped    int                       `json:"skipped"`
	SessionIDs []string                  `json:"session_ids"`
	Errors     []ScheduleGenerationError `json:"errors,omitempty"`
}
