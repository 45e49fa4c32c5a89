package dto

// ScheduleQuery filters recurring schedule listings.
type ScheduleQuery struct {
	CourseID     string `form:"courseId"`
	InstructorID string `form:"instructorId"`
	ActiveOnly   bool   `form:"activeOnly"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// CreateScheduleRequest defines a weekly slot. Dates use YYYY-MM-DD and times HH:MM.
type CreateScheduleRequest struct {
	CourseID  string  `json:"courseId" validate:"required"`
	DayOfWeek int     `json:"dayOfWeek" validate:"gte=0,lte=6"`
	StartTime string  `json:"startTime" validate:"required,clock"`
	EndTime   string  `json:"endTime" validate:"required,clock"`
	Room      *string `json:"room" validate:"omitempty,max=64"`
	StartDate string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   *string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	IsActive  *bool   `json:"isActive"`
}

// UpdateScheduleRequest replaces the mutable fields of a schedule.
type UpdateScheduleRequest struct {
	DayOfWeek int     `json:"dayOfWeek" validate:"gte=0,lte=6"`
	StartTime string  `json:"startTime" validate:"required,clock"`
	EndTime   string  `json:"endTime" validate:"required,clock"`
	Room      *string `json:"room" validate:"omitempty,max=64"`
	StartDate string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   *string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	IsActive  bool    `json:"isActive"`
}

// GenerateSessionsRequest asks for the sessions of the week starting at WeekStart.
type GenerateSessionsRequest struct {
	WeekStart string `json:"weekStart" validate:"required,datetime=2006-01-02"`
	CourseID  string `json:"courseId"`
}
