package models

// Course is the slice of the course catalogue the attendance core reads.
type Course struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	InstructorID string `db:"instructor_id" json:"instructor_id"`
}

// CourseRecipient is an actively enrolled student reachable by email.
type CourseRecipient struct {
	StudentID string `db:"student_id" json:"student_id"`
	FullName  string `db:"full_name" json:"full_name"`
	Email     string `db:"email" json:"email"`
}
