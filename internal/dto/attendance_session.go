package dto

import (
	"time"

	"github.com/noah-isme/lms-attendance-api/internal/models"
)

// IssueSessionRequest opens a new attendance window for a course.
type IssueSessionRequest struct {
	CourseID        string           `json:"courseId" validate:"required"`
	DurationMinutes int              `json:"durationMinutes" validate:"gt=0"`
	Anchor          *models.GeoPoint `json:"anchor"`
	GeofenceRadiusM float64          `json:"geofenceRadiusM" validate:"gte=0"`
}

// EditSessionRequest lists the fields an instructor may change after issuance.
type EditSessionRequest struct {
	ExpiresAt       *time.Time       `json:"expiresAt"`
	GeofenceRadiusM *float64         `json:"geofenceRadiusM" validate:"omitempty,gte=0"`
	Anchor          *models.GeoPoint `json:"anchor"`
	ClearAnchor     bool             `json:"clearAnchor"`
}

// Empty reports whether the request changes nothing.
func (r EditSessionRequest) Empty() bool {
	return r.ExpiresAt == nil && r.GeofenceRadiusM == nil && r.Anchor == nil && !r.ClearAnchor
}

// IssuedSession is returned from issuance together with non-fatal warnings.
type IssuedSession struct {
	Session  *models.Session `json:"session"`
	Warnings []string        `json:"-"`
}
