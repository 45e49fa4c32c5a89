package models

import "time"

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Valid reports whether the coordinate lies within the WGS84 ranges.
func (p GeoPoint) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Session is one instructor-initiated attendance window for a course meeting.
type Session struct {
	ID              string     `db:"id" json:"id"`
	CourseID        string     `db:"course_id" json:"course_id"`
	InstructorID    string     `db:"instructor_id" json:"instructor_id"`
	Code            string     `db:"code" json:"code"`
	IssuedAt        time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt       time.Time  `db:"expires_at" json:"expires_at"`
	AnchorLatitude  *float64   `db:"anchor_latitude" json:"anchor_latitude,omitempty"`
	AnchorLongitude *float64   `db:"anchor_longitude" json:"anchor_longitude,omitempty"`
	GeofenceRadiusM *float64   `db:"geofence_radius_m" json:"geofence_radius_m,omitempty"`
	ScheduleID      *string    `db:"schedule_id" json:"schedule_id,omitempty"`
	ScheduledFor    *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Anchor returns the anchor coordinate when both components are set.
func (s *Session) Anchor() *GeoPoint {
	if s.AnchorLatitude == nil || s.AnchorLongitude == nil {
		return nil
	}
	return &GeoPoint{Latitude: *s.AnchorLatitude, Longitude: *s.AnchorLongitude}
}

// SetAnchor replaces or clears the anchor coordinate.
func (s *Session) SetAnchor(p *GeoPoint) {
	if p == nil {
		s.AnchorLatitude, s.AnchorLongitude = nil, nil
		return
	}
	lat, lng := p.Latitude, p.Longitude
	s.AnchorLatitude, s.AnchorLongitude = &lat, &lng
}

// Radius returns the geofence radius in meters, zero when unset.
func (s *Session) Radius() float64 {
	if s.GeofenceRadiusM == nil {
		return 0
	}
	return *s.GeofenceRadiusM
}

// EnforcesGeofence is true when both a positive radius and an anchor are present.
func (s *Session) EnforcesGeofence() bool {
	return s.Radius() > 0 && s.Anchor() != nil
}

// ExpiredAt reports whether no check-in can be accepted at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// OpenAt reports whether the check-in window has started at now, allowing
// now to trail issued_at by at most tolerance.
func (s *Session) OpenAt(now time.Time, tolerance time.Duration) bool {
	return !now.Add(tolerance).Before(s.IssuedAt)
}

// SessionLookup pairs a session with the data store clock read in the same query.
type SessionLookup struct {
	Session
	DBNow time.Time `db:"db_now" json:"-"`
}
