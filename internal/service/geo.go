package service

import (
	"math"

	"github.com/noah-isme/lms-attendance-api/internal/models"
)

const earthRadiusMeters = 6371000.0

// geofenceToleranceMeters absorbs float rounding at the radius boundary.
const geofenceToleranceMeters = 1e-6

// DistanceMeters returns the haversine great-circle distance between two points.
func DistanceMeters(a, b models.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// WithinRadius reports whether p lies inside or on the circle around anchor.
func WithinRadius(anchor, p models.GeoPoint, radius float64) bool {
	return DistanceMeters(anchor, p) <= radius+geofenceToleranceMeters
}
