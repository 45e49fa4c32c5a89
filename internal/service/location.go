package service

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/lms-attendance-api/internal/models"
)

// ErrLocationUnavailable covers denied permission, timeouts and missing fixes alike.
var ErrLocationUnavailable = errors.New("location unavailable")

// LocationSource supplies the reporting device's position.
type LocationSource interface {
	Locate(ctx context.Context) (models.GeoPoint, error)
}

// LocationFunc adapts a function to LocationSource.
type LocationFunc func(ctx context.Context) (models.GeoPoint, error)

// Locate implements LocationSource.
func (f LocationFunc) Locate(ctx context.Context) (models.GeoPoint, error) {
	return f(ctx)
}

// StaticLocation is a position already captured by the client, as sent with a
// check-in request.
type StaticLocation models.GeoPoint

// Locate implements LocationSource.
func (p StaticLocation) Locate(context.Context) (models.GeoPoint, error) {
	return models.GeoPoint(p), nil
}

// LocationFromRequest returns a source for an optional reported location.
func LocationFromRequest(p *models.GeoPoint) LocationSource {
	if p == nil {
		return nil
	}
	return StaticLocation(*p)
}

// ResolveLocation asks src for a position, giving up after timeout. Every
// failure is reported as ErrLocationUnavailable.
func ResolveLocation(ctx context.Context, src LocationSource, timeout time.Duration) (models.GeoPoint, error) {
	if src == nil {
		return models.GeoPoint{}, ErrLocationUnavailable
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type fix struct {
		point models.GeoPoint
		err   error
	}
	ch := make(chan fix, 1)
	go func() {
		p, err := src.Locate(ctx)
		ch <- fix{point: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.GeoPoint{}, ErrLocationUnavailable
	case f := <-ch:
		if f.err != nil || !f.point.Valid() {
			return models.GeoPoint{}, ErrLocationUnavailable
		}
		return f.point, nil
	}
}
