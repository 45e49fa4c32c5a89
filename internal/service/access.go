package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

// canManage reports whether actor may write attendance data owned by any of
// the given instructors. Admins always can.
func canManage(actor *models.JWTClaims, instructorIDs ...string) bool {
	if actor == nil {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	if actor.Role != models.RoleFaculty {
		return false
	}
	for _, id := range instructorIDs {
		if id != "" && id == actor.UserID {
			return true
		}
	}
	return false
}

// authorizeSession accepts the session's instructor, the course's current
// instructor or an admin.
func authorizeSession(ctx context.Context, courses courseReader, session *models.Session, actor *models.JWTClaims) error {
	if canManage(actor, session.InstructorID) {
		return nil
	}
	if actor == nil || actor.Role != models.RoleFaculty {
		return appErrors.ErrForbidden
	}
	course, err := courses.FindByID(ctx, session.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrForbidden
		}
		return appErrors.WrapAs(err, appErrors.ErrUpstreamRead, "failed to verify course ownership")
	}
	if !canManage(actor, course.InstructorID) {
		return appErrors.ErrForbidden
	}
	return nil
}
