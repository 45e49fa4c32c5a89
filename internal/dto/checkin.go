package dto

import (
	"time"

	"github.com/noah-isme/lms-attendance-api/internal/models"
)

// CheckinRequest is a student's claim against a presented code.
type CheckinRequest struct {
	Code       string           `json:"code" validate:"required,max=128"`
	Location   *models.GeoPoint `json:"location"`
	ClientTime *time.Time       `json:"clientTime"`
}

// CheckinResult carries the stored record and any warnings raised after the write.
type CheckinResult struct {
	Record   *models.CheckinRecord `json:"record"`
	Warnings []string              `json:"-"`
}

// OverrideRequest is an instructor correction of a student's status.
type OverrideRequest struct {
	Status string  `json:"status" validate:"required,attendance_status"`
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// OverrideResult pairs the updated record with the audit entry written for it.
type OverrideResult struct {
	Record *models.CheckinRecord       `json:"record"`
	Edit   *models.AttendanceEditEntry `json:"edit"`
}
