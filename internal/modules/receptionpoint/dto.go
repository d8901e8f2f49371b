package receptionpoint

import (
	"ecos/internal/domain"

	"github.com/google/uuid"
)

type ScheduleInput struct {
	DayOfWeek domain.DayOfWeek `json:"day_of_week" validate:"required"`
	OpenTime  *string          `json:"open_time" validate:"omitempty,clock"`
	CloseTime *string          `json:"close_time" validate:"omitempty,clock"`
}

// CreateRequest is the JSON "data" part of the create form.
type CreateRequest struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Address      string          `json:"address" validate:"required,max=255"`
	Description  string          `json:"description" validate:"max=2000"`
	Latitude     float64         `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64         `json:"longitude" validate:"gte=-180,lte=180"`
	WorkSchedule []ScheduleInput `json:"work_schedule" validate:"max=7,dive"`
	WasteIDs     []uuid.UUID     `json:"waste_ids" validate:"max=100"`
}

type UpdateStatusRequest struct {
	Status  domain.PointStatus `json:"status" validate:"required"`
	Comment *string            `json:"comment" validate:"omitempty,max=2000"`
}

// RadiusFilter restricts a listing to points within Meters of Center.
type RadiusFilter struct {
	Center domain.GeoPoint
	Meters float64
}
