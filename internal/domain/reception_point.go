package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PointStatus string

const (
	PointUnderModeration PointStatus = "UNDER_MODERATION"
	PointApproved        PointStatus = "APPROVED"
	PointRejected        PointStatus = "REJECTED"
)

func (s PointStatus) Valid() bool {
	switch s {
	case PointUnderModeration, PointApproved, PointRejected:
		return true
	}
	return false
}

type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

func (d DayOfWeek) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

var ErrMissingReceptionPoint = errors.New("reception point id is required")

// LocationGeography renders the PostGIS geography of a point from its
// longitude and latitude expressions. Radius queries and the GiST index on
// reception_points must render the same text or the planner will not use
// the index.
func LocationGeography(longitude, latitude string) string {
	return fmt.Sprintf("ST_SetSRID(ST_MakePoint(%s, %s), 4326)::geography", longitude, latitude)
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ReceptionPoint struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string      `gorm:"not null" json:"name"`
	Address     string      `gorm:"not null;uniqueIndex" json:"address"`
	Description string      `json:"description"`
	Latitude    float64     `gorm:"not null" json:"latitude"`
	Longitude   float64     `gorm:"not null" json:"longitude"`
	Status      PointStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	UserID      uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	User          *User              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	WorkSchedules []WorkSchedule     `gorm:"foreignKey:ReceptionPointID;constraint:OnDelete:CASCADE" json:"work_schedules,omitempty"`
	Images        []ReceptionImage   `gorm:"foreignKey:ReceptionPointID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	Moderations   []ModerationRecord `gorm:"foreignKey:ReceptionPointID;constraint:OnDelete:CASCADE" json:"moderations,omitempty"`
	Wastes        []Waste            `gorm:"many2many:reception_point_wastes;constraint:OnDelete:CASCADE" json:"wastes,omitempty"`
}

func (p *ReceptionPoint) GetID() uuid.UUID { return p.ID }

func (p *ReceptionPoint) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = PointUnderModeration
	}
	return nil
}

type WorkSchedule struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DayOfWeek        DayOfWeek `gorm:"type:varchar(16);not null" json:"day_of_week"`
	OpenTime         *string   `gorm:"type:varchar(5)" json:"open_time"`
	CloseTime        *string   `gorm:"type:varchar(5)" json:"close_time"`
	ReceptionPointID uuid.UUID `gorm:"type:uuid;not null;index" json:"reception_point_id"`
}

func NewWorkSchedule(pointID uuid.UUID, day DayOfWeek, open, close *string) (*WorkSchedule, error) {
	if pointID == uuid.Nil {
		return nil, ErrMissingReceptionPoint
	}
	return &WorkSchedule{DayOfWeek: day, OpenTime: open, CloseTime: close, ReceptionPointID: pointID}, nil
}

func (w *WorkSchedule) GetID() uuid.UUID { return w.ID }

func (w *WorkSchedule) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// ReceptionImage is the metadata row for a photo whose bytes live in the blob
// store under {reception_point_id}/images/{filename}.
type ReceptionImage struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Filename         string    `gorm:"not null" json:"filename"`
	ReceptionPointID uuid.UUID `gorm:"type:uuid;not null;index" json:"reception_point_id"`
	URL              string    `gorm:"-" json:"url,omitempty"`
}

func NewReceptionImage(pointID uuid.UUID, filename string) (*ReceptionImage, error) {
	if pointID == uuid.Nil {
		return nil, ErrMissingReceptionPoint
	}
	return &ReceptionImage{Filename: filename, ReceptionPointID: pointID}, nil
}

func (i *ReceptionImage) GetID() uuid.UUID { return i.ID }

func (i *ReceptionImage) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// ReceptionPointWaste links a point to a waste type it accepts.
type ReceptionPointWaste struct {
	ReceptionPointID uuid.UUID `gorm:"type:uuid;primaryKey" json:"reception_point_id"`
	WasteID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"waste_id"`
}

func (ReceptionPointWaste) TableName() string { return "reception_point_wastes" }
