package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModerationRecord is an append-only audit row written for every status decision.
type ModerationRecord struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Comment          *string     `json:"comment"`
	Status           PointStatus `gorm:"type:varchar(32);not null" json:"status"`
	UserID           uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	ReceptionPointID uuid.UUID   `gorm:"type:uuid;not null;index" json:"reception_point_id"`
	VerificationDate time.Time   `gorm:"not null" json:"verification_date"`

	User           *User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	ReceptionPoint *ReceptionPoint `gorm:"foreignKey:ReceptionPointID" json:"reception_point,omitempty"`
}

func (ModerationRecord) TableName() string { return "moderations" }

func (m *ModerationRecord) GetID() uuid.UUID { return m.ID }

func (m *ModerationRecord) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	if m.VerificationDate.IsZero() {
		m.VerificationDate = time.Now().UTC()
	}
	return nil
}

type RewardType string

const RewardRecyclePointAdd RewardType = "RECYCLE_POINT_ADD"

// AccrualEntry is an append-only points ledger row.
type AccrualEntry struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Reward    RewardType `gorm:"type:varchar(32);not null" json:"reward"`
	Points    int        `gorm:"not null" json:"points"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (AccrualEntry) TableName() string { return "accrual_histories" }

func (a *AccrualEntry) GetID() uuid.UUID { return a.ID }

func (a *AccrualEntry) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
