package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User mirrors an identity-provider account. ID is the provider subject.
type User struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email            string    `gorm:"not null;uniqueIndex" json:"email"`
	EmailVerified    bool      `gorm:"not null;default:false" json:"email_verified"`
	VerificationCode *string   `gorm:"index" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Images          []UserImage      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	ReceptionPoints []ReceptionPoint `gorm:"foreignKey:UserID" json:"reception_points,omitempty"`
	Accruals        []AccrualEntry   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"accrual_history,omitempty"`
}

func (u *User) GetID() uuid.UUID { return u.ID }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

type UserImage struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Filename string    `gorm:"not null" json:"filename"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	URL      string    `gorm:"-" json:"url,omitempty"`
}

func (i *UserImage) GetID() uuid.UUID { return i.ID }

func (i *UserImage) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
