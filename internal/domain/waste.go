package domain

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LanguageCode string

const (
	LanguageRU LanguageCode = "ru"
	LanguageEN LanguageCode = "en"
	LanguageKK LanguageCode = "kk"
)

func (l LanguageCode) Valid() bool {
	return l == LanguageRU || l == LanguageEN || l == LanguageKK
}

type Waste struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AbbreviatedName string    `gorm:"not null;uniqueIndex" json:"abbreviated_name"`
	ImageURL        *string   `json:"image_url"`

	Translations []WasteTranslation `gorm:"foreignKey:WasteID;constraint:OnDelete:CASCADE" json:"translations,omitempty"`
}

func (w *Waste) GetID() uuid.UUID { return w.ID }

func (w *Waste) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

type WasteTranslation struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	WasteID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_waste_translation_language" json:"waste_id"`
	LanguageCode LanguageCode `gorm:"type:varchar(2);not null;uniqueIndex:idx_waste_translation_language" json:"language_code"`
	Name         string       `gorm:"not null" json:"name"`
	Description  string       `json:"description"`
}

func (t *WasteTranslation) GetID() uuid.UUID { return t.ID }

func (t *WasteTranslation) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
