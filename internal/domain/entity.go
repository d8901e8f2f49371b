package domain

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity is anything the generic repository can store: a gorm model keyed by a UUID.
type Entity interface {
	GetID() uuid.UUID
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model in migration order. The query registry is
// built from the same list.
func All() []any {
	return []any{
		&User{},
		&UserImage{},
		&Waste{},
		&WasteTranslation{},
		&ReceptionPoint{},
		&WorkSchedule{},
		&ReceptionImage{},
		&ReceptionPointWaste{},
		&ModerationRecord{},
		&AccrualEntry{},
	}
}

// SetupJoinTables registers custom join models with db. It must run before
// the schema is parsed for migration or query building.
func SetupJoinTables(db *gorm.DB) error {
	return db.SetupJoinTable(&ReceptionPoint{}, "Wastes", &ReceptionPointWaste{})
}
