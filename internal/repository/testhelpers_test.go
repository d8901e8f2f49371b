package repository

import (
	"context"
	"path/filepath"
	"testing"

	"ecos/internal/database"
	"ecos/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Manager) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := database.Connect(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	reg, err := NewRegistry(db, domain.All()...)
	require.NoError(t, err)
	return db, NewManager(db, reg, nil)
}

type fixture struct {
	owner  *domain.User
	pet    *domain.Waste
	glass  *domain.Waste
	hub    *domain.ReceptionPoint
	corner *domain.ReceptionPoint
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	f := fixture{
		owner: &domain.User{Email: "owner@example.com"},
		pet:   &domain.Waste{AbbreviatedName: "PET"},
		glass: &domain.Waste{AbbreviatedName: "GLS"},
	}
	require.NoError(t, db.Create(f.owner).Error)
	require.NoError(t, db.Create(f.pet).Error)
	require.NoError(t, db.Create(f.glass).Error)
	require.NoError(t, db.Create(&domain.WasteTranslation{WasteID: f.pet.ID, LanguageCode: domain.LanguageEN, Name: "Plastic"}).Error)

	f.hub = &domain.ReceptionPoint{Name: "Central Hub", Address: "1 Main St", Latitude: 43.2, Longitude: 76.9, UserID: f.owner.ID}
	f.corner = &domain.ReceptionPoint{Name: "Corner Drop", Address: "7 Side St", Latitude: 43.3, Longitude: 76.8, UserID: f.owner.ID, Status: domain.PointApproved}
	require.NoError(t, db.Omit("Wastes", "User", "WorkSchedules", "Images", "Moderations").Create(f.hub).Error)
	require.NoError(t, db.Omit("Wastes", "User", "WorkSchedules", "Images", "Moderations").Create(f.corner).Error)

	for _, w := range []uuid.UUID{f.pet.ID, f.glass.ID} {
		require.NoError(t, db.Create(&domain.ReceptionPointWaste{ReceptionPointID: f.hub.ID, WasteID: w}).Error)
	}
	require.NoError(t, db.Create(&domain.ReceptionPointWaste{ReceptionPointID: f.corner.ID, WasteID: f.glass.ID}).Error)
	require.NoError(t, db.Create(&domain.WorkSchedule{ReceptionPointID: f.hub.ID, DayOfWeek: domain.Monday}).Error)
	require.NoError(t, db.Create(&domain.ReceptionImage{ReceptionPointID: f.hub.ID, Filename: "a.png"}).Error)
	return f
}

func reader(t *testing.T, m *Manager) *UnitOfWork {
	t.Helper()
	u, err := m.Reader()
	require.NoError(t, err)
	return u
}

var bg = context.Background()
