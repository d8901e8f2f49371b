package repository

import (
	"context"
	"errors"
	"fmt"

	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"
	"ecos/internal/sqlerr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSpatialUnsupported is returned for radius queries on a store without a
// native distance predicate. Radius filtering is never done in memory.
var ErrSpatialUnsupported = errors.New("radius search requires a PostGIS database")

type ReceptionPointRepository struct {
	*Repository[domain.ReceptionPoint, *domain.ReceptionPoint]
}

func NewReceptionPointRepository(db *gorm.DB, reg *Registry, identity *IdentityMap) (*ReceptionPointRepository, error) {
	base, err := NewRepository[domain.ReceptionPoint](db, reg, identity)
	if err != nil {
		return nil, err
	}
	return &ReceptionPointRepository{Repository: base}, nil
}

// GetWithinRadius returns the points matching q whose location is within
// radiusMeters of center, measured on the WGS84 spheroid.
func (r *ReceptionPointRepository) GetWithinRadius(ctx context.Context, center domain.GeoPoint, radiusMeters float64, q Query) ([]domain.ReceptionPoint, error) {
	spec, err := r.radiusSpec(center, radiusMeters, q)
	if err != nil {
		return nil, err
	}
	var out []domain.ReceptionPoint
	tx := spec.Apply(r.db.WithContext(ctx).Model(&domain.ReceptionPoint{}))
	if err := withinRadius(tx, r.entity.Table, center, radiusMeters).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("radius search: %w", err)
	}
	return out, nil
}

func (r *ReceptionPointRepository) CountWithinRadius(ctx context.Context, center domain.GeoPoint, radiusMeters float64, q Query) (int64, error) {
	spec, err := r.radiusSpec(center, radiusMeters, q)
	if err != nil {
		return 0, err
	}
	tx := withinRadius(r.db.WithContext(ctx).Model(&domain.ReceptionPoint{}), r.entity.Table, center, radiusMeters)
	return spec.Count(tx)
}

func (r *ReceptionPointRepository) radiusSpec(center domain.GeoPoint, radiusMeters float64, q Query) (*Spec, error) {
	if r.db.Dialector.Name() != "postgres" {
		return nil, ErrSpatialUnsupported
	}
	if err := ValidateRadius(center, radiusMeters); err != nil {
		return nil, err
	}
	return r.Spec(q)
}

// ValidateRadius checks the coordinate ranges and that the radius is positive.
func ValidateRadius(center domain.GeoPoint, radiusMeters float64) error {
	if radiusMeters <= 0 {
		return apperr.InvalidFilter("radius must be positive")
	}
	if center.Latitude < -90 || center.Latitude > 90 {
		return apperr.InvalidFilter("latitude must be between -90 and 90")
	}
	if center.Longitude < -180 || center.Longitude > 180 {
		return apperr.InvalidFilter("longitude must be between -180 and 180")
	}
	return nil
}

func withinRadius(tx *gorm.DB, table string, center domain.GeoPoint, radiusMeters float64) *gorm.DB {
	return tx.Where(clause.Expr{
		SQL: "ST_DWithin(" + domain.LocationGeography("?", "?") + ", " + domain.LocationGeography("?", "?") + ", ?)",
		Vars: []any{
			clause.Column{Table: table, Name: "longitude"},
			clause.Column{Table: table, Name: "latitude"},
			center.Longitude, center.Latitude, radiusMeters,
		},
	})
}

// PointWasteRepository manages the reception point / waste type links.
type PointWasteRepository struct {
	db *gorm.DB
}

func NewPointWasteRepository(db *gorm.DB) *PointWasteRepository {
	return &PointWasteRepository{db: db}
}

// AddWasteType links wasteID to pointID. A duplicate link is a Conflict.
func (r *PointWasteRepository) AddWasteType(ctx context.Context, pointID, wasteID uuid.UUID) error {
	link := &domain.ReceptionPointWaste{ReceptionPointID: pointID, WasteID: wasteID}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if sqlerr.IsUniqueViolation(err) {
			return apperr.Conflict("waste type %s is already linked to reception point %s", wasteID, pointID)
		}
		return fmt.Errorf("add waste type: %w", err)
	}
	return nil
}

func (r *PointWasteRepository) RemoveWasteType(ctx context.Context, pointID, wasteID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where(&domain.ReceptionPointWaste{ReceptionPointID: pointID, WasteID: wasteID}).
		Delete(&domain.ReceptionPointWaste{})
	if res.Error != nil {
		return fmt.Errorf("remove waste type: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("waste type %s is not linked to reception point %s", wasteID, pointID)
	}
	return nil
}

// UnlinkWaste drops every link to wasteID and reports how many were removed.
func (r *PointWasteRepository) UnlinkWaste(ctx context.Context, wasteID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("waste_id = ?", wasteID).Delete(&domain.ReceptionPointWaste{})
	if res.Error != nil {
		return 0, fmt.Errorf("unlink waste type: %w", res.Error)
	}
	return res.RowsAffected, nil
}
