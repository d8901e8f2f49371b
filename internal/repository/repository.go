package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is a typed collection over one entity table. It never commits:
// writes are staged on the handle it was built with, normally a unit of
// work's transaction.
type Repository[T any, P interface {
	*T
	domain.Entity
}] struct {
	db       *gorm.DB
	registry *Registry
	entity   *EntityInfo
	identity *IdentityMap
	typ      reflect.Type
}

func NewRepository[T any, P interface {
	*T
	domain.Entity
}](db *gorm.DB, reg *Registry, identity *IdentityMap) (*Repository[T, P], error) {
	var zero T
	entity, err := reg.Lookup(&zero)
	if err != nil {
		return nil, err
	}
	return &Repository[T, P]{
		db:       db,
		registry: reg,
		entity:   entity,
		identity: identity,
		typ:      reflect.TypeOf(zero),
	}, nil
}

func (r *Repository[T, P]) Spec(q Query) (*Spec, error) {
	return compile(r.registry.db, r.entity, q)
}

// GetByID loads one entity. Without eager loads an entity already tracked by
// the unit of work is returned as is.
func (r *Repository[T, P]) GetByID(ctx context.Context, id uuid.UUID, preload ...string) (P, error) {
	if len(preload) == 0 {
		if v, ok := r.identity.get(r.typ, id); ok {
			return v.(P), nil
		}
	}
	spec, err := r.Spec(Query{Preload: preload})
	if err != nil {
		return nil, err
	}

	var out T
	err = spec.Apply(r.db.WithContext(ctx)).
		Where(clause.Eq{Column: clause.Column{Table: r.entity.Table, Name: r.entity.PrimaryKey}, Value: id}).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("%s %s not found", r.entity.Label, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.entity.Label, err)
	}
	p := P(&out)
	r.identity.put(r.typ, id, p)
	return p, nil
}

// GetAll returns every entity matching q.
func (r *Repository[T, P]) GetAll(ctx context.Context, q Query) ([]T, error) {
	spec, err := r.Spec(q)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := spec.Apply(r.db.WithContext(ctx).Model(new(T))).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", r.entity.Label, err)
	}
	for i := range out {
		p := P(&out[i])
		r.identity.put(r.typ, p.GetID(), p)
	}
	return out, nil
}

// Count returns how many entities match q, ignoring limit and offset.
func (r *Repository[T, P]) Count(ctx context.Context, q Query) (int64, error) {
	spec, err := r.Spec(q)
	if err != nil {
		return 0, err
	}
	n, err := spec.Count(r.db.WithContext(ctx).Model(new(T)))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.entity.Label, err)
	}
	return n, nil
}

// Add stages a new entity. Ids and defaults are filled in by the entity's
// create hook; associations are not cascaded.
func (r *Repository[T, P]) Add(ctx context.Context, entity P) (P, error) {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("add %s: %w", r.entity.Label, err)
	}
	r.identity.put(r.typ, entity.GetID(), entity)
	return entity, nil
}

// Update writes every column of entity. Associations are left alone.
func (r *Repository[T, P]) Update(ctx context.Context, entity P) error {
	if entity.GetID() == uuid.Nil {
		return apperr.Validation("%s has no id", r.entity.Label)
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(entity).Error; err != nil {
		return fmt.Errorf("update %s: %w", r.entity.Label, err)
	}
	r.identity.put(r.typ, entity.GetID(), entity)
	return nil
}

// Delete removes entity together with its owned has-one/has-many rows and
// many-to-many links.
func (r *Repository[T, P]) Delete(ctx context.Context, entity P) error {
	res := r.db.WithContext(ctx).Select(clause.Associations).Delete(entity)
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", r.entity.Label, res.Error)
	}
	r.identity.remove(r.typ, entity.GetID())
	if res.RowsAffected == 0 {
		return apperr.NotFound("%s %s not found", r.entity.Label, entity.GetID())
	}
	return nil
}
