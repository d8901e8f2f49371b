package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	*Repository[domain.User, *domain.User]
}

func NewUserRepository(db *gorm.DB, reg *Registry, identity *IdentityMap) (*UserRepository, error) {
	base, err := NewRepository[domain.User](db, reg, identity)
	if err != nil {
		return nil, err
	}
	return &UserRepository{Repository: base}, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByVerificationCode looks a user up by the hash of their verification token.
func (r *UserRepository) GetByVerificationCode(ctx context.Context, codeHash string) (*domain.User, error) {
	return r.first(ctx, "verification_code = ?", codeHash)
}

func (r *UserRepository) first(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where(cond, arg).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	r.identity.put(r.typ, u.ID, &u)
	return &u, nil
}

type AccrualRepository struct {
	*Repository[domain.AccrualEntry, *domain.AccrualEntry]
}

func NewAccrualRepository(db *gorm.DB, reg *Registry, identity *IdentityMap) (*AccrualRepository, error) {
	base, err := NewRepository[domain.AccrualEntry](db, reg, identity)
	if err != nil {
		return nil, err
	}
	return &AccrualRepository{Repository: base}, nil
}

// ListByUser returns a user's ledger, newest first.
func (r *AccrualRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.AccrualEntry, error) {
	return r.GetAll(ctx, Query{
		Filters: []Filter{Eq("user_id", userID)},
		OrderBy: []Order{{Field: "created_at", Desc: true}},
	})
}

func (r *AccrualRepository) TotalPoints(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&domain.AccrualEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return total, nil
}
