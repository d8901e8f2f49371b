package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecos/internal/domain"
	"ecos/internal/pkg/logger"

	"gorm.io/gorm"
)

// Manager opens units of work on one database.
type Manager struct {
	db       *gorm.DB
	registry *Registry
	log      *logger.Logger
}

func NewManager(db *gorm.DB, registry *Registry, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{db: db, registry: registry, log: log.With("component", "uow")}
}

func (m *Manager) Registry() *Registry { return m.registry }

// Reader returns repositories bound to the plain connection, for reads that
// need no transaction.
func (m *Manager) Reader() (*UnitOfWork, error) {
	u, err := m.build(m.db, nil)
	if err != nil {
		return nil, err
	}
	u.finished = true
	return u, nil
}

// UnitOfWork is one database transaction plus a repository per entity type,
// all sharing an identity map. Callers defer Close; it rolls back unless
// Commit succeeded.
type UnitOfWork struct {
	tx       *gorm.DB
	identity *IdentityMap
	log      *logger.Logger
	finished bool

	ReceptionPoints   *ReceptionPointRepository
	WorkSchedules     *Repository[domain.WorkSchedule, *domain.WorkSchedule]
	ReceptionImages   *Repository[domain.ReceptionImage, *domain.ReceptionImage]
	PointWastes       *PointWasteRepository
	Wastes            *Repository[domain.Waste, *domain.Waste]
	WasteTranslations *Repository[domain.WasteTranslation, *domain.WasteTranslation]
	Users             *UserRepository
	UserImages        *Repository[domain.UserImage, *domain.UserImage]
	Moderations       *Repository[domain.ModerationRecord, *domain.ModerationRecord]
	Accruals          *AccrualRepository
}

// Begin starts a transaction. The transaction is bound to ctx: if ctx is
// cancelled the driver rolls it back.
func (m *Manager) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	u, err := m.build(tx, NewIdentityMap())
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return u, nil
}

// Do runs fn inside a unit of work and commits when fn returns nil.
func (m *Manager) Do(ctx context.Context, fn func(u *UnitOfWork) error) error {
	u, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	defer u.Close()
	if err := fn(u); err != nil {
		return err
	}
	return u.Commit()
}

func (m *Manager) build(tx *gorm.DB, identity *IdentityMap) (*UnitOfWork, error) {
	u := &UnitOfWork{tx: tx, identity: identity, log: m.log}
	reg := m.registry
	var err error
	if u.ReceptionPoints, err = NewReceptionPointRepository(tx, reg, identity); err != nil {
		return nil, err
	}
	if u.WorkSchedules, err = NewRepository[domain.WorkSchedule](tx, reg, identity); err != nil {
		return nil, err
	}
	if u.ReceptionImages, err = NewRepository[domain.ReceptionImage](tx, reg, identity); err != nil {
		return nil, err
	}
	if u.Wastes, err = NewRepository[domain.Waste](tx, reg, identity); err != nil {
		return nil, err
	}
	if u.WasteTranslations, err = NewRepository[domain.WasteTranslation](tx, reg, identity); err != nil {
		return nil, err
	}
	if u.Users, err = NewUserRepository(tx, reg, identity); err != nil {
		return nil, err
	}
	if u.UserImages, err = NewRepository[domain.UserImage](tx, reg, identity); err != nil {
		return nil, err
	}
	if u.Moderations, err = NewRepository[domain.ModerationRecord](tx, reg, identity); err != nil {
		return nil, err
	}
	if u.Accruals, err = NewAccrualRepository(tx, reg, identity); err != nil {
		return nil, err
	}
	u.PointWastes = NewPointWasteRepository(tx)
	return u, nil
}

// Identity exposes the unit's identity map.
func (u *UnitOfWork) Identity() *IdentityMap { return u.identity }

func (u *UnitOfWork) Commit() error {
	if u.finished {
		return errors.New("unit of work already finished")
	}
	if err := u.tx.Commit().Error; err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			u.log.Warn("rollback after failed commit", "error", rbErr)
		}
		return fmt.Errorf("commit: %w", err)
	}
	u.finished = true
	return nil
}

// Rollback discards every staged write. The identity map is evicted first;
// the transaction rollback runs from a deferred call so it still happens if
// an eviction hook panics. A transaction the driver already ended is not an
// error.
func (u *UnitOfWork) Rollback() (err error) {
	if u.finished {
		return nil
	}
	u.finished = true
	defer func() {
		if rbErr := u.tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			u.log.Warn("rollback failed", "error", rbErr)
			err = fmt.Errorf("rollback: %w", rbErr)
		}
	}()
	u.identity.Evict()
	return nil
}

// Close rolls back unless the unit was committed. Safe to call repeatedly.
func (u *UnitOfWork) Close() error {
	return u.Rollback()
}
