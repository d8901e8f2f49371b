// Package accrual exposes the points ledger. Entries are appended when a
// moderator decides on a reception point.
package accrual

import (
	"context"

	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/logger"
	"ecos/internal/repository"

	"github.com/google/uuid"
)

type Service struct {
	uow *repository.Manager
	log *logger.Logger
}

func NewService(uow *repository.Manager, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{uow: uow, log: log.With("service", "AccrualService")}
}

// Ledger is one user's history and its sum.
type Ledger struct {
	Entries     []domain.AccrualEntry `json:"entries"`
	TotalPoints int64                 `json:"total_points"`
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) (*Ledger, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, apperr.Internal("failed to load accrual history", err)
	}
	entries, err := r.Accruals.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.readErr(err)
	}
	total, err := r.Accruals.TotalPoints(ctx, userID)
	if err != nil {
		return nil, s.readErr(err)
	}
	return &Ledger{Entries: entries, TotalPoints: total}, nil
}

func (s *Service) List(ctx context.Context, q repository.Query) ([]domain.AccrualEntry, int64, error) {
	if len(q.OrderBy) == 0 {
		q.OrderBy = []repository.Order{{Field: "created_at", Desc: true}}
	}
	r, err := s.uow.Reader()
	if err != nil {
		return nil, 0, apperr.Internal("failed to list accrual history", err)
	}
	items, err := r.Accruals.GetAll(ctx, q)
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	total, err := r.Accruals.Count(ctx, q)
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	return items, total, nil
}

// Get returns one entry. Users may read only their own entries.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.AccrualEntry, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, apperr.Internal("failed to load accrual entry", err)
	}
	e, err := r.Accruals.GetByID(ctx, id)
	if err != nil {
		return nil, s.readErr(err)
	}
	if !actor.CanManage(e.UserID) {
		return nil, apperr.NotFound("accrual entry %s not found", id)
	}
	return e, nil
}

func (s *Service) readErr(err error) error {
	if apperr.Passthrough(err) {
		return err
	}
	s.log.Error("accrual read failed", "error", err)
	return apperr.Internal("failed to load accrual history", err)
}
