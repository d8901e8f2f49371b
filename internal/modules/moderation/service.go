// Package moderation exposes the audit trail of reception point status
// decisions. Records are written by the reception point service and never
// changed afterwards.
package moderation

import (
	"context"

	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/logger"
	"ecos/internal/repository"

	"github.com/google/uuid"
)

// DefaultEagerLoads are attached to every read.
var DefaultEagerLoads = []string{"user", "reception_point"}

type Service struct {
	uow *repository.Manager
	log *logger.Logger
}

func NewService(uow *repository.Manager, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{uow: uow, log: log.With("service", "ModerationService")}
}

// List returns matching records, newest decision first unless q orders
// otherwise.
func (s *Service) List(ctx context.Context, q repository.Query) ([]domain.ModerationRecord, int64, error) {
	q = q.With(DefaultEagerLoads...)
	if len(q.OrderBy) == 0 {
		q.OrderBy = []repository.Order{{Field: "verification_date", Desc: true}}
	}

	r, err := s.uow.Reader()
	if err != nil {
		return nil, 0, apperr.Internal("failed to list moderations", err)
	}
	items, err := r.Moderations.GetAll(ctx, q)
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	total, err := r.Moderations.Count(ctx, q)
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ModerationRecord, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, apperr.Internal("failed to load moderation", err)
	}
	m, err := r.Moderations.GetByID(ctx, id, DefaultEagerLoads...)
	if err != nil {
		return nil, s.readErr(err)
	}
	return m, nil
}

func (s *Service) readErr(err error) error {
	if apperr.Passthrough(err) {
		return err
	}
	s.log.Error("moderation read failed", "error", err)
	return apperr.Internal("failed to load moderations", err)
}
