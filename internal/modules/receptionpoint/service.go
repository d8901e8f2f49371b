package receptionpoint

import (
	"context"
	"errors"
	"fmt"

	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/logger"
	"ecos/internal/pkg/saga"
	"ecos/internal/pkg/validator"
	"ecos/internal/repository"
	"ecos/internal/storage"
	"ecos/internal/upload"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultEagerLoads are the relations returned with a single point.
var DefaultEagerLoads = []string{"images", "work_schedules", "wastes"}

const uploadParallelism = 4

type Service struct {
	uow            *repository.Manager
	store          storage.BlobStore
	bucket         string
	approvalPoints int
	log            *logger.Logger
}

func NewService(uow *repository.Manager, store storage.BlobStore, bucket string, approvalPoints int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		uow:            uow,
		store:          store,
		bucket:         bucket,
		approvalPoints: approvalPoints,
		log:            log.With("service", "ReceptionPointService"),
	}
}

func imagePrefix(pointID uuid.UUID) string {
	return pointID.String() + "/images"
}

// AddReceptionPoint creates a point with its schedule, waste types and
// photos. Photo bytes go to the blob store, everything else into one unit of
// work. On any failure after the unit starts the unit is rolled back and
// every photo whose upload was started is deleted again.
func (s *Service) AddReceptionPoint(ctx context.Context, ownerID uuid.UUID, req CreateRequest, files []upload.File) (_ *domain.ReceptionPoint, err error) {
	if len(files) == 0 {
		return nil, apperr.Validation("at least one image is required")
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	filenames := make([]string, len(files))
	for i, f := range files {
		filenames[i] = uuid.NewString() + "." + f.Ext
	}

	u, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to add reception point", err)
	}
	defer u.Close()

	comp := saga.New(s.log)
	defer func() {
		if err == nil {
			return
		}
		if rbErr := u.Rollback(); rbErr != nil {
			s.log.Warn("rollback failed", "error", rbErr)
		}
		if cErr := comp.Unwind(ctx); cErr != nil {
			s.log.Warn("image cleanup incomplete", "error", cErr)
		}
		if !apperr.Passthrough(err) {
			s.log.Error("add reception point failed", "owner_id", ownerID, "error", err)
			err = apperr.Internal("failed to add reception point", err)
		}
	}()

	if err := s.ensureWastesExist(ctx, u, req.WasteIDs); err != nil {
		return nil, err
	}

	point, err := u.ReceptionPoints.Add(ctx, &domain.ReceptionPoint{
		Name:        req.Name,
		Address:     req.Address,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		UserID:      ownerID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.uploadImages(ctx, comp, point.ID, files, filenames); err != nil {
		return nil, err
	}

	for _, name := range filenames {
		img, err := domain.NewReceptionImage(point.ID, name)
		if err != nil {
			return nil, err
		}
		if _, err := u.ReceptionImages.Add(ctx, img); err != nil {
			return nil, err
		}
	}
	for _, in := range req.WorkSchedule {
		ws, err := domain.NewWorkSchedule(point.ID, in.DayOfWeek, in.OpenTime, in.CloseTime)
		if err != nil {
			return nil, err
		}
		if _, err := u.WorkSchedules.Add(ctx, ws); err != nil {
			return nil, err
		}
	}
	for _, wasteID := range uniqueIDs(req.WasteIDs) {
		if err := u.PointWastes.AddWasteType(ctx, point.ID, wasteID); err != nil {
			return nil, err
		}
	}

	out, err := u.ReceptionPoints.GetByID(ctx, point.ID, DefaultEagerLoads...)
	if err != nil {
		return nil, err
	}
	if err := u.Commit(); err != nil {
		return nil, err
	}
	comp.Forget()

	s.log.Info("reception point added", "point_id", out.ID, "owner_id", ownerID, "images", len(filenames))
	s.resolveURLs(out)
	return out, nil
}

// uploadImages writes files in parallel. Each compensating delete is staged
// before its upload starts, so an upload that fails halfway is still undone.
func (s *Service) uploadImages(ctx context.Context, comp *saga.Saga, pointID uuid.UUID, files []upload.File, names []string) error {
	prefix := imagePrefix(pointID)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadParallelism)
	for i := range files {
		content, name := files[i].Content, names[i]
		comp.Stage("delete "+prefix+"/"+name, func(ctx context.Context) error {
			return s.store.Delete(ctx, s.bucket, prefix, name)
		})
		g.Go(func() error {
			if _, err := s.store.Upload(gctx, s.bucket, prefix, name, content); err != nil {
				return fmt.Errorf("upload %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) ensureWastesExist(ctx context.Context, u *repository.UnitOfWork, ids []uuid.UUID) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	n, err := u.Wastes.Count(ctx, repository.Query{Filters: []repository.Filter{repository.Eq("id", args...)}})
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return apperr.Validation("unknown waste type in waste_ids")
	}
	return nil
}

func validateCreate(req CreateRequest) error {
	if errs := validator.Validate(req); errs != nil {
		return apperr.ValidationFields("invalid reception point", errs)
	}
	seen := make(map[domain.DayOfWeek]bool, len(req.WorkSchedule))
	for i, ws := range req.WorkSchedule {
		field := fmt.Sprintf("work_schedule[%d]", i)
		if !ws.DayOfWeek.Valid() {
			return apperr.ValidationFields("invalid reception point", map[string]string{field + ".day_of_week": "oneof"})
		}
		if seen[ws.DayOfWeek] {
			return apperr.ValidationFields("invalid reception point", map[string]string{field + ".day_of_week": "unique"})
		}
		seen[ws.DayOfWeek] = true
		if (ws.OpenTime == nil) != (ws.CloseTime == nil) {
			return apperr.ValidationFields("invalid reception point", map[string]string{field: "open_time and close_time go together"})
		}
		if ws.OpenTime != nil && *ws.OpenTime >= *ws.CloseTime {
			return apperr.ValidationFields("invalid reception point", map[string]string{field + ".close_time": "gtfield"})
		}
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// UpdateStatus records a moderation decision. The point status, the
// moderation record and the owner's accrual are written in one unit.
func (s *Service) UpdateStatus(ctx context.Context, pointID uuid.UUID, moderator domain.Actor, req UpdateStatusRequest) (_ *domain.ReceptionPoint, err error) {
	if req.Status != domain.PointApproved && req.Status != domain.PointRejected {
		return nil, apperr.ValidationFields("invalid status", map[string]string{"status": "oneof=APPROVED REJECTED"})
	}
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.ValidationFields("invalid status", errs)
	}

	u, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to update status", err)
	}
	defer u.Close()
	defer func() {
		if err != nil && !apperr.Passthrough(err) {
			s.log.Error("update status failed", "point_id", pointID, "error", err)
			err = apperr.Internal("failed to update status", err)
		}
	}()

	point, err := u.ReceptionPoints.GetByID(ctx, pointID)
	if err != nil {
		return nil, err
	}
	point.Status = req.Status
	if err := u.ReceptionPoints.Update(ctx, point); err != nil {
		return nil, err
	}
	if _, err := u.Moderations.Add(ctx, &domain.ModerationRecord{
		Comment:          req.Comment,
		Status:           req.Status,
		UserID:           moderator.ID,
		ReceptionPointID: point.ID,
	}); err != nil {
		return nil, err
	}

	points := s.approvalPoints
	if req.Status == domain.PointRejected {
		points = 0
	}
	if _, err := u.Accruals.Add(ctx, &domain.AccrualEntry{
		Reward: domain.RewardRecyclePointAdd,
		Points: points,
		UserID: point.UserID,
	}); err != nil {
		return nil, err
	}

	out, err := u.ReceptionPoints.GetByID(ctx, pointID, DefaultEagerLoads...)
	if err != nil {
		return nil, err
	}
	if err := u.Commit(); err != nil {
		return nil, err
	}
	s.log.Info("reception point moderated", "point_id", pointID, "status", req.Status, "moderator_id", moderator.ID)
	s.resolveURLs(out)
	return out, nil
}

// DeleteReceptionPoint removes the point and its rows, then purges its images.
// Image cleanup is best-effort; leftovers are logged.
func (s *Service) DeleteReceptionPoint(ctx context.Context, pointID uuid.UUID, actor domain.Actor) error {
	err := s.uow.Do(ctx, func(u *repository.UnitOfWork) error {
		point, err := u.ReceptionPoints.GetByID(ctx, pointID)
		if err != nil {
			return err
		}
		if !actor.CanManage(point.UserID) {
			return apperr.Forbidden("you cannot delete this reception point")
		}
		return u.ReceptionPoints.Delete(ctx, point)
	})
	if err != nil {
		if apperr.Passthrough(err) {
			return err
		}
		s.log.Error("delete reception point failed", "point_id", pointID, "error", err)
		return apperr.Internal("failed to delete reception point", err)
	}

	if err := storage.DeletePrefix(context.WithoutCancel(ctx), s.store, s.bucket, pointID.String(), s.log); err != nil {
		s.log.Warn("reception point images not fully removed", "point_id", pointID, "error", err)
	}
	s.log.Info("reception point deleted", "point_id", pointID)
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReceptionPoint, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, apperr.Internal("failed to load reception point", err)
	}
	p, err := r.ReceptionPoints.GetByID(ctx, id, DefaultEagerLoads...)
	if err != nil {
		return nil, s.readErr(err)
	}
	s.resolveURLs(p)
	return p, nil
}

// List returns one page of points matching q and the total match count.
func (s *Service) List(ctx context.Context, q repository.Query, radius *RadiusFilter) ([]domain.ReceptionPoint, int64, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, 0, apperr.Internal("failed to list reception points", err)
	}

	var (
		items []domain.ReceptionPoint
		total int64
	)
	if radius != nil {
		items, err = r.ReceptionPoints.GetWithinRadius(ctx, radius.Center, radius.Meters, q)
		if err == nil {
			total, err = r.ReceptionPoints.CountWithinRadius(ctx, radius.Center, radius.Meters, q)
		}
	} else {
		items, err = r.ReceptionPoints.GetAll(ctx, q)
		if err == nil {
			total, err = r.ReceptionPoints.Count(ctx, q)
		}
	}
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	for i := range items {
		s.resolveURLs(&items[i])
	}
	return items, total, nil
}

// AddWasteType links a waste type to a point the actor manages.
func (s *Service) AddWasteType(ctx context.Context, pointID, wasteID uuid.UUID, actor domain.Actor) error {
	return s.changeWasteType(ctx, pointID, wasteID, actor, func(u *repository.UnitOfWork) error {
		return u.PointWastes.AddWasteType(ctx, pointID, wasteID)
	})
}

func (s *Service) RemoveWasteType(ctx context.Context, pointID, wasteID uuid.UUID, actor domain.Actor) error {
	return s.changeWasteType(ctx, pointID, wasteID, actor, func(u *repository.UnitOfWork) error {
		return u.PointWastes.RemoveWasteType(ctx, pointID, wasteID)
	})
}

func (s *Service) changeWasteType(ctx context.Context, pointID, wasteID uuid.UUID, actor domain.Actor, change func(u *repository.UnitOfWork) error) error {
	err := s.uow.Do(ctx, func(u *repository.UnitOfWork) error {
		point, err := u.ReceptionPoints.GetByID(ctx, pointID)
		if err != nil {
			return err
		}
		if !actor.CanManage(point.UserID) {
			return apperr.Forbidden("you cannot change this reception point")
		}
		if _, err := u.Wastes.GetByID(ctx, wasteID); err != nil {
			return err
		}
		return change(u)
	})
	if err != nil && !apperr.Passthrough(err) {
		s.log.Error("change waste type failed", "point_id", pointID, "waste_id", wasteID, "error", err)
		return apperr.Internal("failed to change waste types", err)
	}
	return err
}

func (s *Service) readErr(err error) error {
	if errors.Is(err, repository.ErrSpatialUnsupported) {
		return apperr.New(apperr.KindInvalidFilter, "radius search is not supported by this deployment", err)
	}
	if apperr.Passthrough(err) {
		return err
	}
	s.log.Error("reception point read failed", "error", err)
	return apperr.Internal("failed to load reception points", err)
}

func (s *Service) resolveURLs(p *domain.ReceptionPoint) {
	prefix := imagePrefix(p.ID)
	for i := range p.Images {
		p.Images[i].URL = s.store.URL(s.bucket, prefix, p.Images[i].Filename)
	}
}
