package waste

import (
	"context"
	"strings"

	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/logger"
	"ecos/internal/pkg/saga"
	"ecos/internal/pkg/validator"
	"ecos/internal/repository"
	"ecos/internal/sqlerr"
	"ecos/internal/storage"
	"ecos/internal/upload"

	"github.com/google/uuid"
)

type Service struct {
	uow    *repository.Manager
	store  storage.BlobStore
	bucket string
	log    *logger.Logger
}

func NewService(uow *repository.Manager, store storage.BlobStore, bucket string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{uow: uow, store: store, bucket: bucket, log: log.With("service", "WasteService")}
}

func imagePrefix(id uuid.UUID) string { return id.String() + "/image" }

// Create adds a waste type. The optional image is stored under
// {waste-id}/image and its URL saved on the row.
func (s *Service) Create(ctx context.Context, req CreateRequest, image *upload.File) (_ *domain.Waste, err error) {
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.ValidationFields("invalid waste type", errs)
	}

	u, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to add waste type", err)
	}
	defer u.Close()

	comp := saga.New(s.log)
	defer func() {
		if err == nil {
			return
		}
		_ = u.Rollback()
		if cErr := comp.Unwind(ctx); cErr != nil {
			s.log.Warn("waste image cleanup incomplete", "error", cErr)
		}
		switch {
		case sqlerr.IsUniqueViolation(err):
			err = apperr.Conflict("%s", sqlerr.Describe(err, "waste type"))
		case !apperr.Passthrough(err):
			s.log.Error("add waste type failed", "error", err)
			err = apperr.Internal("failed to add waste type", err)
		}
	}()

	w, err := u.Wastes.Add(ctx, &domain.Waste{AbbreviatedName: strings.ToUpper(strings.TrimSpace(req.AbbreviatedName))})
	if err != nil {
		return nil, err
	}

	if image != nil {
		prefix := imagePrefix(w.ID)
		name := uuid.NewString() + "." + image.Ext
		comp.Stage("delete "+prefix+"/"+name, func(ctx context.Context) error {
			return s.store.Delete(ctx, s.bucket, prefix, name)
		})
		url, err := s.store.Upload(ctx, s.bucket, prefix, name, image.Content)
		if err != nil {
			return nil, err
		}
		w.ImageURL = &url
		if err := u.Wastes.Update(ctx, w); err != nil {
			return nil, err
		}
	}

	if err := u.Commit(); err != nil {
		return nil, err
	}
	comp.Forget()
	s.log.Info("waste type added", "waste_id", w.ID, "abbreviated_name", w.AbbreviatedName)
	return w, nil
}

func (s *Service) List(ctx context.Context, q repository.Query) ([]domain.Waste, int64, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, 0, apperr.Internal("failed to list waste types", err)
	}
	items, err := r.Wastes.GetAll(ctx, q)
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	total, err := r.Wastes.Count(ctx, q)
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Waste, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, apperr.Internal("failed to load waste type", err)
	}
	w, err := r.Wastes.GetByID(ctx, id, "translations")
	if err != nil {
		return nil, s.readErr(err)
	}
	return w, nil
}

// Delete removes the waste type, its translations and point links, then its
// image.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.uow.Do(ctx, func(u *repository.UnitOfWork) error {
		w, err := u.Wastes.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := u.PointWastes.UnlinkWaste(ctx, id); err != nil {
			return err
		}
		return u.Wastes.Delete(ctx, w)
	})
	if err != nil {
		if apperr.Passthrough(err) {
			return err
		}
		s.log.Error("delete waste type failed", "waste_id", id, "error", err)
		return apperr.Internal("failed to delete waste type", err)
	}
	if err := storage.DeletePrefix(context.WithoutCancel(ctx), s.store, s.bucket, imagePrefix(id), s.log); err != nil {
		s.log.Warn("waste image not removed", "waste_id", id, "error", err)
	}
	s.log.Info("waste type deleted", "waste_id", id)
	return nil
}

// AddTranslation adds the name of a waste type in one language. Each
// language appears at most once per waste type.
func (s *Service) AddTranslation(ctx context.Context, wasteID uuid.UUID, req TranslationRequest) (*domain.WasteTranslation, error) {
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.ValidationFields("invalid translation", errs)
	}
	var out *domain.WasteTranslation
	err := s.uow.Do(ctx, func(u *repository.UnitOfWork) error {
		if _, err := u.Wastes.GetByID(ctx, wasteID); err != nil {
			return err
		}
		t, err := u.WasteTranslations.Add(ctx, &domain.WasteTranslation{
			WasteID:      wasteID,
			LanguageCode: req.LanguageCode,
			Name:         req.Name,
			Description:  req.Description,
		})
		out = t
		return err
	})
	switch {
	case err == nil:
		return out, nil
	case sqlerr.IsUniqueViolation(err):
		return nil, apperr.Conflict("waste type already has a %s translation", req.LanguageCode)
	case sqlerr.IsForeignKeyViolation(err):
		return nil, apperr.NotFound("waste type %s not found", wasteID)
	case apperr.Passthrough(err):
		return nil, err
	default:
		s.log.Error("add translation failed", "waste_id", wasteID, "error", err)
		return nil, apperr.Internal("failed to add waste translation", err)
	}
}

// UpdateTranslation applies a partial update. Moving a translation to a
// language the waste type already has is a Conflict.
func (s *Service) UpdateTranslation(ctx context.Context, id uuid.UUID, req TranslationUpdateRequest) (*domain.WasteTranslation, error) {
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.ValidationFields("invalid translation", errs)
	}
	var out *domain.WasteTranslation
	err := s.uow.Do(ctx, func(u *repository.UnitOfWork) error {
		t, err := u.WasteTranslations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.LanguageCode != nil {
			t.LanguageCode = *req.LanguageCode
		}
		if req.Name != nil {
			t.Name = *req.Name
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		out = t
		return u.WasteTranslations.Update(ctx, t)
	})
	switch {
	case err == nil:
		return out, nil
	case sqlerr.IsUniqueViolation(err):
		return nil, apperr.Conflict("waste type already has a %s translation", out.LanguageCode)
	case apperr.Passthrough(err):
		return nil, err
	default:
		s.log.Error("update translation failed", "translation_id", id, "error", err)
		return nil, apperr.Internal("failed to update waste translation", err)
	}
}

func (s *Service) ListTranslations(ctx context.Context, q repository.Query) ([]domain.WasteTranslation, int64, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, 0, apperr.Internal("failed to list waste translations", err)
	}
	items, err := r.WasteTranslations.GetAll(ctx, q)
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	total, err := r.WasteTranslations.Count(ctx, q)
	if err != nil {
		return nil, 0, s.readErr(err)
	}
	return items, total, nil
}

func (s *Service) GetTranslation(ctx context.Context, id uuid.UUID) (*domain.WasteTranslation, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, apperr.Internal("failed to load waste translation", err)
	}
	t, err := r.WasteTranslations.GetByID(ctx, id)
	if err != nil {
		return nil, s.readErr(err)
	}
	return t, nil
}

func (s *Service) DeleteTranslation(ctx context.Context, id uuid.UUID) error {
	err := s.uow.Do(ctx, func(u *repository.UnitOfWork) error {
		t, err := u.WasteTranslations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return u.WasteTranslations.Delete(ctx, t)
	})
	if err != nil && !apperr.Passthrough(err) {
		s.log.Error("delete translation failed", "translation_id", id, "error", err)
		return apperr.Internal("failed to delete waste translation", err)
	}
	return err
}

func (s *Service) readErr(err error) error {
	if apperr.Passthrough(err) {
		return err
	}
	s.log.Error("waste read failed", "error", err)
	return apperr.Internal("failed to load waste types", err)
}
