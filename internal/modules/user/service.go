package user

import (
	"context"
	"errors"
	"strings"

	"ecos/internal/domain"
	"ecos/internal/identity"
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

// VerifyPath is appended to the public base URL to build verification links.
const VerifyPath = "/api/v1/users/verify-email/"

var accountEagerLoads = []string{"images", "accruals"}

type Service struct {
	uow     *repository.Manager
	ids     identity.Provider
	store   storage.BlobStore
	bucket  string
	sender  VerificationSender
	baseURL string
	log     *logger.Logger
}

func NewService(uow *repository.Manager, ids identity.Provider, store storage.BlobStore, bucket string, sender VerificationSender, baseURL string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		uow:     uow,
		ids:     ids,
		store:   store,
		bucket:  bucket,
		sender:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.With("service", "UserService"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func imagePrefix(userID uuid.UUID) string {
	return userID.String() + "/images"
}

// Register creates the identity, then the user row keyed by the identity
// subject. If the row cannot be written the identity is deleted again.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (_ *domain.User, err error) {
	req.Email = normalizeEmail(req.Email)
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.ValidationFields("invalid registration", errs)
	}
	email := req.Email

	id, err := s.ids.CreateUser(ctx, identity.NewIdentity{Email: email, Password: req.Password, Role: identity.RoleUser})
	if errors.Is(err, identity.ErrIdentityExists) {
		return nil, apperr.Conflict("user with this email already exists")
	}
	if err != nil {
		s.log.Error("identity create failed", "error", err)
		return nil, apperr.Internal("failed to create user in identity provider", err)
	}

	comp := saga.New(s.log)
	comp.Stage("delete identity "+id.String(), func(ctx context.Context) error {
		return s.ids.DeleteUser(ctx, id)
	})
	defer func() {
		if err == nil {
			return
		}
		if cErr := comp.Unwind(ctx); cErr != nil {
			s.log.Warn("identity cleanup incomplete", "user_id", id, "error", cErr)
		}
	}()

	token, code, err := newVerificationToken()
	if err != nil {
		return nil, apperr.Internal("failed to register user", err)
	}
	u := &domain.User{ID: id, Email: email, VerificationCode: &code}
	err = s.uow.Do(ctx, func(uow *repository.UnitOfWork) error {
		_, err := uow.Users.Add(ctx, u)
		return err
	})
	if err != nil {
		if sqlerr.IsUniqueViolation(err) {
			return nil, apperr.Conflict("user with this email already exists")
		}
		s.log.Error("user row insert failed", "user_id", id, "error", err)
		return nil, apperr.Internal("failed to register user in database", err)
	}
	comp.Forget()

	s.send(ctx, u.Email, token)
	s.log.Info("user registered", "user_id", id)
	return u, nil
}

func (s *Service) send(ctx context.Context, email, token string) {
	if s.sender == nil {
		return
	}
	if err := s.sender.SendVerification(ctx, email, s.baseURL+VerifyPath+token); err != nil {
		s.log.Warn("verification send failed", "email", email, "error", err)
	}
}

// VerifyEmail marks the identity and the user row verified. The identity is
// updated first and reverted if the row update fails.
func (s *Service) VerifyEmail(ctx context.Context, token string) (err error) {
	code, err := codeFromToken(token)
	if err != nil {
		return err
	}
	r, err := s.uow.Reader()
	if err != nil {
		return apperr.Internal("failed to verify email", err)
	}
	u, err := r.Users.GetByVerificationCode(ctx, code)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("invalid verification token")
	}
	if err != nil {
		return apperr.Internal("failed to verify email", err)
	}
	if u.EmailVerified {
		return apperr.Conflict("email already verified")
	}

	if err := s.ids.SetEmailVerified(ctx, u.ID, true); err != nil {
		s.log.Error("identity verify failed", "user_id", u.ID, "error", err)
		return apperr.Internal("failed to update user in identity provider", err)
	}
	comp := saga.New(s.log)
	comp.Stage("unverify identity "+u.ID.String(), func(ctx context.Context) error {
		return s.ids.SetEmailVerified(ctx, u.ID, false)
	})

	err = s.uow.Do(ctx, func(uow *repository.UnitOfWork) error {
		row, err := uow.Users.GetByID(ctx, u.ID)
		if err != nil {
			return err
		}
		row.EmailVerified = true
		return uow.Users.Update(ctx, row)
	})
	if err != nil {
		if cErr := comp.Unwind(ctx); cErr != nil {
			s.log.Warn("identity revert incomplete", "user_id", u.ID, "error", cErr)
		}
		s.log.Error("verify email failed", "user_id", u.ID, "error", err)
		return apperr.Internal("failed to verify email", err)
	}
	s.log.Info("email verified", "user_id", u.ID)
	return nil
}

// ResendVerification replaces the stored code and sends a new link.
func (s *Service) ResendVerification(ctx context.Context, req ResendRequest) error {
	req.Email = normalizeEmail(req.Email)
	if errs := validator.Validate(req); errs != nil {
		return apperr.ValidationFields("invalid email", errs)
	}
	token, code, err := newVerificationToken()
	if err != nil {
		return apperr.Internal("failed to resend verification", err)
	}

	var email string
	err = s.uow.Do(ctx, func(uow *repository.UnitOfWork) error {
		u, err := uow.Users.GetByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if u.EmailVerified {
			return apperr.Conflict("email already verified")
		}
		u.VerificationCode = &code
		email = u.Email
		return uow.Users.Update(ctx, u)
	})
	if err != nil {
		if apperr.Passthrough(err) {
			return err
		}
		s.log.Error("resend verification failed", "error", err)
		return apperr.Internal("failed to resend verification", err)
	}
	s.send(ctx, email, token)
	return nil
}

// Login exchanges credentials for an access token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*identity.Token, error) {
	req.Email = normalizeEmail(req.Email)
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.ValidationFields("invalid credentials", errs)
	}
	tok, err := s.ids.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return nil, apperr.Unauthorized("invalid username or password")
	}
	if err != nil {
		s.log.Error("authenticate failed", "error", err)
		return nil, apperr.Internal("failed to authenticate", err)
	}
	return tok, nil
}

func (s *Service) GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	r, err := s.uow.Reader()
	if err != nil {
		return nil, apperr.Internal("failed to load account", err)
	}
	u, err := r.Users.GetByID(ctx, userID, accountEagerLoads...)
	if err != nil {
		if apperr.Passthrough(err) {
			return nil, err
		}
		return nil, apperr.Internal("failed to load account", err)
	}
	total, err := r.Accruals.TotalPoints(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load account", err)
	}
	s.resolveURLs(u)
	return &Account{User: u, TotalPoints: total}, nil
}

// UploadAvatar stores one profile image and records it.
func (s *Service) UploadAvatar(ctx context.Context, userID uuid.UUID, file upload.File) (_ *Account, err error) {
	u, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to upload image", err)
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
			s.log.Error("upload avatar failed", "user_id", userID, "error", err)
			err = apperr.Internal("failed to upload image", err)
		}
	}()

	if _, err := u.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	prefix := imagePrefix(userID)
	name := uuid.NewString() + "." + file.Ext
	comp.Stage("delete "+prefix+"/"+name, func(ctx context.Context) error {
		return s.store.Delete(ctx, s.bucket, prefix, name)
	})
	if _, err := s.store.Upload(ctx, s.bucket, prefix, name, file.Content); err != nil {
		return nil, err
	}
	if _, err := u.UserImages.Add(ctx, &domain.UserImage{Filename: name, UserID: userID}); err != nil {
		return nil, err
	}
	if err := u.Commit(); err != nil {
		return nil, err
	}
	comp.Forget()
	s.log.Info("avatar uploaded", "user_id", userID)

	return s.GetAccount(ctx, userID)
}

func (s *Service) resolveURLs(u *domain.User) {
	prefix := imagePrefix(u.ID)
	for i := range u.Images {
		u.Images[i].URL = s.store.URL(s.bucket, prefix, u.Images[i].Filename)
	}
}
