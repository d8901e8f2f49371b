package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ecos/internal/config"
	"ecos/internal/database"
	"ecos/internal/domain"
	"ecos/internal/identity"
	"ecos/internal/modules/accrual"
	"ecos/internal/modules/moderation"
	"ecos/internal/modules/receptionpoint"
	"ecos/internal/modules/user"
	"ecos/internal/modules/waste"
	jwtsvc "ecos/internal/pkg/jwt"
	"ecos/internal/pkg/logger"
	"ecos/internal/repository"
	"ecos/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", "error", err)
	}
}

func run(cfg *config.Config, lg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, lg)
	if err != nil {
		return err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}
	registry, err := repository.NewRegistry(db, domain.All()...)
	if err != nil {
		return err
	}
	uow := repository.NewManager(db, registry, lg)

	store, err := newStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore(store, lg)

	// Credentials live on their own connection so identity writes never
	// share a transaction with the domain tables.
	idDB, err := database.Connect(cfg.DatabaseURL, lg)
	if err != nil {
		return err
	}
	ids := identity.NewLocalProvider(idDB, jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer))
	if err := ids.Migrate(); err != nil {
		return err
	}

	h := handlers{
		users: user.NewHandler(
			user.NewService(uow, ids, store, cfg.Buckets.User, user.NewLogSender(lg), cfg.AppBaseURL, lg),
			cfg.MaxUploadBytes,
		),
		points: receptionpoint.NewHandler(
			receptionpoint.NewService(uow, store, cfg.Buckets.ReceptionPoint, cfg.ApprovalPoints, lg),
			cfg.MaxUploadBytes,
		),
		wastes:      waste.NewHandler(waste.NewService(uow, store, cfg.Buckets.Waste, lg), cfg.MaxUploadBytes),
		moderations: moderation.NewHandler(moderation.NewService(uow, lg)),
		accruals:    accrual.NewHandler(accrual.NewService(uow, lg)),
	}

	if config.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg, lg, ids, h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg *config.Config, lg *logger.Logger) (storage.BlobStore, error) {
	store, err := storage.New(ctx, storage.Config{
		Driver:             cfg.Storage.Driver,
		LocalDir:           cfg.Storage.LocalDir,
		PublicBaseURL:      cfg.Storage.PublicBaseURL,
		S3Endpoint:         cfg.Storage.S3Endpoint,
		S3AccessKey:        cfg.Storage.S3AccessKey,
		S3SecretKey:        cfg.Storage.S3SecretKey,
		S3Region:           cfg.Storage.S3Region,
		S3UseSSL:           cfg.Storage.S3UseSSL,
		GCSCredentialsFile: cfg.Storage.GCSCredentialsFile,
		GCSEmulatorHost:    cfg.Storage.GCSEmulatorHost,
	}, lg)
	if err != nil {
		return nil, err
	}
	if s3, ok := store.(*storage.S3Store); ok {
		if err := s3.EnsureBuckets(ctx, cfg.Buckets.ReceptionPoint, cfg.Buckets.User, cfg.Buckets.Waste); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// closeStore releases drivers that hold a client, such as GCS.
func closeStore(store storage.BlobStore, lg *logger.Logger) {
	c, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		lg.Warn("close storage client", "error", err)
	}
}
