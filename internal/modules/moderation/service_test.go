package moderation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"ecos/internal/database"
	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"
	"ecos/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *Service
	point     *domain.ReceptionPoint
	moderator *domain.User
	records   []*domain.ModerationRecord
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := database.Connect(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	reg, err := repository.NewRegistry(db, domain.All()...)
	require.NoError(t, err)

	owner := &domain.User{Email: "owner@example.com"}
	moderator := &domain.User{Email: "moderator@example.com", EmailVerified: true}
	require.NoError(t, db.Create(owner).Error)
	require.NoError(t, db.Create(moderator).Error)
	point := &domain.ReceptionPoint{Name: "Hub", Address: "1 Main St", UserID: owner.ID}
	require.NoError(t, db.Create(point).Error)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{svc: NewService(repository.NewManager(db, reg, nil), nil), point: point, moderator: moderator}
	for i, status := range []domain.PointStatus{domain.PointRejected, domain.PointApproved} {
		rec := &domain.ModerationRecord{
			Status:           status,
			UserID:           moderator.ID,
			ReceptionPointID: point.ID,
			VerificationDate: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.Create(rec).Error)
		f.records = append(f.records, rec)
	}
	return f
}

func TestList(t *testing.T) {
	f := setup(t)

	items, total, err := f.svc.List(context.Background(), repository.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, f.records[1].ID, items[0].ID, "newest first")
	require.NotNil(t, items[0].User)
	assert.Equal(t, f.moderator.Email, items[0].User.Email)
	require.NotNil(t, items[0].ReceptionPoint)
	assert.Equal(t, f.point.Address, items[0].ReceptionPoint.Address)

	items, total, err = f.svc.List(context.Background(), repository.Query{
		Filters: []repository.Filter{repository.Eq("status", string(domain.PointRejected))},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, domain.PointRejected, items[0].Status)

	_, _, err = f.svc.List(context.Background(), repository.Query{
		Filters: []repository.Filter{repository.Eq("no_such_column", "x")},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidFilter)
}

func TestGet(t *testing.T) {
	f := setup(t)

	m, err := f.svc.Get(context.Background(), f.records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PointRejected, m.Status)
	assert.NotNil(t, m.ReceptionPoint)

	_, err = f.svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := setup(t)
	r := gin.New()
	NewHandler(f.svc).RegisterRoutes(r.Group("/api/v1"))

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/api/v1/moderations?reception_point_id=" + f.point.ID.String() + "&per_page=1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total":2`)
	assert.Contains(t, w.Body.String(), `"total_pages":2`)

	assert.Equal(t, http.StatusBadRequest, get("/api/v1/moderations?bogus=1").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/v1/moderations/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, get("/api/v1/moderations/not-a-uuid").Code)
}
