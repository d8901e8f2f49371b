package receptionpoint

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"ecos/internal/database"
	"ecos/internal/domain"
	"ecos/internal/pkg/apperr"
	"ecos/internal/repository"
	"ecos/internal/storage"
	"ecos/internal/upload"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testBucket = "reception-point"

type env struct {
	db    *gorm.DB
	store *storage.MemoryStore
	svc   *Service
	owner *domain.User
	pet   *domain.Waste
	glass *domain.Waste
}

func setup(t *testing.T) *env {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := database.Connect(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	reg, err := repository.NewRegistry(db, domain.All()...)
	require.NoError(t, err)

	e := &env{
		db:    db,
		store: storage.NewMemoryStore(""),
		owner: &domain.User{Email: "owner@example.com"},
		pet:   &domain.Waste{AbbreviatedName: "PET"},
		glass: &domain.Waste{AbbreviatedName: "GLS"},
	}
	require.NoError(t, db.Create(e.owner).Error)
	require.NoError(t, db.Create(e.pet).Error)
	require.NoError(t, db.Create(e.glass).Error)

	e.svc = NewService(repository.NewManager(db, reg, nil), e.store, testBucket, 10, nil)
	return e
}

func strptr(s string) *string { return &s }

func hubRequest(wastes ...uuid.UUID) CreateRequest {
	return CreateRequest{
		Name:      "Central Hub",
		Address:   "1 Main St",
		Latitude:  43.238949,
		Longitude: 76.889709,
		WorkSchedule: []ScheduleInput{
			{DayOfWeek: domain.Monday, OpenTime: strptr("09:00"), CloseTime: strptr("18:00")},
			{DayOfWeek: domain.Saturday},
		},
		WasteIDs: wastes,
	}
}

func jpeg(n int) []upload.File {
	files := make([]upload.File, n)
	for i := range files {
		files[i] = upload.File{Field: ImagesField, Name: "photo.jpg", Content: []byte{0xFF, 0xD8, 0xFF, byte(i)}, Ext: "jpg", ContentType: "image/jpeg"}
	}
	return files
}

func (e *env) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func TestAddReceptionPoint_CentralHub(t *testing.T) {
	e := setup(t)

	p, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(e.pet.ID), jpeg(1))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, domain.PointUnderModeration, p.Status)
	assert.Equal(t, e.owner.ID, p.UserID)
	require.Len(t, p.Images, 1)
	assert.Len(t, p.WorkSchedules, 2)
	require.Len(t, p.Wastes, 1)
	assert.Equal(t, e.pet.ID, p.Wastes[0].ID)

	img := p.Images[0]
	assert.True(t, strings.HasSuffix(img.Filename, ".jpg"))
	assert.NotEqual(t, "photo.jpg", img.Filename)
	assert.Contains(t, img.URL, p.ID.String()+"/images/"+img.Filename)

	_, ok := e.store.Get(testBucket, p.ID.String()+"/images/"+img.Filename)
	assert.True(t, ok)
	assert.Equal(t, 1, e.store.Len())
}

func TestAddReceptionPoint_ZeroFiles(t *testing.T) {
	e := setup(t)

	_, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(e.pet.ID), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, e.count(t, &domain.ReceptionPoint{}))
	assert.Zero(t, e.store.Len())
}

func TestAddReceptionPoint_InvalidInput(t *testing.T) {
	e := setup(t)

	cases := map[string]CreateRequest{
		"unknown waste": hubRequest(uuid.New()),
		"bad clock": func() CreateRequest {
			r := hubRequest()
			r.WorkSchedule[0].OpenTime = strptr("25:00")
			return r
		}(),
		"duplicate day": func() CreateRequest {
			r := hubRequest()
			r.WorkSchedule[1].DayOfWeek = domain.Monday
			return r
		}(),
		"bad day": func() CreateRequest {
			r := hubRequest()
			r.WorkSchedule[1].DayOfWeek = "FUNDAY"
			return r
		}(),
		"missing name": func() CreateRequest {
			r := hubRequest()
			r.Name = ""
			return r
		}(),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, req, jpeg(1))
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Zero(t, e.count(t, &domain.ReceptionPoint{}))
	assert.Zero(t, e.store.Len())
}

func TestAddReceptionPoint_UploadFailureMidBatch(t *testing.T) {
	e := setup(t)

	var uploads atomic.Int32
	e.store.Fail = func(op, bucket, key string) error {
		if op == "upload" && uploads.Add(1) == 3 {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	_, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(e.pet.ID), jpeg(5))

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.Zero(t, e.store.Len(), "uploaded siblings must be removed")
	assert.Zero(t, e.count(t, &domain.ReceptionPoint{}))
	assert.Zero(t, e.count(t, &domain.ReceptionImage{}))
	assert.Zero(t, e.count(t, &domain.WorkSchedule{}))
}

func TestAddReceptionPoint_DatabaseFailureAfterUpload(t *testing.T) {
	e := setup(t)

	require.NoError(t, e.db.Callback().Create().Before("gorm:create").Register("test:fail_schedules", func(tx *gorm.DB) {
		if tx.Statement.Table == "work_schedules" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(e.pet.ID), jpeg(2))

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.Equal(t, "failed to add reception point", err.Error())
	assert.Zero(t, e.store.Len())
	assert.Zero(t, e.count(t, &domain.ReceptionPoint{}))
	assert.Zero(t, e.count(t, &domain.ReceptionImage{}))
}

func TestAddReceptionPoint_DuplicateAddress(t *testing.T) {
	e := setup(t)
	_, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(), jpeg(1))
	require.NoError(t, err)

	_, err = e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(), jpeg(1))

	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.Equal(t, int64(1), e.count(t, &domain.ReceptionPoint{}))
	assert.Equal(t, 1, e.store.Len())
}

func TestAddReceptionPoint_CleanupFailureStillReportsCause(t *testing.T) {
	e := setup(t)
	e.store.Fail = func(op, bucket, key string) error {
		if op == "upload" || op == "delete" {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	_, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(), jpeg(1))

	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.Zero(t, e.count(t, &domain.ReceptionPoint{}))
}

func moderator() domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: domain.RoleModerator}
}

func TestUpdateStatus(t *testing.T) {
	for _, tc := range []struct {
		status domain.PointStatus
		points int
	}{
		{domain.PointApproved, 10},
		{domain.PointRejected, 0},
	} {
		t.Run(string(tc.status), func(t *testing.T) {
			e := setup(t)
			p, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(), jpeg(1))
			require.NoError(t, err)

			mod := moderator()
			out, err := e.svc.UpdateStatus(context.Background(), p.ID, mod, UpdateStatusRequest{Status: tc.status, Comment: strptr("checked on site")})
			require.NoError(t, err)
			assert.Equal(t, tc.status, out.Status)

			var records []domain.ModerationRecord
			require.NoError(t, e.db.Find(&records).Error)
			require.Len(t, records, 1)
			assert.Equal(t, mod.ID, records[0].UserID)
			assert.Equal(t, p.ID, records[0].ReceptionPointID)
			assert.Equal(t, tc.status, records[0].Status)

			var accruals []domain.AccrualEntry
			require.NoError(t, e.db.Find(&accruals).Error)
			require.Len(t, accruals, 1)
			assert.Equal(t, e.owner.ID, accruals[0].UserID)
			assert.Equal(t, tc.points, accruals[0].Points)
			assert.Equal(t, domain.RewardRecyclePointAdd, accruals[0].Reward)
		})
	}
}

func TestUpdateStatus_Rejections(t *testing.T) {
	e := setup(t)
	p, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(), jpeg(1))
	require.NoError(t, err)

	_, err = e.svc.UpdateStatus(context.Background(), p.ID, moderator(), UpdateStatusRequest{Status: domain.PointUnderModeration})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.UpdateStatus(context.Background(), uuid.New(), moderator(), UpdateStatusRequest{Status: domain.PointApproved})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Zero(t, e.count(t, &domain.ModerationRecord{}))
	assert.Zero(t, e.count(t, &domain.AccrualEntry{}))
}

func TestUpdateStatus_RepeatedCallsAppendRecords(t *testing.T) {
	e := setup(t)
	p, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(), jpeg(1))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = e.svc.UpdateStatus(context.Background(), p.ID, moderator(), UpdateStatusRequest{Status: domain.PointApproved})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), e.count(t, &domain.ModerationRecord{}))
	assert.Equal(t, int64(2), e.count(t, &domain.AccrualEntry{}))
}

func TestDeleteReceptionPoint(t *testing.T) {
	e := setup(t)
	p, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(e.pet.ID), jpeg(2))
	require.NoError(t, err)
	require.Equal(t, 2, e.store.Len())

	stranger := domain.Actor{ID: uuid.New(), Role: "user"}
	err = e.svc.DeleteReceptionPoint(context.Background(), p.ID, stranger)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	owner := domain.Actor{ID: e.owner.ID, Role: "user"}
	require.NoError(t, e.svc.DeleteReceptionPoint(context.Background(), p.ID, owner))

	assert.Zero(t, e.store.Len())
	assert.Zero(t, e.count(t, &domain.ReceptionPoint{}))
	assert.Zero(t, e.count(t, &domain.ReceptionImage{}))
	assert.Zero(t, e.count(t, &domain.WorkSchedule{}))
	assert.Zero(t, e.count(t, &domain.ReceptionPointWaste{}))

	err = e.svc.DeleteReceptionPoint(context.Background(), p.ID, owner)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWasteTypeLinks(t *testing.T) {
	e := setup(t)
	p, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(e.pet.ID), jpeg(1))
	require.NoError(t, err)
	owner := domain.Actor{ID: e.owner.ID}

	require.NoError(t, e.svc.AddWasteType(context.Background(), p.ID, e.glass.ID, owner))
	assert.ErrorIs(t, e.svc.AddWasteType(context.Background(), p.ID, e.glass.ID, owner), apperr.ErrConflict)
	assert.ErrorIs(t, e.svc.AddWasteType(context.Background(), p.ID, uuid.New(), owner), apperr.ErrNotFound)
	assert.ErrorIs(t, e.svc.AddWasteType(context.Background(), p.ID, e.glass.ID, domain.Actor{ID: uuid.New()}), apperr.ErrForbidden)

	got, err := e.svc.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Wastes, 2)

	require.NoError(t, e.svc.RemoveWasteType(context.Background(), p.ID, e.pet.ID, owner))
	assert.ErrorIs(t, e.svc.RemoveWasteType(context.Background(), p.ID, e.pet.ID, owner), apperr.ErrNotFound)
	assert.Equal(t, int64(1), e.count(t, &domain.ReceptionPointWaste{}))
}

func TestList(t *testing.T) {
	e := setup(t)
	_, err := e.svc.AddReceptionPoint(context.Background(), e.owner.ID, hubRequest(e.pet.ID), jpeg(1))
	require.NoError(t, err)
	second := hubRequest(e.glass.ID)
	second.Name, second.Address = "Corner Drop", "7 Side St"
	_, err = e.svc.AddReceptionPoint(context.Background(), e.owner.ID, second, jpeg(1))
	require.NoError(t, err)

	q := repository.Query{
		Joins:   []repository.Join{{Relation: "wastes", Kind: repository.JoinInner}},
		Filters: []repository.Filter{repository.Eq("wastes.abbreviated_name", "GLS")},
		Preload: []string{"images"},
		Limit:   10,
	}
	items, total, err := e.svc.List(context.Background(), q, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Corner Drop", items[0].Name)
	require.Len(t, items[0].Images, 1)
	assert.NotEmpty(t, items[0].Images[0].URL)

	_, _, err = e.svc.List(context.Background(), repository.Query{Filters: []repository.Filter{repository.Eq("colour", "red")}}, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidFilter)

	_, _, err = e.svc.List(context.Background(), repository.Query{}, &RadiusFilter{Center: domain.GeoPoint{Latitude: 43.2, Longitude: 76.9}, Meters: 1000})
	assert.ErrorIs(t, err, apperr.ErrInvalidFilter)
}
