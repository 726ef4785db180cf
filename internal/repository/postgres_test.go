package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"coupon-service/internal/database"
	"coupon-service/internal/logger"
	"coupon-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var couponRowColumns = []string{"id", "code", "description", "discount_value", "expiration_date", "published", "deleted", "created_at", "updated_at"}

func newPostgresRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewPostgresRepository(&database.DB{DB: sqlDB, Driver: "postgres"}, logger.NewNop()), mock
}

func couponRow(rows *sqlmock.Rows, c *models.Coupon) *sqlmock.Rows {
	return rows.AddRow(
		c.ID().String(),
		c.Code().String(),
		c.Description(),
		c.DiscountValue().String(),
		c.ExpirationDate().Time(),
		c.Published(),
		c.Deleted(),
		c.CreatedAt(),
		c.UpdatedAt(),
	)
}

func TestPostgresRepository_Migrate(t *testing.T) {
	repo, mock := newPostgresRepository(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS coupons").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS coupons_active_code_uidx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS coupons_deleted_created_idx").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_Save(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	c := newTestCoupon(t, "SAVE01", testNow)

	mock.ExpectQuery("INSERT INTO coupons .* ON CONFLICT \\(id\\) DO UPDATE .* WHERE NOT coupons.deleted RETURNING").
		WithArgs(c.ID().String(), "SAVE01", c.Description(), sqlmock.AnyArg(), sqlmock.AnyArg(), true, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(couponRow(sqlmock.NewRows(couponRowColumns), c))

	saved, err := repo.Save(context.Background(), c)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !saved.Equal(c) || saved.Code() != c.Code() {
		t.Fatalf("unexpected saved coupon: %+v", saved.Snapshot())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_SaveDuplicateCode(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	c := newTestCoupon(t, "EXIST1", testNow)

	mock.ExpectQuery("INSERT INTO coupons").WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := repo.Save(context.Background(), c)
	if !errors.Is(err, models.ErrDuplicateActiveCode) {
		t.Fatalf("expected duplicate active code, got %v", err)
	}
}

func TestPostgresRepository_SaveAlreadyDeleted(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	c := newTestCoupon(t, "GONE01", testNow)

	mock.ExpectQuery("INSERT INTO coupons").WillReturnRows(sqlmock.NewRows(couponRowColumns))

	_, err := repo.Save(context.Background(), c)
	if !errors.Is(err, models.ErrCouponAlreadyDeleted) {
		t.Fatalf("expected already deleted, got %v", err)
	}
}

func TestPostgresRepository_SaveDatabaseError(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	c := newTestCoupon(t, "FAIL01", testNow)

	mock.ExpectQuery("INSERT INTO coupons").WillReturnError(errors.New("connection reset"))

	_, err := repo.Save(context.Background(), c)
	if err == nil || errors.Is(err, models.ErrDuplicateActiveCode) || errors.Is(err, models.ErrCouponAlreadyDeleted) {
		t.Fatalf("expected plain storage error, got %v", err)
	}
}

func TestPostgresRepository_FindActiveByID(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	c := newTestCoupon(t, "FIND01", testNow)

	mock.ExpectQuery("SELECT .* FROM coupons WHERE id = \\$1 AND deleted = FALSE").
		WithArgs(c.ID().String()).
		WillReturnRows(couponRow(sqlmock.NewRows(couponRowColumns), c))

	got, err := repo.FindActiveByID(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !got.Equal(c) || !got.DiscountValue().Equal(c.DiscountValue()) {
		t.Fatalf("unexpected coupon: %+v", got.Snapshot())
	}
}

func TestPostgresRepository_FindActiveByIDNotFound(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .* FROM coupons WHERE id = \\$1 AND deleted = FALSE").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(couponRowColumns))

	if _, err := repo.FindActiveByID(context.Background(), id); !errors.Is(err, models.ErrCouponNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresRepository_FindByIDIncludingDeleted(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	c := newTestCoupon(t, "ARCH01", testNow)
	_ = c.MarkAsDeleted(testNow.Add(time.Hour))

	mock.ExpectQuery("SELECT .* FROM coupons WHERE id = \\$1$").
		WithArgs(c.ID().String()).
		WillReturnRows(couponRow(sqlmock.NewRows(couponRowColumns), c))

	got, err := repo.FindByIDIncludingDeleted(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !got.Deleted() {
		t.Fatalf("expected deleted coupon")
	}
}

func TestPostgresRepository_FindActiveByCode(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	c := newTestCoupon(t, "CODE01", testNow)

	mock.ExpectQuery("SELECT .* FROM coupons WHERE code = \\$1 AND deleted = FALSE").
		WithArgs("CODE01").
		WillReturnRows(couponRow(sqlmock.NewRows(couponRowColumns), c))

	got, err := repo.FindActiveByCode(context.Background(), c.Code())
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.Code().String() != "CODE01" {
		t.Fatalf("unexpected code %s", got.Code())
	}
}

func TestPostgresRepository_ListActive(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	newer := newTestCoupon(t, "NEWER1", testNow.Add(time.Hour))
	older := newTestCoupon(t, "OLDER1", testNow)

	rows := sqlmock.NewRows(couponRowColumns)
	couponRow(rows, newer)
	couponRow(rows, older)
	mock.ExpectQuery("SELECT .* FROM coupons WHERE deleted = FALSE ORDER BY created_at DESC").WillReturnRows(rows)

	list, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || !list[0].Equal(newer) || !list[1].Equal(older) {
		t.Fatalf("unexpected list: %v", list)
	}
}

func TestPostgresRepository_ListActiveRejectsCorruptRow(t *testing.T) {
	repo, mock := newPostgresRepository(t)
	c := newTestCoupon(t, "BROKEN", testNow)

	rows := sqlmock.NewRows(couponRowColumns).AddRow(
		c.ID().String(), "BROKEN", c.Description(), "0.1", c.ExpirationDate().Time(), true, false, testNow, testNow,
	)
	mock.ExpectQuery("SELECT .* FROM coupons WHERE deleted = FALSE").WillReturnRows(rows)

	if _, err := repo.ListActive(context.Background()); !errors.Is(err, models.ErrInvalidCoupon) {
		t.Fatalf("expected invalid coupon error, got %v", err)
	}
}
