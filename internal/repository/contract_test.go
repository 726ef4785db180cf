package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"coupon-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestCoupon(t *testing.T, code string, createdAt time.Time) *models.Coupon {
	t.Helper()
	discount := decimal.RequireFromString("10.25")
	c, err := models.NewCoupon(models.CouponParams{
		Code:           &code,
		Description:    "test coupon " + code,
		DiscountValue:  &discount,
		ExpirationDate: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Published:      true,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, testNow)
	if err != nil {
		t.Fatalf("failed to build coupon: %v", err)
	}
	return c
}

// runRepositoryContract проверяет поведение, общее для всех хранилищ
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) CouponRepository) {
	ctx := context.Background()

	t.Run("save and find", func(t *testing.T) {
		repo := newRepo(t)
		c := newTestCoupon(t, "ABC123", testNow)

		saved, err := repo.Save(ctx, c)
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if saved.ID() != c.ID() || saved.Code() != c.Code() {
			t.Fatalf("unexpected saved coupon: %+v", saved.Snapshot())
		}
		if !saved.DiscountValue().Equal(c.DiscountValue()) {
			t.Fatalf("discount changed on save: %s", saved.DiscountValue())
		}

		byID, err := repo.FindActiveByID(ctx, c.ID())
		if err != nil {
			t.Fatalf("find by id failed: %v", err)
		}
		if !byID.Equal(c) || byID.Description() != c.Description() {
			t.Fatalf("unexpected coupon by id: %+v", byID.Snapshot())
		}
		if !byID.ExpirationDate().Time().Equal(c.ExpirationDate().Time()) {
			t.Fatalf("expiration changed: %s", byID.ExpirationDate())
		}

		byCode, err := repo.FindActiveByCode(ctx, c.Code())
		if err != nil {
			t.Fatalf("find by code failed: %v", err)
		}
		if !byCode.Equal(c) {
			t.Fatalf("unexpected coupon by code")
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)
		id := uuid.New()

		if _, err := repo.FindActiveByID(ctx, id); !errors.Is(err, models.ErrCouponNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := repo.FindByIDIncludingDeleted(ctx, id); !errors.Is(err, models.ErrCouponNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		code, _ := models.NewCouponCode(strPtr("NONE00"))
		if _, err := repo.FindActiveByCode(ctx, code); !errors.Is(err, models.ErrCouponNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("duplicate active code", func(t *testing.T) {
		repo := newRepo(t)
		if _, err := repo.Save(ctx, newTestCoupon(t, "EXIST1", testNow)); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		_, err := repo.Save(ctx, newTestCoupon(t, "EXIST1", testNow.Add(time.Minute)))
		if !errors.Is(err, models.ErrDuplicateActiveCode) {
			t.Fatalf("expected duplicate active code, got %v", err)
		}
	})

	t.Run("soft delete frees the code", func(t *testing.T) {
		repo := newRepo(t)
		first := newTestCoupon(t, "REUSE1", testNow)
		if _, err := repo.Save(ctx, first); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := first.MarkAsDeleted(testNow.Add(time.Hour)); err != nil {
			t.Fatalf("mark deleted failed: %v", err)
		}
		if _, err := repo.Save(ctx, first); err != nil {
			t.Fatalf("save deleted failed: %v", err)
		}

		if _, err := repo.FindActiveByID(ctx, first.ID()); !errors.Is(err, models.ErrCouponNotFound) {
			t.Fatalf("deleted coupon must be invisible to active finder, got %v", err)
		}
		archived, err := repo.FindByIDIncludingDeleted(ctx, first.ID())
		if err != nil {
			t.Fatalf("find including deleted failed: %v", err)
		}
		if !archived.Deleted() {
			t.Fatalf("expected deleted flag")
		}
		if _, err := repo.FindActiveByCode(ctx, first.Code()); !errors.Is(err, models.ErrCouponNotFound) {
			t.Fatalf("expected code lookup to skip deleted coupon, got %v", err)
		}

		second := newTestCoupon(t, "REUSE1", testNow.Add(2*time.Hour))
		if _, err := repo.Save(ctx, second); err != nil {
			t.Fatalf("expected code reuse after delete, got %v", err)
		}
		active, err := repo.FindActiveByCode(ctx, second.Code())
		if err != nil || !active.Equal(second) {
			t.Fatalf("expected new coupon to own the code, got %v", err)
		}
		if _, err := repo.FindByIDIncludingDeleted(ctx, first.ID()); err != nil {
			t.Fatalf("deleted record must be kept: %v", err)
		}
	})

	t.Run("deleted record is immutable", func(t *testing.T) {
		repo := newRepo(t)
		c := newTestCoupon(t, "GONE01", testNow)
		if _, err := repo.Save(ctx, c); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		_ = c.MarkAsDeleted(testNow)
		if _, err := repo.Save(ctx, c); err != nil {
			t.Fatalf("save deleted failed: %v", err)
		}
		if _, err := repo.Save(ctx, c); !errors.Is(err, models.ErrCouponAlreadyDeleted) {
			t.Fatalf("expected already deleted, got %v", err)
		}
	})

	t.Run("list active newest first", func(t *testing.T) {
		repo := newRepo(t)
		older := newTestCoupon(t, "OLDER1", testNow)
		newer := newTestCoupon(t, "NEWER1", testNow.Add(time.Hour))
		removed := newTestCoupon(t, "REMOV1", testNow.Add(2*time.Hour))
		for _, c := range []*models.Coupon{older, newer, removed} {
			if _, err := repo.Save(ctx, c); err != nil {
				t.Fatalf("save failed: %v", err)
			}
		}
		_ = removed.MarkAsDeleted(testNow)
		if _, err := repo.Save(ctx, removed); err != nil {
			t.Fatalf("save deleted failed: %v", err)
		}

		list, err := repo.ListActive(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 active coupons, got %d", len(list))
		}
		if !list[0].Equal(newer) || !list[1].Equal(older) {
			t.Fatalf("unexpected order: %s, %s", list[0].Code(), list[1].Code())
		}
	})
}

func strPtr(s string) *string { return &s }
