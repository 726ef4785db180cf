package handlers

import (
	"context"

	"coupon-service/internal/models"

	"github.com/google/uuid"
)

// ----- Coupons -----

type CouponService interface {
	CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error)
	GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]*models.Coupon, error)
	UpdateCoupon(ctx context.Context, id uuid.UUID, req *models.UpdateCouponRequest) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, id uuid.UUID) error
}

type EventProducer interface {
	PublishCouponCreated(coupon models.CouponSnapshot) error
	PublishCouponUpdated(coupon models.CouponSnapshot) error
	PublishCouponDeleted(couponID uuid.UUID) error
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
