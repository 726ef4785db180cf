// Package repository содержит порт хранилища купонов и его адаптеры.
package repository

import (
	"context"
	"fmt"

	"coupon-service/internal/apperror"
	"coupon-service/internal/models"

	"github.com/google/uuid"
)

// ActiveReader видит только активные (не удалённые) купоны.
type ActiveReader interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindActiveByCode(ctx context.Context, code models.CouponCode) (*models.Coupon, error)
	ListActive(ctx context.Context) ([]*models.Coupon, error)
}

// ArchiveReader видит купоны независимо от мягкого удаления.
type ArchiveReader interface {
	FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

// CouponRepository объединяет чтение и запись купонов.
// Все поиски возвращают ошибку с models.ErrCouponNotFound, если записи нет.
// Save выполняет upsert по идентификатору и возвращает сохранённое состояние;
// среди активных купонов код уникален (models.ErrDuplicateActiveCode), а
// запись уже удалённого купона отклоняется (models.ErrCouponAlreadyDeleted).
type CouponRepository interface {
	ActiveReader
	ArchiveReader
	Save(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
}

func errNotFoundByID(id uuid.UUID) error {
	return apperror.NotFound(fmt.Sprintf("coupon with ID %s not found", id), models.ErrCouponNotFound)
}

func errNotFoundByCode(code models.CouponCode) error {
	return apperror.NotFound(fmt.Sprintf("active coupon with code '%s' not found", code), models.ErrCouponNotFound)
}

// ErrDuplicateCode строит ошибку конфликта по коду купона.
func ErrDuplicateCode(code models.CouponCode) error {
	return apperror.Conflict(fmt.Sprintf("coupon code '%s' is already in use by another active coupon", code), models.ErrDuplicateActiveCode)
}

func errAlreadyDeleted(id uuid.UUID) error {
	return apperror.Conflict(fmt.Sprintf("coupon with ID %s is already deleted", id), models.ErrCouponAlreadyDeleted)
}
