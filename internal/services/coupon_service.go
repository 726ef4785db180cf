package services

import (
	"context"
	"errors"

	"coupon-service/internal/apperror"
	"coupon-service/internal/clock"
	"coupon-service/internal/logger"
	"coupon-service/internal/metrics"
	"coupon-service/internal/models"
	"coupon-service/internal/repository"

	"github.com/google/uuid"
)

// Названия операций для метрик
const (
	opCreate = "create"
	opDelete = "delete"
	opGet    = "get"
	opList   = "list"
	opUpdate = "update"
)

// CouponService реализует сценарии работы с купонами
type CouponService struct {
	repo  repository.CouponRepository
	clock clock.Clock
	log   *logger.Logger
}

// NewCouponService создает сервис купонов
func NewCouponService(repo repository.CouponRepository, clk clock.Clock, log *logger.Logger) *CouponService {
	if clk == nil {
		clk = clock.System{}
	}
	return &CouponService{
		repo:  repo,
		clock: clk,
		log:   log,
	}
}

// CreateCoupon создает купон. Активный купон с тем же нормализованным кодом
// блокирует создание, удалённый — нет.
func (s *CouponService) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (coupon *models.Coupon, err error) {
	defer func() { metrics.ObserveOperation(opCreate, err) }()

	if req == nil {
		return nil, apperror.Validation("request body is required", models.ErrInvalidCoupon)
	}

	code, err := models.NewCouponCode(req.Code)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindActiveByCode(ctx, code); err == nil {
		s.log.WithField("code", code.String()).Info("Coupon code is already taken by an active coupon")
		return nil, repository.ErrDuplicateCode(code)
	} else if !errors.Is(err, models.ErrCouponNotFound) {
		return nil, err
	}

	normalized := code.String()
	coupon, err = models.NewCoupon(models.CouponParams{
		Code:           &normalized,
		Description:    req.Description,
		DiscountValue:  req.DiscountValue,
		ExpirationDate: req.ExpirationTime(),
		Published:      req.Published,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, coupon)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"coupon_id": saved.ID(),
		"code":      saved.Code().String(),
	}).Info("Coupon created")

	return saved, nil
}

// DeleteCoupon выполняет мягкое удаление. Поиск идет среди всех записей,
// чтобы отличить отсутствующий купон от уже удалённого.
func (s *CouponService) DeleteCoupon(ctx context.Context, id uuid.UUID) (err error) {
	defer func() { metrics.ObserveOperation(opDelete, err) }()

	coupon, err := s.repo.FindByIDIncludingDeleted(ctx, id)
	if err != nil {
		return err
	}

	if err := coupon.MarkAsDeleted(s.clock.Now()); err != nil {
		return err
	}

	if _, err := s.repo.Save(ctx, coupon); err != nil {
		return err
	}

	s.log.WithField("coupon_id", id).Info("Coupon deleted")
	return nil
}

// GetCoupon возвращает активный купон
func (s *CouponService) GetCoupon(ctx context.Context, id uuid.UUID) (coupon *models.Coupon, err error) {
	defer func() { metrics.ObserveOperation(opGet, err) }()

	return s.repo.FindActiveByID(ctx, id)
}

// ListCoupons возвращает активные купоны, новые первыми
func (s *CouponService) ListCoupons(ctx context.Context) (coupons []*models.Coupon, err error) {
	defer func() { metrics.ObserveOperation(opList, err) }()

	return s.repo.ListActive(ctx)
}

// UpdateCoupon меняет описание, скидку, дату окончания и публикацию.
// Удалённый купон для обновления не существует.
func (s *CouponService) UpdateCoupon(ctx context.Context, id uuid.UUID, req *models.UpdateCouponRequest) (coupon *models.Coupon, err error) {
	defer func() { metrics.ObserveOperation(opUpdate, err) }()

	if req == nil {
		return nil, apperror.Validation("request body is required", models.ErrInvalidCoupon)
	}

	coupon, err = s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = coupon.Update(models.UpdateCouponParams{
		Description:    req.Description,
		DiscountValue:  req.DiscountValue,
		ExpirationDate: req.ExpirationTime(),
		Published:      req.Published,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, coupon)
	if err != nil {
		return nil, err
	}

	s.log.WithField("coupon_id", id).Info("Coupon updated")
	return saved, nil
}
