package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"coupon-service/internal/logger"
	"coupon-service/internal/models"
	"coupon-service/internal/redis"

	"github.com/google/uuid"
)

// Cache описывает операции кеша, которые реализует redis.Client
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Incr(ctx context.Context, key string) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// CachedRepository добавляет к хранилищу read-through кеш активных купонов.
// Поиск по коду и поиск с удалёнными всегда идут в хранилище:
// проверка уникальности и удаление не должны видеть устаревшее состояние.
//
// Ключи записей содержат номер поколения. Save увеличивает поколение купона
// и списка, поэтому запись, сделанная чтением, начатым до Save, попадает
// в ключ, который больше никто не читает, и просто истекает по TTL.
// Счетчики поколений хранятся без TTL: их сброс снова открыл бы старые записи.
type CachedRepository struct {
	next  CouponRepository
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedRepository оборачивает next кешем
func NewCachedRepository(next CouponRepository, cache Cache, ttl time.Duration, log *logger.Logger) *CachedRepository {
	return &CachedRepository{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

func couponGenKey(id uuid.UUID) string {
	return redis.GenerateKey(redis.KeyPrefixCouponGen, id.String())
}

func couponKey(id uuid.UUID, gen int64) string {
	return redis.GenerateKey(redis.KeyPrefixCoupon, id.String()+":"+strconv.FormatInt(gen, 10))
}

func activeListKey(gen int64) string {
	return redis.GenerateKey(redis.KeyCouponsActive, strconv.FormatInt(gen, 10))
}

// generation возвращает текущее поколение; ok=false, если кеш недоступен
func (r *CachedRepository) generation(ctx context.Context, key string) (gen int64, ok bool) {
	gen, err := r.cache.GetInt(ctx, key)
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.ErrCacheMiss):
		return 0, true
	default:
		r.log.WithError(err).WithField("key", key).Warn("Failed to read cache generation")
		return 0, false
	}
}

func (r *CachedRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	gen, ok := r.generation(ctx, couponGenKey(id))
	if !ok {
		return r.next.FindActiveByID(ctx, id)
	}
	key := couponKey(id, gen)

	var snap models.CouponSnapshot
	if err := r.cache.Get(ctx, key, &snap); err == nil {
		if c, err := models.RestoreCoupon(snap); err == nil && !c.Deleted() {
			return c, nil
		}
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		r.log.WithError(err).WithField("coupon_id", id).Warn("Failed to read coupon from cache")
	}

	c, err := r.next.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, c.Snapshot(), r.ttl); err != nil {
		r.log.WithError(err).WithField("coupon_id", id).Warn("Failed to cache coupon")
	}
	return c, nil
}

func (r *CachedRepository) ListActive(ctx context.Context) ([]*models.Coupon, error) {
	gen, ok := r.generation(ctx, redis.KeyCouponsActiveGen)
	if !ok {
		return r.next.ListActive(ctx)
	}
	key := activeListKey(gen)

	var snaps []models.CouponSnapshot
	if err := r.cache.Get(ctx, key, &snaps); err == nil {
		if out, ok := restoreAll(snaps); ok {
			return out, nil
		}
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		r.log.WithError(err).Warn("Failed to read coupon list from cache")
	}

	coupons, err := r.next.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	snaps = make([]models.CouponSnapshot, 0, len(coupons))
	for _, c := range coupons {
		snaps = append(snaps, c.Snapshot())
	}
	if err := r.cache.Set(ctx, key, snaps, r.ttl); err != nil {
		r.log.WithError(err).Warn("Failed to cache coupon list")
	}
	return coupons, nil
}

func (r *CachedRepository) FindActiveByCode(ctx context.Context, code models.CouponCode) (*models.Coupon, error) {
	return r.next.FindActiveByCode(ctx, code)
}

func (r *CachedRepository) FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return r.next.FindByIDIncludingDeleted(ctx, id)
}

// Save пишет в хранилище и переводит кеш купона и списка на новое поколение
func (r *CachedRepository) Save(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	saved, err := r.next.Save(ctx, coupon)
	if err != nil {
		return nil, err
	}
	r.Invalidate(ctx, saved.ID())
	return saved, nil
}

// Invalidate делает недоступными закешированные купон и список активных
func (r *CachedRepository) Invalidate(ctx context.Context, id uuid.UUID) {
	for _, key := range []string{couponGenKey(id), redis.KeyCouponsActiveGen} {
		if _, err := r.cache.Incr(ctx, key); err != nil {
			r.log.WithError(err).WithFields(map[string]interface{}{
				"coupon_id": id,
				"key":       key,
			}).Warn("Failed to invalidate coupon cache")
		}
	}
}

func restoreAll(snaps []models.CouponSnapshot) ([]*models.Coupon, bool) {
	out := make([]*models.Coupon, 0, len(snaps))
	for _, s := range snaps {
		c, err := models.RestoreCoupon(s)
		if err != nil {
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}

var _ CouponRepository = (*CachedRepository)(nil)
