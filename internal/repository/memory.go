package repository

import (
	"context"
	"sort"
	"sync"

	"coupon-service/internal/models"

	"github.com/google/uuid"
)

// MemoryRepository хранит купоны в памяти процесса. Соблюдает тот же
// контракт, что и SQL-адаптеры, включая уникальность кода среди активных.
type MemoryRepository struct {
	mu      sync.RWMutex
	coupons map[uuid.UUID]models.CouponSnapshot
}

// NewMemoryRepository создает пустое хранилище
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{coupons: make(map[uuid.UUID]models.CouponSnapshot)}
}

func (r *MemoryRepository) Save(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	snap := coupon.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.coupons[snap.ID]; ok && existing.Deleted {
		return nil, errAlreadyDeleted(snap.ID)
	}
	if !snap.Deleted {
		for id, other := range r.coupons {
			if id != snap.ID && !other.Deleted && other.Code == snap.Code {
				return nil, ErrDuplicateCode(coupon.Code())
			}
		}
	}

	r.coupons[snap.ID] = snap
	return models.RestoreCoupon(snap)
}

func (r *MemoryRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.coupons[id]
	if !ok || snap.Deleted {
		return nil, errNotFoundByID(id)
	}
	return models.RestoreCoupon(snap)
}

func (r *MemoryRepository) FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.coupons[id]
	if !ok {
		return nil, errNotFoundByID(id)
	}
	return models.RestoreCoupon(snap)
}

func (r *MemoryRepository) FindActiveByCode(ctx context.Context, code models.CouponCode) (*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, snap := range r.coupons {
		if !snap.Deleted && snap.Code == code.String() {
			return models.RestoreCoupon(snap)
		}
	}
	return nil, errNotFoundByCode(code)
}

func (r *MemoryRepository) ListActive(ctx context.Context) ([]*models.Coupon, error) {
	r.mu.RLock()
	snaps := make([]models.CouponSnapshot, 0, len(r.coupons))
	for _, snap := range r.coupons {
		if !snap.Deleted {
			snaps = append(snaps, snap)
		}
	}
	r.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })

	out := make([]*models.Coupon, 0, len(snaps))
	for _, snap := range snaps {
		c, err := models.RestoreCoupon(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Count возвращает число записей, включая удаленные
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.coupons)
}

var _ CouponRepository = (*MemoryRepository)(nil)
