package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coupon-service/internal/database"
	"coupon-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// couponRecord описывает строку таблицы coupons для GORM.
// Скидка хранится текстом, чтобы SQLite не приводил её к REAL.
type couponRecord struct {
	ID             string          `gorm:"primaryKey;type:varchar(36)"`
	Code           string          `gorm:"type:varchar(6);not null;index:idx_coupons_active_code,unique,where:deleted = false"`
	Description    string          `gorm:"type:text;not null"`
	DiscountValue  decimal.Decimal `gorm:"type:text;not null"`
	ExpirationDate time.Time       `gorm:"type:date;not null"`
	Published      bool            `gorm:"not null;default:false"`
	Deleted        bool            `gorm:"not null;default:false;index"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime:false"`
	UpdatedAt      time.Time       `gorm:"not null;autoUpdateTime:false"`
}

func (couponRecord) TableName() string { return "coupons" }

func couponToRecord(c *models.Coupon) *couponRecord {
	return &couponRecord{
		ID:             c.ID().String(),
		Code:           c.Code().String(),
		Description:    c.Description(),
		DiscountValue:  c.DiscountValue().Decimal(),
		ExpirationDate: c.ExpirationDate().Time(),
		Published:      c.Published(),
		Deleted:        c.Deleted(),
		CreatedAt:      c.CreatedAt(),
		UpdatedAt:      c.UpdatedAt(),
	}
}

func recordToCoupon(r *couponRecord) (*models.Coupon, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("stored coupon id %q is invalid: %w", r.ID, err)
	}
	c, err := models.RestoreCoupon(models.CouponSnapshot{
		ID:             id,
		Code:           r.Code,
		Description:    r.Description,
		DiscountValue:  r.DiscountValue,
		ExpirationDate: models.NewDate(r.ExpirationDate),
		Published:      r.Published,
		Deleted:        r.Deleted,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("stored coupon %s is invalid: %w", r.ID, err)
	}
	return c, nil
}

// GormRepository хранит купоны в SQLite через GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository открывает GORM поверх уже установленного SQLite-подключения
func NewGormRepository(db *database.DB) (*GormRepository, error) {
	gdb, err := gorm.Open(sqlite.Dialector{Conn: db.DB}, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return &GormRepository{db: gdb}, nil
}

// Migrate создает таблицу coupons и частичный уникальный индекс по коду
func (r *GormRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&couponRecord{}); err != nil {
		return fmt.Errorf("failed to migrate coupons: %w", err)
	}
	return nil
}

// Save вставляет или обновляет купон в одной транзакции
func (r *GormRepository) Save(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	rec := couponToRecord(coupon)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing couponRecord
		err := tx.Where("id = ?", rec.ID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(rec).Error
		case err != nil:
			return err
		case existing.Deleted:
			return errAlreadyDeleted(coupon.ID())
		}

		return tx.Model(&couponRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
			"code":            rec.Code,
			"description":     rec.Description,
			"discount_value":  rec.DiscountValue,
			"expiration_date": rec.ExpirationDate,
			"published":       rec.Published,
			"deleted":         rec.Deleted,
			"updated_at":      rec.UpdatedAt,
		}).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrCouponAlreadyDeleted) {
			return nil, err
		}
		if isDuplicateKey(err) {
			return nil, ErrDuplicateCode(coupon.Code())
		}
		return nil, fmt.Errorf("failed to save coupon: %w", err)
	}

	return r.FindByIDIncludingDeleted(ctx, coupon.ID())
}

// FindActiveByID возвращает купон, только если он не удален
func (r *GormRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return r.first(ctx, errNotFoundByID(id), "id = ? AND deleted = ?", id.String(), false)
}

// FindByIDIncludingDeleted возвращает купон независимо от удаления
func (r *GormRepository) FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return r.first(ctx, errNotFoundByID(id), "id = ?", id.String())
}

// FindActiveByCode ищет активный купон по нормализованному коду
func (r *GormRepository) FindActiveByCode(ctx context.Context, code models.CouponCode) (*models.Coupon, error) {
	return r.first(ctx, errNotFoundByCode(code), "code = ? AND deleted = ?", code.String(), false)
}

// ListActive возвращает все активные купоны, новые первыми
func (r *GormRepository) ListActive(ctx context.Context) ([]*models.Coupon, error) {
	var recs []couponRecord
	if err := r.db.WithContext(ctx).Where("deleted = ?", false).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	out := make([]*models.Coupon, 0, len(recs))
	for i := range recs {
		c, err := recordToCoupon(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *GormRepository) first(ctx context.Context, notFound error, query string, args ...interface{}) (*models.Coupon, error) {
	var rec couponRecord
	if err := r.db.WithContext(ctx).Where(query, args...).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return recordToCoupon(&rec)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ CouponRepository = (*GormRepository)(nil)
