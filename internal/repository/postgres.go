package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coupon-service/internal/database"
	"coupon-service/internal/logger"
	"coupon-service/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const couponColumns = `id, code, description, discount_value, expiration_date, published, deleted, created_at, updated_at`

// Частичный уникальный индекс закрывает гонку между проверкой кода и записью:
// два активных купона с одним кодом не могут существовать одновременно.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS coupons (
		id UUID PRIMARY KEY,
		code VARCHAR(6) NOT NULL,
		description TEXT NOT NULL,
		discount_value NUMERIC NOT NULL,
		expiration_date DATE NOT NULL,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS coupons_active_code_uidx ON coupons (code) WHERE deleted = FALSE`,
	`CREATE INDEX IF NOT EXISTS coupons_deleted_created_idx ON coupons (deleted, created_at DESC)`,
}

// PostgresRepository хранит купоны в PostgreSQL
type PostgresRepository struct {
	db  *database.DB
	log *logger.Logger
}

// NewPostgresRepository создает репозиторий купонов поверх PostgreSQL
func NewPostgresRepository(db *database.DB, log *logger.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		log: log,
	}
}

// Migrate создает таблицу и индексы, если их нет
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply coupons schema: %w", err)
		}
	}
	r.log.Info("Coupons schema is up to date")
	return nil
}

// Save вставляет или обновляет купон. Строка, уже помеченная удалённой,
// не обновляется: RETURNING тогда не вернет ни одной строки.
func (r *PostgresRepository) Save(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	query := `
		INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			description = EXCLUDED.description,
			discount_value = EXCLUDED.discount_value,
			expiration_date = EXCLUDED.expiration_date,
			published = EXCLUDED.published,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
		WHERE NOT coupons.deleted
		RETURNING ` + couponColumns

	row := r.db.QueryRowContext(ctx, query,
		coupon.ID(),
		coupon.Code().String(),
		coupon.Description(),
		coupon.DiscountValue().Decimal(),
		coupon.ExpirationDate().Time(),
		coupon.Published(),
		coupon.Deleted(),
		coupon.CreatedAt(),
		coupon.UpdatedAt(),
	)

	saved, err := scanCoupon(row)
	if err != nil {
		var pqErr *pq.Error
		switch {
		case errors.As(err, &pqErr) && pqErr.Code == uniqueViolation:
			return nil, ErrDuplicateCode(coupon.Code())
		case errors.Is(err, sql.ErrNoRows):
			return nil, errAlreadyDeleted(coupon.ID())
		}
		return nil, fmt.Errorf("failed to save coupon: %w", err)
	}
	return saved, nil
}

// FindActiveByID возвращает купон, только если он не удален
func (r *PostgresRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 AND deleted = FALSE`
	return r.findOne(ctx, query, id, errNotFoundByID(id))
}

// FindByIDIncludingDeleted возвращает купон независимо от удаления
func (r *PostgresRepository) FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	return r.findOne(ctx, query, id, errNotFoundByID(id))
}

// FindActiveByCode ищет активный купон по нормализованному коду
func (r *PostgresRepository) FindActiveByCode(ctx context.Context, code models.CouponCode) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 AND deleted = FALSE`
	return r.findOne(ctx, query, code.String(), errNotFoundByCode(code))
}

// ListActive возвращает все активные купоны, новые первыми
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE deleted = FALSE ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := make([]*models.Coupon, 0)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}
	return coupons, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg interface{}, notFound error) (*models.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	var (
		s          models.CouponSnapshot
		expiration time.Time
	)
	if err := row.Scan(&s.ID, &s.Code, &s.Description, &s.DiscountValue, &expiration,
		&s.Published, &s.Deleted, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.ExpirationDate = models.NewDate(expiration)

	c, err := models.RestoreCoupon(s)
	if err != nil {
		return nil, fmt.Errorf("stored coupon %s is invalid: %w", s.ID, err)
	}
	return c, nil
}

var _ CouponRepository = (*PostgresRepository)(nil)
