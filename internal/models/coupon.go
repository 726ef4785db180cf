package models

import (
	"fmt"
	"strings"
	"time"

	"coupon-service/internal/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Coupon — агрегат купона. Экземпляр всегда полностью валиден:
// получить его можно только через NewCoupon или RestoreCoupon.
type Coupon struct {
	id             uuid.UUID
	code           CouponCode
	description    string
	discountValue  DiscountValue
	expirationDate ExpirationDate
	published      bool
	deleted        bool
	createdAt      time.Time
	updatedAt      time.Time
}

// CouponParams описывает поля для создания купона.
// Нулевые ID/CreatedAt/UpdatedAt означают «не задано».
type CouponParams struct {
	ID             uuid.UUID
	Code           *string
	Description    string
	DiscountValue  *decimal.Decimal
	ExpirationDate time.Time
	Published      bool
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UpdateCouponParams описывает изменяемые поля купона.
type UpdateCouponParams struct {
	Description    string
	DiscountValue  *decimal.Decimal
	ExpirationDate time.Time
	Published      bool
}

// NewCoupon создает купон, проверяя все инварианты. now используется для
// проверки даты окончания и как значение по умолчанию для временных меток.
func NewCoupon(p CouponParams, now time.Time) (*Coupon, error) {
	return buildCoupon(p, now, true)
}

// RestoreCoupon восстанавливает купон из хранилища или кеша.
// Проверяются те же инварианты, кроме «дата окончания не в прошлом»:
// сохранённый купон имеет право истечь.
func RestoreCoupon(s CouponSnapshot) (*Coupon, error) {
	if s.ID == uuid.Nil {
		return nil, apperror.Validation("coupon id cannot be empty", ErrInvalidCoupon)
	}
	code := s.Code
	return buildCoupon(CouponParams{
		ID:             s.ID,
		Code:           &code,
		Description:    s.Description,
		DiscountValue:  &s.DiscountValue,
		ExpirationDate: s.ExpirationDate.Time,
		Published:      s.Published,
		Deleted:        s.Deleted,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, s.UpdatedAt, false)
}

func buildCoupon(p CouponParams, now time.Time, rejectPast bool) (*Coupon, error) {
	code, err := NewCouponCode(p.Code)
	if err != nil {
		return nil, err
	}

	discount, err := NewDiscountValue(p.DiscountValue)
	if err != nil {
		return nil, err
	}

	var expiration ExpirationDate
	if rejectPast {
		expiration, err = NewExpirationDate(p.ExpirationDate, now)
	} else {
		expiration, err = restoreExpirationDate(p.ExpirationDate)
	}
	if err != nil {
		return nil, err
	}

	if err := validateDescription(p.Description); err != nil {
		return nil, err
	}

	c := &Coupon{
		id:             p.ID,
		code:           code,
		description:    p.Description,
		discountValue:  discount,
		expirationDate: expiration,
		published:      p.Published,
		deleted:        p.Deleted,
		createdAt:      p.CreatedAt,
		updatedAt:      p.UpdatedAt,
	}
	if c.id == uuid.Nil {
		c.id = uuid.New()
	}
	if c.createdAt.IsZero() {
		c.createdAt = now
	}
	if c.updatedAt.IsZero() {
		c.updatedAt = now
	}
	return c, nil
}

func validateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return apperror.Validation("coupon description cannot be empty", ErrInvalidCoupon)
	}
	return nil
}

// MarkAsDeleted выполняет мягкое удаление. Переход однократный.
func (c *Coupon) MarkAsDeleted(now time.Time) error {
	if c.deleted {
		return apperror.Conflict(fmt.Sprintf("coupon with ID %s is already deleted", c.id), ErrCouponAlreadyDeleted)
	}
	c.deleted = true
	c.updatedAt = now
	return nil
}

// Update заменяет изменяемые поля. Все значения проверяются до изменения
// состояния, поэтому при ошибке купон остается прежним.
func (c *Coupon) Update(p UpdateCouponParams, now time.Time) error {
	if c.deleted {
		return apperror.Conflict(fmt.Sprintf("coupon with ID %s is already deleted", c.id), ErrCouponAlreadyDeleted)
	}

	discount, err := NewDiscountValue(p.DiscountValue)
	if err != nil {
		return err
	}
	expiration, err := NewExpirationDate(p.ExpirationDate, now)
	if err != nil {
		return err
	}
	if err := validateDescription(p.Description); err != nil {
		return err
	}

	c.description = p.Description
	c.discountValue = discount
	c.expirationDate = expiration
	c.published = p.Published
	c.updatedAt = now
	return nil
}

// IsExpired сообщает, истек ли купон к моменту now.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.expirationDate.IsExpired(now)
}

// IsValid — купон не удален и не истек. Не кешируется: истечение
// наступает только с течением времени.
func (c *Coupon) IsValid(now time.Time) bool {
	return !c.deleted && !c.IsExpired(now)
}

// Equal сравнивает купоны только по идентификатору.
func (c *Coupon) Equal(other *Coupon) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.id == other.id
}

func (c *Coupon) ID() uuid.UUID                  { return c.id }
func (c *Coupon) Code() CouponCode               { return c.code }
func (c *Coupon) Description() string            { return c.description }
func (c *Coupon) DiscountValue() DiscountValue   { return c.discountValue }
func (c *Coupon) ExpirationDate() ExpirationDate { return c.expirationDate }
func (c *Coupon) Published() bool                { return c.published }
func (c *Coupon) Deleted() bool                  { return c.deleted }
func (c *Coupon) CreatedAt() time.Time           { return c.createdAt }
func (c *Coupon) UpdatedAt() time.Time           { return c.updatedAt }

// Snapshot возвращает публичное представление купона для ответов, кеша и событий.
func (c *Coupon) Snapshot() CouponSnapshot {
	return CouponSnapshot{
		ID:             c.id,
		Code:           c.code.String(),
		Description:    c.description,
		DiscountValue:  c.discountValue.Decimal(),
		ExpirationDate: NewDate(c.expirationDate.Time()),
		Published:      c.published,
		Deleted:        c.deleted,
		CreatedAt:      c.createdAt,
		UpdatedAt:      c.updatedAt,
	}
}

// CouponSnapshot — сериализуемое состояние купона.
type CouponSnapshot struct {
	ID             uuid.UUID       `json:"id"`
	Code           string          `json:"code"`
	Description    string          `json:"description"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	ExpirationDate Date            `json:"expirationDate"`
	Published      bool            `json:"published"`
	Deleted        bool            `json:"deleted"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
