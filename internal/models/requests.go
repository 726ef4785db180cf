package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateCouponRequest описывает запрос на создание купона.
// Code — указатель: отсутствующий код отличается от пустой строки.
type CreateCouponRequest struct {
	Code           *string          `json:"code"`
	Description    string           `json:"description"`
	DiscountValue  *decimal.Decimal `json:"discountValue"`
	ExpirationDate *Date            `json:"expirationDate"`
	Published      bool             `json:"published"`
}

// UpdateCouponRequest описывает запрос на обновление купона.
type UpdateCouponRequest struct {
	Description    string           `json:"description"`
	DiscountValue  *decimal.Decimal `json:"discountValue"`
	ExpirationDate *Date            `json:"expirationDate"`
	Published      bool             `json:"published"`
}

// ExpirationTime возвращает дату окончания или нулевое время, если она не передана.
func (r *CreateCouponRequest) ExpirationTime() time.Time {
	return dateOrZero(r.ExpirationDate)
}

// ExpirationTime возвращает дату окончания или нулевое время, если она не передана.
func (r *UpdateCouponRequest) ExpirationTime() time.Time {
	return dateOrZero(r.ExpirationDate)
}

func dateOrZero(d *Date) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
