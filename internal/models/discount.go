package models

import (
	"coupon-service/internal/apperror"

	"github.com/shopspring/decimal"
)

// MinDiscountValue задает минимально допустимую скидку.
var MinDiscountValue = decimal.RequireFromString("0.5")

// DiscountValue хранит размер скидки в точном десятичном представлении.
type DiscountValue struct {
	value decimal.Decimal
}

// NewDiscountValue проверяет, что скидка задана и не меньше MinDiscountValue.
func NewDiscountValue(amount *decimal.Decimal) (DiscountValue, error) {
	if amount == nil {
		return DiscountValue{}, apperror.Validation("discount value cannot be null", ErrInvalidCoupon)
	}
	if amount.LessThan(MinDiscountValue) {
		return DiscountValue{}, apperror.Validation("discount value cannot be less than "+MinDiscountValue.String(), ErrInvalidCoupon)
	}
	return DiscountValue{value: *amount}, nil
}

// Decimal возвращает значение скидки.
func (d DiscountValue) Decimal() decimal.Decimal {
	return d.value
}

// Equal сравнивает скидки по точному значению: 10.5 и 10.50 равны.
func (d DiscountValue) Equal(other DiscountValue) bool {
	return d.value.Equal(other.value)
}

func (d DiscountValue) String() string {
	return d.value.String()
}
