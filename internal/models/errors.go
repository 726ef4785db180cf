package models

import "errors"

// Доменные исходы. Сервисы оборачивают их в apperror.Error, чтобы
// вызывающий код мог различать их через errors.Is.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidCoupon        = errors.New("invalid coupon")
	ErrCouponNotFound       = errors.New("coupon not found")
	ErrCouponAlreadyDeleted = errors.New("coupon already deleted")
	ErrDuplicateActiveCode  = errors.New("coupon code already in use by an active coupon")
)
