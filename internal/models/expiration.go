package models

import (
	"time"

	"coupon-service/internal/apperror"
)

// ExpirationDate хранит календарную дату окончания действия купона (UTC, без времени суток).
type ExpirationDate struct {
	value time.Time
}

// NewExpirationDate отклоняет пустую дату и даты раньше сегодняшней.
func NewExpirationDate(date, now time.Time) (ExpirationDate, error) {
	exp, err := restoreExpirationDate(date)
	if err != nil {
		return ExpirationDate{}, err
	}
	if exp.value.Before(truncateToDate(now)) {
		return ExpirationDate{}, apperror.Validation("expiration date cannot be in the past", ErrInvalidCoupon)
	}
	return exp, nil
}

// restoreExpirationDate используется при чтении из хранилища: сохранённый
// купон мог истечь, поэтому проверяется только наличие даты.
func restoreExpirationDate(date time.Time) (ExpirationDate, error) {
	if date.IsZero() {
		return ExpirationDate{}, apperror.Validation("expiration date cannot be null", ErrInvalidCoupon)
	}
	return ExpirationDate{value: truncateToDate(date)}, nil
}

// IsExpired вычисляется относительно переданного момента, а не в момент создания.
func (e ExpirationDate) IsExpired(now time.Time) bool {
	return e.value.Before(truncateToDate(now))
}

// Time возвращает дату как полночь UTC.
func (e ExpirationDate) Time() time.Time {
	return e.value
}

func (e ExpirationDate) String() string {
	return e.value.Format(DateLayout)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
