package models

import (
	"regexp"
	"strings"

	"coupon-service/internal/apperror"
)

// CodeLength задает длину нормализованного кода купона.
const CodeLength = 6

const codePadChar = 'X'

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// CouponCode хранит нормализованный шестисимвольный код купона.
// Сравнение выполняется по значению.
type CouponCode struct {
	value string
}

// NormalizeCode убирает все символы вне [A-Za-z0-9], обрезает результат до
// CodeLength символов или дополняет его справа символом 'X'.
// Пустая строка допустима и превращается в "XXXXXX", nil отклоняется.
func NormalizeCode(raw *string) (string, error) {
	if raw == nil {
		return "", apperror.Validation("coupon code cannot be null", ErrInvalidArgument)
	}

	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < len(*raw) && b.Len() < CodeLength; i++ {
		if c := (*raw)[i]; isASCIIAlnum(c) {
			b.WriteByte(c)
		}
	}
	for b.Len() < CodeLength {
		b.WriteByte(codePadChar)
	}
	return b.String(), nil
}

// NewCouponCode нормализует сырой ввод и проверяет результат.
func NewCouponCode(raw *string) (CouponCode, error) {
	normalized, err := NormalizeCode(raw)
	if err != nil {
		return CouponCode{}, err
	}
	if err := validateCode(normalized); err != nil {
		return CouponCode{}, err
	}
	return CouponCode{value: normalized}, nil
}

// validateCode повторно проверяет постусловие нормализации.
func validateCode(code string) error {
	if len(code) != CodeLength {
		return apperror.Validation("coupon code must have exactly 6 alphanumeric characters after sanitization", ErrInvalidCoupon)
	}
	if !codePattern.MatchString(code) {
		return apperror.Validation("coupon code must contain only alphanumeric characters", ErrInvalidCoupon)
	}
	return nil
}

// String возвращает нормализованное значение.
func (c CouponCode) String() string {
	return c.value
}

func isASCIIAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
