package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события купона
type EventType string

const (
	EventTypeCouponCreated EventType = "coupon.created"
	EventTypeCouponUpdated EventType = "coupon.updated"
	EventTypeCouponDeleted EventType = "coupon.deleted"
)

// Event представляет событие, публикуемое в Kafka
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	CouponID  uuid.UUID       `json:"coupon_id"`
	Timestamp time.Time       `json:"timestamp"`
	Coupon    *CouponSnapshot `json:"coupon,omitempty"`
}
