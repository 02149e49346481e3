package models

import (
	"time"

	"github.com/google/uuid"
)

// LeaderboardEntry строка рейтинга; Rank начинается с 1.
type LeaderboardEntry struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Points     int       `json:"points"`
	Rank       int       `json:"rank"`
}

// SpinSegment сектор колеса удачи
type SpinSegment struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Weight int    `json:"weight"`
	Coupon bool   `json:"coupon"`
}

// SpinResult результат вращения колеса
type SpinResult struct {
	Segment    string    `json:"segment"`
	Points     int       `json:"points"`
	CouponCode *string   `json:"coupon_code,omitempty"`
	SpunAt     time.Time `json:"spun_at"`
	NextSpinAt time.Time `json:"next_spin_at"`
}
