// Package domain contains the duty slip (trip) usage record consumed by billing.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	TripTypeLocal      = "Local"
	TripTypeOutstation = "Outstation"
)

// Trip is a duty slip: one cab usage with its measured distance and duration.
// BillingLock is owned by the bill lifecycle; trip editors must refuse changes while it is set.
type Trip struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	FirmID       snowflake.ID    `gorm:"not null;index" json:"firm_id"`
	CustomerID   snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	Source       string          `gorm:"type:text" json:"source"`
	Destination  *string         `gorm:"type:text" json:"destination,omitempty"`
	TotalKm      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_km"`
	TotalMinutes int64           `gorm:"not null;default:0" json:"total_minutes"`
	Status       string          `gorm:"type:text" json:"status"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	BillingLock  bool            `gorm:"not null;default:false" json:"billing_lock"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Trip) TableName() string { return "duty_slips" }

// TripType classifies the trip by whether a destination was recorded.
func (t Trip) TripType() string {
	if t.Destination != nil && strings.TrimSpace(*t.Destination) != "" {
		return TripTypeOutstation
	}
	return TripTypeLocal
}
