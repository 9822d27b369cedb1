// Package domain contains persistence models and contracts for trip billing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BillStatus represents bill lifecycle states.
type BillStatus string

const (
	BillStatusDraft     BillStatus = "DRAFT"
	BillStatusFinal     BillStatus = "FINAL"
	BillStatusCancelled BillStatus = "CANCELLED"
)

// CanTransition reports whether the lifecycle allows from -> to.
// DRAFT is only reachable by creation and nothing leaves CANCELLED.
func CanTransition(from, to BillStatus) bool {
	switch from {
	case BillStatusDraft:
		return to == BillStatusFinal || to == BillStatusCancelled
	case BillStatusFinal:
		return to == BillStatusCancelled
	default:
		return false
	}
}

// Bill is the invoice header for one trip. At most one non-deleted bill exists
// per trip; the database enforces it with ux_bills_active_trip.
type Bill struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	TripID             snowflake.ID    `gorm:"not null;index" json:"trip_id"`
	FirmID             snowflake.ID    `gorm:"not null;uniqueIndex:ux_bills_firm_number,priority:1" json:"firm_id"`
	CustomerID         snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	BillNumber         string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_bills_firm_number,priority:2" json:"bill_number"`
	BillDate           time.Time       `gorm:"not null" json:"bill_date"`
	SubTotal           decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"sub_total"`
	TaxPercentage      decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"tax_percentage"`
	TaxAmount          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"tax_amount"`
	RoundOffAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"round_off_amount"`
	GrandTotal         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"grand_total"`
	Status             BillStatus      `gorm:"type:varchar(16);not null" json:"status"`
	FinalizedAt        *time.Time      `json:"finalized_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy        *string         `gorm:"type:text" json:"cancelled_by,omitempty"`
	CancellationReason *string         `gorm:"type:text" json:"cancellation_reason,omitempty"`
	IsDeleted          bool            `gorm:"not null;default:false" json:"is_deleted"`
	DeletedAt          *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`

	Lines []BillLineItem `gorm:"-" json:"lines,omitempty"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// BillLineItem is one charge produced by one matched rule. Preview lines are
// never persisted and carry zero ID/BillID.
type BillLineItem struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id,omitempty"`
	BillID          snowflake.ID    `gorm:"not null;index" json:"bill_id,omitempty"`
	Position        int             `gorm:"not null" json:"position"`
	RuleID          snowflake.ID    `gorm:"not null" json:"rule_id"`
	RuleName        string          `gorm:"type:text;not null" json:"rule_name"`
	Category        string          `gorm:"type:text;not null" json:"category"`
	CalculationKind string          `gorm:"type:varchar(32);not null" json:"calculation_kind"`
	Quantity        decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"quantity"`
	Rate            decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"rate"`
	Amount          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	IsDeleted       bool            `gorm:"not null;default:false" json:"-"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at,omitempty"`
}

// TableName sets the database table name.
func (BillLineItem) TableName() string { return "bill_line_items" }
