// Package domain contains the firm-scoped tariff rules evaluated by billing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CalculationKind selects how a matched rule turns usage into a charge.
type CalculationKind string

const (
	CalculationFixed           CalculationKind = "FIXED"
	CalculationPerDistanceUnit CalculationKind = "PER_DISTANCE_UNIT"
	CalculationPerTimeUnit     CalculationKind = "PER_TIME_UNIT"
	CalculationPerDay          CalculationKind = "PER_DAY"
	CalculationPercentage      CalculationKind = "PERCENTAGE"
)

func (k CalculationKind) Valid() bool {
	switch k {
	case CalculationFixed, CalculationPerDistanceUnit, CalculationPerTimeUnit, CalculationPerDay, CalculationPercentage:
		return true
	}
	return false
}

// PricingRule is one configured tariff entry. Lower Priority applies first.
// Condition holds the eligibility document, see the billing condition package for its keys.
type PricingRule struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	FirmID          snowflake.ID    `gorm:"not null;index:ix_pricing_rules_firm_priority,priority:1" json:"firm_id"`
	Name            string          `gorm:"type:text;not null" json:"name"`
	Category        string          `gorm:"type:text;not null" json:"category"`
	CalculationKind CalculationKind `gorm:"type:text;not null" json:"calculation_kind"`
	Condition       datatypes.JSON  `json:"condition"`
	Rate            decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"rate"`
	Priority        int             `gorm:"not null;default:0;index:ix_pricing_rules_firm_priority,priority:2" json:"priority"`
	IsActive        bool            `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (PricingRule) TableName() string { return "pricing_rules" }
