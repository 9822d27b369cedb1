package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// GetActiveRules returns the firm's active rules ordered by priority, then id.
	GetActiveRules(ctx context.Context, db *gorm.DB, firmID snowflake.ID) ([]PricingRule, error)
}
