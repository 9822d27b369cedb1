package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository reads trips and flips the billing lock. Every method runs on the
// supplied handle so callers can enlist it in their transaction.
type Repository interface {
	GetTrip(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Trip, error)
	GetTripForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Trip, error)
	SetBillingLock(ctx context.Context, db *gorm.DB, id snowflake.ID, locked bool, at time.Time) error
}
