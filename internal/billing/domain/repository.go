package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists bills and their line items. Every method takes the
// handle to run on so callers can scope work to a transaction.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindActiveByTrip(ctx context.Context, db *gorm.DB, tripID snowflake.ID) (*Bill, error)
	ListLines(ctx context.Context, db *gorm.DB, billID snowflake.ID) ([]BillLineItem, error)

	Insert(ctx context.Context, db *gorm.DB, bill *Bill, lines []BillLineItem) error
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	MarkFinal(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, from BillStatus, actorID *string, reason string, at time.Time) (bool, error)
}
