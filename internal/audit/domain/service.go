package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Entry describes one audit record to write.
type Entry struct {
	FirmID     *snowflake.ID
	ActorType  ActorType
	ActorID    *string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type Service interface {
	// Record writes entry on tx so the audit row commits or rolls back with the change it describes.
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	ListForTarget(ctx context.Context, targetType string, targetID string) ([]AuditLog, error)
}

type ListFilter struct {
	TargetType string
	TargetID   string
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidTarget = errors.New("invalid_target")
)
