package repository

import (
	"context"

	"github.com/smallbiznis/dutybill/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for a single model.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
}
