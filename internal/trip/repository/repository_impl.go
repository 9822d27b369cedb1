package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	tripdomain "github.com/smallbiznis/dutybill/internal/trip/domain"
	"github.com/smallbiznis/dutybill/pkg/db"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() tripdomain.Repository {
	return &repository{}
}

func (r *repository) GetTrip(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*tripdomain.Trip, error) {
	return r.find(conn.WithContext(ctx), id)
}

func (r *repository) GetTripForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*tripdomain.Trip, error) {
	return r.find(db.ForUpdate(conn.WithContext(ctx)), id)
}

func (r *repository) find(stmt *gorm.DB, id snowflake.ID) (*tripdomain.Trip, error) {
	var trip tripdomain.Trip
	err := stmt.Where("id = ?", id).First(&trip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trip, nil
}

func (r *repository) SetBillingLock(ctx context.Context, conn *gorm.DB, id snowflake.ID, locked bool, at time.Time) error {
	result := conn.WithContext(ctx).
		Model(&tripdomain.Trip{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"billing_lock": locked,
			"updated_at":   at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
