package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dutybill/internal/billing/domain"
	"github.com/smallbiznis/dutybill/pkg/db"
	"github.com/smallbiznis/dutybill/pkg/db/option"
	"github.com/smallbiznis/dutybill/pkg/repository"
	"gorm.io/gorm"
)

var (
	lineSort   = option.WithSortBy(option.WithQuerySortBy("position", "asc", map[string]bool{"position": true}))
	notDeleted = option.ApplyOperator(option.Condition{Field: "is_deleted", Operator: option.EQ, Value: false})
)

type repo struct {
	bills repository.Repository[domain.Bill]
	lines repository.Repository[domain.BillLineItem]
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &repo{
		bills: repository.ProvideStore[domain.Bill](conn),
		lines: repository.ProvideStore[domain.BillLineItem](conn),
	}
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	return r.bills.WithTrx(conn).FindOne(ctx, &domain.Bill{ID: id}, notDeleted)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	return r.bills.WithTrx(db.ForUpdate(conn)).FindOne(ctx, &domain.Bill{ID: id}, notDeleted)
}

// FindActiveByTrip returns the latest non-deleted bill for the trip.
func (r *repo) FindActiveByTrip(ctx context.Context, conn *gorm.DB, tripID snowflake.ID) (*domain.Bill, error) {
	return r.findOne(conn.WithContext(ctx).
		Where("trip_id = ? AND is_deleted = ?", tripID, false).
		Order("created_at DESC").
		Order("id DESC"))
}

func (r *repo) findOne(stmt *gorm.DB) (*domain.Bill, error) {
	var bill domain.Bill
	if err := stmt.First(&bill).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}

func (r *repo) ListLines(ctx context.Context, conn *gorm.DB, billID snowflake.ID) ([]domain.BillLineItem, error) {
	items, err := r.lines.WithTrx(conn).Find(ctx,
		&domain.BillLineItem{BillID: billID},
		notDeleted,
		lineSort,
	)
	if err != nil {
		return nil, err
	}

	out := make([]domain.BillLineItem, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

// Insert writes the header then its lines. A second active bill for the
// same trip violates ux_bills_active_trip and surfaces as a duplicate key.
func (r *repo) Insert(ctx context.Context, conn *gorm.DB, bill *domain.Bill, lines []domain.BillLineItem) error {
	if err := r.bills.WithTrx(conn).Create(ctx, bill); err != nil {
		return err
	}

	items := make([]*domain.BillLineItem, 0, len(lines))
	for i := range lines {
		lines[i].BillID = bill.ID
		items = append(items, &lines[i])
	}
	return r.lines.WithTrx(conn).BatchCreate(ctx, items)
}

func (r *repo) SoftDelete(ctx context.Context, conn *gorm.DB, id snowflake.ID, at time.Time) error {
	tx := conn.WithContext(ctx)
	result := tx.Model(&domain.Bill{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return tx.Model(&domain.BillLineItem{}).
		Where("bill_id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true).Error
}

// MarkFinal moves a DRAFT bill to FINAL. It reports false when the bill was
// no longer DRAFT.
func (r *repo) MarkFinal(ctx context.Context, conn *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := conn.WithContext(ctx).Model(&domain.Bill{}).
		Where("id = ? AND status = ? AND is_deleted = ?", id, domain.BillStatusDraft, false).
		Updates(map[string]any{
			"status":       domain.BillStatusFinal,
			"finalized_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkCancelled(ctx context.Context, conn *gorm.DB, id snowflake.ID, from domain.BillStatus, actorID *string, reason string, at time.Time) (bool, error) {
	result := conn.WithContext(ctx).Model(&domain.Bill{}).
		Where("id = ? AND status = ? AND is_deleted = ?", id, from, false).
		Updates(map[string]any{
			"status":              domain.BillStatusCancelled,
			"cancelled_at":        at,
			"cancelled_by":        actorID,
			"cancellation_reason": reason,
			"updated_at":          at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
