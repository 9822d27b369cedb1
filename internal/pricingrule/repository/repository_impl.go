package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	pricingruledomain "github.com/smallbiznis/dutybill/internal/pricingrule/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() pricingruledomain.Repository {
	return &repository{}
}

func (r *repository) GetActiveRules(ctx context.Context, db *gorm.DB, firmID snowflake.ID) ([]pricingruledomain.PricingRule, error) {
	var rules []pricingruledomain.PricingRule
	err := db.WithContext(ctx).
		Model(&pricingruledomain.PricingRule{}).
		Where("firm_id = ? AND is_active = ?", firmID, true).
		Order("priority ASC").
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
