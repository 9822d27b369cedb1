package domain

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tripdomain "github.com/smallbiznis/dutybill/internal/trip/domain"
)

var (
	minutesPerHour = decimal.NewFromInt(60)
	hoursPerDay    = decimal.NewFromInt(24)
)

// BillingContext is the normalized usage a trip is billed on.
type BillingContext struct {
	TripID       snowflake.ID    `json:"trip_id"`
	FirmID       snowflake.ID    `json:"firm_id"`
	CustomerID   snowflake.ID    `json:"customer_id"`
	TotalKm      decimal.Decimal `json:"total_km"`
	TotalMinutes int64           `json:"total_minutes"`
	Hours        decimal.Decimal `json:"hours"`
	Days         decimal.Decimal `json:"days"`
	TripType     string          `json:"trip_type"`
	Status       string          `json:"status"`
}

// BuildContext projects a trip onto the metrics pricing rules are evaluated against.
func BuildContext(trip tripdomain.Trip, defaultStatus string) BillingContext {
	hours := decimal.NewFromInt(trip.TotalMinutes).Div(minutesPerHour)

	status := strings.TrimSpace(trip.Status)
	if status == "" {
		status = defaultStatus
	}

	return BillingContext{
		TripID:       trip.ID,
		FirmID:       trip.FirmID,
		CustomerID:   trip.CustomerID,
		TotalKm:      trip.TotalKm,
		TotalMinutes: trip.TotalMinutes,
		Hours:        hours,
		Days:         hours.Div(hoursPerDay).Ceil(),
		TripType:     trip.TripType(),
		Status:       status,
	}
}
