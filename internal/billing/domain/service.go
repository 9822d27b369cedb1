package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BillTotals is the summary of a list of line items.
type BillTotals struct {
	SubTotal       decimal.Decimal `json:"sub_total"`
	TaxPercentage  decimal.Decimal `json:"tax_percentage"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	RoundOffAmount decimal.Decimal `json:"round_off_amount"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
}

// BillPreview is a computed, unpersisted bill.
type BillPreview struct {
	Context BillingContext `json:"context"`
	Lines   []BillLineItem `json:"lines"`
	Totals  BillTotals     `json:"totals"`
}

// BillEvent is one audit trail entry recorded against a bill.
type BillEvent struct {
	ID         snowflake.ID   `json:"id"`
	BillID     snowflake.ID   `json:"bill_id"`
	Action     string         `json:"action"`
	ActorType  string         `json:"actor_type"`
	ActorID    *string        `json:"actor_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// CancelRequest carries the actor and reason for a cancellation.
type CancelRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

// Service is the bill lifecycle surface.
type Service interface {
	GenerateBillLines(ctx context.Context, tripID string) ([]BillLineItem, error)
	Preview(ctx context.Context, tripID string) (*BillPreview, error)
	GenerateAndSave(ctx context.Context, tripID string) (*Bill, error)
	Finalize(ctx context.Context, billID string) (*Bill, error)
	Cancel(ctx context.Context, billID string, req CancelRequest) (*Bill, error)

	GetBill(ctx context.Context, billID string) (*Bill, error)
	GetActiveBillForTrip(ctx context.Context, tripID string) (*Bill, error)
	ListBillEvents(ctx context.Context, billID string) ([]BillEvent, error)
}
