package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/dutybill/internal/audit/domain"
	billingdomain "github.com/smallbiznis/dutybill/internal/billing/domain"
	"github.com/smallbiznis/dutybill/internal/billing/rating"
	"github.com/smallbiznis/dutybill/internal/clock"
	"github.com/smallbiznis/dutybill/internal/config"
	"github.com/smallbiznis/dutybill/internal/observability/metrics"
	pricingruledomain "github.com/smallbiznis/dutybill/internal/pricingrule/domain"
	tripdomain "github.com/smallbiznis/dutybill/internal/trip/domain"
	"github.com/smallbiznis/dutybill/internal/triplock"
	"github.com/smallbiznis/dutybill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	auditTargetBill = "bill"

	actionBillGenerated  = "bill.generated"
	actionBillSuperseded = "bill.superseded"
	actionBillFinalized  = "bill.finalized"
	actionBillCancelled  = "bill.cancelled"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Billing  *config.BillingConfigHolder
	TripRepo tripdomain.Repository
	RuleRepo pricingruledomain.Repository
	BillRepo billingdomain.Repository
	AuditSvc auditdomain.Service

	Metrics  *metrics.BillingMetrics `optional:"true"`
	TripLock *triplock.TripLock      `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	billing  *config.BillingConfigHolder
	tripRepo tripdomain.Repository
	ruleRepo pricingruledomain.Repository
	billRepo billingdomain.Repository
	auditSvc auditdomain.Service

	metrics  *metrics.BillingMetrics
	tripLock *triplock.TripLock

	numberMu   sync.Mutex
	lastNumber time.Time
}

func NewService(p ServiceParam) billingdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	billing := p.Billing
	if billing == nil {
		billing = config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	}

	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.service"),
		genID: p.GenID,
		clock: c,

		billing:  billing,
		tripRepo: p.TripRepo,
		ruleRepo: p.RuleRepo,
		billRepo: p.BillRepo,
		auditSvc: p.AuditSvc,

		metrics:  p.Metrics,
		tripLock: p.TripLock,
	}
}

func (s *Service) GenerateBillLines(ctx context.Context, tripID string) ([]billingdomain.BillLineItem, error) {
	preview, err := s.Preview(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return preview.Lines, nil
}

// Preview computes the bill a trip would get under the current rules. It
// never writes and ignores any existing bill state.
func (s *Service) Preview(ctx context.Context, tripID string) (*billingdomain.BillPreview, error) {
	preview, err := s.preview(ctx, tripID)
	s.observe(metrics.OperationPreview, err)
	return preview, err
}

func (s *Service) preview(ctx context.Context, tripID string) (*billingdomain.BillPreview, error) {
	id, err := parseID(tripID)
	if err != nil {
		return nil, billingdomain.ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetTrip(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, billingdomain.ErrTripNotFound
	}
	return s.compute(ctx, s.db, trip)
}

func (s *Service) compute(ctx context.Context, conn *gorm.DB, trip *tripdomain.Trip) (*billingdomain.BillPreview, error) {
	cfg := s.billing.Get()
	billingCtx := billingdomain.BuildContext(*trip, cfg.DefaultTripStatus)

	rules, err := s.ruleRepo.GetActiveRules(ctx, conn, trip.FirmID)
	if err != nil {
		return nil, err
	}

	calc := rating.NewCalculator(cfg.TaxCategory)
	lines, err := calc.Apply(rules, billingCtx)
	if err != nil {
		if billingdomain.IsRuleConfiguration(err) {
			s.metrics.RecordRuleConfigurationError()
			s.log.Error("pricing rule configuration error",
				zap.String("trip_id", trip.ID.String()),
				zap.String("firm_id", trip.FirmID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	return &billingdomain.BillPreview{
		Context: billingCtx,
		Lines:   lines,
		Totals:  calc.Summarize(lines),
	}, nil
}

// GenerateAndSave replaces the trip's active bill with a freshly computed
// DRAFT. A FINAL bill blocks regeneration until it is cancelled.
func (s *Service) GenerateAndSave(ctx context.Context, tripID string) (*billingdomain.Bill, error) {
	bill, err := s.generateAndSave(ctx, tripID)
	s.observe(metrics.OperationGenerate, err)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveGrandTotal(bill.GrandTotal.InexactFloat64())
	return bill, nil
}

func (s *Service) generateAndSave(ctx context.Context, tripID string) (*billingdomain.Bill, error) {
	id, err := parseID(tripID)
	if err != nil {
		return nil, billingdomain.ErrInvalidTripID
	}

	release, err := s.tripLock.Acquire(ctx, id.String())
	defer release()
	if err != nil {
		if errors.Is(err, triplock.ErrLocked) {
			return nil, billingdomain.ErrBillGenerationInProgress
		}
		s.log.Warn("trip lock unavailable, relying on database constraint",
			zap.String("trip_id", id.String()),
			zap.Error(err),
		)
	}

	var created *billingdomain.Bill
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trip, err := s.tripRepo.GetTripForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if trip == nil {
			return billingdomain.ErrTripNotFound
		}

		now := s.clock.Now()

		existing, err := s.billRepo.FindActiveByTrip(ctx, tx, trip.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == billingdomain.BillStatusFinal {
				return billingdomain.ErrBillAlreadyFinal
			}
			if err := s.billRepo.SoftDelete(ctx, tx, existing.ID, now); err != nil {
				return err
			}
			if err := s.recordAudit(ctx, tx, actionBillSuperseded, existing, nil, map[string]any{
				"previous_status": string(existing.Status),
				"bill_number":     existing.BillNumber,
			}); err != nil {
				return err
			}
		}

		preview, err := s.compute(ctx, tx, trip)
		if err != nil {
			return err
		}

		bill := &billingdomain.Bill{
			ID:             s.genID.Generate(),
			TripID:         trip.ID,
			FirmID:         trip.FirmID,
			CustomerID:     trip.CustomerID,
			BillNumber:     s.nextBillNumber(trip.FirmID, now),
			BillDate:       now,
			SubTotal:       preview.Totals.SubTotal,
			TaxPercentage:  preview.Totals.TaxPercentage,
			TaxAmount:      preview.Totals.TaxAmount,
			RoundOffAmount: preview.Totals.RoundOffAmount,
			GrandTotal:     preview.Totals.GrandTotal,
			Status:         billingdomain.BillStatusDraft,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		lines := preview.Lines
		for i := range lines {
			lines[i].ID = s.genID.Generate()
			lines[i].CreatedAt = now
		}

		if err := s.billRepo.Insert(ctx, tx, bill, lines); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return billingdomain.ErrConcurrentBillGeneration
			}
			return err
		}
		bill.Lines = lines

		metadata := map[string]any{
			"bill_number": bill.BillNumber,
			"grand_total": bill.GrandTotal.StringFixed(2),
			"line_count":  len(lines),
		}
		if existing != nil {
			metadata["superseded_bill_id"] = existing.ID.String()
		}
		if err := s.recordAudit(ctx, tx, actionBillGenerated, bill, nil, metadata); err != nil {
			return err
		}

		created = bill
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, billingdomain.ErrConcurrentBillGeneration
		}
		return nil, err
	}

	s.log.Info("bill generated",
		zap.String("bill_id", created.ID.String()),
		zap.String("trip_id", created.TripID.String()),
		zap.String("bill_number", created.BillNumber),
		zap.String("grand_total", created.GrandTotal.StringFixed(2)),
	)
	return created, nil
}

// Finalize moves a DRAFT bill to FINAL and sets the trip billing lock in the
// same transaction.
func (s *Service) Finalize(ctx context.Context, billID string) (*billingdomain.Bill, error) {
	bill, err := s.finalize(ctx, billID)
	s.observe(metrics.OperationFinalize, err)
	return bill, err
}

func (s *Service) finalize(ctx context.Context, billID string) (*billingdomain.Bill, error) {
	id, err := parseID(billID)
	if err != nil {
		return nil, billingdomain.ErrInvalidBillID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := s.loadForTransition(ctx, tx, id)
		if err != nil {
			return err
		}
		if !billingdomain.CanTransition(bill.Status, billingdomain.BillStatusFinal) {
			return rejectTransition(bill.Status)
		}

		now := s.clock.Now()
		ok, err := s.billRepo.MarkFinal(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !ok {
			return s.transitionConflict(ctx, tx, id)
		}
		if err := s.setTripLock(ctx, tx, bill.TripID, true, now); err != nil {
			return err
		}

		return s.recordAudit(ctx, tx, actionBillFinalized, bill, nil, map[string]any{
			"previous_status": string(bill.Status),
			"bill_number":     bill.BillNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bill finalized", zap.String("bill_id", id.String()))
	return s.getBill(ctx, id)
}

// Cancel moves a DRAFT or FINAL bill to CANCELLED and clears the trip
// billing lock.
func (s *Service) Cancel(ctx context.Context, billID string, req billingdomain.CancelRequest) (*billingdomain.Bill, error) {
	bill, err := s.cancel(ctx, billID, req)
	s.observe(metrics.OperationCancel, err)
	return bill, err
}

func (s *Service) cancel(ctx context.Context, billID string, req billingdomain.CancelRequest) (*billingdomain.Bill, error) {
	id, err := parseID(billID)
	if err != nil {
		return nil, billingdomain.ErrInvalidBillID
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, billingdomain.ErrInvalidCancelReason
	}
	var actorID *string
	if actor := strings.TrimSpace(req.ActorID); actor != "" {
		actorID = &actor
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := s.loadForTransition(ctx, tx, id)
		if err != nil {
			return err
		}
		if !billingdomain.CanTransition(bill.Status, billingdomain.BillStatusCancelled) {
			return rejectTransition(bill.Status)
		}

		now := s.clock.Now()
		ok, err := s.billRepo.MarkCancelled(ctx, tx, id, bill.Status, actorID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return s.transitionConflict(ctx, tx, id)
		}
		if err := s.setTripLock(ctx, tx, bill.TripID, false, now); err != nil {
			return err
		}

		return s.recordAudit(ctx, tx, actionBillCancelled, bill, actorID, map[string]any{
			"previous_status": string(bill.Status),
			"reason":          reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bill cancelled", zap.String("bill_id", id.String()))
	return s.getBill(ctx, id)
}

func (s *Service) GetBill(ctx context.Context, billID string) (*billingdomain.Bill, error) {
	id, err := parseID(billID)
	if err != nil {
		return nil, billingdomain.ErrInvalidBillID
	}
	return s.getBill(ctx, id)
}

func (s *Service) GetActiveBillForTrip(ctx context.Context, tripID string) (*billingdomain.Bill, error) {
	id, err := parseID(tripID)
	if err != nil {
		return nil, billingdomain.ErrInvalidTripID
	}

	bill, err := s.billRepo.FindActiveByTrip(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		trip, err := s.tripRepo.GetTrip(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if trip == nil {
			return nil, billingdomain.ErrTripNotFound
		}
		return nil, billingdomain.ErrBillNotFound
	}
	return s.withLines(ctx, bill)
}

// ListBillEvents returns the audit trail of a bill, superseded bills included.
func (s *Service) ListBillEvents(ctx context.Context, billID string) ([]billingdomain.BillEvent, error) {
	id, err := parseID(billID)
	if err != nil {
		return nil, billingdomain.ErrInvalidBillID
	}

	logs, err := s.auditSvc.ListForTarget(ctx, auditTargetBill, id.String())
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, billingdomain.ErrBillNotFound
	}

	events := make([]billingdomain.BillEvent, 0, len(logs))
	for _, log := range logs {
		events = append(events, billingdomain.BillEvent{
			ID:         log.ID,
			BillID:     id,
			Action:     log.Action,
			ActorType:  log.ActorType,
			ActorID:    log.ActorID,
			Metadata:   map[string]any(log.Metadata),
			OccurredAt: log.CreatedAt,
		})
	}
	return events, nil
}

func (s *Service) getBill(ctx context.Context, id snowflake.ID) (*billingdomain.Bill, error) {
	bill, err := s.billRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billingdomain.ErrBillNotFound
	}
	return s.withLines(ctx, bill)
}

func (s *Service) withLines(ctx context.Context, bill *billingdomain.Bill) (*billingdomain.Bill, error) {
	lines, err := s.billRepo.ListLines(ctx, s.db, bill.ID)
	if err != nil {
		return nil, err
	}
	bill.Lines = lines
	return bill, nil
}

// loadForTransition locks the bill and then its trip, in that order, for
// every status change.
func (s *Service) loadForTransition(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*billingdomain.Bill, error) {
	bill, err := s.billRepo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billingdomain.ErrBillNotFound
	}

	trip, err := s.tripRepo.GetTripForUpdate(ctx, tx, bill.TripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, billingdomain.ErrTripNotFound
	}
	return bill, nil
}

// transitionConflict explains a lost compare-and-swap by re-reading the bill.
func (s *Service) transitionConflict(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	current, err := s.billRepo.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return billingdomain.ErrBillNotFound
	}
	return rejectTransition(current.Status)
}

func rejectTransition(from billingdomain.BillStatus) error {
	switch from {
	case billingdomain.BillStatusFinal:
		return billingdomain.ErrBillAlreadyFinal
	case billingdomain.BillStatusCancelled:
		return billingdomain.ErrBillAlreadyCancelled
	default:
		return billingdomain.ErrBillNotDraft
	}
}

func (s *Service) setTripLock(ctx context.Context, tx *gorm.DB, tripID snowflake.ID, locked bool, at time.Time) error {
	if err := s.tripRepo.SetBillingLock(ctx, tx, tripID, locked, at); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billingdomain.ErrTripNotFound
		}
		return err
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, tx *gorm.DB, action string, bill *billingdomain.Bill, actorID *string, metadata map[string]any) error {
	if s.auditSvc == nil || bill == nil {
		return nil
	}

	actorType := auditdomain.ActorTypeSystem
	if actorID != nil {
		actorType = auditdomain.ActorTypeUser
	}

	payload := map[string]any{
		"trip_id": bill.TripID.String(),
	}
	for key, value := range metadata {
		payload[key] = value
	}

	firmID := bill.FirmID
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		FirmID:     &firmID,
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: auditTargetBill,
		TargetID:   bill.ID.String(),
		Metadata:   payload,
	})
}

// nextBillNumber formats {prefix}-{firmID}-{yyyyMMddHHmmss}{millis}. Stamps
// are strictly increasing within the process so two generations in the same
// millisecond still get distinct numbers.
func (s *Service) nextBillNumber(firmID snowflake.ID, now time.Time) string {
	s.numberMu.Lock()
	stamp := now.UTC().Truncate(time.Millisecond)
	if !stamp.After(s.lastNumber) {
		stamp = s.lastNumber.Add(time.Millisecond)
	}
	s.lastNumber = stamp
	s.numberMu.Unlock()

	return fmt.Sprintf("%s-%d-%s%03d",
		s.billing.Get().BillNumberPrefix,
		int64(firmID),
		stamp.Format("20060102150405"),
		stamp.Nanosecond()/int(time.Millisecond),
	)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("id must be positive")
	}
	return id, nil
}

func (s *Service) observe(operation string, err error) {
	s.metrics.RecordOperation(operation, outcomeFor(err))
	if billingdomain.IsInvalidTransition(err) {
		s.log.Warn("bill operation rejected", zap.String("operation", operation), zap.Error(err))
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case billingdomain.IsValidation(err):
		return metrics.OutcomeInvalid
	case billingdomain.IsNotFound(err):
		return metrics.OutcomeNotFound
	case billingdomain.IsInvalidTransition(err):
		return metrics.OutcomeConflict
	case billingdomain.IsRuleConfiguration(err):
		return metrics.OutcomeRuleConfig
	default:
		return metrics.OutcomeStoreFailed
	}
}
