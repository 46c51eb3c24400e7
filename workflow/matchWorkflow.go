package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/matching"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("three-way-match")

type MatchSource interface {
	LoadMatchInput(ctx context.Context, purchaseOrderId int) (*models.MatchInput, error)
}

type MatchSink interface {
	SaveMatchResult(ctx context.Context, businessId string, result matching.Result, sweepRunId *uint) (*models.MatchResult, error)
}

type PolicyResolver interface {
	ForVendor(supplierId int) matching.Policy
}

// Matcher runs the reconciliation for a single PO and publishes the outcome.
type Matcher struct {
	Source    MatchSource
	Sink      MatchSink
	Policies  PolicyResolver
	Locker    PurchaseOrderLocker
	Publisher SummaryPublisher
	Logger    *logrus.Logger
}

func NewMatcher(store *models.MatchStore, policies PolicyResolver, locker PurchaseOrderLocker, publisher SummaryPublisher, logger *logrus.Logger) *Matcher {
	return &Matcher{
		Source:    store,
		Sink:      store,
		Policies:  policies,
		Locker:    locker,
		Publisher: publisher,
		Logger:    logger,
	}
}

// RunPurchaseOrderMatch fetches, reconciles and persists one PO. Failures are
// returned as *MatchError; a PO without an invoice wraps models.ErrNoInvoice.
func (m *Matcher) RunPurchaseOrderMatch(ctx context.Context, purchaseOrderId int, sweepRunId *uint) (*matching.Result, error) {
	ctx, span := tracer.Start(ctx, "RunPurchaseOrderMatch")
	defer span.End()
	span.SetAttributes(attribute.Int("purchase_order_id", purchaseOrderId))

	if m.Locker != nil {
		release, err := m.Locker.Lock(ctx, purchaseOrderId)
		if err != nil {
			return nil, m.fail(span, &MatchError{Stage: models.SweepStageLock, PurchaseOrderId: purchaseOrderId, Err: err})
		}
		defer release()
	}

	in, err := m.Source.LoadMatchInput(ctx, purchaseOrderId)
	if err != nil {
		return nil, m.fail(span, &MatchError{Stage: models.SweepStageFetch, PurchaseOrderId: purchaseOrderId, Err: err})
	}

	result := matching.Reconcile(in.Input, m.Policies.ForVendor(in.SupplierId))

	row, err := m.Sink.SaveMatchResult(ctx, in.BusinessId, result, sweepRunId)
	if err != nil {
		return nil, m.fail(span, &MatchError{Stage: models.SweepStagePersist, PurchaseOrderId: purchaseOrderId, Err: err})
	}

	summary := MatchSummary{
		BusinessId:       in.BusinessId,
		PurchaseOrderId:  result.PurchaseOrderId,
		BillId:           result.InvoiceId,
		Score:            result.Score,
		Status:           result.Status,
		DiscrepancyCount: len(result.Discrepancies),
		AutoApproved:     result.AutoApproved,
		SweepRunId:       sweepRunId,
		MatchedAt:        row.MatchedAt,
	}
	m.Logger.WithFields(logrus.Fields{
		"business_id":       summary.BusinessId,
		"purchase_order_id": summary.PurchaseOrderId,
		"score":             summary.Score,
		"status":            summary.Status,
		"discrepancy_count": summary.DiscrepancyCount,
		"auto_approved":     summary.AutoApproved,
	}).Info("three-way match completed")

	if m.Publisher != nil {
		if pubErr := m.Publisher.PublishMatchSummary(ctx, summary); pubErr != nil {
			config.LogError(m.Logger, "workflow", "RunPurchaseOrderMatch", "publish match summary", summary, pubErr)
		}
	}

	span.SetAttributes(
		attribute.Int("score", result.Score),
		attribute.String("status", string(result.Status)),
	)
	return &result, nil
}

func (m *Matcher) fail(span trace.Span, err *MatchError) error {
	if !errors.Is(err, models.ErrNoInvoice) && !errors.Is(err, ErrMatchInProgress) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Stage)
	}
	return err
}
