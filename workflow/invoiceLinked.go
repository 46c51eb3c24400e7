package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/models"
	"gorm.io/gorm"
)

const handlerInvoiceLinked = "match.invoice_linked"

// InvoiceLinkedEvent is published when a bill is attached to a PO.
type InvoiceLinkedEvent struct {
	BusinessId      string `json:"business_id" validate:"required"`
	PurchaseOrderId int    `json:"purchase_order_id" validate:"required,gt=0"`
	BillId          int    `json:"bill_id"`
	CorrelationId   string `json:"correlation_id"`
}

// HandleInvoiceLinked matches exactly one PO, at most once per message id.
// A returned error means the delivery should be retried.
func (s *Sweeper) HandleInvoiceLinked(ctx context.Context, db *gorm.DB, messageId string, evt InvoiceLinkedEvent) (*SweepSummary, error) {
	idem := db.WithContext(context.WithoutCancel(ctx))
	skip, err := BeginIdempotency(idem, evt.BusinessId, handlerInvoiceLinked, messageId)
	if err != nil {
		return nil, err
	}
	if skip {
		return nil, nil
	}

	summary, err := s.Sweep(ctx, SweepRequest{
		BusinessId:       evt.BusinessId,
		PurchaseOrderIds: []int{evt.PurchaseOrderId},
		TriggeredBy:      models.SweepTriggeredEvent,
		CorrelationId:    evt.CorrelationId,
	})
	switch {
	case err != nil:
	case len(summary.Errors) > 0:
		err = fmt.Errorf("match purchase order %d: %s", evt.PurchaseOrderId, summary.Errors[0].Message)
	case summary.MatchesCompleted == 0 && summary.Locked > 0:
		// The lock holder may have read the PO before this bill was committed.
		err = fmt.Errorf("match purchase order %d: %w", evt.PurchaseOrderId, ErrMatchInProgress)
	case summary.Cancelled && summary.MatchesCompleted == 0:
		err = fmt.Errorf("match purchase order %d: %w", evt.PurchaseOrderId, context.Cause(ctx))
	}
	if err != nil {
		if markErr := MarkIdempotencyFailed(idem, evt.BusinessId, handlerInvoiceLinked, messageId, err); markErr != nil {
			config.LogError(s.Logger, "workflow", "HandleInvoiceLinked", "mark idempotency failed", messageId, markErr)
		}
		return summary, err
	}
	if err := MarkIdempotencySucceeded(idem, evt.BusinessId, handlerInvoiceLinked, messageId); err != nil {
		return summary, err
	}
	return summary, nil
}
