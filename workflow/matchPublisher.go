package workflow

import (
	"context"
	"strconv"
	"time"

	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/matching"
)

// MatchSummary is the per-PO record emitted after a result is persisted.
type MatchSummary struct {
	BusinessId       string               `json:"business_id"`
	PurchaseOrderId  int                  `json:"purchase_order_id"`
	BillId           int                  `json:"bill_id"`
	Score            int                  `json:"score"`
	Status           matching.MatchStatus `json:"status"`
	DiscrepancyCount int                  `json:"discrepancy_count"`
	AutoApproved     bool                 `json:"auto_approved"`
	SweepRunId       *uint                `json:"sweep_run_id,omitempty"`
	MatchedAt        time.Time            `json:"matched_at"`
}

type SummaryPublisher interface {
	PublishMatchSummary(ctx context.Context, summary MatchSummary) error
}

type pubsubSummaryPublisher struct {
	topic string
}

// NewPubSubSummaryPublisher returns nil when no topic is configured.
func NewPubSubSummaryPublisher(topic string) SummaryPublisher {
	if topic == "" {
		return nil
	}
	return &pubsubSummaryPublisher{topic: topic}
}

func (p *pubsubSummaryPublisher) PublishMatchSummary(ctx context.Context, summary MatchSummary) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := config.PublishJSON(ctx, p.topic, summary, map[string]string{
		"business_id":       summary.BusinessId,
		"purchase_order_id": strconv.Itoa(summary.PurchaseOrderId),
		"status":            string(summary.Status),
	})
	return err
}
