package matchapi

import (
	"github.com/mmdatafocus/match_backend/models"
	"github.com/mmdatafocus/match_backend/workflow"
)

type TriggerSweepRequest struct {
	PurchaseOrderIds []int `json:"purchase_order_ids" validate:"omitempty,dive,gt=0"`
}

type TriggerSweepResponse struct {
	RunId         uint   `json:"run_id"`
	Status        string `json:"status"`
	CorrelationId string `json:"correlation_id"`
	ParentRunId   *uint  `json:"parent_run_id,omitempty"`
}

type SweepRunDetailResponse struct {
	Run    models.MatchSweepRun     `json:"run"`
	Errors []models.MatchSweepError `json:"errors"`
}

type PurchaseOrderResultResponse struct {
	Result  models.MatchResult          `json:"result"`
	History []models.MatchResultHistory `json:"history,omitempty"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// InvoiceLinkedPayload is the Pub/Sub message body for a newly linked bill.
type InvoiceLinkedPayload = workflow.InvoiceLinkedEvent
