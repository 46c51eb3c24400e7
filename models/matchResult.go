package models

import (
	"time"

	"github.com/mmdatafocus/match_backend/matching"
	"github.com/shopspring/decimal"
)

// MatchResult is the canonical outcome for a PO, one row per PO.
type MatchResult struct {
	ID                 int                      `gorm:"primary_key" json:"id"`
	BusinessId         string                   `gorm:"index;not null" json:"business_id"`
	PurchaseOrderId    int                      `gorm:"uniqueIndex;not null" json:"purchase_order_id"`
	BillId             int                      `gorm:"index" json:"bill_id"`
	PurchaseOrderTotal decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"purchase_order_total"`
	InvoiceTotal       decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"invoice_total"`
	ReceiptTotal       decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"receipt_total"`
	TotalVariancePct   decimal.Decimal          `gorm:"type:decimal(20,6);default:0" json:"total_variance_pct"`
	MatchScore         int                      `gorm:"not null" json:"match_score"`
	MatchStatus        matching.MatchStatus     `gorm:"size:20;index;not null" json:"match_status"`
	LineMatches        []matching.LineItemMatch `gorm:"serializer:json;type:json" json:"line_matches"`
	Discrepancies      []matching.Discrepancy   `gorm:"serializer:json;type:json" json:"discrepancies"`
	DiscrepancyCount   int                      `gorm:"default:0" json:"discrepancy_count"`
	AutoApproved       bool                     `gorm:"not null;default:false" json:"auto_approved"`
	SweepRunId         *uint                    `gorm:"index" json:"sweep_run_id"`
	MatchedAt          time.Time                `gorm:"not null" json:"matched_at"`
	CreatedAt          time.Time                `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                `gorm:"autoUpdateTime" json:"updated_at"`
}

// MatchResultHistory keeps every published result when MATCH_RESULT_HISTORY is on.
type MatchResultHistory struct {
	ID              int                      `gorm:"primary_key" json:"id"`
	BusinessId      string                   `gorm:"index;not null" json:"business_id"`
	PurchaseOrderId int                      `gorm:"index;not null" json:"purchase_order_id"`
	BillId          int                      `json:"bill_id"`
	MatchScore      int                      `json:"match_score"`
	MatchStatus     matching.MatchStatus     `gorm:"size:20" json:"match_status"`
	Discrepancies   []matching.Discrepancy   `gorm:"serializer:json;type:json" json:"discrepancies"`
	LineMatches     []matching.LineItemMatch `gorm:"serializer:json;type:json" json:"line_matches"`
	AutoApproved    bool                     `json:"auto_approved"`
	SweepRunId      *uint                    `gorm:"index" json:"sweep_run_id"`
	MatchedAt       time.Time                `json:"matched_at"`
	CreatedAt       time.Time                `gorm:"autoCreateTime" json:"created_at"`
}

func newMatchResult(businessId string, r matching.Result, runId *uint, at time.Time) MatchResult {
	return MatchResult{
		BusinessId:         businessId,
		PurchaseOrderId:    r.PurchaseOrderId,
		BillId:             r.InvoiceId,
		PurchaseOrderTotal: r.POTotal,
		InvoiceTotal:       r.InvoiceTotal,
		ReceiptTotal:       r.ReceiptTotal,
		TotalVariancePct:   r.TotalVariancePct.Round(6),
		MatchScore:         r.Score,
		MatchStatus:        r.Status,
		LineMatches:        r.LineMatches,
		Discrepancies:      r.Discrepancies,
		DiscrepancyCount:   len(r.Discrepancies),
		AutoApproved:       r.AutoApproved,
		SweepRunId:         runId,
		MatchedAt:          at,
	}
}

func (m MatchResult) history() MatchResultHistory {
	return MatchResultHistory{
		BusinessId:      m.BusinessId,
		PurchaseOrderId: m.PurchaseOrderId,
		BillId:          m.BillId,
		MatchScore:      m.MatchScore,
		MatchStatus:     m.MatchStatus,
		Discrepancies:   m.Discrepancies,
		LineMatches:     m.LineMatches,
		AutoApproved:    m.AutoApproved,
		SweepRunId:      m.SweepRunId,
		MatchedAt:       m.MatchedAt,
	}
}
