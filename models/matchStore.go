package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/match_backend/matching"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoInvoice is returned when a PO has no non-void bill to match against.
var ErrNoInvoice = errors.New("purchase order has no invoice")

var matchResultUpsertColumns = []string{
	"business_id", "bill_id", "purchase_order_total", "invoice_total", "receipt_total",
	"total_variance_pct", "match_score", "match_status", "line_matches", "discrepancies",
	"discrepancy_count", "auto_approved", "sweep_run_id", "matched_at", "updated_at",
}

// MatchInput is everything the engine needs for one PO.
type MatchInput struct {
	BusinessId string
	SupplierId int
	Input      matching.Input
}

// MatchStore reads POs, bills and receipts and persists match outcomes.
type MatchStore struct {
	db *gorm.DB
	// RecordHistory appends a MatchResultHistory row on every save.
	RecordHistory bool
}

func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{db: db}
}

func (s *MatchStore) DB() *gorm.DB {
	return s.db
}

// ListPendingPurchaseOrderIds pages through POs whose match status is null or
// pending and that have at least one non-void bill, ordered by id.
func (s *MatchStore) ListPendingPurchaseOrderIds(ctx context.Context, businessId string, afterId int, limit int) ([]int, error) {
	q := s.db.WithContext(ctx).Model(&PurchaseOrder{}).
		Where("(match_status IS NULL OR match_status = ?)", matching.MatchStatusPending).
		Where("id > ?", afterId).
		Where("EXISTS (SELECT 1 FROM bills WHERE bills.purchase_order_id = purchase_orders.id AND bills.current_status <> ?)", BillStatusVoid)
	if businessId != "" {
		q = q.Where("business_id = ?", businessId)
	}

	var ids []int
	if err := q.Order("id").Limit(limit).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MatchStore) GetPurchaseOrderRef(ctx context.Context, purchaseOrderId int) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.db.WithContext(ctx).Where("id = ?", purchaseOrderId).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("purchase order %d: %w", purchaseOrderId, err)
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *MatchStore) GetPOLines(ctx context.Context, purchaseOrderId int) ([]PurchaseOrderDetail, error) {
	var details []PurchaseOrderDetail
	err := s.db.WithContext(ctx).
		Where("purchase_order_id = ?", purchaseOrderId).
		Order("id").
		Find(&details).Error
	return details, err
}

// GetLatestInvoice returns the most recently created non-void bill for the PO.
// Bills created in the same instant are ordered by id.
func (s *MatchStore) GetLatestInvoice(ctx context.Context, purchaseOrderId int) (*Bill, error) {
	var bill Bill
	err := s.db.WithContext(ctx).
		Where("purchase_order_id = ? AND current_status <> ?", purchaseOrderId, BillStatusVoid).
		Order("created_at DESC").Order("id DESC").
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&bill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoInvoice
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (s *MatchStore) GetReceipts(ctx context.Context, purchaseOrderId int) ([]matching.Receipt, error) {
	var receipts []GoodsReceipt
	err := s.db.WithContext(ctx).
		Where("purchase_order_id = ?", purchaseOrderId).
		Order("received_at").Order("id").
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}

	var out []matching.Receipt
	for _, r := range receipts {
		for _, d := range r.Details {
			out = append(out, matching.Receipt{Sku: d.Sku, Quantity: d.ReceivedQty, ReceivedAt: r.ReceivedAt})
		}
	}
	return out, nil
}

// LoadMatchInput fetches the PO, its lines, its latest bill and its receipts.
// It returns ErrNoInvoice when the PO has nothing to match against.
func (s *MatchStore) LoadMatchInput(ctx context.Context, purchaseOrderId int) (*MatchInput, error) {
	po, err := s.GetPurchaseOrderRef(ctx, purchaseOrderId)
	if err != nil {
		return nil, err
	}
	bill, err := s.GetLatestInvoice(ctx, purchaseOrderId)
	if err != nil {
		return nil, err
	}
	details, err := s.GetPOLines(ctx, purchaseOrderId)
	if err != nil {
		return nil, err
	}
	receipts, err := s.GetReceipts(ctx, purchaseOrderId)
	if err != nil {
		return nil, err
	}

	lines := make([]matching.Line, 0, len(details))
	for _, d := range details {
		lines = append(lines, d.matchLine())
	}

	return &MatchInput{
		BusinessId: po.BusinessId,
		SupplierId: po.SupplierId,
		Input: matching.Input{
			PurchaseOrderId: po.ID,
			POLines:         lines,
			Invoice:         bill.matchInvoice(),
			Receipts:        receipts,
		},
	}, nil
}

// SaveMatchResult upserts the result row and updates the PO in one transaction.
// Payment approval is only ever set, never cleared.
func (s *MatchStore) SaveMatchResult(ctx context.Context, businessId string, result matching.Result, sweepRunId *uint) (*MatchResult, error) {
	now := time.Now().UTC()
	row := newMatchResult(businessId, result, sweepRunId, now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "purchase_order_id"}},
			DoUpdates: clause.AssignmentColumns(matchResultUpsertColumns),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert match result: %w", err)
		}

		updates := map[string]interface{}{
			"match_status":     result.Status,
			"match_score":      result.Score,
			"invoice_verified": result.InvoiceVerified,
			"matched_at":       now,
		}
		if result.AutoApproved {
			updates["payment_approved"] = true
			updates["payment_approved_at"] = gorm.Expr("COALESCE(payment_approved_at, ?)", now)
		}
		if err := tx.Model(&PurchaseOrder{}).
			Where("id = ?", result.PurchaseOrderId).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update purchase order: %w", err)
		}

		if s.RecordHistory {
			hist := row.history()
			if err := tx.Create(&hist).Error; err != nil {
				return fmt.Errorf("append match history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *MatchStore) GetMatchResult(ctx context.Context, purchaseOrderId int) (*MatchResult, error) {
	var row MatchResult
	if err := s.db.WithContext(ctx).Where("purchase_order_id = ?", purchaseOrderId).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *MatchStore) ListMatchResultHistory(ctx context.Context, purchaseOrderId int, limit int) ([]MatchResultHistory, error) {
	var rows []MatchResultHistory
	err := s.db.WithContext(ctx).
		Where("purchase_order_id = ?", purchaseOrderId).
		Order("id DESC").Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *MatchStore) ListMatchResultsBySweepRun(ctx context.Context, sweepRunId uint) ([]MatchResult, error) {
	var rows []MatchResult
	err := s.db.WithContext(ctx).
		Where("sweep_run_id = ?", sweepRunId).
		Order("purchase_order_id").
		Find(&rows).Error
	return rows, err
}
