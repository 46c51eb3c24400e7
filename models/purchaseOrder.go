package models

import (
	"time"

	"github.com/mmdatafocus/match_backend/matching"
	"github.com/shopspring/decimal"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft           PurchaseOrderStatus = "Draft"
	PurchaseOrderStatusConfirmed       PurchaseOrderStatus = "Confirmed"
	PurchaseOrderStatusPartiallyBilled PurchaseOrderStatus = "Partially Billed"
	PurchaseOrderStatusClosed          PurchaseOrderStatus = "Closed"
	PurchaseOrderStatusCancelled       PurchaseOrderStatus = "Cancelled"
)

// PurchaseOrder is owned by the purchasing ledger. The match engine only
// writes MatchStatus, MatchScore, InvoiceVerified and PaymentApproved.
type PurchaseOrder struct {
	ID                int                   `gorm:"primary_key" json:"id"`
	BusinessId        string                `gorm:"index;not null" json:"business_id"`
	SupplierId        int                   `gorm:"index;not null" json:"supplier_id"`
	OrderNumber       string                `gorm:"size:255;not null" json:"order_number"`
	OrderDate         time.Time             `gorm:"not null" json:"order_date"`
	CurrentStatus     PurchaseOrderStatus   `gorm:"size:32;not null;default:Confirmed" json:"current_status"`
	OrderTotalAmount  decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"order_total_amount"`
	MatchStatus       *matching.MatchStatus `gorm:"size:20;index;default:null" json:"match_status"`
	MatchScore        *int                  `gorm:"default:null" json:"match_score"`
	InvoiceVerified   bool                  `gorm:"not null;default:false" json:"invoice_verified"`
	PaymentApproved   bool                  `gorm:"not null;default:false" json:"payment_approved"`
	PaymentApprovedAt *time.Time            `gorm:"default:null" json:"payment_approved_at"`
	MatchedAt         *time.Time            `gorm:"default:null" json:"matched_at"`
	Details           []PurchaseOrderDetail `json:"purchase_order_details"`
	CreatedAt         time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id"`
	ProductId       int             `gorm:"index" json:"product_id"`
	Sku             string          `gorm:"size:100;index" json:"sku"`
	Name            string          `gorm:"size:100" json:"name"`
	DetailQty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitRate  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
}

func (d PurchaseOrderDetail) matchLine() matching.Line {
	return matching.Line{Sku: d.Sku, Name: d.Name, Quantity: d.DetailQty, UnitPrice: d.DetailUnitRate}
}
