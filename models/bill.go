package models

import (
	"time"

	"github.com/mmdatafocus/match_backend/matching"
	"github.com/shopspring/decimal"
)

type BillStatus string

const (
	BillStatusDraft       BillStatus = "Draft"
	BillStatusConfirmed   BillStatus = "Confirmed"
	BillStatusVoid        BillStatus = "Void"
	BillStatusPartialPaid BillStatus = "Partial Paid"
	BillStatusPaid        BillStatus = "Paid"
)

// Bill is the supplier invoice. BillTotalAmount is nil when the supplier
// did not state a header total.
type Bill struct {
	ID              int              `gorm:"primary_key" json:"id"`
	BusinessId      string           `gorm:"index;not null" json:"business_id"`
	SupplierId      int              `gorm:"index;not null" json:"supplier_id"`
	PurchaseOrderId int              `gorm:"index;default:null" json:"purchase_order_id"`
	BillNumber      string           `gorm:"size:255;not null" json:"bill_number"`
	BillDate        time.Time        `gorm:"not null" json:"bill_date"`
	CurrentStatus   BillStatus       `gorm:"size:32;default:Draft" json:"current_status"`
	BillTotalAmount *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"bill_total_amount"`
	Details         []BillDetail     `json:"bill_details"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type BillDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BillId         int             `gorm:"index;not null" json:"bill_id"`
	ProductId      int             `gorm:"index" json:"product_id"`
	Sku            string          `gorm:"size:100;index" json:"sku"`
	Name           string          `gorm:"size:100" json:"name"`
	DetailQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate"`
}

func (b Bill) matchInvoice() matching.Invoice {
	lines := make([]matching.Line, 0, len(b.Details))
	for _, d := range b.Details {
		lines = append(lines, matching.Line{Sku: d.Sku, Name: d.Name, Quantity: d.DetailQty, UnitPrice: d.DetailUnitRate})
	}
	return matching.Invoice{Id: b.ID, DeclaredTotal: b.BillTotalAmount, Lines: lines}
}
