package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GoodsReceipt struct {
	ID              int                  `gorm:"primary_key" json:"id"`
	BusinessId      string               `gorm:"index;not null" json:"business_id"`
	PurchaseOrderId int                  `gorm:"index;not null" json:"purchase_order_id"`
	ReceiptNumber   string               `gorm:"size:255" json:"receipt_number"`
	ReceivedAt      time.Time            `gorm:"not null" json:"received_at"`
	Details         []GoodsReceiptDetail `json:"goods_receipt_details"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

type GoodsReceiptDetail struct {
	ID             int             `gorm:"primary_key" json:"id"`
	GoodsReceiptId int             `gorm:"index;not null" json:"goods_receipt_id"`
	Sku            string          `gorm:"size:100;index" json:"sku"`
	ReceivedQty    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"received_qty"`
}
