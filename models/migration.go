package models

import "gorm.io/gorm"

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&PurchaseOrder{}, &PurchaseOrderDetail{},
		&Bill{}, &BillDetail{},
		&GoodsReceipt{}, &GoodsReceiptDetail{},
		&MatchResult{}, &MatchResultHistory{},
		&MatchSweepRun{}, &MatchSweepError{},
		&IdempotencyKey{},
	)
}
