package models

import "time"

const (
	SweepRunStatusQueued  = "queued"
	SweepRunStatusRunning = "running"
	SweepRunStatusSuccess = "success"
	SweepRunStatusFailed  = "failed"
	SweepRunStatusPartial = "partial"
)

const (
	SweepTriggeredManual   = "manual"
	SweepTriggeredSchedule = "schedule"
	SweepTriggeredEvent    = "event"
	SweepTriggeredRetry    = "retry"
)

const (
	SweepStageLock    = "lock"
	SweepStageFetch   = "fetch"
	SweepStagePersist = "persist"
)

// MatchSweepRun records one execution over a set of POs. BusinessId is empty
// for scheduled sweeps that span every business.
type MatchSweepRun struct {
	ID                 uint       `gorm:"primary_key" json:"id"`
	BusinessId         string     `gorm:"index;size:64" json:"business_id"`
	Status             string     `gorm:"size:20;not null;index" json:"status"`
	TriggeredBy        string     `gorm:"size:20" json:"triggered_by"`
	CorrelationId      string     `gorm:"size:64" json:"correlation_id"`
	ParentRunId        *uint      `gorm:"index" json:"parent_run_id"`
	POsChecked         int        `gorm:"column:pos_checked" json:"pos_checked"`
	MatchesCompleted   int        `json:"matches_completed"`
	AutoApproved       int        `json:"auto_approved"`
	DiscrepanciesFound int        `json:"discrepancies_found"`
	DiscrepancyTotal   int        `json:"discrepancy_total"`
	Skipped            int        `json:"skipped"`
	ErrorCount         int        `json:"error_count"`
	Cancelled          bool       `gorm:"default:false" json:"cancelled"`
	LastError          *string    `gorm:"type:text" json:"last_error"`
	StartedAt          *time.Time `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at"`
	DurationMs         int64      `json:"duration_ms"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type MatchSweepError struct {
	ID              uint      `gorm:"primary_key" json:"id"`
	SweepRunId      uint      `gorm:"index;not null" json:"sweep_run_id"`
	BusinessId      string    `gorm:"index;size:64" json:"business_id"`
	PurchaseOrderId int       `gorm:"index;not null" json:"purchase_order_id"`
	Stage           string    `gorm:"size:20" json:"stage"`
	Message         string    `gorm:"type:text" json:"message"`
	Retryable       bool      `gorm:"default:false" json:"retryable"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
