package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

func (s *MatchStore) CreateSweepRun(ctx context.Context, run *MatchSweepRun) error {
	if run.Status == "" {
		run.Status = SweepRunStatusQueued
	}
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *MatchStore) MarkSweepRunRunning(ctx context.Context, runId uint, startedAt time.Time) error {
	return s.db.WithContext(ctx).Model(&MatchSweepRun{}).
		Where("id = ?", runId).
		Updates(map[string]interface{}{"status": SweepRunStatusRunning, "started_at": startedAt}).Error
}

// FinishSweepRun stores the final counters and status of a run.
func (s *MatchStore) FinishSweepRun(ctx context.Context, run *MatchSweepRun) error {
	return s.db.WithContext(ctx).Model(&MatchSweepRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":              run.Status,
			"pos_checked":         run.POsChecked,
			"matches_completed":   run.MatchesCompleted,
			"auto_approved":       run.AutoApproved,
			"discrepancies_found": run.DiscrepanciesFound,
			"discrepancy_total":   run.DiscrepancyTotal,
			"skipped":             run.Skipped,
			"error_count":         run.ErrorCount,
			"cancelled":           run.Cancelled,
			"last_error":          run.LastError,
			"finished_at":         run.FinishedAt,
			"duration_ms":         run.DurationMs,
		}).Error
}

func (s *MatchStore) AddSweepErrors(ctx context.Context, errs []MatchSweepError) error {
	if len(errs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(errs, 100).Error
}

func (s *MatchStore) GetSweepRun(ctx context.Context, runId uint) (*MatchSweepRun, error) {
	var run MatchSweepRun
	if err := s.db.WithContext(ctx).Where("id = ?", runId).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *MatchStore) ListSweepRuns(ctx context.Context, businessId string, limit int) ([]MatchSweepRun, error) {
	q := s.db.WithContext(ctx).Model(&MatchSweepRun{})
	if businessId != "" {
		q = q.Where("business_id = ?", businessId)
	}
	var runs []MatchSweepRun
	err := q.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func (s *MatchStore) ListSweepErrors(ctx context.Context, runId uint) ([]MatchSweepError, error) {
	var errs []MatchSweepError
	err := s.db.WithContext(ctx).
		Where("sweep_run_id = ?", runId).
		Order("id").
		Find(&errs).Error
	return errs, err
}

// RetryablePurchaseOrderIds returns the distinct POs that errored in a run.
func (s *MatchStore) RetryablePurchaseOrderIds(ctx context.Context, runId uint) ([]int, error) {
	var ids []int
	err := s.db.WithContext(ctx).Model(&MatchSweepError{}).
		Where("sweep_run_id = ? AND retryable = ?", runId, true).
		Distinct("purchase_order_id").
		Order("purchase_order_id").
		Pluck("purchase_order_id", &ids).Error
	return ids, err
}

// WithTx runs fn against a store bound to a transaction.
func (s *MatchStore) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}
