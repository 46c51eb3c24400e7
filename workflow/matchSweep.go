package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type SweepStore interface {
	ListPendingPurchaseOrderIds(ctx context.Context, businessId string, afterId int, limit int) ([]int, error)
	CreateSweepRun(ctx context.Context, run *models.MatchSweepRun) error
	GetSweepRun(ctx context.Context, runId uint) (*models.MatchSweepRun, error)
	MarkSweepRunRunning(ctx context.Context, runId uint, startedAt time.Time) error
	FinishSweepRun(ctx context.Context, run *models.MatchSweepRun) error
	AddSweepErrors(ctx context.Context, errs []models.MatchSweepError) error
	RetryablePurchaseOrderIds(ctx context.Context, runId uint) ([]int, error)
}

var ErrNothingToRetry = errors.New("sweep run has no retryable purchase orders")

// SweepRequest selects the POs for one sweep. With no explicit ids the sweep
// takes every pending PO that has an invoice.
type SweepRequest struct {
	RunId            uint
	BusinessId       string
	PurchaseOrderIds []int
	TriggeredBy      string
	ParentRunId      *uint
	CorrelationId    string
}

type SweepItemError struct {
	PurchaseOrderId int    `json:"purchase_order_id"`
	Stage           string `json:"stage"`
	Message         string `json:"message"`
}

// SweepSummary is the execution summary of one sweep. DiscrepanciesFound counts
// POs with at least one discrepancy; DiscrepancyTotal counts discrepancies.
// Locked counts the skipped POs whose match lock was held elsewhere.
type SweepSummary struct {
	RunId              uint             `json:"run_id"`
	Success            bool             `json:"success"`
	Cancelled          bool             `json:"cancelled"`
	POsChecked         int              `json:"pos_checked"`
	MatchesCompleted   int              `json:"matches_completed"`
	AutoApproved       int              `json:"auto_approved"`
	DiscrepanciesFound int              `json:"discrepancies_found"`
	DiscrepancyTotal   int              `json:"discrepancy_total"`
	Skipped            int              `json:"skipped"`
	Locked             int              `json:"locked"`
	Errors             []SweepItemError `json:"errors"`
}

type Sweeper struct {
	Matcher   *Matcher
	Runs      SweepStore
	Workers   int
	BatchSize int
	Logger    *logrus.Logger
}

func NewSweeper(matcher *Matcher, runs SweepStore, cfg config.MatchSweepConfig, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		Matcher:   matcher,
		Runs:      runs,
		Workers:   cfg.Workers,
		BatchSize: cfg.BatchSize,
		Logger:    logger,
	}
}

// Queue records a queued run so callers can return its id before the sweep starts.
func (s *Sweeper) Queue(ctx context.Context, req SweepRequest) (*models.MatchSweepRun, error) {
	run := &models.MatchSweepRun{
		BusinessId:    req.BusinessId,
		Status:        models.SweepRunStatusQueued,
		TriggeredBy:   req.TriggeredBy,
		CorrelationId: req.CorrelationId,
		ParentRunId:   req.ParentRunId,
	}
	if run.CorrelationId == "" {
		run.CorrelationId = uuid.NewString()
	}
	if err := s.Runs.CreateSweepRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Sweep matches every selected PO in a bounded worker pool. Per-PO failures are
// collected in the summary; an error is returned only when the sweep cannot start.
func (s *Sweeper) Sweep(ctx context.Context, req SweepRequest) (*SweepSummary, error) {
	ctx, span := tracer.Start(ctx, "Sweep")
	defer span.End()

	// Run rows are written even after ctx is cancelled so the run never stays open.
	bookkeeping := context.WithoutCancel(ctx)
	run, err := s.loadOrQueueRun(bookkeeping, req)
	if err != nil {
		return &SweepSummary{}, err
	}
	span.SetAttributes(attribute.Int("sweep_run_id", int(run.ID)))

	started := time.Now()
	if err := s.Runs.MarkSweepRunRunning(bookkeeping, run.ID, started); err != nil {
		config.LogError(s.Logger, "workflow", "Sweep", "mark run running", run.ID, err)
	}

	ids, err := s.candidates(ctx, req)
	if err != nil {
		msg := err.Error()
		run.Status = models.SweepRunStatusFailed
		run.LastError = &msg
		s.finish(bookkeeping, run, started)
		span.RecordError(err)
		return &SweepSummary{RunId: run.ID}, err
	}

	summary := &SweepSummary{RunId: run.ID, Success: true, Errors: []SweepItemError{}}
	var mu sync.Mutex
	runId := run.ID

	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		purchaseOrderId := id
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			result, err := s.Matcher.RunPurchaseOrderMatch(ctx, purchaseOrderId, &runId)

			mu.Lock()
			defer mu.Unlock()
			summary.POsChecked++
			switch {
			case err == nil:
				summary.MatchesCompleted++
				if result.AutoApproved {
					summary.AutoApproved++
				}
				if len(result.Discrepancies) > 0 {
					summary.DiscrepanciesFound++
					summary.DiscrepancyTotal += len(result.Discrepancies)
				}
			case errors.Is(err, ErrMatchInProgress):
				summary.Skipped++
				summary.Locked++
			case errors.Is(err, models.ErrNoInvoice):
				summary.Skipped++
			default:
				summary.Errors = append(summary.Errors, SweepItemError{
					PurchaseOrderId: purchaseOrderId,
					Stage:           stageOf(err),
					Message:         err.Error(),
				})
				config.LogError(s.Logger, "workflow", "Sweep", "match purchase order", purchaseOrderId, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	summary.Cancelled = ctx.Err() != nil

	s.recordErrors(bookkeeping, run, summary)
	run.Status = sweepStatus(summary)
	run.POsChecked = summary.POsChecked
	run.MatchesCompleted = summary.MatchesCompleted
	run.AutoApproved = summary.AutoApproved
	run.DiscrepanciesFound = summary.DiscrepanciesFound
	run.DiscrepancyTotal = summary.DiscrepancyTotal
	run.Skipped = summary.Skipped
	run.ErrorCount = len(summary.Errors)
	run.Cancelled = summary.Cancelled
	s.finish(bookkeeping, run, started)

	s.Logger.WithFields(logrus.Fields{
		"sweep_run_id":        run.ID,
		"business_id":         run.BusinessId,
		"triggered_by":        run.TriggeredBy,
		"correlation_id":      run.CorrelationId,
		"pos_checked":         summary.POsChecked,
		"matches_completed":   summary.MatchesCompleted,
		"auto_approved":       summary.AutoApproved,
		"discrepancies_found": summary.DiscrepanciesFound,
		"skipped":             summary.Skipped,
		"errors":              len(summary.Errors),
		"cancelled":           summary.Cancelled,
	}).Info("three-way match sweep finished")

	return summary, nil
}

// RetryRequest builds a sweep over the POs that errored in a failed or partial run.
func (s *Sweeper) RetryRequest(ctx context.Context, parentRunId uint) (SweepRequest, error) {
	parent, err := s.Runs.GetSweepRun(ctx, parentRunId)
	if err != nil {
		return SweepRequest{}, err
	}
	if parent.Status != models.SweepRunStatusFailed && parent.Status != models.SweepRunStatusPartial {
		return SweepRequest{}, ErrNothingToRetry
	}
	ids, err := s.Runs.RetryablePurchaseOrderIds(ctx, parentRunId)
	if err != nil {
		return SweepRequest{}, err
	}
	if len(ids) == 0 {
		return SweepRequest{}, ErrNothingToRetry
	}
	return SweepRequest{
		BusinessId:       parent.BusinessId,
		PurchaseOrderIds: ids,
		TriggeredBy:      models.SweepTriggeredRetry,
		ParentRunId:      &parent.ID,
		CorrelationId:    parent.CorrelationId,
	}, nil
}

func (s *Sweeper) loadOrQueueRun(ctx context.Context, req SweepRequest) (*models.MatchSweepRun, error) {
	if req.RunId == 0 {
		return s.Queue(ctx, req)
	}
	return s.Runs.GetSweepRun(ctx, req.RunId)
}

func (s *Sweeper) candidates(ctx context.Context, req SweepRequest) ([]int, error) {
	if len(req.PurchaseOrderIds) > 0 {
		return req.PurchaseOrderIds, nil
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = 500
	}

	var ids []int
	afterId := 0
	for {
		page, err := s.Runs.ListPendingPurchaseOrderIds(ctx, req.BusinessId, afterId, batch)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page...)
		if len(page) < batch {
			return ids, nil
		}
		afterId = page[len(page)-1]
	}
}

func (s *Sweeper) recordErrors(ctx context.Context, run *models.MatchSweepRun, summary *SweepSummary) {
	if len(summary.Errors) == 0 {
		return
	}
	rows := make([]models.MatchSweepError, 0, len(summary.Errors))
	for _, e := range summary.Errors {
		rows = append(rows, models.MatchSweepError{
			SweepRunId:      run.ID,
			BusinessId:      run.BusinessId,
			PurchaseOrderId: e.PurchaseOrderId,
			Stage:           e.Stage,
			Message:         e.Message,
			Retryable:       true,
		})
	}
	if err := s.Runs.AddSweepErrors(ctx, rows); err != nil {
		config.LogError(s.Logger, "workflow", "Sweep", "record sweep errors", run.ID, err)
	}
}

func (s *Sweeper) finish(ctx context.Context, run *models.MatchSweepRun, started time.Time) {
	finished := time.Now()
	run.FinishedAt = &finished
	run.DurationMs = finished.Sub(started).Milliseconds()
	if err := s.Runs.FinishSweepRun(ctx, run); err != nil {
		config.LogError(s.Logger, "workflow", "Sweep", "finish sweep run", run.ID, err)
	}
}

func sweepStatus(summary *SweepSummary) string {
	switch {
	case len(summary.Errors) > 0 && summary.MatchesCompleted == 0:
		return models.SweepRunStatusFailed
	case len(summary.Errors) > 0, summary.Cancelled:
		return models.SweepRunStatusPartial
	default:
		return models.SweepRunStatusSuccess
	}
}
