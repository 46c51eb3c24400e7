package matchapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/mmdatafocus/match_backend/models/reports"
	"github.com/mmdatafocus/match_backend/utils"
	"github.com/mmdatafocus/match_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// API serves the match endpoints for the caller's business.
type API struct {
	Store   *models.MatchStore
	Sweeper *workflow.Sweeper
	Logger  *logrus.Logger
	// Go runs queued sweeps after the response is written.
	Go func(fn func())
	// BaseContext bounds the lifetime of background sweeps. Cancelling it
	// stops them at the next PO and records their runs as cancelled.
	BaseContext context.Context

	validate *validator.Validate
	sweeps   sync.WaitGroup
}

func New(store *models.MatchStore, sweeper *workflow.Sweeper, logger *logrus.Logger) *API {
	return &API{
		Store:       store,
		Sweeper:     sweeper,
		Logger:      logger,
		Go:          func(fn func()) { go fn() },
		BaseContext: context.Background(),
		validate:    validator.New(),
	}
}

func (a *API) Register(r gin.IRouter) {
	Register(r, func() *API { return a })
}

// Register mounts the routes against an API resolved per request, so a
// service can listen before its database is connected. resolve must not
// return nil once traffic is let through.
func Register(r gin.IRouter, resolve func() *API) {
	route := func(handler func(a *API) gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) { handler(resolve())(c) }
	}
	r.POST("/api/match/sweeps", route((*API).TriggerSweepHandler))
	r.GET("/api/match/sweeps", route((*API).SweepHistoryHandler))
	r.GET("/api/match/sweeps/:id", route((*API).SweepRunDetailHandler))
	r.POST("/api/match/sweeps/:id/retry", route((*API).RetrySweepRunHandler))
	r.GET("/api/match/sweeps/:id/export", route((*API).ExportSweepRunHandler))
	r.POST("/api/match/purchase-orders/:id/run", route((*API).RunPurchaseOrderHandler))
	r.GET("/api/match/purchase-orders/:id/result", route((*API).PurchaseOrderResultHandler))

	// Pub/Sub push endpoint for invoice-linked events.
	r.POST("/pubsub/invoice-linked", route((*API).InvoiceLinkedPushHandler))
}

func (a *API) TriggerSweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// An empty body sweeps every pending PO. Chunked bodies report no length.
		var req TriggerSweepRequest
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		if err := a.validate.Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "purchase_order_ids must be positive"})
			return
		}

		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		sweep := workflow.SweepRequest{
			BusinessId:       businessId,
			PurchaseOrderIds: req.PurchaseOrderIds,
			TriggeredBy:      models.SweepTriggeredManual,
			CorrelationId:    cid,
		}
		run, err := a.start(ctx, sweep)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, TriggerSweepResponse{
			RunId:         run.ID,
			Status:        run.Status,
			CorrelationId: run.CorrelationId,
		})
	}
}

func (a *API) SweepHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		limit := defaultHistoryLimit
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		runs, err := a.Store.ListSweepRuns(c.Request.Context(), businessId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func (a *API) SweepRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveBusinessID(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		runId, ok := parseRunID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		run, err := a.Store.GetSweepRun(ctx, runId)
		if err != nil {
			writeLookupError(c, err, "sweep run not found")
			return
		}
		errs, err := a.Store.ListSweepErrors(ctx, runId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, SweepRunDetailResponse{Run: *run, Errors: errs})
	}
}

func (a *API) RetrySweepRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveBusinessID(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		runId, ok := parseRunID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		req, err := a.Sweeper.RetryRequest(ctx, runId)
		if errors.Is(err, workflow.ErrNothingToRetry) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			writeLookupError(c, err, "sweep run not found")
			return
		}

		run, err := a.start(ctx, req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, TriggerSweepResponse{
			RunId:         run.ID,
			Status:        run.Status,
			CorrelationId: run.CorrelationId,
			ParentRunId:   run.ParentRunId,
		})
	}
}

func (a *API) ExportSweepRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveBusinessID(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		runId, ok := parseRunID(c)
		if !ok {
			return
		}

		report, err := LoadSweepReport(c.Request.Context(), a.Store, runId)
		if err != nil {
			writeLookupError(c, err, "sweep run not found")
			return
		}
		data, err := reports.ExportSweepReport(*report)
		if err != nil {
			config.LogError(a.Logger, "matchapi", "ExportSweepRunHandler", "export sweep report", runId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+report.FileName())
		c.Data(http.StatusOK, reports.XlsxContentType, data)
	}
}

func (a *API) RunPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveBusinessID(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		purchaseOrderId, ok := parsePurchaseOrderID(c)
		if !ok {
			return
		}

		result, err := a.Sweeper.Matcher.RunPurchaseOrderMatch(c.Request.Context(), purchaseOrderId, nil)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, result)
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase order not found"})
		case errors.Is(err, models.ErrNoInvoice), errors.Is(err, workflow.ErrMatchInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			config.LogError(a.Logger, "matchapi", "RunPurchaseOrderHandler", "match purchase order", purchaseOrderId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

func (a *API) PurchaseOrderResultHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveBusinessID(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		purchaseOrderId, ok := parsePurchaseOrderID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		result, err := a.Store.GetMatchResult(ctx, purchaseOrderId)
		if err != nil {
			writeLookupError(c, err, "match result not found")
			return
		}
		resp := PurchaseOrderResultResponse{Result: *result}
		if c.Query("history") == "true" {
			history, err := a.Store.ListMatchResultHistory(ctx, purchaseOrderId, defaultHistoryLimit)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			resp.History = history
		}
		c.JSON(http.StatusOK, resp)
	}
}

// start queues a run and sweeps it in the background. The sweep keeps the
// request's business and correlation values, and is cancelled with
// BaseContext instead of the request.
func (a *API) start(ctx context.Context, req workflow.SweepRequest) (*models.MatchSweepRun, error) {
	run, err := a.Sweeper.Queue(ctx, req)
	if err != nil {
		return nil, err
	}
	req.RunId = run.ID
	req.CorrelationId = run.CorrelationId

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	base := a.BaseContext
	if base == nil {
		base = context.Background()
	}
	stop := context.AfterFunc(base, cancel)
	if base.Err() != nil {
		cancel()
	}

	a.sweeps.Add(1)
	a.Go(func() {
		defer a.sweeps.Done()
		defer cancel()
		defer stop()
		if _, err := a.Sweeper.Sweep(bg, req); err != nil {
			config.LogError(a.Logger, "matchapi", "start", "sweep", run.ID, err)
		}
	})
	return run, nil
}

// Drain waits for background sweeps to finish, or until ctx is done.
func (a *API) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.sweeps.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// LoadSweepReport gathers a run with its results and errors for export.
func LoadSweepReport(ctx context.Context, store *models.MatchStore, runId uint) (*reports.SweepReport, error) {
	run, err := store.GetSweepRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	results, err := store.ListMatchResultsBySweepRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	errs, err := store.ListSweepErrors(ctx, runId)
	if err != nil {
		return nil, err
	}
	return &reports.SweepReport{Run: *run, Results: results, Errors: errs}, nil
}

func resolveBusinessID(c *gin.Context) (string, error) {
	businessId, ok := utils.GetBusinessIdFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(businessId) == "" {
		return "", errors.New("unauthorized")
	}
	return businessId, nil
}

func parseRunID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return 0, false
	}
	return uint(id), true
}

func parsePurchaseOrderID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase order id"})
		return 0, false
	}
	return id, true
}

func writeLookupError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
