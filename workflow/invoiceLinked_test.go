package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/match_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newIdempotencyDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.IdempotencyKey{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestHandleInvoiceLinked_DuplicateDeliveryIsProcessedOnce(t *testing.T) {
	db := newIdempotencyDB(t)
	source := &fakeSource{inputs: map[int]*models.MatchInput{1: perfectInput(1)}}
	sink := newFakeSink()
	runs := newFakeRuns()
	sweeper := newTestSweeper(source, sink, runs, 1)
	evt := InvoiceLinkedEvent{BusinessId: "biz-1", PurchaseOrderId: 1, BillId: 10}

	summary, err := sweeper.HandleInvoiceLinked(context.Background(), db, "msg-1", evt)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.MatchesCompleted)

	again, err := sweeper.HandleInvoiceLinked(context.Background(), db, "msg-1", evt)
	require.NoError(t, err)
	assert.Nil(t, again, "redelivery must be skipped")
	assert.Len(t, runs.runs, 1)

	var key models.IdempotencyKey
	require.NoError(t, db.Where("message_id = ?", "msg-1").First(&key).Error)
	assert.Equal(t, models.IdempotencyStatusSucceeded, key.Status)

	run := runs.runs[summary.RunId]
	assert.Equal(t, models.SweepTriggeredEvent, run.TriggeredBy)
}

func TestHandleInvoiceLinked_FailureIsRetryable(t *testing.T) {
	db := newIdempotencyDB(t)
	source := &fakeSource{errs: map[int]error{1: errors.New("connection reset")}}
	sweeper := newTestSweeper(source, newFakeSink(), newFakeRuns(), 1)
	evt := InvoiceLinkedEvent{BusinessId: "biz-1", PurchaseOrderId: 1}

	_, err := sweeper.HandleInvoiceLinked(context.Background(), db, "msg-2", evt)
	require.Error(t, err)

	var key models.IdempotencyKey
	require.NoError(t, db.Where("message_id = ?", "msg-2").First(&key).Error)
	assert.Equal(t, models.IdempotencyStatusFailed, key.Status)
	require.NotNil(t, key.LastError)

	delete(source.errs, 1)
	source.inputs = map[int]*models.MatchInput{1: perfectInput(1)}
	summary, err := sweeper.HandleInvoiceLinked(context.Background(), db, "msg-2", evt)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.MatchesCompleted)
}

func TestBeginIdempotency_InProgress(t *testing.T) {
	db := newIdempotencyDB(t)

	skip, err := BeginIdempotency(db, "biz-1", handlerInvoiceLinked, "msg-3")
	require.NoError(t, err)
	assert.False(t, skip)

	_, err = BeginIdempotency(db, "biz-1", handlerInvoiceLinked, "msg-3")
	assert.ErrorIs(t, err, ErrIdempotencyInProgress)
}

func TestHandleInvoiceLinked_BusyLockIsRedelivered(t *testing.T) {
	db := newIdempotencyDB(t)
	source := &fakeSource{inputs: map[int]*models.MatchInput{1: perfectInput(1)}}
	sink := newFakeSink()
	sweeper := newTestSweeper(source, sink, newFakeRuns(), 1)
	sweeper.Matcher.Locker = busyLocker{busy: map[int]bool{1: true}}
	evt := InvoiceLinkedEvent{BusinessId: "biz-1", PurchaseOrderId: 1, BillId: 11}

	summary, err := sweeper.HandleInvoiceLinked(context.Background(), db, "msg-4", evt)
	require.ErrorIs(t, err, ErrMatchInProgress)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Locked)
	assert.Empty(t, sink.saved)

	var key models.IdempotencyKey
	require.NoError(t, db.Where("message_id = ?", "msg-4").First(&key).Error)
	assert.Equal(t, models.IdempotencyStatusFailed, key.Status)

	// the holder released the lock; the redelivery matches against the new bill
	sweeper.Matcher.Locker = busyLocker{}
	summary, err = sweeper.HandleInvoiceLinked(context.Background(), db, "msg-4", evt)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.MatchesCompleted)
	assert.Contains(t, sink.saved, 1)

	require.NoError(t, db.Where("message_id = ?", "msg-4").First(&key).Error)
	assert.Equal(t, models.IdempotencyStatusSucceeded, key.Status)
}
