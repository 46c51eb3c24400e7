package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const matchLockTTL = 60 * time.Second

// PurchaseOrderLocker serializes matching of one PO across instances.
type PurchaseOrderLocker interface {
	Lock(ctx context.Context, purchaseOrderId int) (release func(), err error)
}

type redisPurchaseOrderLocker struct {
	client *redislock.Client
	logger *logrus.Logger
}

// NewRedisPurchaseOrderLocker returns nil when client is nil so callers can
// wire it unconditionally.
func NewRedisPurchaseOrderLocker(client *redislock.Client, logger *logrus.Logger) PurchaseOrderLocker {
	if client == nil {
		return nil
	}
	return &redisPurchaseOrderLocker{client: client, logger: logger}
}

func matchLockKey(purchaseOrderId int) string {
	return fmt.Sprintf("match:po:%d", purchaseOrderId)
}

// Lock returns ErrMatchInProgress when another worker holds the PO. Any other
// Redis failure is logged and the match proceeds unlocked.
func (l *redisPurchaseOrderLocker) Lock(ctx context.Context, purchaseOrderId int) (func(), error) {
	lock, err := l.client.Obtain(ctx, matchLockKey(purchaseOrderId), matchLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrMatchInProgress
	}
	if err != nil {
		l.logger.WithFields(logrus.Fields{
			"field":             "RunPurchaseOrderMatch",
			"purchase_order_id": purchaseOrderId,
		}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
		return func() {}, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if releaseErr := lock.Release(releaseCtx); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			l.logger.WithFields(logrus.Fields{
				"field":             "RunPurchaseOrderMatch",
				"purchase_order_id": purchaseOrderId,
			}).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}, nil
}
