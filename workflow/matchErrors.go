package workflow

import (
	"errors"
	"fmt"
)

var ErrMatchInProgress = errors.New("purchase order match already in progress")

// MatchError is a per-PO failure tagged with the pipeline stage it happened in.
type MatchError struct {
	Stage           string
	PurchaseOrderId int
	Err             error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("purchase order %d: %s: %v", e.PurchaseOrderId, e.Stage, e.Err)
}

func (e *MatchError) Unwrap() error {
	return e.Err
}

func stageOf(err error) string {
	var me *MatchError
	if errors.As(err, &me) {
		return me.Stage
	}
	return ""
}
