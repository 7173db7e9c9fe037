package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
	ErrRenderFailed     = errors.New("render failed")
	ErrPersistFailed    = errors.New("persist failed")
	ErrDispatchFailed   = errors.New("dispatch failed")
	ErrReclaimFailed    = errors.New("reclaim failed")
	ErrInvalidRetention = errors.New("invalid retention")
	ErrOrderNotPayable  = errors.New("order is not paid")
	ErrSweepInProgress  = errors.New("sweep already in progress")
	ErrInvalidRange     = errors.New("invalid time range")
)

// Stage names the step of the invoice pipeline an error originated from.
type Stage string

const (
	StageRender   Stage = "render"
	StagePersist  Stage = "persist"
	StageDispatch Stage = "dispatch"
	StageReclaim  Stage = "reclaim"
)

var stageSentinels = map[Stage]error{
	StageRender:   ErrRenderFailed,
	StagePersist:  ErrPersistFailed,
	StageDispatch: ErrDispatchFailed,
	StageReclaim:  ErrReclaimFailed,
}

// StageError wraps a failure of one pipeline stage for a given order.
type StageError struct {
	Stage   Stage
	OrderID int64
	Err     error
}

// NewStageError wraps err for the given stage.
func NewStageError(stage Stage, orderID int64, err error) *StageError {
	return &StageError{Stage: stage, OrderID: orderID, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("invoice %s for order %d: %v", e.Stage, e.OrderID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the stage, so callers can use errors.Is(err, ErrRenderFailed).
func (e *StageError) Is(target error) bool {
	sentinel, ok := stageSentinels[e.Stage]
	return ok && sentinel == target
}
