package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

var (
	// ErrTimeout matches every TimeoutError.
	ErrTimeout = errors.New("dispatch: no response")
	// ErrBusy matches every BusyError.
	ErrBusy = errors.New("dispatch: identifier busy")
)

// TimeoutError is returned when a request was transmitted Attempts times and
// no matching response arrived within Timeout of the last transmission.
type TimeoutError struct {
	Identifier frame.Identifier
	Attempts   int
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dispatch: no %s response after %d attempts (%v each)", e.Identifier, e.Attempts, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// BusyError is returned when a request with the same identifier is already
// awaiting its response. Nothing is transmitted.
type BusyError struct {
	Identifier frame.Identifier
	Since      time.Time
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("dispatch: %s already pending since %s", e.Identifier, e.Since.Format(time.RFC3339Nano))
}

func (e *BusyError) Is(target error) bool { return target == ErrBusy }
