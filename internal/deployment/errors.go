package deployment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KevinKickass/MokuCore/internal/routing"
)

var (
	ErrDuplicateSlot    = errors.New("slot already occupied")
	ErrInvalidSlot      = errors.New("invalid slot")
	ErrSlotNotFound     = errors.New("slot not configured")
	ErrSlotInUse        = errors.New("slot is referenced by routing")
	ErrPlatformMismatch = errors.New("device platform does not match configuration")
	ErrNoPlatform       = errors.New("configuration has no platform")

	// Shared with the routing table so callers can match either package.
	ErrSealed          = routing.ErrSealed
	ErrInvalidEndpoint = routing.ErrInvalidEndpoint
)

type SlotErrorKind string

const (
	SlotOutOfRange       SlotErrorKind = "out_of_range"
	SlotEmptyInstrument  SlotErrorKind = "empty_instrument"
	SlotInstrumentDenied SlotErrorKind = "instrument_not_allowed"
)

// InvalidSlotError reports why a slot cannot be placed on a platform.
type InvalidSlotError struct {
	Index      int
	Instrument string
	Kind       SlotErrorKind
	Reason     string
}

func (e *InvalidSlotError) Error() string {
	return fmt.Sprintf("invalid slot %d: %s", e.Index, e.Reason)
}

func (e *InvalidSlotError) Unwrap() error {
	return ErrInvalidSlot
}

// ValidationError is returned by Seal when the configuration has errors.
// It unwraps to the error of every issue in the report.
type ValidationError struct {
	Report Report
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Report.Errors))
	for _, issue := range e.Report.Errors {
		msgs = append(msgs, issue.Message)
	}
	return fmt.Sprintf("configuration invalid (%d errors): %s", len(msgs), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Report.Errors))
	for _, issue := range e.Report.Errors {
		if issue.Err != nil {
			errs = append(errs, issue.Err)
		}
	}
	return errs
}
