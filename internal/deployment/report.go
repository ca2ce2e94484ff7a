package deployment

import (
	"errors"
	"fmt"

	"github.com/KevinKickass/MokuCore/internal/routing"
)

type Severity string

const (
	SevError   Severity = "error"
	SevWarning Severity = "warning"
)

type Issue struct {
	Code     string         `json:"code"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Field    string         `json:"field,omitempty"`
	Path     string         `json:"path,omitempty"` // JSON Pointer-ish ("/routing/0/source")
	Hint     string         `json:"hint,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Err      error          `json:"-"`
}

// Report is the outcome of a whole-configuration check. Errors holds one
// entry per violation; warnings never affect Valid.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Report) addError(i Issue) {
	i.Severity = SevError
	r.Errors = append(r.Errors, i)
}

func (r *Report) addWarning(i Issue) {
	i.Severity = SevWarning
	r.Warnings = append(r.Warnings, i)
}

func (r *Report) finalize() {
	if r.Errors == nil {
		r.Errors = []Issue{}
	}
	if r.Warnings == nil {
		r.Warnings = []Issue{}
	}
	r.Valid = len(r.Errors) == 0
}

// Err joins the errors of all error issues, or returns nil for a valid report.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, i := range r.Errors {
		if i.Err != nil {
			errs = append(errs, i.Err)
		} else {
			errs = append(errs, errors.New(i.Message))
		}
	}
	return errors.Join(errs...)
}

// Validate re-checks every slot and connection against the current platform
// and slot set and reports all violations.
func (c *Config) Validate() Report {
	rep := Report{}
	conns := c.routing.All()
	entries := make([]routeEntry, len(conns))
	for i, conn := range conns {
		entries[i] = routeEntry{index: i, conn: conn}
	}
	c.collect(&rep, entries)
	rep.finalize()
	return rep
}

// routeEntry is a connection with its position in the source routing table.
type routeEntry struct {
	index int
	conn  routing.Connection
}

func (c *Config) collect(rep *Report, entries []routeEntry) {
	if len(c.slots) == 0 {
		rep.addError(Issue{
			Code:    "CONFIG_001",
			Message: "At least one slot must be configured",
			Field:   "slots",
			Path:    "/slots",
		})
	}

	if c.platform == nil {
		rep.addError(Issue{
			Code:    "CONFIG_002",
			Message: "No platform set",
			Field:   "platform",
			Path:    "/platform",
			Err:     ErrNoPlatform,
		})
		return
	}

	for _, sc := range c.Slots() {
		if err := sc.ValidateAgainst(c.platform); err != nil {
			rep.addError(slotIssue(err, sc.Index, fmt.Sprintf("/slots/%d", sc.Index)))
		}
	}

	seen := make(map[routing.Connection]int)
	for _, e := range entries {
		idx, conn := e.index, e.conn
		c.checkConnection(rep, idx, conn)

		if first, dup := seen[conn]; dup {
			rep.addWarning(Issue{
				Code:    "ROUTE_101",
				Message: fmt.Sprintf("Connection %d duplicates connection %d (%s)", idx, first, conn),
				Path:    fmt.Sprintf("/routing/%d", idx),
				Meta:    map[string]any{"connection_index": idx, "duplicate_of": first},
			})
		} else {
			seen[conn] = idx
		}

		if conn.Reversed() {
			rep.addWarning(Issue{
				Code:    "ROUTE_102",
				Message: fmt.Sprintf("Connection %d routes against signal direction (%s)", idx, conn),
				Path:    fmt.Sprintf("/routing/%d", idx),
				Hint:    "Sources are physical inputs or slot outputs; destinations are physical outputs or slot inputs",
				Meta:    map[string]any{"connection_index": idx},
			})
		}
	}

	if c.device != nil && !platformMatches(c.platform, c.device.Platform) {
		rep.addError(Issue{
			Code:    "DEVICE_001",
			Message: fmt.Sprintf("Bound device is %s, configuration targets %s", c.device.Platform, c.platform.Name),
			Field:   "device.platform",
			Path:    "/device/platform",
			Err:     ErrPlatformMismatch,
		})
	}
}

func (c *Config) checkConnection(rep *Report, idx int, conn routing.Connection) {
	base := fmt.Sprintf("/routing/%d", idx)
	meta := map[string]any{"connection_index": idx}

	if conn.Source == conn.Destination {
		rep.addError(Issue{
			Code:    "ROUTE_003",
			Message: fmt.Sprintf("Connection %d: source and destination are both '%s'", idx, conn.Source),
			Path:    base,
			Meta:    meta,
			Err:     &routing.EndpointError{Endpoint: conn.Source.String(), Reason: "source and destination are the same"},
		})
		return
	}

	if err := routing.CheckEndpoint(c, conn.Source); err != nil {
		rep.addError(Issue{
			Code:    "ROUTE_001",
			Message: fmt.Sprintf("Connection %d: Invalid source port '%s': %v", idx, conn.Source, err),
			Field:   "source",
			Path:    base + "/source",
			Meta:    meta,
			Err:     err,
		})
	}
	if err := routing.CheckEndpoint(c, conn.Destination); err != nil {
		rep.addError(Issue{
			Code:    "ROUTE_002",
			Message: fmt.Sprintf("Connection %d: Invalid destination port '%s': %v", idx, conn.Destination, err),
			Field:   "destination",
			Path:    base + "/destination",
			Meta:    meta,
			Err:     err,
		})
	}
}

func slotIssue(err error, index int, path string) Issue {
	issue := Issue{
		Code:    "SLOT_000",
		Message: err.Error(),
		Field:   "slots",
		Path:    path,
		Meta:    map[string]any{"slot_index": index},
		Err:     err,
	}

	var se *InvalidSlotError
	switch {
	case errors.As(err, &se):
		switch se.Kind {
		case SlotOutOfRange:
			issue.Code = "SLOT_001"
			issue.Field = "slot"
		case SlotInstrumentDenied:
			issue.Code = "SLOT_002"
			issue.Field = "instrument"
		case SlotEmptyInstrument:
			issue.Code = "SLOT_003"
			issue.Field = "instrument"
		}
	case errors.Is(err, ErrDuplicateSlot):
		issue.Code = "SLOT_004"
		issue.Field = "slot"
	}
	return issue
}
