package proxy

import (
	"errors"
	"fmt"
	"sort"
)

// Status classifies the outcome of baking one item.
type Status int

const (
	StatusSuccess Status = iota
	StatusWarning        // baked, with something dropped
	StatusError          // not baked
	StatusSkipped        // unsupported content, not attempted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Batch-level failures, reported once the whole batch has been processed.
var (
	ErrBatchFailed = errors.New("bake: no item baked successfully")
	ErrAllSkipped  = errors.New("bake: every item was skipped as unsupported")
)

// ItemError is the cause attached to a failed or warned item.
type ItemError struct {
	ApplicationID string
	Kind          string
	Err           error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ApplicationID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Outcome is the result of baking one item.
type Outcome struct {
	ApplicationID string `json:"applicationId"`
	Kind          string `json:"kind"`
	Status        Status `json:"status"`
	HostID        string `json:"hostId,omitempty"`
	Err           error  `json:"-"`
}

// BakeResult aggregates what one receive operation created.
type BakeResult struct {
	Created   map[string]struct{}
	Consumed  map[string]struct{}
	Outcomes  []Outcome
	AppToHost map[string]string
}

// NewBakeResult returns an empty result.
func NewBakeResult() *BakeResult {
	return &BakeResult{
		Created:   make(map[string]struct{}),
		Consumed:  make(map[string]struct{}),
		AppToHost: make(map[string]string),
	}
}

// Record appends an outcome and, for baked items, tracks the host id.
func (r *BakeResult) Record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.HostID != "" && (o.Status == StatusSuccess || o.Status == StatusWarning) {
		r.Created[o.HostID] = struct{}{}
		r.AppToHost[o.ApplicationID] = o.HostID
	}
}

// Consume marks host ids as absorbed into a definition. Consumed objects are
// no longer top level.
func (r *BakeResult) Consume(hostIDs ...string) {
	for _, id := range hostIDs {
		r.Consumed[id] = struct{}{}
	}
}

// Count returns the number of outcomes with status s.
func (r *BakeResult) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// TopLevel returns the created host ids that were not consumed, sorted.
func (r *BakeResult) TopLevel() []string {
	out := make([]string, 0, len(r.Created))
	for id := range r.Created {
		if _, ok := r.Consumed[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Merge appends other's outcomes and sets into r.
func (r *BakeResult) Merge(other *BakeResult) {
	if other == nil {
		return
	}
	for _, o := range other.Outcomes {
		r.Record(o)
	}
	for id := range other.Consumed {
		r.Consumed[id] = struct{}{}
	}
}

// Err reports the batch-level failure, if any: a non-empty batch in which
// nothing succeeded, or in which every item was skipped as unsupported.
// Items that only warned count as successes.
func (r *BakeResult) Err() error {
	if len(r.Outcomes) == 0 {
		return nil
	}
	if r.Count(StatusSkipped) == len(r.Outcomes) {
		return ErrAllSkipped
	}
	if r.Count(StatusSuccess)+r.Count(StatusWarning) == 0 {
		return ErrBatchFailed
	}
	return nil
}

// Errors returns the item errors in outcome order.
func (r *BakeResult) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Status == StatusError && o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
