package reservation

import (
	"context"
	"sync"

	"dhcpdash/pkg/models"
)

// OutcomeKind classifies how a submission ended for the input surface
type OutcomeKind int

const (
	// Dismissed means the batch was accepted and the surface closed
	Dismissed OutcomeKind = iota

	// Failed means the batch was not accepted; the surface stays open
	Failed

	// Discarded means the surface was closed or reopened while the
	// submission was in flight, so its result no longer applies
	Discarded
)

func (k OutcomeKind) String() string {
	switch k {
	case Dismissed:
		return "dismissed"
	case Failed:
		return "failed"
	case Discarded:
		return "discarded"
	}
	return "unknown"
}

// Outcome is the reconciled result of one submission
type Outcome struct {
	Kind    OutcomeKind
	Message string
	Err     error
}

// Ticket identifies one submission against the surface that started it
type Ticket struct {
	generation uint64
}

// Dialog is the state of the reservation input surface: whether it is open
// and the text typed into it. It never touches feed-derived view state.
type Dialog struct {
	submitter Submitter

	mu         sync.Mutex
	open       bool
	text       string
	edited     bool
	pending    bool
	generation uint64
}

// NewDialog creates a closed dialog submitting through s
func NewDialog(s Submitter) *Dialog {
	return &Dialog{submitter: s}
}

// Open shows the surface with empty input
func (d *Dialog) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.open = true
	d.text = ""
	d.edited = false
	d.pending = false
}

// Close dismisses the surface. A submission still in flight runs to
// completion but its outcome is discarded.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.open = false
	d.pending = false
}

// IsOpen reports whether the surface is shown
func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Pending reports whether a submission started from the open surface has
// not completed yet
func (d *Dialog) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// SetText replaces the input text
func (d *Dialog) SetText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
	d.edited = true
}

// Text returns the input text
func (d *Dialog) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Batch returns the batch the current input would submit. Input that was
// never edited submits no addresses.
func (d *Dialog) Batch() models.ReservationBatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.batch()
}

func (d *Dialog) batch() models.ReservationBatch {
	if !d.edited {
		return models.ReservationBatch{Addresses: []string{}}
	}
	return Parse(d.text)
}

// Begin starts a submission of the current input and returns the ticket
// that Complete must be called with
func (d *Dialog) Begin() (Ticket, models.ReservationBatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = true
	return Ticket{generation: d.generation}, d.batch()
}

// Complete reconciles the result of the submission identified by t
func (d *Dialog) Complete(t Ticket, err error) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open || t.generation != d.generation {
		return Outcome{Kind: Discarded, Err: err}
	}
	d.pending = false

	if err != nil {
		return Outcome{Kind: Failed, Message: MessageOf(err), Err: err}
	}
	d.generation++
	d.open = false
	return Outcome{Kind: Dismissed}
}

// Submit sends batch through the dialog's submitter
func (d *Dialog) Submit(ctx context.Context, batch models.ReservationBatch) error {
	return d.submitter.Submit(ctx, batch)
}

// Save submits the current input and waits for the outcome
func (d *Dialog) Save(ctx context.Context) Outcome {
	ticket, batch := d.Begin()
	return d.Complete(ticket, d.Submit(ctx, batch))
}
