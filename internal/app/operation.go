package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang-wa-broadcast/internal/domain"

	"github.com/google/uuid"
)

// Operation is one send or verify run over a fixed recipient set. Its report
// is owned by the dispatch loop; readers only ever see snapshots.
type Operation struct {
	ID         uuid.UUID
	Mode       domain.Mode
	Recipients domain.RecipientSet
	StartedAt  time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.RWMutex
	report    domain.ProgressReport
	status    string
	abandoned bool
}

// Snapshot is a point-in-time copy of an operation's progress.
type Snapshot struct {
	ID        uuid.UUID             `json:"operation_id"`
	Mode      domain.Mode           `json:"mode"`
	Status    string                `json:"status"`
	Report    domain.ProgressReport `json:"report"`
	Abandoned bool                  `json:"abandoned"`
	StartedAt time.Time             `json:"started_at"`
}

func newOperation(mode domain.Mode, set domain.RecipientSet, cancel context.CancelFunc, now time.Time) *Operation {
	return &Operation{
		ID:         uuid.New(),
		Mode:       mode,
		Recipients: set,
		StartedAt:  now,
		cancel:     cancel,
		done:       make(chan struct{}),
		report:     domain.NewProgressReport(len(set)),
	}
}

// Snapshot returns the current progress.
func (o *Operation) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Snapshot{
		ID:        o.ID,
		Mode:      o.Mode,
		Status:    o.status,
		Report:    o.report.Clone(),
		Abandoned: o.abandoned,
		StartedAt: o.StartedAt,
	}
}

// Wait blocks until the operation ends or ctx is done.
func (o *Operation) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-o.done:
		return o.Snapshot(), nil
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}
}

// Abandon stops the operation. The batch in flight, if any, is not folded.
func (o *Operation) Abandon() {
	o.cancel()
}

func (o *Operation) setStatus(s string) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// fold applies a batch result and returns the outcomes it added along with
// the number of gateway entries that matched no recipient.
func (o *Operation) fold(res domain.BatchResult, batch domain.Batch, now time.Time) (added []domain.DispatchOutcome, dropped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	before, unmatched := len(o.report.Outcomes), o.report.UnmatchedCount
	o.report = domain.Fold(o.report, res, batch, now)
	end := len(o.report.Outcomes)
	return o.report.Outcomes[before:end:end], o.report.UnmatchedCount - unmatched
}

func (o *Operation) finish(status string, abandoned bool) {
	o.mu.Lock()
	o.report = domain.Finish(o.report)
	o.status = status
	o.abandoned = abandoned
	o.mu.Unlock()
	close(o.done)
}

func (o *Operation) isDone() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

func startText(mode domain.Mode, n int) string {
	if mode.IsVerify() {
		return fmt.Sprintf("Checking %d numbers...", n)
	}
	return fmt.Sprintf("Starting to send messages to %d numbers...", n)
}

func retryText(wait time.Duration, batch, batches int) string {
	return fmt.Sprintf("Server may be restarting, waiting %s before retrying batch %d of %d...", wait, batch, batches)
}

func progressText(r domain.ProgressReport, batch, batches int) string {
	return fmt.Sprintf("Processed %d of %d numbers (batch %d of %d)", r.ProcessedCount, r.TotalPlanned, batch, batches)
}

func finalText(mode domain.Mode, r domain.ProgressReport) string {
	if mode.IsVerify() {
		return fmt.Sprintf("Completed: %d available, %d unavailable", r.SentCount, r.FailedCount)
	}
	return fmt.Sprintf("Completed: %d sent, %d failed", r.SentCount, r.FailedCount)
}

func abandonedText(r domain.ProgressReport) string {
	return fmt.Sprintf("Cancelled after %d of %d numbers", r.ProcessedCount, r.TotalPlanned)
}
