package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgressReport is the running tally of an operation. Counters only grow
// while Active is true; once Active is false the report is a read-only
// snapshot.
type ProgressReport struct {
	TotalPlanned   int               `json:"total_planned"`
	ProcessedCount int               `json:"processed_count"`
	SentCount      int               `json:"sent_count"`
	FailedCount    int               `json:"failed_count"`
	UnmatchedCount int               `json:"unmatched_count"` // Gateway entries naming no batch recipient
	Outcomes       []DispatchOutcome `json:"outcomes"`
	Active         bool              `json:"active"`
}

// NewProgressReport starts an active report for total recipients.
func NewProgressReport(total int) ProgressReport {
	return ProgressReport{
		TotalPlanned: total,
		Outcomes:     make([]DispatchOutcome, 0, total),
		Active:       true,
	}
}

// Clone returns a copy whose outcome slice is not shared with r.
func (r ProgressReport) Clone() ProgressReport {
	out := r
	out.Outcomes = append([]DispatchOutcome(nil), r.Outcomes...)
	return out
}

// Fold applies one batch result to the report. A failed batch marks every
// recipient in it as failed; a successful one contributes its reconciled
// outcomes. Either way processed grows by len(batch). Inactive reports are
// returned unchanged.
func Fold(r ProgressReport, res BatchResult, batch Batch, now time.Time) ProgressReport {
	if !r.Active {
		return r
	}

	ts := FormatTimestamp(now)
	var outcomes []DispatchOutcome
	if res.Failed() {
		outcomes = make([]DispatchOutcome, 0, len(batch))
		for _, rcpt := range batch {
			outcomes = append(outcomes, DispatchOutcome{
				Recipient: rcpt,
				Status:    OutcomeFailed,
				Timestamp: ts,
				Reason:    res.Err.Error(),
			})
		}
	} else {
		var unmatched int
		outcomes, unmatched = Reconcile(batch, res.Outcomes, ts)
		r.UnmatchedCount += unmatched
	}

	for _, o := range outcomes {
		if o.Status.Succeeded() {
			r.SentCount++
		} else {
			r.FailedCount++
		}
	}
	r.Outcomes = append(r.Outcomes, outcomes...)
	r.ProcessedCount += len(batch)
	return r
}

// Finish marks the report inactive.
func Finish(r ProgressReport) ProgressReport {
	r.Active = false
	return r
}

// Reconcile maps decoded gateway outcomes back onto the batch. Outcomes keep
// the gateway's order; each batch recipient is reported once under its
// canonical address. Entries that match no recipient (or repeat one) are
// dropped and counted in unmatched. Recipients the gateway did not report get
// a failed outcome appended in batch order.
func Reconcile(batch Batch, decoded []DispatchOutcome, ts string) (outcomes []DispatchOutcome, unmatched int) {
	byKey := make(map[string]string, len(batch))
	for _, rcpt := range batch {
		byKey[DigitKey(rcpt)] = rcpt
	}

	seen := make(map[string]struct{}, len(batch))
	outcomes = make([]DispatchOutcome, 0, len(batch))
	for _, o := range decoded {
		rcpt, ok := byKey[DigitKey(o.Recipient)]
		if !ok {
			unmatched++
			continue
		}
		if _, dup := seen[rcpt]; dup {
			unmatched++
			continue
		}
		seen[rcpt] = struct{}{}
		o.Recipient = rcpt
		if o.Timestamp == "" {
			o.Timestamp = ts
		}
		outcomes = append(outcomes, o)
	}

	for _, rcpt := range batch {
		if _, ok := seen[rcpt]; ok {
			continue
		}
		outcomes = append(outcomes, DispatchOutcome{
			Recipient: rcpt,
			Status:    OutcomeFailed,
			Timestamp: ts,
			Reason:    "no result from gateway",
		})
	}
	return outcomes, unmatched
}

// ProgressEvent is the message published to progress subscribers after every
// phase transition of an operation.
type ProgressEvent struct {
	OperationID uuid.UUID      `json:"operation_id"`
	Mode        Mode           `json:"mode"`
	Status      string         `json:"status"`
	Report      ProgressReport `json:"report"`
	At          time.Time      `json:"at"`
}
