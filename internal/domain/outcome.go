package domain

import "time"

// Mode selects what an operation does with its recipients.
type Mode string

const (
	ModeSend         Mode = "send"          // Deliver one text message to every recipient
	ModeVerify       Mode = "verify"        // Check reachability on the messaging platform
	ModeLegacyVerify Mode = "legacy-verify" // Small, country-agnostic reachability check
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSend, ModeVerify, ModeLegacyVerify:
		return true
	}
	return false
}

// IsVerify reports whether m checks reachability instead of sending.
func (m Mode) IsVerify() bool {
	return m == ModeVerify || m == ModeLegacyVerify
}

// OutcomeStatus is the per-recipient result reported by the gateway.
type OutcomeStatus string

const (
	OutcomeSent        OutcomeStatus = "sent"
	OutcomeFailed      OutcomeStatus = "failed"
	OutcomeAvailable   OutcomeStatus = "available"   // Verify: number is on the platform
	OutcomeUnavailable OutcomeStatus = "unavailable" // Verify: number is not on the platform
)

// Succeeded reports whether the outcome counts towards the sent tally.
func (s OutcomeStatus) Succeeded() bool {
	return s == OutcomeSent || s == OutcomeAvailable
}

// DispatchOutcome is the result for a single recipient of a transmitted batch.
type DispatchOutcome struct {
	Recipient string        `json:"number"`
	Status    OutcomeStatus `json:"status"`
	Timestamp string        `json:"timestamp"`
	Reason    string        `json:"reason,omitempty"`
}

// BatchResult is what the dispatch client hands back for one batch.
// Err is set when the batch failed as a whole (after any retry). DecodeErr is
// set when the gateway answered 2xx with an unrecognised body; the batch is
// then treated as having produced no outcomes.
type BatchResult struct {
	Outcomes  []DispatchOutcome
	Attempts  int
	Err       error
	DecodeErr error
}

// Failed reports whether the batch failed at transport or remote level.
func (r BatchResult) Failed() bool {
	return r.Err != nil
}

// FormatTimestamp renders t the way outcomes carry it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
