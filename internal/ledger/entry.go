package ledger

import "time"

// Outcome marks what happened to a candidate.
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeSkippedDuplicate Outcome = "skipped-duplicate"
	OutcomeFailed           Outcome = "failed"
	// OutcomeRunSummary closes a run that scanned candidates.
	OutcomeRunSummary Outcome = "run-summary"
)

// Entry is one self-contained ledger record. Entries are never mutated once written.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Outcome   Outcome   `json:"outcome"`
	Name      string    `json:"name,omitempty"`
	Employer  string    `json:"employer,omitempty"`
	Location  string    `json:"location,omitempty"`
	Profile   string    `json:"profile,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
}

// Summary carries the counters of a finished run.
type Summary struct {
	Sent       int    `json:"sent"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	StopReason string `json:"stop_reason,omitempty"`
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekWindow is the length of the rolling weekly window.
const WeekWindow = 7 * 24 * time.Hour

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
