package outreach

import (
	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/linkedin"
)

// StopReason says why a run ended.
type StopReason string

const (
	StopCapsExhausted       StopReason = "caps-exhausted"
	StopCandidatesExhausted StopReason = "candidates-exhausted"
	StopAlreadyRunToday     StopReason = "already-run-today"
	StopCancelled           StopReason = "cancelled"
	StopError               StopReason = "error"
)

// Report summarises a run.
type Report struct {
	RunID string
	// Sent counts invitations recorded in this run.
	Sent int
	// Skipped counts agent skips plus duplicates of earlier runs.
	Skipped int
	Failed  int
	// Considered counts every candidate pulled from the source.
	Considered int
	// Filtered counts candidates dropped by the filter chain.
	Filtered       int
	LedgerWarnings int
	StopReason     StopReason
	Err            error

	// Eligible is only filled in dry-run mode.
	Eligible *linkedin.Candidates
}

func (r Report) Fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", r.RunID),
		zap.String("stop_reason", string(r.StopReason)),
		zap.Int("sent", r.Sent),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
		zap.Int("considered", r.Considered),
		zap.Int("filtered", r.Filtered),
		zap.Int("ledger_warnings", r.LedgerWarnings),
		zap.Error(r.Err),
	}
}
