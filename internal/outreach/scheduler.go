// Package outreach runs one bounded outreach session: it pulls candidates,
// filters them, hands eligible ones to the connection agent and records every
// outcome in the ledger while keeping daily and weekly caps.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/connector"
	"github.com/spigell/recruiter-outreach/internal/filtering"
	"github.com/spigell/recruiter-outreach/internal/ledger"
	"github.com/spigell/recruiter-outreach/internal/linkedin"
	"github.com/spigell/recruiter-outreach/internal/logger"
	"github.com/spigell/recruiter-outreach/internal/metrics"
	"github.com/spigell/recruiter-outreach/internal/settings"
	"github.com/spigell/recruiter-outreach/internal/utils"
)

// Ledger is the part of the activity ledger the scheduler needs.
type Ledger interface {
	RecordedCountSince(windowStart time.Time) int
	HasRunOn(day time.Time) bool
	Append(entry ledger.Entry) error
}

type Source interface {
	Next(ctx context.Context) (*linkedin.Candidate, error)
}

type Filters interface {
	Check(ctx context.Context, c *linkedin.Candidate) (filtering.Verdict, error)
}

type Connector interface {
	Connect(ctx context.Context, c *linkedin.Candidate) connector.Result
}

type Deps struct {
	Ledger    Ledger
	Source    Source
	Filters   Filters
	Connector Connector
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
	Now       func() time.Time
}

type Options struct {
	Settings      settings.Settings
	RunOncePerDay bool
	// DryRun collects eligible candidates without contacting them or writing the ledger.
	DryRun bool
	// Pacer waits between two candidates.
	Pacer utils.Pacer
}

type Scheduler struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) (*Scheduler, error) {
	if deps.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if deps.Source == nil {
		return nil, errors.New("candidate source is required")
	}
	if deps.Connector == nil && !opts.DryRun {
		return nil, errors.New("connector is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.Pacer == nil {
		opts.Pacer = utils.NoPacer{}
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &Scheduler{deps: deps, opts: opts}, nil
}

// run carries the mutable state of one Run call.
type run struct {
	*Scheduler
	log     *zap.Logger
	report  Report
	daily   int
	weekly  int
	planned int
	dupes   map[string]struct{}
}

// Run executes one session and always returns a report. Cancellation is
// honoured between candidates; a candidate already handed to the agent is
// finished first.
func (s *Scheduler) Run(ctx context.Context) Report {
	started := s.deps.Now()
	r := &run{
		Scheduler: s,
		report:    Report{RunID: uuid.NewString()},
		dupes:     make(map[string]struct{}),
	}
	r.log = logger.WithFields(s.deps.Logger, zap.String(logger.FieldRunID, r.report.RunID))
	if s.opts.DryRun {
		r.report.Eligible = &linkedin.Candidates{}
	}

	defer func() {
		s.deps.Metrics.RunFinished(string(r.report.StopReason), s.deps.Now().Sub(started), s.deps.Now())
		r.log.Info("run finished", r.report.Fields()...)
	}()

	if s.opts.RunOncePerDay && s.deps.Ledger.HasRunOn(started) {
		r.report.StopReason = StopAlreadyRunToday
		return r.report
	}

	r.daily = s.deps.Ledger.RecordedCountSince(ledger.StartOfDay(started))
	r.weekly = s.deps.Ledger.RecordedCountSince(started.Add(-ledger.WeekWindow))
	s.deps.Metrics.Quota(r.daily, r.weekly)

	r.log.Info("quota at run start",
		zap.Int("daily", r.daily),
		zap.Int("max_daily", s.opts.Settings.MaxDaily),
		zap.Int("weekly", r.weekly),
		zap.Int("max_weekly", s.opts.Settings.MaxWeekly),
		zap.Bool("dry_run", s.opts.DryRun),
	)

	if !r.capsAllow() {
		r.report.StopReason = StopCapsExhausted
		return r.report
	}

	r.report.StopReason, r.report.Err = r.scan(ctx)
	r.appendSummary()

	return r.report
}

func (r *run) capsAllow() bool {
	used := r.report.Sent + r.planned
	s := r.opts.Settings
	return used+r.daily < s.MaxDaily && used+r.weekly < s.MaxWeekly
}

func (r *run) scan(ctx context.Context) (StopReason, error) {
	first := true
	for {
		if ctx.Err() != nil {
			return StopCancelled, nil
		}
		if !r.capsAllow() {
			return StopCapsExhausted, nil
		}

		if !first {
			if err := r.opts.Pacer.Pause(ctx); err != nil {
				return StopCancelled, nil
			}
		}
		first = false

		cand, err := r.deps.Source.Next(ctx)
		switch {
		case errors.Is(err, linkedin.ErrExhausted):
			return StopCandidatesExhausted, nil
		case err != nil && ctx.Err() != nil:
			return StopCancelled, nil
		case err != nil:
			r.log.Error("candidate source failed", zap.Error(err))
			return StopError, fmt.Errorf("pulling candidates: %w", err)
		}
		r.report.Considered++

		if err := r.handle(ctx, cand); err != nil {
			if ctx.Err() != nil {
				return StopCancelled, nil
			}
			return StopError, err
		}
	}
}

func (r *run) handle(ctx context.Context, cand *linkedin.Candidate) error {
	log := logger.WithCandidate(r.log, cand.Name, cand.ProfileRef)

	if r.deps.Filters != nil {
		verdict, err := r.deps.Filters.Check(ctx, cand)
		if err != nil {
			return fmt.Errorf("filtering %s: %w", cand.ProfileRef, err)
		}
		if !verdict.Keep {
			r.report.Filtered++
			r.deps.Metrics.Filtered(verdict.Step)
			log.Debug("candidate filtered", zap.String("step", verdict.Step))
			if verdict.Step == filtering.ContactHistoryName {
				r.recordDuplicate(cand)
			}
			return nil
		}
	}

	if r.opts.DryRun {
		r.planned++
		r.report.Eligible.Add(cand)
		log.Info("eligible candidate", zap.String("headline", cand.Headline), zap.String("location", cand.Location))
		return nil
	}

	// The agent finishes the current candidate even if the run is cancelled meanwhile.
	res := r.deps.Connector.Connect(context.WithoutCancel(ctx), cand)
	r.deps.Metrics.Attempt(string(res.Outcome), res.Reason)

	switch res.Outcome {
	case connector.OutcomeSent:
		r.report.Sent++
		r.append(log, r.entry(cand, ledger.OutcomeSent, ""))
	case connector.OutcomeSkipped:
		r.report.Skipped++
	default:
		r.report.Failed++
		r.append(log, r.entry(cand, ledger.OutcomeFailed, res.Reason))
	}
	return nil
}

func (r *run) recordDuplicate(cand *linkedin.Candidate) {
	ref := utils.NormalizeURL(cand.ProfileRef)
	if _, done := r.dupes[ref]; done {
		return
	}
	r.dupes[ref] = struct{}{}
	r.report.Skipped++

	if r.opts.DryRun {
		return
	}
	r.append(logger.WithCandidate(r.log, cand.Name, cand.ProfileRef), r.entry(cand, ledger.OutcomeSkippedDuplicate, "already-contacted"))
}

func (r *run) entry(cand *linkedin.Candidate, outcome ledger.Outcome, reason string) ledger.Entry {
	return ledger.Entry{
		Timestamp: r.deps.Now(),
		Outcome:   outcome,
		Name:      cand.Name,
		Employer:  cand.Employer(),
		Location:  cand.Location,
		Profile:   cand.ProfileRef,
		RunID:     r.report.RunID,
		Reason:    reason,
	}
}

func (r *run) appendSummary() {
	if r.opts.DryRun {
		return
	}
	r.append(r.log, ledger.Entry{
		Timestamp: r.deps.Now(),
		Outcome:   ledger.OutcomeRunSummary,
		RunID:     r.report.RunID,
		Summary: &ledger.Summary{
			Sent:       r.report.Sent,
			Skipped:    r.report.Skipped,
			Failed:     r.report.Failed,
			StopReason: string(r.report.StopReason),
		},
	})
}

// append never aborts the run; a lost entry is counted and logged.
func (r *run) append(log *zap.Logger, e ledger.Entry) {
	if err := r.deps.Ledger.Append(e); err != nil {
		r.report.LedgerWarnings++
		r.deps.Metrics.LedgerWarning()
		log.Error("recording ledger entry failed", zap.String("outcome", string(e.Outcome)), zap.Error(err))
	}
}
