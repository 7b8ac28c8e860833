// Package connector sends a connection invitation to a single candidate.
//
// The flow is a table-driven state machine (see Transitions). Every guard is a
// bounded lookup; an absent element selects the failure branch of the
// transition and a session error selects its error branch.
package connector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/browser"
	"github.com/spigell/recruiter-outreach/internal/linkedin"
	"github.com/spigell/recruiter-outreach/internal/logger"
	"github.com/spigell/recruiter-outreach/internal/utils"
)

// Outcome is the externally visible result of a connection attempt.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

const (
	DefaultNavigationTimeout  = 30 * time.Second
	DefaultInteractionTimeout = 10 * time.Second
	DefaultActionTimeout      = 10 * time.Second
	DefaultNoteTimeout    = 5 * time.Second
	DefaultSubmitTimeout  = 5 * time.Second
	DefaultConfirmTimeout = 3 * time.Second
	dismissTimeout        = 2 * time.Second
)

// Result describes how a connection attempt ended.
type Result struct {
	Outcome      Outcome
	Reason       string
	State        State
	NoteAttached bool
	Confirmed    bool
	Trace        []State
	Err          error
}

// Options tune the agent. Zero timeouts fall back to defaults.
type Options struct {
	// NavigationTimeout bounds opening the profile page.
	NavigationTimeout time.Duration `mapstructure:"navigation-timeout"`
	// InteractionTimeout bounds every click and keystroke batch.
	InteractionTimeout time.Duration `mapstructure:"interaction-timeout"`
	ActionTimeout      time.Duration `mapstructure:"action-timeout"`
	NoteTimeout    time.Duration `mapstructure:"note-timeout"`
	SubmitTimeout  time.Duration `mapstructure:"submit-timeout"`
	ConfirmTimeout time.Duration `mapstructure:"confirm-timeout"`
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.InteractionTimeout <= 0 {
		o.InteractionTimeout = DefaultInteractionTimeout
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	if o.NoteTimeout <= 0 {
		o.NoteTimeout = DefaultNoteTimeout
	}
	if o.SubmitTimeout <= 0 {
		o.SubmitTimeout = DefaultSubmitTimeout
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = DefaultConfirmTimeout
	}
	return o
}

// Agent drives the profile page of one candidate at a time.
type Agent struct {
	browser browser.Session
	markup  linkedin.ProfileMarkup
	notes   NoteSource
	pacer   utils.Pacer
	opts    Options
	logger  *zap.Logger
}

// New builds an agent. A nil notes source sends invitations without a note and
// a nil pacer does not wait between steps.
func New(b browser.Session, markup linkedin.ProfileMarkup, notes NoteSource, pacer utils.Pacer, opts Options, log *zap.Logger) *Agent {
	if pacer == nil {
		pacer = utils.NoPacer{}
	}
	return &Agent{
		browser: b,
		markup:  markup,
		notes:   notes,
		pacer:   pacer,
		opts:    opts.withDefaults(),
		logger:  logger.WithFields(log),
	}
}

// attempt holds the per-candidate state shared between steps.
type attempt struct {
	agent     *Agent
	tab       browser.Session
	cand      *linkedin.Candidate
	log       *zap.Logger
	connect   browser.Handle
	activated bool
	noted     bool
}

// Connect runs the state machine for c in a fresh tab that is always closed.
func (a *Agent) Connect(ctx context.Context, c *linkedin.Candidate) Result {
	log := logger.WithCandidate(a.logger, c.Name, c.ProfileRef)

	openCtx, cancelOpen := context.WithTimeout(ctx, a.opts.NavigationTimeout)
	tab, err := a.browser.OpenTab(openCtx)
	cancelOpen()
	if err != nil {
		log.Warn("opening tab failed", zap.Error(err))
		return Result{
			Outcome: OutcomeFailed,
			Reason:  ReasonTab,
			State:   Failed,
			Trace:   []State{Idle, Failed},
			Err:     err,
		}
	}
	defer func() {
		if err := tab.Close(); err != nil {
			log.Debug("closing tab", zap.Error(err))
		}
	}()

	at := &attempt{agent: a, tab: tab, cand: c, log: log}
	res := Result{State: Idle, Trace: []State{Idle}}

	for !res.State.Terminal() {
		t, ok := transitionFrom(res.State)
		if !ok {
			// Unreachable while Transitions covers every non-terminal state.
			res.State, res.Reason, res.Err = Failed, "undefined-transition", fmt.Errorf("no transition from %s", res.State)
			break
		}

		held, err := at.run(ctx, t)
		switch {
		case err != nil:
			res.State, res.Reason, res.Err = t.Error, t.ErrorReason, err
			log.Debug("transition error", zap.String(logger.FieldState, string(t.From)), zap.String("guard", t.Guard), zap.Error(err))
		case held:
			res.State = t.Success
		default:
			res.State, res.Reason = t.Failure, t.FailureReason
		}
		res.Trace = append(res.Trace, res.State)

		if t.From == Submitted {
			res.Confirmed = held && err == nil
		}
	}

	res.NoteAttached = at.noted && res.State == Verified

	switch res.State {
	case Verified:
		res.Outcome = OutcomeSent
		res.Reason = ""
	case Skipped:
		res.Outcome = OutcomeSkipped
	default:
		res.Outcome = OutcomeFailed
		if at.activated {
			at.dismiss(ctx)
		}
	}

	log.Info("connection attempt finished",
		zap.String("outcome", string(res.Outcome)),
		zap.String("reason", res.Reason),
		zap.Bool("note", res.NoteAttached),
		zap.Bool("confirmed", res.Confirmed),
		zap.Error(res.Err),
	)

	return res
}

func (at *attempt) run(ctx context.Context, t Transition) (bool, error) {
	if err := at.agent.pacer.Pause(ctx); err != nil {
		return false, err
	}

	switch t.From {
	case Idle:
		return true, at.navigate(ctx)
	case Navigated:
		return at.locateAndKeep(ctx, at.agent.markup.Connect, at.agent.opts.ActionTimeout)
	case ActionControlLocated:
		return at.activateAndOpenNote(ctx)
	case NoteOpened:
		return at.submit(ctx, at.agent.markup.SendWithNote)
	case WithoutNote:
		return at.submit(ctx, at.agent.markup.SendWithoutNote)
	case Submitted:
		lookup, err := at.find(ctx, at.agent.markup.Confirmation, at.agent.opts.ConfirmTimeout)
		return lookup.Found(), err
	default:
		return false, fmt.Errorf("no guard for state %s", t.From)
	}
}

// locateAndKeep remembers the located action control for the next step.
func (at *attempt) locateAndKeep(ctx context.Context, d browser.Descriptor, timeout time.Duration) (bool, error) {
	lookup, err := at.find(ctx, d, timeout)
	if err != nil {
		return false, err
	}
	if !lookup.Found() {
		at.log.Info("action control not available", zap.Stringer("lookup", lookup.Status))
		return false, nil
	}
	at.connect = lookup.Handle
	return true, nil
}

func (at *attempt) activateAndOpenNote(ctx context.Context) (bool, error) {
	if err := at.activate(ctx, at.connect); err != nil {
		return false, err
	}
	at.activated = true

	if at.agent.notes == nil {
		return false, nil
	}

	note, err := at.agent.notes.Note(ctx, at.cand)
	if err != nil || note == "" {
		if err != nil {
			at.log.Warn("preparing note failed, sending without note", zap.Error(err))
		}
		return false, nil
	}

	opts := at.agent.opts
	addNote, err := at.find(ctx, at.agent.markup.AddNote, opts.NoteTimeout)
	if err != nil || !addNote.Found() {
		at.log.Info("note control not available, sending without note", zap.Stringer("lookup", addNote.Status), zap.Error(err))
		return false, nil
	}
	if err := at.activate(ctx, addNote.Handle); err != nil {
		at.log.Info("opening note failed, sending without note", zap.Error(err))
		return false, nil
	}

	if err := at.agent.pacer.Pause(ctx); err != nil {
		return false, err
	}

	input, err := at.find(ctx, at.agent.markup.Message, opts.NoteTimeout)
	if err != nil || !input.Found() {
		at.log.Info("note input not available, sending without note", zap.Stringer("lookup", input.Status), zap.Error(err))
		return false, nil
	}
	if err := at.typeText(ctx, input.Handle, note); err != nil {
		at.log.Info("typing note failed, sending without note", zap.Error(err))
		return false, nil
	}

	at.noted = true
	return true, nil
}

func (at *attempt) submit(ctx context.Context, d browser.Descriptor) (bool, error) {
	lookup, err := at.find(ctx, d, at.agent.opts.SubmitTimeout)
	if err != nil {
		return false, err
	}
	if !lookup.Found() {
		return false, nil
	}
	if err := at.activate(ctx, lookup.Handle); err != nil {
		return false, err
	}
	return true, nil
}

// dismiss closes a dialog left open by a failed attempt. Errors are ignored.
func (at *attempt) dismiss(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dismissTimeout+time.Second)
	defer cancel()

	lookup, err := at.tab.Find(ctx, at.agent.markup.Dismiss, dismissTimeout)
	if err != nil || !lookup.Found() {
		return
	}
	if err := at.tab.Activate(ctx, lookup.Handle); err != nil {
		at.log.Debug("dismissing dialog failed", zap.Error(err))
	}
}

// Every session call below runs under its own deadline, so a page that never
// settles ends the attempt instead of stalling the run.

func (at *attempt) navigate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, at.agent.opts.NavigationTimeout)
	defer cancel()
	return at.tab.Navigate(ctx, at.cand.ProfileRef)
}

func (at *attempt) find(ctx context.Context, d browser.Descriptor, timeout time.Duration) (browser.Lookup, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+at.agent.opts.InteractionTimeout)
	defer cancel()
	return at.tab.Find(ctx, d, timeout)
}

func (at *attempt) activate(ctx context.Context, h browser.Handle) error {
	ctx, cancel := context.WithTimeout(ctx, at.agent.opts.InteractionTimeout)
	defer cancel()
	return at.tab.Activate(ctx, h)
}

func (at *attempt) typeText(ctx context.Context, h browser.Handle, text string) error {
	ctx, cancel := context.WithTimeout(ctx, at.agent.opts.InteractionTimeout)
	defer cancel()
	return at.tab.TypeText(ctx, h, text)
}
