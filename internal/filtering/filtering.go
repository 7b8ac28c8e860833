package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/linkedin"
)

const (
	RoleName             = "role"
	LocationName         = "location"
	CompanyName          = "company"
	AlreadyConnectedName = "already_connected"
	ExcludeFileName      = "exclude_file"
	ContactHistoryName   = "contact_history"
)

// Filter represents a single eligibility check applied to each candidate.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Keep(ctx context.Context, c *linkedin.Candidate) (bool, error)
}

// Step accumulates what a filter did during a run.
type Step struct {
	Name    string
	Checked int
	Dropped int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Verdict is the chain decision for one candidate. Step names the filter that
// dropped it.
type Verdict struct {
	Keep bool
	Step string
}

// Chain runs filters in order and stops at the first rejection.
type Chain struct {
	steps  []Filter
	stats  map[string]*Step
	logger *zap.Logger
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// NewChain validates every enabled step.
func NewChain(logger *zap.Logger, steps ...Filter) (*Chain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Chain{
		steps:  steps,
		stats:  make(map[string]*Step, len(steps)),
		logger: logger,
	}

	for _, step := range steps {
		c.stats[step.Name()] = &Step{Name: step.Name()}
		if !step.IsEnabled() {
			logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	return c, nil
}

// Check passes the candidate through every enabled step.
func (c *Chain) Check(ctx context.Context, cand *linkedin.Candidate) (Verdict, error) {
	for _, step := range c.steps {
		if !step.IsEnabled() {
			continue
		}

		stat := c.stats[step.Name()]
		stat.Checked++

		keep, err := step.Keep(ctx, cand)
		if err != nil {
			return Verdict{}, fmt.Errorf("%s: %w", step.Name(), err)
		}
		if !keep {
			stat.Dropped++
			return Verdict{Step: step.Name()}, nil
		}
	}

	return Verdict{Keep: true}, nil
}

// Steps returns per-step counters in chain order.
func (c *Chain) Steps() []Step {
	out := make([]Step, 0, len(c.steps))
	for _, step := range c.steps {
		out = append(out, *c.stats[step.Name()])
	}
	return out
}

// Report logs the per-step counters.
func (c *Chain) Report() {
	for _, step := range c.Steps() {
		c.logger.Info("filter step",
			zap.String("name", step.Name),
			zap.Int("checked", step.Checked),
			zap.Int("dropped", step.Dropped),
			zap.Int("left", step.Checked-step.Dropped),
		)
	}
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func (t *toggle) status(name string, details map[string]string) Status {
	return Status{Name: name, Enabled: !t.disabled, Reason: t.reason, Details: details}
}
