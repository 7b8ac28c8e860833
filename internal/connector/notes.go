package connector

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/ai"
	"github.com/spigell/recruiter-outreach/internal/linkedin"
	"github.com/spigell/recruiter-outreach/internal/utils"
)

// MaxNoteRunes is the longest note the invitation dialog accepts.
const MaxNoteRunes = 300

// NoteSource produces the invitation note for a candidate. An empty note
// means the invitation goes out without one.
type NoteSource interface {
	Note(ctx context.Context, c *linkedin.Candidate) (string, error)
}

// Template is a static note with {name}, {first_name} and {company} placeholders.
type Template struct {
	Text string
}

func (t Template) Note(_ context.Context, c *linkedin.Candidate) (string, error) {
	return t.Render(c), nil
}

func (t Template) Render(c *linkedin.Candidate) string {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return ""
	}

	r := strings.NewReplacer(
		"{name}", c.Name,
		"{first_name}", c.FirstName(),
		"{company}", c.Employer(),
	)
	return utils.TruncateRunes(strings.TrimSpace(r.Replace(text)), MaxNoteRunes)
}

// Composed asks a NoteWriter for a personalised note and falls back to the
// template when the writer fails.
type Composed struct {
	Writer   ai.NoteWriter
	Intent   string
	Fallback Template
	Logger   *zap.Logger
}

func (c Composed) Note(ctx context.Context, cand *linkedin.Candidate) (string, error) {
	if c.Writer == nil {
		return c.Fallback.Render(cand), nil
	}

	note, err := c.Writer.Compose(ctx, ai.NoteRequest{
		Name:      cand.Name,
		FirstName: cand.FirstName(),
		Headline:  cand.Headline,
		Employer:  cand.Employer(),
		Location:  cand.Location,
		Intent:    c.Intent,
		MaxRunes:  MaxNoteRunes,
	})
	if err != nil || strings.TrimSpace(note) == "" {
		if c.Logger != nil {
			c.Logger.Warn("composing note failed, using static message", zap.Error(err))
		}
		return c.Fallback.Render(cand), nil
	}

	return utils.TruncateRunes(note, MaxNoteRunes), nil
}
