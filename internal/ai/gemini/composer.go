package gemini

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/ai"
	"github.com/spigell/recruiter-outreach/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var systemTemplate string

const (
	defaultMaxLogLength = 200
	defaultMaxRunes     = 300
)

// Composer writes invitation notes with Gemini.
type Composer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.NoteWriter = (*Composer)(nil)

func NewComposer(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Composer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Composer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (c *Composer) Compose(ctx context.Context, req ai.NoteRequest) (string, error) {
	if strings.TrimSpace(req.Name) == "" {
		return "", errors.New("recipient name is required")
	}

	limit := req.MaxRunes
	if limit <= 0 {
		limit = defaultMaxRunes
	}

	system := strings.ReplaceAll(systemTemplate, "{{MAX_RUNES}}", strconv.Itoa(limit))
	message := buildMessage(req)

	c.logger.Debug("gemini generate content request",
		zap.String("candidate", req.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return "", err
	}

	note := cleanNote(raw)
	if note == "" {
		return "", errors.New("gemini returned an empty note")
	}

	c.logger.Debug("gemini generate content response",
		zap.String("candidate", req.Name),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	return utils.TruncateRunes(note, limit), nil
}

func buildMessage(req ai.NoteRequest) string {
	var b strings.Builder
	b.WriteString("Recipient:\n")
	writeField(&b, "Name", req.Name)
	writeField(&b, "First name", req.FirstName)
	writeField(&b, "Headline", req.Headline)
	writeField(&b, "Company", req.Employer)
	writeField(&b, "Location", req.Location)
	if intent := strings.TrimSpace(req.Intent); intent != "" {
		b.WriteString("\nWhat I want to say:\n")
		b.WriteString(intent)
		b.WriteString("\n")
	}
	b.WriteString("\nNote:")
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "- %s: %s\n", key, value)
	}
}

// cleanNote strips code fences and wrapping quotes models like to add.
func cleanNote(raw string) string {
	note := strings.TrimSpace(raw)
	if strings.HasPrefix(note, "```") {
		note = strings.TrimPrefix(note, "```text")
		note = strings.TrimPrefix(note, "```")
		if idx := strings.LastIndex(note, "```"); idx != -1 {
			note = note[:idx]
		}
	}
	note = strings.TrimSpace(note)
	if len(note) >= 2 && note[0] == '"' && note[len(note)-1] == '"' {
		note = note[1 : len(note)-1]
	}
	return strings.TrimSpace(note)
}
