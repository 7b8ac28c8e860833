package connector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/recruiter-outreach/internal/ai"
)

type stubWriter struct {
	note string
	err  error
	req  ai.NoteRequest
}

func (s *stubWriter) Compose(_ context.Context, req ai.NoteRequest) (string, error) {
	s.req = req
	return s.note, s.err
}

func TestTemplateRender(t *testing.T) {
	tpl := Template{Text: "Olá {first_name}! Vi que você está na {company}. Abraço, {name}?"}
	assert.Equal(t, "Olá Ana! Vi que você está na Google. Abraço, Ana Souza?", tpl.Render(ana))

	assert.Empty(t, Template{Text: "   "}.Render(ana))

	long := Template{Text: strings.Repeat("é", MaxNoteRunes+50)}
	assert.Equal(t, MaxNoteRunes, utf8.RuneCountInString(long.Render(ana)))
}

func TestComposedUsesWriter(t *testing.T) {
	writer := &stubWriter{note: "Hi Ana, great to meet a Google recruiter."}
	src := Composed{Writer: writer, Intent: "Go engineer", Fallback: Template{Text: "fallback"}}

	note, err := src.Note(context.Background(), ana)
	require.NoError(t, err)

	assert.Equal(t, writer.note, note)
	assert.Equal(t, "Ana", writer.req.FirstName)
	assert.Equal(t, "Google", writer.req.Employer)
	assert.Equal(t, "Go engineer", writer.req.Intent)
	assert.Equal(t, MaxNoteRunes, writer.req.MaxRunes)
}

func TestComposedFallsBack(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := Composed{
		Writer:   &stubWriter{err: errors.New("quota")},
		Fallback: Template{Text: "Hello {first_name}"},
		Logger:   zap.New(core),
	}

	note, err := src.Note(context.Background(), ana)
	require.NoError(t, err)

	assert.Equal(t, "Hello Ana", note)
	assert.Equal(t, 1, logs.FilterMessage("composing note failed, using static message").Len())
}
