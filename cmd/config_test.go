package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/recruiter-outreach/internal/connector"
	"github.com/spigell/recruiter-outreach/internal/linkedin"
)

func TestGetConfigMergesMarkupOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.SetConfigType("yaml")
	doc := `
ledger: /tmp/ledger.jsonl
source:
  pagination: scroll
  settle-delay: 2s
markup:
  profile:
    connect:
      query: "//button[@aria-label='Invite']"
`
	if err := viper.ReadConfig(strings.NewReader(doc)); err != nil {
		t.Fatalf("reading config: %v", err)
	}

	config, err := getConfig()
	if err != nil {
		t.Fatalf("getConfig: %v", err)
	}

	defaults := linkedin.DefaultMarkup()
	if got := config.Markup.Profile.Connect.Query; got != "//button[@aria-label='Invite']" {
		t.Fatalf("override not applied: %q", got)
	}
	if config.Markup.Profile.Connect.Name != defaults.Profile.Connect.Name {
		t.Fatalf("descriptor name lost: %q", config.Markup.Profile.Connect.Name)
	}
	if config.Markup.Search.Results != defaults.Search.Results {
		t.Fatalf("untouched descriptor changed: %+v", config.Markup.Search.Results)
	}
	if config.Source.Pagination != linkedin.PaginateScroll || config.Source.SettleDelay != 2*time.Second {
		t.Fatalf("unexpected source options: %+v", config.Source)
	}
}

func TestPrepareNotesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "message.txt")
	if err := os.WriteFile(path, []byte("Hi {first_name}!\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	notes, err := prepareNotes(context.Background(), &Config{Message: "ignored", MessageFile: path}, nil)
	if err != nil {
		t.Fatalf("prepareNotes: %v", err)
	}

	note, err := notes.Note(context.Background(), &linkedin.Candidate{Name: "Ana Souza"})
	if err != nil {
		t.Fatalf("Note: %v", err)
	}
	if note != "Hi Ana!" {
		t.Fatalf("unexpected note %q", note)
	}
	if _, ok := notes.(connector.Template); !ok {
		t.Fatalf("expected static template, got %T", notes)
	}
}

func TestPrepareNotesMissingFile(t *testing.T) {
	_, err := prepareNotes(context.Background(), &Config{MessageFile: filepath.Join(t.TempDir(), "missing")}, nil)
	if err == nil {
		t.Fatal("expected error for missing message file")
	}
}
