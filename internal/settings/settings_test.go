package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDecodeAppliesDefaultsForMissingKeys(t *testing.T) {
	s, err := Decode(map[string]any{"location": "  São Paulo "})
	require.NoError(t, err)

	assert.Equal(t, "São Paulo", s.Location)
	assert.Empty(t, s.Companies)
	assert.Equal(t, DefaultSearchTerms, s.SearchTerms)
	assert.Equal(t, DefaultMaxDaily, s.MaxDaily)
	assert.Equal(t, DefaultMaxWeekly, s.MaxWeekly)
}

func TestDecodeAcceptsAliasesAndIgnoresUnknownKeys(t *testing.T) {
	s, err := Decode(map[string]any{
		"searchTerms": []any{"tech recruiter"},
		"maxDaily":    float64(5),
		"max-weekly":  20,
		"companies":   "Google, Amazon ,google,",
		"theme":       "dark",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"tech recruiter"}, s.SearchTerms)
	assert.Equal(t, 5, s.MaxDaily)
	assert.Equal(t, 20, s.MaxWeekly)
	assert.Equal(t, []string{"Google", "Amazon"}, s.Companies)
}

func TestDecodeReplacesDefaultListsEntirely(t *testing.T) {
	s, err := Decode(map[string]any{"search_terms": []any{"headhunter"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"headhunter"}, s.SearchTerms)
}

func TestDecodeRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{name: "empty search terms", raw: map[string]any{"search_terms": []any{" ", ""}}},
		{name: "negative cap", raw: map[string]any{"max_daily_connections": -1}},
		{name: "wrong type", raw: map[string]any{"max_weekly_connections": "lots"}},
		{name: "location not a string", raw: map[string]any{"location": []any{"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestDecodeAllowsZeroAndInvertedCaps(t *testing.T) {
	s, err := Decode(map[string]any{"max_daily_connections": 0, "max_weekly_connections": 0})
	require.NoError(t, err)
	assert.Zero(t, s.MaxDaily)
	assert.NotEmpty(t, s.Advisories())

	inverted, err := Decode(map[string]any{"max_daily_connections": 50, "max_weekly_connections": 10})
	require.NoError(t, err)
	assert.Len(t, inverted.Advisories(), 1)
}

func TestLoadReadsJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config_location.json")
	doc := `{
  "location": "São Paulo",
  "companies": ["Google"],
  "search_terms": ["tech recruiter"],
  "max_daily_connections": 15,
  "max_weekly_connections": 100
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, Settings{
		Location:    "São Paulo",
		Companies:   []string{"Google"},
		SearchTerms: []string{"tech recruiter"},
		MaxDaily:    15,
		MaxWeekly:   100,
	}, s)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)

	s, err := Load(filepath.Join(t.TempDir(), "absent.json"), zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, Defaults(), s)
	assert.Equal(t, 1, observed.FilterMessage("settings file not found, using defaults").Len())
}

func TestUnconstrained(t *testing.T) {
	assert.True(t, Defaults().Unconstrained())
	assert.False(t, Settings{Location: "Remote"}.Unconstrained())
}
