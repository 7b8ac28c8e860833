// Package settings holds the outreach settings consumed by the engine.
//
// Settings are produced by an external editor as a flat key/value document.
// The engine only reads them: a Settings value is decoded once per run and
// never mutated afterwards.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	KeyLocation    = "location"
	KeyCompanies   = "companies"
	KeySearchTerms = "search_terms"
	KeyMaxDaily    = "max_daily_connections"
	KeyMaxWeekly   = "max_weekly_connections"

	DefaultMaxDaily  = 15
	DefaultMaxWeekly = 100
)

var ErrNoSearchTerms = errors.New("at least one search term is required")

// DefaultSearchTerms are used when the document does not mention search terms at all.
var DefaultSearchTerms = []string{"tech recruiter", "recrutador", "talent acquisition"}

// aliases maps folded key spellings to canonical keys.
var aliases = map[string]string{
	"location":             KeyLocation,
	"companies":            KeyCompanies,
	"company":              KeyCompanies,
	"searchterms":          KeySearchTerms,
	"maxdaily":             KeyMaxDaily,
	"maxdailyconnections":  KeyMaxDaily,
	"maxweekly":            KeyMaxWeekly,
	"maxweeklyconnections": KeyMaxWeekly,
}

// Settings is the immutable outreach configuration of a run.
type Settings struct {
	// Location constrains candidates geographically. Empty means unconstrained.
	Location string `mapstructure:"location" json:"location"`
	// Companies is an ordered set of employer names. Empty means unconstrained.
	Companies []string `mapstructure:"companies" json:"companies"`
	// SearchTerms build the search query and extend role matching. Never empty.
	SearchTerms []string `mapstructure:"search_terms" json:"search_terms"`
	MaxDaily    int      `mapstructure:"max_daily_connections" json:"max_daily_connections"`
	MaxWeekly   int      `mapstructure:"max_weekly_connections" json:"max_weekly_connections"`
}

// Defaults returns the settings used for every missing key.
func Defaults() Settings {
	return Settings{
		Companies:   []string{},
		SearchTerms: append([]string(nil), DefaultSearchTerms...),
		MaxDaily:    DefaultMaxDaily,
		MaxWeekly:   DefaultMaxWeekly,
	}
}

// Decode builds Settings from a raw document. Unknown keys are ignored and
// missing keys take their defaults.
func Decode(raw map[string]any) (Settings, error) {
	doc := normalize(raw)

	if err := validateDocument(doc); err != nil {
		return Settings{}, err
	}

	var s Settings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("creating settings decoder: %w", err)
	}

	if err := decoder.Decode(doc); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}

	defaults := Defaults()
	if _, ok := doc[KeyCompanies]; !ok {
		s.Companies = defaults.Companies
	}
	if _, ok := doc[KeySearchTerms]; !ok {
		s.SearchTerms = defaults.SearchTerms
	}
	if _, ok := doc[KeyMaxDaily]; !ok {
		s.MaxDaily = defaults.MaxDaily
	}
	if _, ok := doc[KeyMaxWeekly]; !ok {
		s.MaxWeekly = defaults.MaxWeekly
	}

	s.Location = strings.TrimSpace(s.Location)
	s.Companies = orderedSet(s.Companies)
	s.SearchTerms = cleanList(s.SearchTerms)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// Load reads the settings document at path. A missing file is not an error:
// the defaults are returned and a warning is logged.
func Load(path string, logger *zap.Logger) (Settings, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return Defaults(), nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("settings file not found, using defaults", zap.String("path", path))
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("stat settings file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("reading settings file %q: %w", path, err)
	}

	s, err := Decode(v.AllSettings())
	if err != nil {
		return Settings{}, fmt.Errorf("settings file %q: %w", path, err)
	}

	return s, nil
}

// Validate checks the invariants the engine relies on.
func (s Settings) Validate() error {
	if len(cleanList(s.SearchTerms)) == 0 {
		return ErrNoSearchTerms
	}
	if s.MaxDaily < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyMaxDaily, s.MaxDaily)
	}
	if s.MaxWeekly < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyMaxWeekly, s.MaxWeekly)
	}
	return nil
}

// Advisories lists non-fatal oddities worth a warning.
func (s Settings) Advisories() []string {
	var notes []string
	if s.MaxDaily > s.MaxWeekly {
		notes = append(notes, fmt.Sprintf("daily cap (%d) exceeds weekly cap (%d); the weekly cap will bind first", s.MaxDaily, s.MaxWeekly))
	}
	if s.MaxDaily == 0 || s.MaxWeekly == 0 {
		notes = append(notes, "a zero cap is configured; no invitations will be sent")
	}
	return notes
}

// Unconstrained reports whether neither location nor companies filter candidates.
func (s Settings) Unconstrained() bool {
	return s.Location == "" && len(s.Companies) == 0
}

func normalize(raw map[string]any) map[string]any {
	doc := make(map[string]any, len(raw))
	for key, value := range raw {
		canonical, ok := aliases[foldKey(key)]
		if !ok {
			continue
		}
		if canonical == KeyCompanies || canonical == KeySearchTerms {
			if s, isString := value.(string); isString {
				value = splitList(s)
			}
		}
		doc[canonical] = value
	}
	return doc
}

func foldKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
}

func splitList(s string) []any {
	parts := strings.Split(s, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		out = append(out, p)
	}
	return out
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func orderedSet(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range cleanList(items) {
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
