package filtering

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/spigell/recruiter-outreach/internal/linkedin"
	"github.com/spigell/recruiter-outreach/internal/settings"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Keywords is the recruiting-role vocabulary.
type Keywords struct {
	Phrases []string `yaml:"phrases"`
	Words   []string `yaml:"words"`
}

// Classifier holds the keyword data used by the role predicate.
type Classifier struct {
	phrases []string
	words   map[string]struct{}
}

// ParseKeywords decodes a keyword document.
func ParseKeywords(data []byte) (Keywords, error) {
	var kw Keywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return Keywords{}, fmt.Errorf("parsing keywords: %w", err)
	}
	return kw, nil
}

// NewClassifier builds a classifier from the embedded keyword list plus extra phrases.
func NewClassifier(extraPhrases ...string) (*Classifier, error) {
	kw, err := ParseKeywords(defaultKeywords)
	if err != nil {
		return nil, err
	}
	kw.Phrases = append(kw.Phrases, extraPhrases...)
	return FromKeywords(kw), nil
}

func FromKeywords(kw Keywords) *Classifier {
	c := &Classifier{words: make(map[string]struct{}, len(kw.Words))}
	for _, p := range kw.Phrases {
		if p = Fold(p); p != "" {
			c.phrases = append(c.phrases, p)
		}
	}
	for _, w := range kw.Words {
		if w = Fold(w); w != "" {
			c.words[w] = struct{}{}
		}
	}
	return c
}

// IsRoleMatch reports whether the headline names a recruiting role or contains
// any of the search terms.
func (c *Classifier) IsRoleMatch(headline string, searchTerms []string) bool {
	text := Fold(headline)
	if text == "" {
		return false
	}

	for _, p := range c.phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, term := range searchTerms {
		if term = Fold(term); term != "" && strings.Contains(text, term) {
			return true
		}
	}
	if len(c.words) > 0 {
		for _, token := range tokens(text) {
			if _, ok := c.words[token]; ok {
				return true
			}
		}
	}
	return false
}

// IsLocationMatch is a loose bidirectional containment check. An empty
// configured location, or a card that omits its location, always matches.
func IsLocationMatch(locationText, configured string) bool {
	want := Fold(configured)
	if want == "" {
		return true
	}
	got := Fold(locationText)
	if got == "" {
		return true
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

// IsCompanyMatch reports whether any configured company occurs in text.
// No configured companies means every text matches.
func IsCompanyMatch(text string, companies []string) bool {
	configured := false
	folded := Fold(text)
	for _, company := range companies {
		company = Fold(company)
		if company == "" {
			continue
		}
		configured = true
		if strings.Contains(folded, company) {
			return true
		}
	}
	return !configured
}

// Contacted answers whether a profile already received outreach.
type Contacted interface {
	HasBeenContacted(profile string) bool
}

// Eligible applies every predicate to c and returns the name of the first
// failing check, or "" when the candidate is eligible.
func (cl *Classifier) Eligible(c *linkedin.Candidate, s settings.Settings, contacted Contacted) (bool, string) {
	switch {
	case !cl.IsRoleMatch(c.Headline, s.SearchTerms):
		return false, RoleName
	case !IsCompanyMatch(c.Headline, s.Companies):
		return false, CompanyName
	case !IsLocationMatch(c.Location, s.Location):
		return false, LocationName
	case c.AlreadyConnected:
		return false, AlreadyConnectedName
	case contacted != nil && contacted.HasBeenContacted(c.ProfileRef):
		return false, ContactHistoryName
	}
	return true, ""
}

// Fold lower-cases s, strips diacritics and collapses whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
