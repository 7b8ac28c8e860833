package linkedin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// Candidate is a profile discovered on a search results page.
type Candidate struct {
	Name             string `json:"name"`
	Headline         string `json:"headline"`
	Location         string `json:"location"`
	ProfileRef       string `json:"profile"`
	AlreadyConnected bool   `json:"already_connected"`
	Page             int    `json:"page"`
}

var (
	employerSeparator = regexp.MustCompile(`(?i)\s+(?:at|na|no|en)\s+|\s*@\s*`)
	employerEnd       = regexp.MustCompile(`\s*(?:\||,|·|\s-\s)`)
)

// Employer guesses the employer from a "Role at Company" style headline.
func (c *Candidate) Employer() string {
	parts := employerSeparator.Split(c.Headline, 2)
	if len(parts) < 2 {
		return ""
	}
	employer := parts[1]
	if loc := employerEnd.FindStringIndex(employer); loc != nil {
		employer = employer[:loc[0]]
	}
	return strings.TrimSpace(employer)
}

// FirstName returns the first word of the candidate name.
func (c *Candidate) FirstName() string {
	fields := strings.Fields(c.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

type Candidates struct {
	Items []*Candidate
}

func (c *Candidates) Add(cand *Candidate) {
	c.Items = append(c.Items, cand)
}

func (c *Candidates) Len() int {
	return len(c.Items)
}

func (c *Candidates) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "candidates_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByEmployer groups candidates by the employer parsed from the headline.
func (c *Candidates) ReportByEmployer() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, cand := range c.Items {
		key := cand.Employer()
		if key == "" {
			key = "unknown"
		}
		report[key] = append(report[key], map[string]string{
			"name":     cand.Name,
			"headline": cand.Headline,
			"location": cand.Location,
			"profile":  cand.ProfileRef,
		})
	}
	return report
}

func (c *Candidates) ToExcluded() *ExcludedProfiles {
	excluded := &ExcludedProfiles{}
	for _, cand := range c.Items {
		excluded.Items = append(excluded.Items, &ExcludedProfile{
			Profile:    cand.ProfileRef,
			Name:       cand.Name,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

type ExcludedProfiles struct {
	Items []*ExcludedProfile
}

type ExcludedProfile struct {
	Profile    string
	Name       string
	ExcludedAt time.Time
}

// GetExcludedProfilesFromFile reads an exclude file. A missing or empty file
// yields an empty list.
func GetExcludedProfilesFromFile(path string) (*ExcludedProfiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ExcludedProfiles{}, nil
		}
		return nil, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return &ExcludedProfiles{}, nil
	}

	var excluded ExcludedProfiles
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &excluded, nil
}

// ExcludedProfilesFromFile returns only the profile references of an exclude file.
func ExcludedProfilesFromFile(path string) ([]string, error) {
	excluded, err := GetExcludedProfilesFromFile(path)
	if err != nil {
		return nil, err
	}
	return excluded.Profiles(), nil
}

func (e *ExcludedProfiles) Append(other *ExcludedProfiles) {
	e.Items = append(e.Items, other.Items...)
}

func (e *ExcludedProfiles) Profiles() []string {
	refs := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		refs = append(refs, item.Profile)
	}
	return refs
}

func (e *ExcludedProfiles) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
