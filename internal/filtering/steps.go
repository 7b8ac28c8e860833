package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/recruiter-outreach/internal/linkedin"
	"github.com/spigell/recruiter-outreach/internal/settings"
	"github.com/spigell/recruiter-outreach/internal/utils"
)

// Default builds the standard chain order for the given settings.
func Default(cl *Classifier, s settings.Settings, history Contacted, excludeFile string) []Filter {
	return []Filter{
		NewRole(cl, s.SearchTerms),
		NewCompany(s.Companies),
		NewLocation(s.Location),
		NewAlreadyConnected(),
		NewExcludeFile(excludeFile),
		NewContactHistory(history),
	}
}

type roleFilter struct {
	toggle
	classifier *Classifier
	terms      []string
}

// NewRole keeps candidates whose headline names a recruiting role.
func NewRole(cl *Classifier, searchTerms []string) Filter {
	return &roleFilter{classifier: cl, terms: searchTerms}
}

func (f *roleFilter) Name() string { return RoleName }

func (f *roleFilter) Validate() error {
	if f.classifier == nil {
		return fmt.Errorf("classifier is required")
	}
	return nil
}

func (f *roleFilter) Keep(_ context.Context, c *linkedin.Candidate) (bool, error) {
	return f.classifier.IsRoleMatch(c.Headline, f.terms), nil
}

func (f *roleFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"search_terms": strings.Join(f.terms, ",")})
}

type locationFilter struct {
	toggle
	location string
}

// NewLocation keeps candidates located in the configured place.
func NewLocation(location string) Filter {
	return &locationFilter{location: location}
}

func (f *locationFilter) Name() string { return LocationName }

func (f *locationFilter) Validate() error { return nil }

func (f *locationFilter) Keep(_ context.Context, c *linkedin.Candidate) (bool, error) {
	return IsLocationMatch(c.Location, f.location), nil
}

func (f *locationFilter) Status() Status {
	details := map[string]string{}
	if f.location != "" {
		details["location"] = f.location
	}
	return f.status(f.Name(), details)
}

type companyFilter struct {
	toggle
	companies []string
}

// NewCompany keeps candidates whose headline mentions a configured company.
func NewCompany(companies []string) Filter {
	return &companyFilter{companies: companies}
}

func (f *companyFilter) Name() string { return CompanyName }

func (f *companyFilter) Validate() error { return nil }

func (f *companyFilter) Keep(_ context.Context, c *linkedin.Candidate) (bool, error) {
	return IsCompanyMatch(c.Headline, f.companies), nil
}

func (f *companyFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return f.status(f.Name(), details)
}

type alreadyConnectedFilter struct {
	toggle
}

// NewAlreadyConnected drops candidates the card marks as first-degree connections.
func NewAlreadyConnected() Filter {
	return &alreadyConnectedFilter{}
}

func (f *alreadyConnectedFilter) Name() string { return AlreadyConnectedName }

func (f *alreadyConnectedFilter) Validate() error { return nil }

func (f *alreadyConnectedFilter) Keep(_ context.Context, c *linkedin.Candidate) (bool, error) {
	return !c.AlreadyConnected, nil
}

type contactHistoryFilter struct {
	toggle
	history Contacted
}

// NewContactHistory drops candidates the ledger already recorded as contacted.
func NewContactHistory(history Contacted) Filter {
	return &contactHistoryFilter{history: history}
}

func (f *contactHistoryFilter) Name() string { return ContactHistoryName }

func (f *contactHistoryFilter) Validate() error {
	if f.history == nil {
		return fmt.Errorf("contact history is required")
	}
	return nil
}

func (f *contactHistoryFilter) Keep(_ context.Context, c *linkedin.Candidate) (bool, error) {
	return !f.history.HasBeenContacted(c.ProfileRef), nil
}

func (f *contactHistoryFilter) Status() Status {
	return f.status(f.Name(), map[string]string{"exclude_contacted": strconv.FormatBool(f.IsEnabled())})
}

type excludeFileFilter struct {
	toggle
	path     string
	excluded map[string]struct{}
}

// NewExcludeFile drops candidates listed in a static exclude file.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path)}
}

func (f *excludeFileFilter) Name() string { return ExcludeFileName }

func (f *excludeFileFilter) Validate() error {
	f.excluded = nil
	if f.path == "" {
		return nil
	}

	refs, err := linkedin.ExcludedProfilesFromFile(f.path)
	if err != nil {
		return fmt.Errorf("getting excluded profiles from file: %w", err)
	}

	f.excluded = make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		f.excluded[utils.NormalizeURL(ref)] = struct{}{}
	}
	return nil
}

func (f *excludeFileFilter) Keep(_ context.Context, c *linkedin.Candidate) (bool, error) {
	if len(f.excluded) == 0 {
		return true, nil
	}
	_, found := f.excluded[utils.NormalizeURL(c.ProfileRef)]
	return !found, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
		details["profiles"] = strconv.Itoa(len(f.excluded))
	}
	return f.status(f.Name(), details)
}
