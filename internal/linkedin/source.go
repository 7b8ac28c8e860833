package linkedin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/recruiter-outreach/internal/browser"
	"github.com/spigell/recruiter-outreach/internal/settings"
	"github.com/spigell/recruiter-outreach/internal/utils"
)

// ErrExhausted is returned by Next once no more candidates can be produced.
var ErrExhausted = errors.New("candidates exhausted")

// Pagination selects how the source moves between result pages.
type Pagination string

const (
	PaginateURL     Pagination = "url"
	PaginateControl Pagination = "control"
	PaginateScroll  Pagination = "scroll"
)

const (
	DefaultMaxPages       = 10
	DefaultContentTimeout = 15 * time.Second
	DefaultSettleDelay    = 5 * time.Second
	DefaultPageInterval   = 3 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	defaultControlTimeout = 5 * time.Second
	// maxEmptyPages consecutive pages without new candidates end the search.
	maxEmptyPages = 2
)

// SourceOptions tune page iteration. Zero values fall back to defaults.
type SourceOptions struct {
	BaseURL        string        `mapstructure:"base-url"`
	Pagination     Pagination    `mapstructure:"pagination"`
	MaxPages       int           `mapstructure:"max-pages"`
	Network        []string      `mapstructure:"network"`
	ContentTimeout time.Duration `mapstructure:"content-timeout"`
	SettleDelay    time.Duration `mapstructure:"settle-delay"`
	// PageInterval is the minimum time between page loads.
	PageInterval time.Duration `mapstructure:"page-interval"`
	// PollInterval paces card re-reads while waiting for scrolled or clicked
	// results to render.
	PollInterval time.Duration `mapstructure:"poll-interval"`
}

func (o SourceOptions) withDefaults() SourceOptions {
	if o.BaseURL == "" {
		o.BaseURL = BaseURL
	}
	if o.Pagination == "" {
		o.Pagination = PaginateURL
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.ContentTimeout <= 0 {
		o.ContentTimeout = DefaultContentTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Source lazily walks search result pages and yields one candidate at a time.
// It is finite and cannot be restarted.
type Source struct {
	session browser.Session
	markup  SearchMarkup
	opts    SourceOptions
	query   string
	limiter *rate.Limiter
	logger  *zap.Logger

	page    int
	pending []*Candidate
	seen    map[string]struct{}
	empty   int
	done    bool
}

// NewSource prepares a source for the given settings. No page is loaded until Next.
func NewSource(session browser.Session, s settings.Settings, markup SearchMarkup, opts SourceOptions, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.PageInterval > 0 {
		limit = rate.Every(opts.PageInterval)
	}

	return &Source{
		session: session,
		markup:  markup,
		opts:    opts,
		query:   BuildQuery(s.SearchTerms, s.Location),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		seen:    make(map[string]struct{}),
	}
}

// Query returns the keywords expression sent to the search.
func (s *Source) Query() string {
	return s.query
}

// Pages returns how many pages were loaded so far.
func (s *Source) Pages() int {
	return s.page
}

// Next returns the next unseen candidate or ErrExhausted.
func (s *Source) Next(ctx context.Context) (*Candidate, error) {
	for len(s.pending) == 0 {
		if s.done {
			return nil, ErrExhausted
		}
		if err := s.loadPage(ctx); err != nil {
			return nil, err
		}
	}

	cand := s.pending[0]
	s.pending = s.pending[1:]
	return cand, nil
}

func (s *Source) loadPage(ctx context.Context) error {
	if s.page >= s.opts.MaxPages {
		s.logger.Info("page limit reached", zap.Int("max_pages", s.opts.MaxPages))
		s.done = true
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	moved, err := s.advance(ctx)
	if err != nil {
		return err
	}
	if !moved {
		s.done = true
		return nil
	}
	s.page++

	var html []string
	if s.page > 1 && s.opts.Pagination != PaginateURL {
		html, err = s.awaitNewCards(ctx)
	} else {
		if err := s.waitForContent(ctx); err != nil {
			return err
		}
		html, err = s.readCards(ctx)
	}
	if err != nil {
		return err
	}

	fresh := 0
	for _, card := range html {
		cand, ok := ParseCard(card, s.markup.Card)
		if !ok {
			continue
		}
		ref := utils.NormalizeURL(cand.ProfileRef)
		if _, dup := s.seen[ref]; dup {
			continue
		}
		s.seen[ref] = struct{}{}
		cand.Page = s.page
		s.pending = append(s.pending, cand)
		fresh++
	}

	s.logger.Info("result page loaded",
		zap.Int("page", s.page),
		zap.Int("cards", len(html)),
		zap.Int("new_candidates", fresh),
	)

	if fresh > 0 {
		s.empty = 0
		return nil
	}
	s.empty++

	// An empty result list or repeated pages with nothing new mean the surface
	// stopped producing results. A single such page may be a slow render or
	// anonymised profiles only.
	if len(html) == 0 || s.empty >= maxEmptyPages {
		s.logger.Info("no more results", zap.Int("page", s.page), zap.Int("cards", len(html)))
		s.done = true
	}
	return nil
}

func (s *Source) readCards(ctx context.Context) ([]string, error) {
	html, err := s.session.OuterHTML(ctx, s.markup.Card.Container)
	if err != nil {
		return nil, fmt.Errorf("reading result cards on page %d: %w", s.page, err)
	}
	return html, nil
}

// awaitNewCards re-reads the cards after an in-place page change until an
// unseen profile shows up. The results container is already present at that
// point, so it cannot signal that the new cards rendered.
func (s *Source) awaitNewCards(ctx context.Context) ([]string, error) {
	deadline := time.Now().Add(s.opts.ContentTimeout)
	for {
		html, err := s.readCards(ctx)
		if err != nil {
			return nil, err
		}
		if s.hasUnseen(html) {
			return html, nil
		}
		if !time.Now().Before(deadline) {
			break
		}
		if err := utils.WaitFor(ctx, s.opts.PollInterval); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("no new cards observed, settling",
		zap.Int("page", s.page),
		zap.Duration("settle_delay", s.opts.SettleDelay),
	)
	if s.opts.SettleDelay > 0 {
		if err := utils.WaitFor(ctx, s.opts.SettleDelay); err != nil {
			return nil, err
		}
	}
	return s.readCards(ctx)
}

func (s *Source) hasUnseen(html []string) bool {
	for _, card := range html {
		cand, ok := ParseCard(card, s.markup.Card)
		if !ok {
			continue
		}
		if _, dup := s.seen[utils.NormalizeURL(cand.ProfileRef)]; !dup {
			return true
		}
	}
	return false
}

// advance moves to the next page. It reports false when the surface has no more pages.
func (s *Source) advance(ctx context.Context) (bool, error) {
	if s.page == 0 || s.opts.Pagination == PaginateURL {
		params := &SearchParams{
			Keywords: s.query,
			Network:  s.opts.Network,
			Origin:   "GLOBAL_SEARCH_HEADER",
			Page:     s.page + 1,
		}
		if s.page == 0 {
			params.Page = 0
		}
		url := SearchURL(s.opts.BaseURL, params)
		s.logger.Debug("opening search page", zap.String("url", url))
		if err := s.session.Navigate(ctx, url); err != nil {
			return false, fmt.Errorf("opening search page %d: %w", s.page+1, err)
		}
		return true, nil
	}

	switch s.opts.Pagination {
	case PaginateControl:
		lookup, err := s.session.Find(ctx, s.markup.Next, defaultControlTimeout)
		if err != nil {
			return false, fmt.Errorf("looking up next page control: %w", err)
		}
		if !lookup.Found() {
			s.logger.Info("no next page control", zap.Stringer("lookup", lookup.Status))
			return false, nil
		}
		if err := s.session.Activate(ctx, lookup.Handle); err != nil {
			return false, fmt.Errorf("activating next page control: %w", err)
		}
		return true, nil
	case PaginateScroll:
		if err := s.session.Scroll(ctx); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown pagination mode %q", s.opts.Pagination)
	}
}

// waitForContent polls for the results signal and falls back to a fixed
// settle delay when it never shows up.
func (s *Source) waitForContent(ctx context.Context) error {
	lookup, err := s.session.Find(ctx, s.markup.Results, s.opts.ContentTimeout)
	if err != nil {
		return fmt.Errorf("waiting for results: %w", err)
	}
	if lookup.Found() {
		return nil
	}

	s.logger.Debug("results signal not observed, settling",
		zap.Stringer("lookup", lookup.Status),
		zap.Duration("settle_delay", s.opts.SettleDelay),
	)
	if s.opts.SettleDelay == 0 {
		return ctx.Err()
	}
	return utils.WaitFor(ctx, s.opts.SettleDelay)
}
