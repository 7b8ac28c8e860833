// Package chrome implements browser.Session on top of chromedp.
package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/browser"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	scrollScript        = `window.scrollTo(0, document.body.scrollHeight)`
	readyStateScript    = `document.readyState`
)

// Options configures the browser process.
type Options struct {
	Headless     bool          `mapstructure:"headless"`
	UserDataDir  string        `mapstructure:"user-data-dir"`
	ExecPath     string        `mapstructure:"exec-path"`
	PollInterval time.Duration `mapstructure:"poll-interval"`
}

// Session is a chromedp-backed tab.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	// closeAllocator is only set on the root tab.
	closeAllocator context.CancelFunc
	poll           time.Duration
	logger         *zap.Logger
}

var _ browser.Session = (*Session)(nil)

// New starts a browser process and returns its first tab.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1366, 900),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	// An empty Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	logger.Info("browser started",
		zap.Bool("headless", opts.Headless),
		zap.String("user_data_dir", opts.UserDataDir),
	)

	return &Session{
		ctx:            tabCtx,
		cancel:         tabCancel,
		closeAllocator: allocCancel,
		poll:           poll,
		logger:         logger,
	}, nil
}

// run executes actions on the tab while honouring the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (s *Session) nodes(ctx context.Context, d browser.Descriptor) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(d.Query, &nodes, queryBy(d.Kind), chromedp.AtLeast(0)))
	return nodes, err
}

func (s *Session) Find(ctx context.Context, d browser.Descriptor, timeout time.Duration) (browser.Lookup, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		nodes, err := s.nodes(ctx, d)
		if err != nil {
			return browser.Lookup{}, fmt.Errorf("looking up %s: %w", d, err)
		}
		if len(nodes) > 0 {
			return browser.Lookup{
				Status: browser.Found,
				Handle: browser.Handle{ID: int64(nodes[0].NodeID), Name: d.Name},
			}, nil
		}

		if !time.Now().Before(deadline) {
			return browser.Lookup{Status: s.expiredStatus(ctx)}, nil
		}

		select {
		case <-ctx.Done():
			return browser.Lookup{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// expiredStatus separates "the page loaded without the element" from "the
// page was still loading".
func (s *Session) expiredStatus(ctx context.Context) browser.Status {
	var state string
	if err := s.run(ctx, chromedp.Evaluate(readyStateScript, &state)); err != nil || state != "complete" {
		return browser.Timeout
	}
	return browser.NotFound
}

func (s *Session) Activate(ctx context.Context, h browser.Handle) error {
	err := s.run(ctx, chromedp.Click([]cdp.NodeID{cdp.NodeID(h.ID)}, chromedp.ByNodeID))
	if err != nil {
		return fmt.Errorf("activating %s: %w", h.Name, err)
	}
	return nil
}

func (s *Session) TypeText(ctx context.Context, h browser.Handle, text string) error {
	err := s.run(ctx, chromedp.SendKeys([]cdp.NodeID{cdp.NodeID(h.ID)}, text, chromedp.ByNodeID))
	if err != nil {
		return fmt.Errorf("typing into %s: %w", h.Name, err)
	}
	return nil
}

func (s *Session) OuterHTML(ctx context.Context, d browser.Descriptor) ([]string, error) {
	nodes, err := s.nodes(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d, err)
	}

	out := make([]string, 0, len(nodes))
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, n := range nodes {
			html, err := dom.GetOuterHTML().WithNodeID(n.NodeID).Do(ctx)
			if err != nil {
				// The node may have been detached by a re-render.
				s.logger.Debug("skipping detached node", zap.String("descriptor", d.String()), zap.Error(err))
				continue
			}
			out = append(out, html)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("reading markup of %s: %w", d, err)
	}
	return out, nil
}

func (s *Session) Scroll(ctx context.Context) error {
	if err := s.run(ctx, chromedp.Evaluate(scrollScript, nil)); err != nil {
		return fmt.Errorf("scrolling: %w", err)
	}
	return nil
}

func (s *Session) OpenTab(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx)
	if !stop() {
		cancel()
		return nil, fmt.Errorf("opening tab: %w", ctx.Err())
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	return &Session{
		ctx:    tabCtx,
		cancel: cancel,
		poll:   s.poll,
		logger: s.logger,
	}, nil
}

// Close closes the tab. Closing the root tab also stops the browser.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.closeAllocator != nil {
		s.closeAllocator()
	}
	return nil
}

func queryBy(kind browser.Kind) chromedp.QueryOption {
	if kind == browser.CSS {
		return chromedp.ByQueryAll
	}
	return chromedp.BySearch
}
