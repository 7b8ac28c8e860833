// Package browsertest provides a scripted browser.Session for tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spigell/recruiter-outreach/internal/browser"
)

// State is what the scripted page looks like at the moment of a call.
type State struct {
	URL     string
	Scrolls int
	// Activations counts activations per descriptor name since the last navigation.
	Activations map[string]int
}

// Script decides how the fake page responds. Nil funcs mean "succeed" for
// actions and "not found" for lookups.
type Script struct {
	Navigate func(url string) error
	Find     func(st State, d browser.Descriptor) browser.Status
	Activate func(st State, name string) error
	Type     func(name, text string) error
	Cards    func(st State) []string
	FindErr  func(st State, d browser.Descriptor) error
	// Stall makes a call hang until its context is done. op is one of
	// navigate, activate, type or cards; target is the URL or descriptor name.
	Stall func(op, target string) bool
}

// Session records every call made against it.
type Session struct {
	script Script
	root   *Session

	mu      sync.Mutex
	state   State
	handles map[int64]string
	nextID  int64
	closed  bool

	// root only
	calls  []string
	tabs   int
	closes int
}

var _ browser.Session = (*Session)(nil)

func New(script Script) *Session {
	s := &Session{script: script, handles: make(map[int64]string)}
	s.root = s
	s.state.Activations = make(map[string]int)
	return s
}

func (s *Session) record(format string, args ...any) {
	r := s.root
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (s *Session) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{URL: s.state.URL, Scrolls: s.state.Scrolls, Activations: make(map[string]int, len(s.state.Activations))}
	for k, v := range s.state.Activations {
		st.Activations[k] = v
	}
	return st
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.record("navigate %s", url)
	if err := s.stall(ctx, "navigate", url); err != nil {
		return err
	}
	if s.script.Navigate != nil {
		if err := s.script.Navigate(url); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.state = State{URL: url, Activations: make(map[string]int)}
	s.mu.Unlock()
	return nil
}

func (s *Session) Find(ctx context.Context, d browser.Descriptor, _ time.Duration) (browser.Lookup, error) {
	if err := ctx.Err(); err != nil {
		return browser.Lookup{}, err
	}
	st := s.snapshot()
	if s.script.FindErr != nil {
		if err := s.script.FindErr(st, d); err != nil {
			s.record("find %s error", d.Name)
			return browser.Lookup{}, err
		}
	}

	status := browser.NotFound
	if s.script.Find != nil {
		status = s.script.Find(st, d)
	}
	s.record("find %s %s", d.Name, status)

	if status != browser.Found {
		return browser.Lookup{Status: status}, nil
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.handles[id] = d.Name
	s.mu.Unlock()

	return browser.Lookup{Status: browser.Found, Handle: browser.Handle{ID: id, Name: d.Name}}, nil
}

func (s *Session) stall(ctx context.Context, op, target string) error {
	if s.script.Stall == nil || !s.script.Stall(op, target) {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *Session) resolve(h browser.Handle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.handles[h.ID]
	if !ok {
		return "", fmt.Errorf("handle %d: %w", h.ID, browser.ErrNotFound)
	}
	return name, nil
}

func (s *Session) Activate(ctx context.Context, h browser.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := s.resolve(h)
	if err != nil {
		return err
	}
	s.record("activate %s", name)
	if err := s.stall(ctx, "activate", name); err != nil {
		return err
	}
	if s.script.Activate != nil {
		if err := s.script.Activate(s.snapshot(), name); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.state.Activations[name]++
	s.mu.Unlock()
	return nil
}

func (s *Session) TypeText(ctx context.Context, h browser.Handle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := s.resolve(h)
	if err != nil {
		return err
	}
	s.record("type %s %q", name, text)
	if err := s.stall(ctx, "type", name); err != nil {
		return err
	}
	if s.script.Type != nil {
		return s.script.Type(name, text)
	}
	return nil
}

func (s *Session) OuterHTML(ctx context.Context, d browser.Descriptor) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.record("cards %s", d.Name)
	if err := s.stall(ctx, "cards", d.Name); err != nil {
		return nil, err
	}
	if s.script.Cards == nil {
		return nil, nil
	}
	return s.script.Cards(s.snapshot()), nil
}

func (s *Session) Scroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.record("scroll")
	s.mu.Lock()
	s.state.Scrolls++
	s.mu.Unlock()
	return nil
}

func (s *Session) OpenTab(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.record("open-tab")

	tab := &Session{script: s.script, root: s.root, handles: make(map[int64]string)}
	tab.state.Activations = make(map[string]int)

	s.root.mu.Lock()
	s.root.tabs++
	s.root.mu.Unlock()
	return tab, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if already {
		return nil
	}

	s.record("close")
	s.root.mu.Lock()
	s.root.closes++
	s.root.mu.Unlock()
	return nil
}

// Calls returns every recorded call across the session and its tabs.
func (s *Session) Calls() []string {
	r := s.root
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CallsWithPrefix filters Calls.
func (s *Session) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range s.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Tabs returns how many tabs were opened and closed.
func (s *Session) Tabs() (opened, closed int) {
	r := s.root
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tabs, r.closes
}

// Present returns a Find func that reports the named descriptors as found.
func Present(names ...string) func(State, browser.Descriptor) browser.Status {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(_ State, d browser.Descriptor) browser.Status {
		if set[d.Name] {
			return browser.Found
		}
		return browser.NotFound
	}
}
