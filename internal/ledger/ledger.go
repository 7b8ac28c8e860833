// Package ledger implements the append-only activity ledger.
//
// The ledger is a JSON-lines file: one complete JSON object per line. It is
// the only state shared between runs. A read failure never aborts a run; it
// degrades to "no prior activity" and is reported through Degraded.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/spigell/recruiter-outreach/internal/utils"
)

var (
	// ErrLocked is returned when another process holds the ledger.
	ErrLocked = errors.New("ledger is locked by another run")
	// ErrReadOnly is returned by Append on a ledger opened read-only.
	ErrReadOnly = errors.New("ledger is opened read-only")
)

const maxLineSize = 1 << 20

// Options tune how a ledger is opened.
type Options struct {
	// ReadOnly skips the writer lock and rejects appends.
	ReadOnly bool
	Now      func() time.Time
	Logger   *zap.Logger
}

type appendFile interface {
	io.Writer
	Sync() error
	Close() error
}

// Ledger is a single-writer append-only activity log.
type Ledger struct {
	path     string
	readOnly bool
	now      func() time.Time
	logger   *zap.Logger

	mu           sync.Mutex
	lock         *flock.Flock
	file         appendFile
	needsNewline bool

	entries   []Entry
	contacted map[string]struct{}
	degraded  error
	corrupt   int
}

// Open loads the ledger at path and, unless read-only, takes the writer lock.
func Open(path string, opts Options) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}

	l := &Ledger{
		path:      path,
		readOnly:  opts.ReadOnly,
		now:       opts.Now,
		logger:    opts.Logger,
		contacted: make(map[string]struct{}),
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}

	if !l.readOnly {
		l.lock = flock.New(path + ".lock")
		locked, err := l.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("locking ledger: %w", err)
		}
		if !locked {
			return nil, ErrLocked
		}
	}

	l.load()

	return l, nil
}

func (l *Ledger) load() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		l.degraded = fmt.Errorf("reading ledger %q: %w", l.path, err)
		l.logger.Warn("ledger is unreadable, assuming no prior activity",
			zap.String("path", l.path),
			zap.Error(err),
		)
		return
	}

	l.needsNewline = len(data) > 0 && data[len(data)-1] != '\n'

	if err := l.parse(bytes.NewReader(data)); err != nil {
		l.degraded = fmt.Errorf("parsing ledger %q: %w", l.path, err)
		l.entries = nil
		l.contacted = make(map[string]struct{})
		l.logger.Warn("ledger is unparsable, assuming no prior activity",
			zap.String("path", l.path),
			zap.Error(err),
		)
		return
	}

	if l.corrupt > 0 {
		l.logger.Warn("skipped corrupt ledger lines",
			zap.String("path", l.path),
			zap.Int("lines", l.corrupt),
		)
	}
}

func (l *Ledger) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil || entry.Outcome == "" || entry.Timestamp.IsZero() {
			l.corrupt++
			continue
		}
		l.remember(entry)
	}

	return scanner.Err()
}

func (l *Ledger) remember(entry Entry) {
	l.entries = append(l.entries, entry)
	if entry.Outcome == OutcomeSent {
		if ref := utils.NormalizeURL(entry.Profile); ref != "" {
			l.contacted[ref] = struct{}{}
		}
	}
}

// RecordedCountSince counts sent entries with windowStart <= ts <= now.
func (l *Ledger) RecordedCountSince(windowStart time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	count := 0
	for _, e := range l.entries {
		if e.Outcome != OutcomeSent {
			continue
		}
		if e.Timestamp.Before(windowStart) || e.Timestamp.After(now) {
			continue
		}
		count++
	}
	return count
}

// HasBeenContacted reports whether a sent entry references the same profile.
func (l *Ledger) HasBeenContacted(profile string) bool {
	ref := utils.NormalizeURL(profile)
	if ref == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.contacted[ref]
	return ok
}

// HasRunOn reports whether a run summary was recorded on day's calendar date.
func (l *Ledger) HasRunOn(day time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.Outcome == OutcomeRunSummary && sameDay(day, e.Timestamp) {
			return true
		}
	}
	return false
}

// LastRun returns the most recent run summary.
func (l *Ledger) LastRun() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Outcome == OutcomeRunSummary {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// Append durably writes one entry. The entry is visible to queries even when
// the write fails, since the recorded action already happened.
func (l *Ledger) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	if l.readOnly {
		return ErrReadOnly
	}

	l.remember(entry)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding ledger entry: %w", err)
	}

	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening ledger for append: %w", err)
		}
		l.file = f
	}

	buf := make([]byte, 0, len(line)+2)
	if l.needsNewline {
		buf = append(buf, '\n')
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if _, err := l.file.Write(buf); err != nil {
		// Part of the line may have reached the file; isolate it from the next entry.
		l.needsNewline = true
		return fmt.Errorf("writing ledger entry: %w", err)
	}
	l.needsNewline = false

	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing ledger: %w", err)
	}

	return nil
}

// Degraded returns the read error that made the ledger fall back to zero
// prior activity. A missing ledger file is a normal first run, not a degradation.
func (l *Ledger) Degraded() error {
	return l.degraded
}

// Corrupt returns how many unparsable lines were skipped on load.
func (l *Ledger) Corrupt() int {
	return l.corrupt
}

func (l *Ledger) Path() string {
	return l.path
}

// Close releases the append handle and the writer lock.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.file != nil {
		errs = append(errs, l.file.Close())
		l.file = nil
	}
	if l.lock != nil {
		errs = append(errs, l.lock.Unlock())
		l.lock = nil
	}
	return errors.Join(errs...)
}
