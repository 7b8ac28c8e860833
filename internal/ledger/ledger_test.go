package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.Local)

func openAt(t *testing.T, path string, now time.Time) *Ledger {
	t.Helper()

	l, err := Open(path, Options{Now: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sent(ts time.Time, profile string) Entry {
	return Entry{Timestamp: ts, Outcome: OutcomeSent, Name: "Ana", Profile: profile}
}

func TestOpenMissingFileIsNotDegraded(t *testing.T) {
	l := openAt(t, filepath.Join(t.TempDir(), "ledger.jsonl"), fixedNow)

	assert.NoError(t, l.Degraded())
	assert.Zero(t, l.RecordedCountSince(StartOfDay(fixedNow)))
	assert.False(t, l.HasRunOn(fixedNow))
}

func TestAppendPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	l := openAt(t, path, fixedNow)
	require.NoError(t, l.Append(sent(fixedNow.Add(-time.Hour), "https://www.linkedin.com/in/ana/")))
	require.NoError(t, l.Append(Entry{Timestamp: fixedNow, Outcome: OutcomeRunSummary, RunID: "r1", Summary: &Summary{Sent: 1}}))
	require.NoError(t, l.Close())

	reopened := openAt(t, path, fixedNow)
	assert.Equal(t, 1, reopened.RecordedCountSince(StartOfDay(fixedNow)))
	assert.True(t, reopened.HasBeenContacted("https://www.linkedin.com/in/ana?trk=search"))
	assert.True(t, reopened.HasRunOn(fixedNow))

	last, ok := reopened.LastRun()
	require.True(t, ok)
	assert.Equal(t, "r1", last.RunID)
	assert.Equal(t, 1, last.Summary.Sent)
}

func TestRecordedCountSinceWindows(t *testing.T) {
	l := openAt(t, filepath.Join(t.TempDir(), "ledger.jsonl"), fixedNow)

	require.NoError(t, l.Append(sent(fixedNow.Add(-8*24*time.Hour), "/in/a")))
	require.NoError(t, l.Append(sent(fixedNow.Add(-3*24*time.Hour), "/in/b")))
	require.NoError(t, l.Append(sent(StartOfDay(fixedNow).Add(time.Minute), "/in/c")))
	require.NoError(t, l.Append(Entry{Timestamp: fixedNow, Outcome: OutcomeFailed, Profile: "/in/d"}))
	require.NoError(t, l.Append(Entry{Timestamp: fixedNow, Outcome: OutcomeSkippedDuplicate, Profile: "/in/a"}))

	assert.Equal(t, 1, l.RecordedCountSince(StartOfDay(fixedNow)))
	assert.Equal(t, 2, l.RecordedCountSince(fixedNow.Add(-WeekWindow)))
	assert.Equal(t, 3, l.RecordedCountSince(time.Time{}))
	assert.Zero(t, l.RecordedCountSince(fixedNow.Add(time.Hour)))
}

func TestRecordedCountIgnoresFutureEntries(t *testing.T) {
	l := openAt(t, filepath.Join(t.TempDir(), "ledger.jsonl"), fixedNow)

	require.NoError(t, l.Append(sent(fixedNow.Add(2*time.Hour), "/in/future")))

	assert.Zero(t, l.RecordedCountSince(StartOfDay(fixedNow)))
}

func TestCountsAreMonotonic(t *testing.T) {
	l := openAt(t, filepath.Join(t.TempDir(), "ledger.jsonl"), fixedNow)
	start := StartOfDay(fixedNow)

	prev := 0
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(sent(fixedNow.Add(-time.Minute), "/in/same")))
		got := l.RecordedCountSince(start)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
	assert.Equal(t, 5, prev)
}

func TestFailedEntriesDoNotMarkContacted(t *testing.T) {
	l := openAt(t, filepath.Join(t.TempDir(), "ledger.jsonl"), fixedNow)

	require.NoError(t, l.Append(Entry{Timestamp: fixedNow, Outcome: OutcomeFailed, Profile: "/in/bruno"}))

	assert.False(t, l.HasBeenContacted("/in/bruno"))
	assert.False(t, l.HasBeenContacted(""))
}

func TestCorruptLinesAreSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	content := strings.Join([]string{
		`{"ts":"2025-03-10T10:00:00Z","outcome":"sent","profile":"/in/a"}`,
		`{not json`,
		`{"outcome":"sent"}`,
		``,
		`{"ts":"2025-03-09T10:00:00Z","outcome":"sent","profile":"/in/b"}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	l, err := Open(path, Options{Now: func() time.Time { return fixedNow }, Logger: zap.New(core)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	assert.NoError(t, l.Degraded())
	assert.Equal(t, 2, l.Corrupt())
	assert.Equal(t, 2, l.RecordedCountSince(time.Time{}))
	assert.Equal(t, 1, logs.FilterMessage("skipped corrupt ledger lines").Len())
}

func TestAppendRepairsTornLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"ts":"2025-03-12T10:00:00Z","outcome":"sent","profile":"/in/a"}`+"\n"+`{"ts":"2025-03`), 0o644))

	l := openAt(t, path, fixedNow)
	require.NoError(t, l.Append(sent(fixedNow, "/in/b")))
	require.NoError(t, l.Close())

	reopened := openAt(t, path, fixedNow)
	assert.Equal(t, 1, reopened.Corrupt())
	assert.True(t, reopened.HasBeenContacted("/in/a"))
	assert.True(t, reopened.HasBeenContacted("/in/b"))
}

// shortFile writes only part of the first line handed to it and then fails.
type shortFile struct {
	appendFile
	failed bool
}

func (f *shortFile) Write(p []byte) (int, error) {
	if f.failed {
		return f.appendFile.Write(p)
	}
	f.failed = true
	n, _ := f.appendFile.Write(p[:len(p)/2])
	return n, errors.New("no space left on device")
}

func TestAppendIsolatesPartialWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l := openAt(t, path, fixedNow)

	require.NoError(t, l.Append(sent(fixedNow, "/in/a")))
	l.file = &shortFile{appendFile: l.file}

	assert.Error(t, l.Append(sent(fixedNow, "/in/b")))
	require.NoError(t, l.Append(sent(fixedNow, "/in/c")))
	require.NoError(t, l.Close())

	reopened, err := Open(path, Options{ReadOnly: true, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Corrupt())
	assert.True(t, reopened.HasBeenContacted("/in/a"))
	assert.False(t, reopened.HasBeenContacted("/in/b"))
	assert.True(t, reopened.HasBeenContacted("/in/c"), "entry after a partial write must survive")
}

func TestUnreadableLedgerDegrades(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.jsonl")
	require.NoError(t, os.Mkdir(path, 0o755))

	core, logs := observer.New(zap.WarnLevel)
	l, err := Open(path, Options{Now: func() time.Time { return fixedNow }, Logger: zap.New(core)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	assert.Error(t, l.Degraded())
	assert.Zero(t, l.RecordedCountSince(time.Time{}))
	assert.Equal(t, 1, logs.FilterMessage("ledger is unreadable, assuming no prior activity").Len())
}

func TestSecondWriterIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	openAt(t, path, fixedNow)

	_, err := Open(path, Options{})
	assert.ErrorIs(t, err, ErrLocked)

	ro, err := Open(path, Options{ReadOnly: true})
	require.NoError(t, err)
	assert.ErrorIs(t, ro.Append(sent(fixedNow, "/in/x")), ErrReadOnly)
	assert.NoError(t, ro.Close())
}

func TestHasRunOnUsesCalendarDay(t *testing.T) {
	l := openAt(t, filepath.Join(t.TempDir(), "ledger.jsonl"), fixedNow)

	require.NoError(t, l.Append(Entry{Timestamp: fixedNow.Add(-24 * time.Hour), Outcome: OutcomeRunSummary}))
	require.NoError(t, l.Append(sent(fixedNow, "/in/a")))

	assert.False(t, l.HasRunOn(fixedNow))
	assert.True(t, l.HasRunOn(fixedNow.Add(-24*time.Hour)))
}
