package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCleanupFatalReleasesBeforeExit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	// Panic instead of os.Exit so the test can observe the exit path.
	logger := zap.New(core, zap.WithFatalHook(zapcore.WriteThenPanic))

	var order []string
	c := newCleanup(logger)
	c.add("ledger", func() error {
		order = append(order, "ledger")
		return nil
	})
	c.add("browser", func() error {
		order = append(order, "browser")
		return errors.New("already gone")
	})

	require.Panics(t, func() {
		c.fatal("run failed", zap.Error(errors.New("boom")))
	})

	assert.Equal(t, []string{"browser", "ledger"}, order)
	assert.Equal(t, 1, logs.FilterMessage("releasing browser").Len())
	assert.Equal(t, 1, logs.FilterMessage("run failed").Len())

	c.run()
	assert.Len(t, order, 2, "closers must run once")
}
