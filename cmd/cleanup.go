package cmd

import (
	"go.uber.org/zap"
)

// cleanup releases run resources in reverse order of acquisition.
// logger.Fatal exits without running deferred calls, so fatal exits go
// through fatal, which releases everything first.
type cleanup struct {
	logger  *zap.Logger
	closers []closer
}

type closer struct {
	name  string
	close func() error
}

func newCleanup(logger *zap.Logger) *cleanup {
	return &cleanup{logger: logger}
}

func (c *cleanup) add(name string, fn func() error) {
	c.closers = append(c.closers, closer{name: name, close: fn})
}

// run is safe to call more than once.
func (c *cleanup) run() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].close(); err != nil {
			c.logger.Warn("releasing "+c.closers[i].name, zap.Error(err))
		}
	}
	c.closers = nil
}

func (c *cleanup) fatal(msg string, fields ...zap.Field) {
	c.run()
	c.logger.Fatal(msg, fields...)
}
