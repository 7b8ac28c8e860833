// Package browser describes the page-automation capabilities the outreach
// flow needs. Expected absence of an element is a Lookup status, not an error.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an operation targets an element that is gone.
var ErrNotFound = errors.New("element not found")

// Kind selects the query language of a Descriptor.
type Kind string

const (
	XPath Kind = "xpath"
	CSS   Kind = "css"
)

// Descriptor locates an element on a page.
type Descriptor struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Query string `mapstructure:"query" yaml:"query"`
	Kind  Kind   `mapstructure:"kind" yaml:"kind"`
}

func (d Descriptor) String() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("%s:%s", d.Kind, d.Query)
}

// Status is the outcome of a bounded element lookup.
type Status int

const (
	NotFound Status = iota
	Found
	// Timeout means the page had not finished loading when the wait expired.
	Timeout
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Timeout:
		return "timeout"
	default:
		return "not-found"
	}
}

// Handle refers to an element located by Find. It is only valid within the
// session that produced it.
type Handle struct {
	ID   int64
	Name string
}

// Lookup is the result of Find. Handle is set only when Status is Found.
type Lookup struct {
	Status Status
	Handle Handle
}

func (l Lookup) Found() bool {
	return l.Status == Found
}

// Session is one browser tab.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Find waits up to timeout for the element to appear.
	Find(ctx context.Context, d Descriptor, timeout time.Duration) (Lookup, error)
	Activate(ctx context.Context, h Handle) error
	TypeText(ctx context.Context, h Handle, text string) error
	// OuterHTML returns the markup of every element currently matching d.
	OuterHTML(ctx context.Context, d Descriptor) ([]string, error)
	Scroll(ctx context.Context) error
	// OpenTab opens a sibling tab sharing cookies with this one.
	OpenTab(ctx context.Context) (Session, error)
	Close() error
}
