// Package ai defines the optional note composition used for invitations.
package ai

import "context"

// NoteRequest describes the recipient of an invitation note.
type NoteRequest struct {
	Name      string
	FirstName string
	Headline  string
	Employer  string
	Location  string
	// Intent is the sender's own pitch, passed to the model verbatim.
	Intent   string
	MaxRunes int
}

// NoteWriter composes a personalised invitation note.
type NoteWriter interface {
	Compose(ctx context.Context, req NoteRequest) (string, error)
}
