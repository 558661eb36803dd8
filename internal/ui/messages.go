// Package ui provides the Bubble Tea TUI for the trip companion.
package ui

import "github.com/abelbrown/companion/internal/companion"

// SnapshotMsg is sent when the engine finishes a recompute.
type SnapshotMsg struct {
	Snapshot companion.Snapshot
}

// EventFailed is sent when the engine rejected an event the UI posted.
type EventFailed struct {
	Event string
	Err   error
}

// posted reports whether the engine accepted an event into its queue.
type posted struct {
	Event  string
	Queued bool
}
