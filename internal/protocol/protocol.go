// Package protocol defines the contract between the reader engine and its
// clients: the sequenced event envelope pushed over the feed, the payload
// types carried on each channel, and the value types exchanged by gateway
// operations. Both sides of the wire import this package.
package protocol

import "encoding/json"

// Channel identifies an independent event stream. Sequence numbers are scoped
// per channel.
type Channel string

const (
	ChannelSession  Channel = "session"
	ChannelReader   Channel = "reader"
	ChannelOpen     Channel = "open"
	ChannelCatalog  Channel = "catalog"
	ChannelPlayback Channel = "playback"
	ChannelJob      Channel = "job"
	ChannelLogLevel Channel = "loglevel"
)

// Envelope wraps every pushed event. Seq is assigned by the engine and is
// non-decreasing within a channel; clients drop any envelope older than the
// newest they have applied for that channel.
type Envelope struct {
	Channel Channel         `json:"channel"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Phase tracks the lifecycle of a long-running engine operation.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseReady     Phase = "ready"
	PhaseFinished  Phase = "finished"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether the phase ends its operation.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseReady, PhaseFinished, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

// --- Event payload types ---

// SessionEvent carries the authoritative session after a session-level change.
type SessionEvent struct {
	Session Session `json:"session"`
}

// ReaderEvent carries the authoritative reader view after a reader-level change.
type ReaderEvent struct {
	Reader ReaderView `json:"reader"`
}

// OpenEvent reports progress of a resource open.
type OpenEvent struct {
	Phase      Phase  `json:"phase"`
	ResourceID string `json:"resourceId,omitempty"`
	Path       string `json:"path,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
}

// CatalogEvent reports progress of a library catalog load.
type CatalogEvent struct {
	Phase   Phase  `json:"phase"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

// PlaybackEvent carries narrator progression. Page and Highlight travel with
// the playback state so a page-boundary crossing lands as a single update.
type PlaybackEvent struct {
	Playback  Playback `json:"playback"`
	Page      int      `json:"page"`
	Highlight *int     `json:"highlight,omitempty"`
}

// JobEvent reports progress of a background job, such as a speech precompute.
type JobEvent struct {
	JobID   string  `json:"jobId"`
	Kind    string  `json:"kind"`
	Phase   Phase   `json:"phase"`
	Page    int     `json:"page"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// JobPrecompute is the job kind for per-page speech synthesis.
const JobPrecompute = "precompute"

// LogLevelEvent announces the engine's active log level.
type LogLevelEvent struct {
	Level string `json:"level"`
}
