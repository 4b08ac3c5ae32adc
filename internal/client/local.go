package client

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// localBuffer absorbs event bursts from the in-process engine; Send drops
// when the reader falls this far behind, mirroring the slow-client policy of
// the websocket feed.
const localBuffer = 256

// Local bridges an in-process engine to the app. It is the engine's event
// sink and serves the same message contract as the websocket Feed, so the
// app cannot tell embedded and remote mode apart.
type Local struct {
	events chan protocol.Envelope
}

// NewLocal returns a connected in-process feed.
func NewLocal() *Local {
	return &Local{events: make(chan protocol.Envelope, localBuffer)}
}

// Send queues one envelope for the read loop. Called with the engine lock
// held; drops rather than blocks when the buffer is full.
func (l *Local) Send(env protocol.Envelope) {
	select {
	case l.events <- env:
	default:
	}
}

// Listen reports the feed as connected. There is nothing to dial.
func (l *Local) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		if ctx.Err() != nil {
			return FeedDisconnectedMsg{Err: ctx.Err()}
		}
		return FeedConnectedMsg{}
	}
}

// ReadLoop returns a command that blocks for the next envelope.
func (l *Local) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return FeedDisconnectedMsg{Err: ctx.Err()}
		case env := <-l.events:
			return FeedEnvelopeMsg{Env: env}
		}
	}
}

// Close is a no-op; the engine owns the event stream's lifetime.
func (l *Local) Close() {}
