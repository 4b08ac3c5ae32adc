package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// Feed manages the WebSocket event stream from the server. It hands raw
// envelopes to the program; admission and ordering are the fence's job.
type Feed struct {
	url   string
	token string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises conn writes (pings)
	conn    *websocket.Conn
	pingCtx context.CancelFunc // cancels the active ping goroutine
}

// NewFeed creates a feed for the given WebSocket URL.
func NewFeed(wsURL, token string) *Feed {
	return &Feed{url: wsURL, token: token}
}

// FeedConnectedMsg is sent when the stream connects. The program should
// reset its fence and refresh from bootstrap before reading further.
type FeedConnectedMsg struct{}

// FeedDisconnectedMsg is sent when the connection drops.
type FeedDisconnectedMsg struct{ Err error }

// FeedEnvelopeMsg delivers one event envelope.
type FeedEnvelopeMsg struct{ Env protocol.Envelope }

// Listen returns a command that connects and reports FeedConnectedMsg.
// It retries with exponential backoff until ctx ends.
func (f *Feed) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			conn, _, err := websocket.DefaultDialer.Dial(f.dialURL(), nil)
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				delay = min(delay*2, reconnectMaxDelay)
				continue
			}

			// Cancel any previous ping goroutine before swapping conns.
			f.mu.Lock()
			if f.pingCtx != nil {
				f.pingCtx()
			}
			pingCtx, pingCancel := context.WithCancel(ctx)
			f.conn = conn
			f.pingCtx = pingCancel
			f.mu.Unlock()

			go f.pingLoop(pingCtx, conn)

			return FeedConnectedMsg{}
		}
	}
}

// ReadLoop returns a command that reads the next envelope. Start it after
// FeedConnectedMsg and re-issue it after every FeedEnvelopeMsg.
func (f *Feed) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn == nil {
			return FeedDisconnectedMsg{Err: fmt.Errorf("not connected")}
		}

		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				f.mu.Lock()
				if f.conn == conn {
					f.conn = nil
				}
				f.mu.Unlock()
				conn.Close()
				return FeedDisconnectedMsg{Err: err}
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			return FeedEnvelopeMsg{Env: env}
		}
	}
}

// pingLoop keeps the connection alive. It exits when ctx ends or the feed
// has moved to a newer connection.
func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			current := f.conn
			f.mu.Unlock()
			if current != conn {
				return
			}
			f.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			f.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close drops the current connection, if any.
func (f *Feed) Close() {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	if f.pingCtx != nil {
		f.pingCtx()
		f.pingCtx = nil
	}
	f.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (f *Feed) dialURL() string {
	if f.token == "" {
		return f.url
	}
	sep := "?"
	if strings.Contains(f.url, "?") {
		sep = "&"
	}
	return f.url + sep + "token=" + url.QueryEscape(f.token)
}
