// Package client connects a terminal frontend to a remote engine: Remote
// speaks the JSON API and Feed streams the event envelopes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/action"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// Remote implements the gateway over the server's JSON API.
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ action.Gateway = (*Remote)(nil)

// NewRemote creates a gateway targeting the given base URL
// (e.g. "http://127.0.0.1:8391").
func NewRemote(baseURL, token string) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Remote) Bootstrap(ctx context.Context) (protocol.Bootstrap, error) {
	var boot protocol.Bootstrap
	err := c.get(ctx, "/api/bootstrap", &boot)
	return boot, err
}

func (c *Remote) OpenPath(ctx context.Context, path string) (protocol.OpenResult, error) {
	var res protocol.OpenResult
	err := c.post(ctx, "/api/open/path", map[string]string{"path": path}, &res)
	return res, err
}

func (c *Remote) OpenEntry(ctx context.Context, entryID string) (protocol.OpenResult, error) {
	var res protocol.OpenResult
	err := c.post(ctx, "/api/open/entry", map[string]string{"id": entryID}, &res)
	return res, err
}

func (c *Remote) OpenText(ctx context.Context, title, text string) (protocol.OpenResult, error) {
	var res protocol.OpenResult
	err := c.post(ctx, "/api/open/text", map[string]string{"title": title, "text": text}, &res)
	return res, err
}

func (c *Remote) CloseReader(ctx context.Context) (protocol.Session, error) {
	var session protocol.Session
	err := c.post(ctx, "/api/close", nil, &session)
	return session, err
}

func (c *Remote) ToggleTheme(ctx context.Context) (protocol.Session, error) {
	var session protocol.Session
	err := c.post(ctx, "/api/theme", nil, &session)
	return session, err
}

func (c *Remote) TogglePanel(ctx context.Context, panel protocol.Panel) (protocol.PanelSet, error) {
	var panels protocol.PanelSet
	err := c.post(ctx, "/api/panel", map[string]string{"panel": string(panel)}, &panels)
	return panels, err
}

func (c *Remote) SetLogLevel(ctx context.Context, level string) (string, error) {
	var out struct {
		Level string `json:"level"`
	}
	err := c.post(ctx, "/api/loglevel", map[string]string{"level": level}, &out)
	return out.Level, err
}

func (c *Remote) NextPage(ctx context.Context) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "next-page", nil)
}

func (c *Remote) PrevPage(ctx context.Context) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "prev-page", nil)
}

func (c *Remote) SetPage(ctx context.Context, page int) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "page", map[string]int{"page": page})
}

func (c *Remote) NextSentence(ctx context.Context) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "next-sentence", nil)
}

func (c *Remote) PrevSentence(ctx context.Context) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "prev-sentence", nil)
}

func (c *Remote) SelectSentence(ctx context.Context, index int) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "select", map[string]int{"index": index})
}

func (c *Remote) ToggleTextOnly(ctx context.Context) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "textonly", nil)
}

func (c *Remote) ApplySettings(ctx context.Context, patch protocol.SettingsPatch) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "settings", patch)
}

func (c *Remote) SetSearch(ctx context.Context, query string) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "search", map[string]string{"query": query})
}

func (c *Remote) NextMatch(ctx context.Context) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "search/next", nil)
}

func (c *Remote) PrevMatch(ctx context.Context) (protocol.ReaderView, error) {
	return c.readerOp(ctx, "search/prev", nil)
}

func (c *Remote) Play(ctx context.Context) (protocol.ReaderView, error) {
	return c.playbackOp(ctx, "play")
}

func (c *Remote) Pause(ctx context.Context) (protocol.ReaderView, error) {
	return c.playbackOp(ctx, "pause")
}

func (c *Remote) TogglePlayback(ctx context.Context) (protocol.ReaderView, error) {
	return c.playbackOp(ctx, "toggle")
}

func (c *Remote) PlayFromPageStart(ctx context.Context) (protocol.ReaderView, error) {
	return c.playbackOp(ctx, "from-page-start")
}

func (c *Remote) PlayFromHighlight(ctx context.Context) (protocol.ReaderView, error) {
	return c.playbackOp(ctx, "from-highlight")
}

func (c *Remote) SeekNext(ctx context.Context) (protocol.ReaderView, error) {
	return c.playbackOp(ctx, "seek-next")
}

func (c *Remote) SeekPrev(ctx context.Context) (protocol.ReaderView, error) {
	return c.playbackOp(ctx, "seek-prev")
}

func (c *Remote) RepeatSentence(ctx context.Context) (protocol.ReaderView, error) {
	return c.playbackOp(ctx, "repeat")
}

func (c *Remote) PrecomputePage(ctx context.Context) (string, error) {
	var out struct {
		JobID string `json:"jobId"`
	}
	err := c.post(ctx, "/api/precompute", nil, &out)
	return out.JobID, err
}

func (c *Remote) Catalog(ctx context.Context, force bool) ([]protocol.CatalogEntry, error) {
	path := "/api/catalog"
	if force {
		path += "?force=1"
	}
	var entries []protocol.CatalogEntry
	err := c.get(ctx, path, &entries)
	return entries, err
}

func (c *Remote) Recents(ctx context.Context) ([]protocol.RecentEntry, error) {
	var entries []protocol.RecentEntry
	err := c.get(ctx, "/api/recents", &entries)
	return entries, err
}

func (c *Remote) DeleteRecent(ctx context.Context, resourceID string) ([]protocol.RecentEntry, error) {
	var entries []protocol.RecentEntry
	err := c.del(ctx, "/api/recents/"+url.PathEscape(resourceID), &entries)
	return entries, err
}

func (c *Remote) readerOp(ctx context.Context, op string, body any) (protocol.ReaderView, error) {
	var view protocol.ReaderView
	err := c.post(ctx, "/api/reader/"+op, body, &view)
	return view, err
}

func (c *Remote) playbackOp(ctx context.Context, op string) (protocol.ReaderView, error) {
	var view protocol.ReaderView
	err := c.post(ctx, "/api/playback/"+op, nil, &view)
	return view, err
}

func (c *Remote) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(http.MethodGet, path, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Remote) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(http.MethodPost, path, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Remote) del(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(http.MethodDelete, path, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Remote) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// decodeError recovers the engine's classified error from a response body,
// falling back to a plain status error for non-API failures.
func decodeError(method, path string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var perr protocol.Error
	if json.Unmarshal(body, &perr) == nil && perr.Code != "" {
		return &perr
	}
	return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
}
