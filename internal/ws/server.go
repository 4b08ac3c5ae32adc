package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/sguzman/lantern-leaf-sub000/internal/engine"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// AuthHeader is the custom header clients may use instead of a bearer token.
const AuthHeader = "X-Lantern-Token"

// Server exposes the engine gateway over HTTP and hands feed connections to
// the broadcaster.
type Server struct {
	eng   *engine.Engine
	feed  *Broadcaster
	log   *slog.Logger
	token string

	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

// NewServer builds a server. An empty token disables authentication.
func NewServer(eng *engine.Engine, feed *Broadcaster, token string, allowedOrigins []string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		eng:            eng,
		feed:           feed,
		log:            log,
		token:          token,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	return s
}

// SetupRoutes registers every API route on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/bootstrap", s.handleBootstrap)
	mux.HandleFunc("/api/open/", s.handleOpen)
	mux.HandleFunc("/api/close", s.handleClose)
	mux.HandleFunc("/api/theme", s.handleTheme)
	mux.HandleFunc("/api/panel", s.handlePanel)
	mux.HandleFunc("/api/loglevel", s.handleLogLevel)
	mux.HandleFunc("/api/reader/", s.handleReader)
	mux.HandleFunc("/api/playback/", s.handlePlayback)
	mux.HandleFunc("/api/precompute", s.handlePrecompute)
	mux.HandleFunc("/api/catalog", s.handleCatalog)
	mux.HandleFunc("/api/recents", s.handleRecents)
	mux.HandleFunc("/api/recents/", s.handleRecentDelete)
}

// ListenAndServe serves mux on host:port with the hardening headers applied.
func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	return http.ListenAndServe(addr, securityHeaders(mux))
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// authorize accepts the token from the query string, the custom header, or a
// bearer Authorization header.
func (s *Server) authorize(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.token {
		return true
	}
	if r.Header.Get(AuthHeader) == s.token {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ") == s.token
	}
	return false
}

// checkOrigin mirrors browser-facing origin policy: no origin header is fine
// (native clients), configured origins are allowed verbatim or by host, and
// otherwise only same-host and loopback origins pass.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.allowedOrigins[origin] {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if s.allowedHosts[parsed.Host] {
		return true
	}
	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("feed upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c, err := s.feed.AddClient(conn)
	if err != nil {
		s.log.Warn("feed client rejected", "remote", r.RemoteAddr, "err", err)
		conn.Close()
		return
	}
	s.log.Debug("feed client connected", "remote", r.RemoteAddr, "clients", s.feed.ClientCount())

	// Drain the read side so pings are answered and closure is noticed.
	go func() {
		defer s.feed.RemoveClient(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// guard handles the auth and method checks shared by every API handler.
func (s *Server) guard(w http.ResponseWriter, r *http.Request, method string) bool {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("response write failed", "err", err)
	}
}

// respond writes v on success, or the classified error as a JSON body with a
// matching status so clients can recover the error code.
func (s *Server) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		perr := protocol.AsError(err)
		s.writeJSON(w, statusFor(perr.Code), perr)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func statusFor(code string) int {
	switch code {
	case protocol.CodeNotFound:
		return http.StatusNotFound
	case protocol.CodeInvalid:
		return http.StatusBadRequest
	case protocol.CodeConflict, protocol.CodeOpenCancelled:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return protocol.Errf(protocol.CodeInvalid, "bad request body: %v", err)
	}
	return nil
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}
	boot, err := s.eng.Bootstrap(r.Context())
	s.respond(w, boot, err)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	switch strings.TrimPrefix(r.URL.Path, "/api/open/") {
	case "path":
		var req struct {
			Path string `json:"path"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respond(w, nil, err)
			return
		}
		res, err := s.eng.OpenPath(r.Context(), req.Path)
		s.respond(w, res, err)
	case "entry":
		var req struct {
			ID string `json:"id"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respond(w, nil, err)
			return
		}
		res, err := s.eng.OpenEntry(r.Context(), req.ID)
		s.respond(w, res, err)
	case "text":
		var req struct {
			Title string `json:"title"`
			Text  string `json:"text"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respond(w, nil, err)
			return
		}
		res, err := s.eng.OpenText(r.Context(), req.Title, req.Text)
		s.respond(w, res, err)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	session, err := s.eng.CloseReader(r.Context())
	s.respond(w, session, err)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	session, err := s.eng.ToggleTheme(r.Context())
	s.respond(w, session, err)
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Panel string `json:"panel"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respond(w, nil, err)
		return
	}
	panels, err := s.eng.TogglePanel(r.Context(), protocol.Panel(req.Panel))
	s.respond(w, panels, err)
}

func (s *Server) handleLogLevel(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Level string `json:"level"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respond(w, nil, err)
		return
	}
	applied, err := s.eng.SetLogLevel(r.Context(), req.Level)
	s.respond(w, struct {
		Level string `json:"level"`
	}{Level: applied}, err)
}

func (s *Server) handleReader(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	var (
		view protocol.ReaderView
		err  error
	)
	switch strings.TrimPrefix(r.URL.Path, "/api/reader/") {
	case "next-page":
		view, err = s.eng.NextPage(ctx)
	case "prev-page":
		view, err = s.eng.PrevPage(ctx)
	case "page":
		var req struct {
			Page int `json:"page"`
		}
		if err = decodeBody(r, &req); err == nil {
			view, err = s.eng.SetPage(ctx, req.Page)
		}
	case "next-sentence":
		view, err = s.eng.NextSentence(ctx)
	case "prev-sentence":
		view, err = s.eng.PrevSentence(ctx)
	case "select":
		var req struct {
			Index int `json:"index"`
		}
		if err = decodeBody(r, &req); err == nil {
			view, err = s.eng.SelectSentence(ctx, req.Index)
		}
	case "textonly":
		view, err = s.eng.ToggleTextOnly(ctx)
	case "settings":
		var patch protocol.SettingsPatch
		if err = decodeBody(r, &patch); err == nil {
			view, err = s.eng.ApplySettings(ctx, patch)
		}
	case "search":
		var req struct {
			Query string `json:"query"`
		}
		if err = decodeBody(r, &req); err == nil {
			view, err = s.eng.SetSearch(ctx, req.Query)
		}
	case "search/next":
		view, err = s.eng.NextMatch(ctx)
	case "search/prev":
		view, err = s.eng.PrevMatch(ctx)
	default:
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.respond(w, view, err)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()
	var (
		view protocol.ReaderView
		err  error
	)
	switch strings.TrimPrefix(r.URL.Path, "/api/playback/") {
	case "play":
		view, err = s.eng.Play(ctx)
	case "pause":
		view, err = s.eng.Pause(ctx)
	case "toggle":
		view, err = s.eng.TogglePlayback(ctx)
	case "from-page-start":
		view, err = s.eng.PlayFromPageStart(ctx)
	case "from-highlight":
		view, err = s.eng.PlayFromHighlight(ctx)
	case "seek-next":
		view, err = s.eng.SeekNext(ctx)
	case "seek-prev":
		view, err = s.eng.SeekPrev(ctx)
	case "repeat":
		view, err = s.eng.RepeatSentence(ctx)
	default:
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.respond(w, view, err)
}

func (s *Server) handlePrecompute(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodPost) {
		return
	}
	id, err := s.eng.PrecomputePage(r.Context())
	s.respond(w, struct {
		JobID string `json:"jobId"`
	}{JobID: id}, err)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}
	force := r.URL.Query().Get("force") == "1"
	entries, err := s.eng.Catalog(r.Context(), force)
	s.respond(w, entries, err)
}

func (s *Server) handleRecents(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}
	entries, err := s.eng.Recents(r.Context())
	s.respond(w, entries, err)
}

func (s *Server) handleRecentDelete(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodDelete) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/recents/")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	entries, err := s.eng.DeleteRecent(r.Context(), id)
	s.respond(w, entries, err)
}
