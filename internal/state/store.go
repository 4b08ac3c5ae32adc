package state

import (
	"sync"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// Store guards the client state. Readers get deep copies; writers go through
// the typed mutators or Mutate, never through retained references.
type Store struct {
	mu sync.RWMutex
	st State
}

// NewStore returns a store seeded with an empty starter session.
func NewStore() *Store {
	return &Store{st: State{
		Session:  protocol.Session{Mode: protocol.ModeStarter, Theme: protocol.ThemeDark},
		Jobs:     make(map[string]protocol.JobEvent),
		LogLevel: "info",
	}}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Clone()
}

// Mutate runs fn with exclusive access to the live state, so a
// check-then-write sequence lands atomically. fn must not call back into
// the store.
func (s *Store) Mutate(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

// SetConnected records feed connectivity for the status bar.
func (s *Store) SetConnected(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Connected = up
}

// SetSession replaces the session region.
func (s *Store) SetSession(sess protocol.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Session = sess
}

// SetReader replaces the reader region with a copy of v.
func (s *Store) SetReader(v *protocol.ReaderView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Reader = v.Clone()
}

// ClearReader drops the reader region.
func (s *Store) ClearReader() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Reader = nil
}

// SetBusy flips the global busy flag.
func (s *Store) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Busy = busy
}

// SetError records the last failure shown by the status bar.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.LastError = msg
}

// ClearError resets the last failure.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.LastError = ""
}

// Notify replaces the current notice.
func (s *Store) Notify(kind NoticeKind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Notice = &Notice{Kind: kind, Text: text, At: time.Now()}
}

// ClearNotice dismisses the current notice.
func (s *Store) ClearNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Notice = nil
}

// SetOpenStatus replaces the open-progress region.
func (s *Store) SetOpenStatus(o OpenStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Open = o
}

// SetCatalogStatus replaces the catalog-progress region.
func (s *Store) SetCatalogStatus(c CatalogStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Catalog = c
}

// SetEntries replaces the catalog listing with a copy.
func (s *Store) SetEntries(entries []protocol.CatalogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Entries = make([]protocol.CatalogEntry, len(entries))
	copy(s.st.Entries, entries)
}

// SetRecents replaces the recents listing with a copy.
func (s *Store) SetRecents(recents []protocol.RecentEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Recents = make([]protocol.RecentEntry, len(recents))
	copy(s.st.Recents, recents)
}

// SetJob upserts one background job.
func (s *Store) SetJob(ev protocol.JobEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Jobs == nil {
		s.st.Jobs = make(map[string]protocol.JobEvent)
	}
	s.st.Jobs[ev.JobID] = ev
}

// ClearJob removes one background job.
func (s *Store) ClearJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.Jobs, id)
}

// SetLogLevel records the engine's active log level.
func (s *Store) SetLogLevel(level string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.LogLevel = level
}
