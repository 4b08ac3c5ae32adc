// Package state holds the client's reconciled copy of engine state: one
// value the presentation layer renders, mutated only through the Store by
// the event fence and the mutation coordinator.
package state

import (
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// NoticeKind classifies a notification.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is the single transient notification line. A new notice replaces
// the previous one; nothing queues.
type Notice struct {
	Kind NoticeKind
	Text string
	At   time.Time
}

// OpenStatus tracks the in-flight resource open shown by the starter view.
type OpenStatus struct {
	Phase   protocol.Phase
	Path    string
	Title   string
	Message string
}

// CatalogStatus tracks the library scan.
type CatalogStatus struct {
	Phase protocol.Phase
	Count int
}

// State is everything the presentation layer renders. Reader is nil in
// starter mode.
type State struct {
	Session       protocol.Session
	Reader        *protocol.ReaderView
	Busy          bool
	LastError     string
	Notice        *Notice
	Open          OpenStatus
	Catalog       CatalogStatus
	Entries       []protocol.CatalogEntry
	Recents       []protocol.RecentEntry
	Jobs          map[string]protocol.JobEvent
	Voices        []string
	LogLevel      string
	Library       string
	EngineVersion string
	Connected     bool
}

// Clone returns a deep copy of the State, duplicating pointer, slice and map
// fields so the copy can be mutated independently of the original.
func (st State) Clone() State {
	c := st
	c.Reader = st.Reader.Clone()
	if st.Notice != nil {
		n := *st.Notice
		c.Notice = &n
	}
	if len(st.Entries) > 0 {
		c.Entries = make([]protocol.CatalogEntry, len(st.Entries))
		copy(c.Entries, st.Entries)
	}
	if len(st.Recents) > 0 {
		c.Recents = make([]protocol.RecentEntry, len(st.Recents))
		copy(c.Recents, st.Recents)
	}
	if len(st.Voices) > 0 {
		c.Voices = make([]string, len(st.Voices))
		copy(c.Voices, st.Voices)
	}
	if st.Jobs != nil {
		c.Jobs = make(map[string]protocol.JobEvent, len(st.Jobs))
		for k, v := range st.Jobs {
			c.Jobs[k] = v
		}
	}
	return c
}
