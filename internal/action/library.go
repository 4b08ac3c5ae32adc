package action

import (
	"context"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
)

// LoadCatalog fetches the library catalog. force asks the engine to rescan
// the library directory instead of serving its cache.
func (c *Coordinator) LoadCatalog(ctx context.Context, force bool) error {
	gen := c.begin(targetCatalog)
	start := time.Now()
	c.busyStart()
	defer c.busyEnd()

	c.store.SetCatalogStatus(state.CatalogStatus{Phase: protocol.PhaseStarted})

	entries, err := c.gw.Catalog(ctx, force)
	if err != nil {
		c.fail("catalog", targetCatalog, gen, start, func(st *state.State) {
			st.Catalog = state.CatalogStatus{Phase: protocol.PhaseFailed}
		}, err)
		return err
	}

	c.ok("catalog", targetCatalog, gen, start, func(st *state.State) {
		st.Entries = append([]protocol.CatalogEntry(nil), entries...)
		st.Catalog = state.CatalogStatus{Phase: protocol.PhaseFinished, Count: len(entries)}
	})
	return nil
}

// LoadRecents fetches the recently-opened list.
func (c *Coordinator) LoadRecents(ctx context.Context) error {
	gen := c.begin(targetRecents)
	start := time.Now()

	recents, err := c.gw.Recents(ctx)
	if err != nil {
		c.fail("recents", targetRecents, gen, start, nil, err)
		return err
	}

	c.ok("recents", targetRecents, gen, start, func(st *state.State) {
		st.Recents = append([]protocol.RecentEntry(nil), recents...)
	})
	return nil
}

// DeleteRecent drops one entry from the recents list. The row disappears
// optimistically; the engine's list is authoritative on return.
func (c *Coordinator) DeleteRecent(ctx context.Context, resourceID string) error {
	gen := c.begin(targetRecents)
	start := time.Now()

	var before []protocol.RecentEntry
	c.store.Mutate(func(st *state.State) {
		before = append([]protocol.RecentEntry(nil), st.Recents...)
		kept := st.Recents[:0]
		for _, r := range st.Recents {
			if r.ResourceID != resourceID {
				kept = append(kept, r)
			}
		}
		st.Recents = kept
	})

	recents, err := c.gw.DeleteRecent(ctx, resourceID)
	if err != nil {
		c.fail("delete_recent", targetRecents, gen, start, func(st *state.State) {
			st.Recents = before
		}, err)
		return err
	}

	c.ok("delete_recent", targetRecents, gen, start, func(st *state.State) {
		st.Recents = append([]protocol.RecentEntry(nil), recents...)
	})
	return nil
}

// PrecomputePage asks the engine to pre-render the current page's audio.
// Progress arrives on the job channel, which is the only writer of job
// rows; nothing is staged or committed here.
func (c *Coordinator) PrecomputePage(ctx context.Context) error {
	gen := c.begin(targetJob)
	start := time.Now()

	reading := false
	c.store.Mutate(func(st *state.State) {
		reading = st.Reader != nil
	})
	if !reading {
		return nil
	}

	if _, err := c.gw.PrecomputePage(ctx); err != nil {
		c.fail("precompute", targetJob, gen, start, nil, err)
		return err
	}
	c.record("precompute", targetJob, start, nil)
	return nil
}
