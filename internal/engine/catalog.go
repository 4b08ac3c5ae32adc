package engine

import (
	"context"
	"errors"

	"github.com/sguzman/lantern-leaf-sub000/internal/library"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// rescan walks the library directory, refreshes the cached catalog and
// announces the result on the catalog channel.
func (e *Engine) rescan(ctx context.Context) ([]protocol.CatalogEntry, error) {
	e.mu.Lock()
	e.emitLocked(protocol.ChannelCatalog, protocol.CatalogEvent{Phase: protocol.PhaseStarted})
	dir := e.opts.LibraryDir
	e.mu.Unlock()

	entries, err := library.Scan(dir)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.emitLocked(protocol.ChannelCatalog, protocol.CatalogEvent{
			Phase:   protocol.PhaseFailed,
			Message: err.Error(),
		})
		return nil, err
	}
	e.catalog = entries
	e.scanned = true
	e.emitLocked(protocol.ChannelCatalog, protocol.CatalogEvent{
		Phase: protocol.PhaseFinished,
		Count: len(entries),
	})
	e.log.Debug("library scanned", "dir", dir, "entries", len(entries))
	return append([]protocol.CatalogEntry(nil), entries...), nil
}

// Catalog returns the library entries, rescanning on demand or when no
// scan has happened yet.
func (e *Engine) Catalog(ctx context.Context, force bool) ([]protocol.CatalogEntry, error) {
	if e.opts.LibraryDir == "" {
		return nil, nil
	}
	e.mu.Lock()
	scanned := e.scanned
	cached := append([]protocol.CatalogEntry(nil), e.catalog...)
	e.mu.Unlock()

	if scanned && !force {
		return cached, nil
	}
	return e.rescan(ctx)
}

// Recents lists the recently-opened documents.
func (e *Engine) Recents(ctx context.Context) ([]protocol.RecentEntry, error) {
	if e.opts.Recents == nil {
		return nil, nil
	}
	return e.opts.Recents.List(ctx, 0)
}

// DeleteRecent removes one recents row and returns the remaining list.
func (e *Engine) DeleteRecent(ctx context.Context, resourceID string) ([]protocol.RecentEntry, error) {
	if e.opts.Recents == nil {
		return nil, nil
	}
	if err := e.opts.Recents.Delete(ctx, resourceID); err != nil {
		return nil, err
	}
	return e.opts.Recents.List(ctx, 0)
}

// saveRecent upserts a recents row. Persistence failures are logged, never
// surfaced: losing a resume position must not break reading.
func (e *Engine) saveRecent(ctx context.Context, entry protocol.RecentEntry) {
	if e.opts.Recents == nil {
		return
	}
	if err := e.opts.Recents.Touch(ctx, entry); err != nil {
		e.log.Warn("recents update failed", "resource", entry.ResourceID, "err", err)
	}
}

// savedPosition returns the stored resume page for a resource, if any.
func (e *Engine) savedPosition(ctx context.Context, resourceID string) int {
	if e.opts.Recents == nil {
		return 0
	}
	page, err := e.opts.Recents.Position(ctx, resourceID)
	if err != nil {
		if !errors.Is(err, library.ErrNotFound) {
			e.log.Warn("resume lookup failed", "resource", resourceID, "err", err)
		}
		return 0
	}
	return page
}
