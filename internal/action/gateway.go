package action

import (
	"context"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// Gateway is the engine surface the coordinator drives. The HTTP client and
// the in-process engine both satisfy it. Calls block until the engine
// answers; classified failures carry *protocol.Error.
type Gateway interface {
	// Bootstrap returns the authoritative session, reader view and engine
	// metadata. Used at startup and after feed reconnects.
	Bootstrap(ctx context.Context) (protocol.Bootstrap, error)

	// OpenPath opens a document by filesystem path.
	OpenPath(ctx context.Context, path string) (protocol.OpenResult, error)
	// OpenEntry opens a catalog entry by id.
	OpenEntry(ctx context.Context, entryID string) (protocol.OpenResult, error)
	// OpenText opens ad-hoc text under the given title.
	OpenText(ctx context.Context, title, text string) (protocol.OpenResult, error)
	// CloseReader leaves reader mode.
	CloseReader(ctx context.Context) (protocol.Session, error)

	ToggleTheme(ctx context.Context) (protocol.Session, error)
	TogglePanel(ctx context.Context, panel protocol.Panel) (protocol.PanelSet, error)
	SetLogLevel(ctx context.Context, level string) (string, error)

	NextPage(ctx context.Context) (protocol.ReaderView, error)
	PrevPage(ctx context.Context) (protocol.ReaderView, error)
	SetPage(ctx context.Context, page int) (protocol.ReaderView, error)
	NextSentence(ctx context.Context) (protocol.ReaderView, error)
	PrevSentence(ctx context.Context) (protocol.ReaderView, error)
	SelectSentence(ctx context.Context, index int) (protocol.ReaderView, error)
	ToggleTextOnly(ctx context.Context) (protocol.ReaderView, error)
	SetSearch(ctx context.Context, query string) (protocol.ReaderView, error)
	NextMatch(ctx context.Context) (protocol.ReaderView, error)
	PrevMatch(ctx context.Context) (protocol.ReaderView, error)
	ApplySettings(ctx context.Context, patch protocol.SettingsPatch) (protocol.ReaderView, error)

	Play(ctx context.Context) (protocol.ReaderView, error)
	Pause(ctx context.Context) (protocol.ReaderView, error)
	TogglePlayback(ctx context.Context) (protocol.ReaderView, error)
	PlayFromPageStart(ctx context.Context) (protocol.ReaderView, error)
	PlayFromHighlight(ctx context.Context) (protocol.ReaderView, error)
	SeekNext(ctx context.Context) (protocol.ReaderView, error)
	SeekPrev(ctx context.Context) (protocol.ReaderView, error)
	RepeatSentence(ctx context.Context) (protocol.ReaderView, error)

	// PrecomputePage starts a speech precompute job for the current page
	// and returns its job id; progress arrives over the job channel.
	PrecomputePage(ctx context.Context) (string, error)

	Catalog(ctx context.Context, force bool) ([]protocol.CatalogEntry, error)
	Recents(ctx context.Context) ([]protocol.RecentEntry, error)
	DeleteRecent(ctx context.Context, resourceID string) ([]protocol.RecentEntry, error)
}
