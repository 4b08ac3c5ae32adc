// Package window computes the visible slice of a long list from scroll
// geometry, so views render O(visible) rows no matter how long the list
// gets. Sorting and filtering helpers for the catalog live here too, since
// they run immediately before windowing.
package window

// Span is the renderable slice of an n-row list: rows [Start, End) plus the
// Top and Bottom spacer heights standing in for everything off screen.
type Span struct {
	Start  int
	End    int
	Top    int
	Bottom int
}

// Count returns the number of rendered rows.
func (s Span) Count() int {
	return s.End - s.Start
}

// Compute returns the span of rows to render for a list of n rows of
// rowHeight cells each, seen through viewportHeight cells at scrollOffset.
// Overscan extra rows are included on each side so small scrolls do not
// tear. Degenerate geometry is clamped rather than rejected: non-positive
// heights become 1, negative offsets and overscan become 0.
//
// For every input, Top + Bottom + Count()*rowHeight == n*rowHeight.
func Compute(n, scrollOffset, rowHeight, viewportHeight, overscan int) Span {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if viewportHeight <= 0 {
		viewportHeight = 1
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if overscan < 0 {
		overscan = 0
	}
	if n <= 0 {
		return Span{}
	}

	start := scrollOffset/rowHeight - overscan
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}

	count := (viewportHeight+rowHeight-1)/rowHeight + 2*overscan
	end := start + count
	if end > n {
		end = n
	}

	return Span{
		Start:  start,
		End:    end,
		Top:    start * rowHeight,
		Bottom: (n - end) * rowHeight,
	}
}
