package roomlog

// Viewport is an explicit measurement of the scrollable message area.
// The engine never touches a real view: callers sample these values
// around log mutations and apply the offsets the anchor computes.
type Viewport struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

// Anchor keeps the user's reading position stable while the log
// mutates. Prepends preserve the visual offset; appends snap to the
// bottom only when the user is already there.
type Anchor struct {
	bottomSlack int
	atTop       bool
}

// NewAnchor returns an anchor. bottomSlack is how many pixels above the
// bottom edge still count as "at the bottom".
func NewAnchor(bottomSlack int) *Anchor {
	return &Anchor{bottomSlack: bottomSlack}
}

// AfterPrepend returns the scroll offset that keeps previously visible
// content fixed after older history was inserted above it. before and
// after are measurements taken around the mutation.
func (a *Anchor) AfterPrepend(before, after Viewport) int {
	return before.ScrollTop + (after.ScrollHeight - before.ScrollHeight)
}

// AfterAppend returns the offset to apply after a live message was
// appended, and whether to apply it at all. The position is left alone
// when the user has scrolled up into history.
func (a *Anchor) AfterAppend(v Viewport) (int, bool) {
	if !a.nearBottom(v) {
		return v.ScrollTop, false
	}
	return v.ScrollHeight, true
}

func (a *Anchor) nearBottom(v Viewport) bool {
	return v.ScrollHeight-(v.ScrollTop+v.ClientHeight) <= a.bottomSlack
}

// TopReached edge-detects arrival at the topmost scroll position. It
// reports true once per arrival; staying pinned at the top does not
// re-fire until the viewport leaves the top again.
func (a *Anchor) TopReached(v Viewport) bool {
	if v.ScrollTop != 0 {
		a.atTop = false
		return false
	}
	if a.atTop {
		return false
	}
	a.atTop = true
	return true
}
