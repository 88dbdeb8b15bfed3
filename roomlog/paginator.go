package roomlog

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// HistoryFetcher retrieves one page of past messages for a room. page
// starts at 1; beforeID, when non-empty, is the exclusive upper bound
// for the page. An empty Messages slice is the only "no more history"
// signal. Implementations may return messages oldest-first or
// newest-first; the paginator normalizes before prepending.
type HistoryFetcher interface {
	FetchMessages(ctx context.Context, roomID string, page int, beforeID string) (HistoryPage, error)
}

// HistoryPage is one page of history plus the room's member set.
type HistoryPage struct {
	Messages []Message
	Members  []Member
}

// Paginator drives backward history loading for one room with strict
// single-flight discipline: at most one fetch is outstanding, repeated
// triggers while a fetch is in flight are silent no-ops, and an empty
// page latches the room as exhausted for the paginator's lifetime.
type Paginator struct {
	fetcher HistoryFetcher
	roomID  string
	log     *Log
	logger  Logger

	onPrepend func(batch []Message)
	alive     func() bool

	mu             sync.Mutex
	page           int
	oldestLoadedID string
	hasMore        bool
	inFlight       bool
	members        []Member
}

// NewPaginator returns a paginator positioned at page 1.
func NewPaginator(fetcher HistoryFetcher, roomID string, log *Log) *Paginator {
	return &Paginator{
		fetcher: fetcher,
		roomID:  roomID,
		log:     log,
		logger:  noopLogger{},
		page:    1,
		hasMore: true,
	}
}

// SetLogger overrides the logger (optional).
func (p *Paginator) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetOnPrepend registers a callback fired with each batch of older
// messages after it lands in the log. Register before the first load.
func (p *Paginator) SetOnPrepend(fn func(batch []Message)) {
	p.onPrepend = fn
}

// SetAliveCheck registers a predicate consulted after every fetch
// returns, before the result touches the cursor or the log. A false
// answer means the room was torn down while the fetch was in flight
// and the page is discarded. Register before the first load.
func (p *Paginator) SetAliveCheck(fn func() bool) {
	p.alive = fn
}

// LoadNextOlderPage fetches the next older page and prepends it to the
// log. It is a no-op returning nil while a fetch is in flight or once
// history is exhausted. A fetch error leaves the cursor untouched and
// clears the guard so the next trigger can retry. Results that resolve
// after ctx is cancelled are discarded without touching any state.
func (p *Paginator) LoadNextOlderPage(ctx context.Context) error {
	p.mu.Lock()
	if p.inFlight || !p.hasMore {
		p.mu.Unlock()
		return nil
	}
	p.inFlight = true
	page, before := p.page, p.oldestLoadedID
	p.mu.Unlock()

	result, err := p.fetcher.FetchMessages(ctx, p.roomID, page, before)

	p.mu.Lock()
	p.inFlight = false
	// Teardown is checked synchronously here, at the apply point:
	// context cancellation alone can lose the race between Close and a
	// result that is already on its way back.
	if p.alive != nil && !p.alive() {
		p.mu.Unlock()
		return NewError(ErrorClosed, "room closed during fetch")
	}
	if err == nil && ctx.Err() != nil {
		p.mu.Unlock()
		return WrapError(ErrorClosed, "room closed during fetch", ctx.Err())
	}
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("history fetch failed", map[string]any{"room": p.roomID, "page": page, "error": err.Error()})
		return WrapError(ErrorFetchFailed, fmt.Sprintf("history page %d", page), err)
	}
	if len(result.Messages) == 0 {
		p.hasMore = false
		p.mu.Unlock()
		p.logger.Debug("history exhausted", map[string]any{"room": p.roomID, "page": page})
		return nil
	}

	batch := normalizeOldestFirst(result.Messages)
	if p.oldestLoadedID == "" {
		// Fixed once on the first non-empty page; every later fetch is
		// anchored below this id.
		p.oldestLoadedID = batch[0].ID
	}
	if p.members == nil && len(result.Members) > 0 {
		p.members = slices.Clone(result.Members)
	}
	p.page++
	inserted := p.log.PrependBatch(batch)
	onPrepend := p.onPrepend
	p.mu.Unlock()

	p.logger.Debug("history page loaded", map[string]any{
		"room": p.roomID, "page": page, "fetched": len(batch), "inserted": inserted,
	})
	if onPrepend != nil {
		onPrepend(batch)
	}
	return nil
}

// HasMore reports whether older history may still exist. Once false it
// never becomes true again for this paginator.
func (p *Paginator) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// OldestLoadedID returns the fixed pagination anchor, or "" before the
// first non-empty page.
func (p *Paginator) OldestLoadedID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.oldestLoadedID
}

// Page returns the page number the next fetch will request.
func (p *Paginator) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// Members returns the room participants from the first non-empty page,
// or nil before one arrived.
func (p *Paginator) Members() []Member {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.members)
}

// normalizeOldestFirst returns the page in oldest-first order. Servers
// may return either direction; the creation timestamps decide.
func normalizeOldestFirst(msgs []Message) []Message {
	out := slices.Clone(msgs)
	if len(out) >= 2 && out[0].CreatedAt.After(out[len(out)-1].CreatedAt) {
		slices.Reverse(out)
	}
	return out
}
