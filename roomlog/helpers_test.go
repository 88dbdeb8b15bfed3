package roomlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// mkMessages builds n messages m<start>..m<start+n-1> with ascending
// creation times one minute apart.
func mkMessages(start, n int) []Message {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]Message, n)
	for i := range out {
		out[i] = Message{
			ID:         fmt.Sprintf("m%d", start+i),
			Content:    fmt.Sprintf("message %d", start+i),
			SenderID:   "u1",
			SenderName: "alice",
			CreatedAt:  base.Add(time.Duration(start+i) * time.Minute),
		}
	}
	return out
}

func logIDs(l *Log) []string {
	msgs := l.Messages()
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

type fetchCall struct {
	page   int
	before string
}

// fakeFetcher serves scripted pages and records every call. When block
// is set, fetches wait for a release before returning, which lets tests
// hold a fetch in flight.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[int]HistoryPage
	errs  map[int]error
	calls []fetchCall
	block chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[int]HistoryPage),
		errs:  make(map[int]error),
	}
}

func (f *fakeFetcher) setPage(page int, p HistoryPage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[page] = p
}

func (f *fakeFetcher) setErr(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[page] = err
}

// holdNext makes fetches block until the returned release func runs.
func (f *fakeFetcher) holdNext() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) lastCall() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeFetcher) FetchMessages(_ context.Context, _ string, page int, beforeID string) (HistoryPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{page: page, before: beforeID})
	block := f.block
	f.mu.Unlock()

	if block != nil {
		// Deliberately ignores ctx so a test can deliver a result
		// after cancellation and check that it is discarded.
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[page]; err != nil {
		return HistoryPage{}, err
	}
	return f.pages[page], nil
}

// fakeTransport is a scripted push channel: tests feed events in and
// collect the intents the engine wrote out.
type fakeTransport struct {
	mu       sync.Mutex
	events   chan Event
	readErrs chan error
	intents  []Intent
	writeErr error
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events:   make(chan Event, 16),
		readErrs: make(chan error, 1),
	}
}

func (t *fakeTransport) dialer() Dialer {
	return func(context.Context, string, string) (Transport, error) {
		return t, nil
	}
}

func (t *fakeTransport) push(event string, payload any) {
	raw, _ := json.Marshal(payload)
	t.events <- Event{Event: event, Data: raw}
}

func (t *fakeTransport) failRead(err error) {
	t.readErrs <- err
}

func (t *fakeTransport) sent() []Intent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Intent, len(t.intents))
	copy(out, t.intents)
	return out
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *fakeTransport) ReadEvent(ctx context.Context) (Event, error) {
	select {
	case ev := <-t.events:
		return ev, nil
	case err := <-t.readErrs:
		return Event{}, err
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (t *fakeTransport) WriteIntent(_ context.Context, in Intent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.intents = append(t.intents, in)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// recordingNotifier counts every external setter call.
type recordingNotifier struct {
	mu     sync.Mutex
	unread int
	shake  int
}

func (n *recordingNotifier) SetUnreadMessages(bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unread++
}

func (n *recordingNotifier) SetShake(bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shake++
}

func (n *recordingNotifier) counts() (unread, shake int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread, n.shake
}
