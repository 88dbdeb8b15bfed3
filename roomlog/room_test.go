package roomlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, f *fakeFetcher) (*RoomSession, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	s, err := NewRoomSession(testConfig(), "r1", f)
	require.NoError(t, err)
	s.SetDialer(tr.dialer())
	t.Cleanup(func() { _ = s.Close() })
	return s, tr
}

func TestNewRoomSessionValidation(t *testing.T) {
	f := newFakeFetcher()

	_, err := NewRoomSession(Config{}, "r1", f)
	require.Equal(t, ErrorInvalidConfig, CodeOf(err))

	_, err = NewRoomSession(testConfig(), "", f)
	require.Equal(t, ErrorInvalidConfig, CodeOf(err))

	_, err = NewRoomSession(testConfig(), "r1", nil)
	require.Equal(t, ErrorInvalidConfig, CodeOf(err))
}

func TestRoomSessionOpenLoadsFirstPageAndJoins(t *testing.T) {
	f := newFakeFetcher()
	f.setPage(1, HistoryPage{
		Messages: mkMessages(0, 20),
		Members:  []Member{{ID: "u1", Name: "alice"}},
	})
	s, tr := newTestSession(t, f)

	require.NoError(t, s.Open(context.Background()))

	require.Len(t, s.Messages(), 20)
	require.True(t, s.HasMoreHistory())
	require.Equal(t, StateJoined, s.ConnectionState())
	require.Len(t, s.Members(), 1)

	sent := tr.sent()
	require.Len(t, sent, 1)
	require.Equal(t, intentJoinRoom, sent[0].Event)
}

func TestRoomSessionHistoryExhaustion(t *testing.T) {
	f := newFakeFetcher()
	f.setPage(1, HistoryPage{Messages: mkMessages(0, 20)})
	s, _ := newTestSession(t, f)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	require.Len(t, s.Messages(), 20)
	require.True(t, s.HasMoreHistory())

	// Page 2 comes back empty.
	require.NoError(t, s.LoadOlderMessages(ctx))
	require.False(t, s.HasMoreHistory())
	require.Len(t, s.Messages(), 20)

	// Repeated top-scroll triggers issue no further fetches.
	require.False(t, s.TopReached(Viewport{ScrollTop: 0}))
	require.NoError(t, s.LoadOlderMessages(ctx))
	require.NoError(t, s.LoadOlderMessages(ctx))
	require.Equal(t, 2, f.callCount())
}

func TestRoomSessionTopReachedEdge(t *testing.T) {
	f := newFakeFetcher()
	f.setPage(1, HistoryPage{Messages: mkMessages(0, 5)})
	s, _ := newTestSession(t, f)
	require.NoError(t, s.Open(context.Background()))

	require.True(t, s.TopReached(Viewport{ScrollTop: 0}))
	require.False(t, s.TopReached(Viewport{ScrollTop: 0}), "must fire once per arrival")
	require.False(t, s.TopReached(Viewport{ScrollTop: 300}))
	require.True(t, s.TopReached(Viewport{ScrollTop: 0}))
}

func TestRoomSessionEchoAppendsExactlyOnce(t *testing.T) {
	f := newFakeFetcher() // no history at all
	s, tr := newTestSession(t, f)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	require.Empty(t, s.Messages())

	require.NoError(t, s.SendMessage(ctx, "hello there"))
	require.Empty(t, s.Messages(), "no optimistic append before the echo")

	tr.push(eventBroadcast, BroadcastEvent{MessageID: "m1", Content: "hello there", SenderID: "me", SenderName: "me"})
	require.Eventually(t, func() bool { return len(s.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "hello there", s.Messages()[0].Content)
}

func TestRoomSessionDedupAcrossPushAndFetch(t *testing.T) {
	f := newFakeFetcher()
	f.setPage(1, HistoryPage{Messages: mkMessages(5, 1)}) // m5
	f.setPage(2, HistoryPage{Messages: mkMessages(0, 2)}) // m0 m1
	s, tr := newTestSession(t, f)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))

	// m1 arrives as a push first, then shows up again in a history
	// page (sent just before a page boundary).
	tr.push(eventBroadcast, BroadcastEvent{MessageID: "m1", Content: "message 1", SenderID: "u1", SenderName: "alice"})
	require.Eventually(t, func() bool { return len(s.Messages()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.LoadOlderMessages(ctx))

	ids := make([]string, 0)
	count := 0
	for _, m := range s.Messages() {
		ids = append(ids, m.ID)
		if m.ID == "m1" {
			count++
		}
	}
	require.Equal(t, 1, count, "log must contain exactly one m1: %v", ids)
	require.Equal(t, []string{"m0", "m5", "m1"}, ids)
}

func TestRoomSessionSendBlankIgnored(t *testing.T) {
	f := newFakeFetcher()
	s, tr := newTestSession(t, f)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.SendMessage(ctx, ""))
	require.NoError(t, s.SendMessage(ctx, "   \n"))
	require.Len(t, tr.sent(), 1, "only the join intent goes out")
}

func TestRoomSessionCloseDiscardsLateResults(t *testing.T) {
	f := newFakeFetcher()
	f.setPage(1, HistoryPage{Messages: mkMessages(5, 5)})
	f.setPage(2, HistoryPage{Messages: mkMessages(0, 5)})
	s, tr := newTestSession(t, f)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	require.Len(t, s.Messages(), 5)

	release := f.holdNext()
	errCh := make(chan error, 1)
	go func() { errCh <- s.LoadOlderMessages(ctx) }()
	require.Eventually(t, func() bool { return f.callCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	release()

	require.Equal(t, ErrorClosed, CodeOf(<-errCh))
	require.Len(t, s.Messages(), 5, "late page must not land in a torn-down room")

	// Push events after teardown are equally discarded and do not
	// panic.
	tr.push(eventBroadcast, BroadcastEvent{MessageID: "m99", Content: "late"})
	s.conn.applyBroadcast(BroadcastEvent{MessageID: "m98", Content: "later"})
	require.Len(t, s.Messages(), 5)

	require.True(t, tr.isClosed())
	sent := tr.sent()
	require.Equal(t, intentLeaveRoom, sent[len(sent)-1].Event)
}

func TestRoomSessionCloseDuringInitialLoadDiscardsPage(t *testing.T) {
	f := newFakeFetcher()
	f.setPage(1, HistoryPage{Messages: mkMessages(0, 5)})
	release := f.holdNext()
	s, _ := newTestSession(t, f)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Open(context.Background()) }()
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	release()

	require.Equal(t, ErrorClosed, CodeOf(<-errCh))
	require.Empty(t, s.Messages(), "a first page resolving after teardown is discarded")
}

func TestRoomSessionOpenTwice(t *testing.T) {
	f := newFakeFetcher()
	s, _ := newTestSession(t, f)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	require.Equal(t, ErrorAlreadyOpen, CodeOf(s.Open(ctx)))
}

func TestRoomSessionCloseIdempotentAndTerminal(t *testing.T) {
	f := newFakeFetcher()
	s, _ := newTestSession(t, f)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.Equal(t, ErrorClosed, CodeOf(s.SendMessage(ctx, "hi")))
	require.Equal(t, ErrorClosed, CodeOf(s.LoadOlderMessages(ctx)))
	require.Equal(t, StateDisconnected, s.ConnectionState())
}

func TestRoomSessionAnchorDelegation(t *testing.T) {
	f := newFakeFetcher()
	s, _ := newTestSession(t, f)

	before := Viewport{ScrollTop: 50, ScrollHeight: 1000}
	after := Viewport{ScrollHeight: 1500}
	require.Equal(t, 550, s.AnchorAfterPrepend(before, after))

	_, snap := s.AnchorAfterAppend(Viewport{ScrollTop: 0, ScrollHeight: 1000, ClientHeight: 240})
	require.False(t, snap)
}

func TestRoomSessionInitialLoadFailureIsRetryable(t *testing.T) {
	f := newFakeFetcher()
	f.setErr(1, context.DeadlineExceeded)
	s, _ := newTestSession(t, f)
	ctx := context.Background()

	// Open still succeeds: history is retryable from the scroll
	// trigger, the push channel is up.
	require.NoError(t, s.Open(ctx))
	require.Empty(t, s.Messages())
	require.Equal(t, StateJoined, s.ConnectionState())

	f.setErr(1, nil)
	f.setPage(1, HistoryPage{Messages: mkMessages(0, 3)})
	require.NoError(t, s.LoadOlderMessages(ctx))
	require.Len(t, s.Messages(), 3)
}
