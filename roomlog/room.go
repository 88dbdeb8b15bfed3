package roomlog

import (
	"context"
	"strings"
	"sync"
)

// RoomSession owns the synchronization state for one open room: the
// message log, backward pagination, the live connection and scroll
// anchoring. Create one per room view and release it with Close when
// the user navigates away; nothing persists across visits.
type RoomSession struct {
	cfg    Config
	roomID string
	logger Logger

	log       *Log
	paginator *Paginator
	anchor    *Anchor
	bridge    *Bridge
	conn      *Connection

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	opened bool
	closed bool
}

// NewRoomSession constructs the per-room state. fetcher supplies
// history pages; rest.Client implements it over HTTP. Nothing is loaded
// or connected until Open.
func NewRoomSession(cfg Config, roomID string, fetcher HistoryFetcher) (*RoomSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if roomID == "" {
		return nil, NewError(ErrorInvalidConfig, "empty room id")
	}
	if fetcher == nil {
		return nil, NewError(ErrorInvalidConfig, "nil history fetcher")
	}

	s := &RoomSession{
		cfg:    cfg,
		roomID: roomID,
		logger: noopLogger{},
		log:    NewLog(),
		anchor: NewAnchor(cfg.BottomSlack),
		bridge: NewBridge(nil),
	}
	s.paginator = NewPaginator(fetcher, roomID, s.log)
	s.paginator.SetAliveCheck(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.closed
	})
	s.conn = NewConnection(cfg, roomID, s.log, s.bridge)
	return s, nil
}

// SetLogger overrides the logger on the session and its components.
// Call before Open.
func (s *RoomSession) SetLogger(l Logger) {
	if l == nil {
		return
	}
	s.logger = l
	s.paginator.SetLogger(l)
	s.conn.SetLogger(l)
}

// SetNotifier targets activity signals at the process-wide notification
// store. Call before Open.
func (s *RoomSession) SetNotifier(n Notifier) {
	s.bridge.SetNotifier(n)
}

// SetDialer overrides the push transport dialer. Call before Open.
func (s *RoomSession) SetDialer(d Dialer) {
	s.conn.SetDialer(d)
}

// SetOnAppend registers a callback for each live message after it lands
// in the log. Call before Open.
func (s *RoomSession) SetOnAppend(fn func(Message)) {
	s.conn.SetOnAppend(fn)
}

// SetOnPrepend registers a callback for each batch of older history
// after it lands in the log. Call before Open.
func (s *RoomSession) SetOnPrepend(fn func(batch []Message)) {
	s.paginator.SetOnPrepend(fn)
}

// Open loads the first history page and joins the push channel. The
// initial load failing is not fatal: it is logged and retryable from
// the scroll trigger, while a connection failure aborts the open.
func (s *RoomSession) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewError(ErrorClosed, "room session closed")
	}
	if s.opened {
		s.mu.Unlock()
		return NewError(ErrorAlreadyOpen, "room session already open")
	}
	s.opened = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := s.paginator.LoadNextOlderPage(ctx); err != nil {
		s.logger.Warn("initial history load failed", map[string]any{"room": s.roomID, "error": err.Error()})
	}

	return s.conn.Open(ctx)
}

// Messages returns the current ordered sequence for rendering.
func (s *RoomSession) Messages() []Message {
	return s.log.Messages()
}

// HasMoreHistory reports whether a loading sentinel should be shown.
func (s *RoomSession) HasMoreHistory() bool {
	return s.paginator.HasMore()
}

// Members returns the room participants from the first history page.
func (s *RoomSession) Members() []Member {
	return s.paginator.Members()
}

// ConnectionState returns the push subscription state. A dropped
// transport surfaces here as StateDisconnected; there is no automatic
// reconnect, the caller re-opens the room.
func (s *RoomSession) ConnectionState() ConnectionState {
	return s.conn.State()
}

// RoomID returns the room this session is bound to.
func (s *RoomSession) RoomID() string {
	return s.roomID
}

// SendMessage publishes content to the room. Blank input is ignored.
// The log stays unchanged until the broadcast echo arrives, so the
// caller should keep the input until then.
func (s *RoomSession) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return NewError(ErrorClosed, "room session closed")
	}
	return s.conn.Send(ctx, content)
}

// TopReached feeds a viewport sample into the top-edge detector and
// reports whether a backward page load should start: once per arrival
// at the top, and never once history is exhausted. Call
// LoadOlderMessages when it reports true.
func (s *RoomSession) TopReached(v Viewport) bool {
	hit := s.anchor.TopReached(v)
	return hit && s.paginator.HasMore()
}

// LoadOlderMessages loads the next older history page. Single-flight:
// overlapping calls are silent no-ops. Fails with ErrorClosed after
// teardown, and a result resolving after teardown is discarded.
func (s *RoomSession) LoadOlderMessages(ctx context.Context) error {
	s.mu.Lock()
	closed, lctx := s.closed, s.ctx
	s.mu.Unlock()
	if closed || lctx == nil {
		return NewError(ErrorClosed, "room session closed")
	}

	// The fetch stops on whichever ends first: the caller's context or
	// the session lifetime.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(lctx, cancel)
	defer stop()

	return s.paginator.LoadNextOlderPage(ctx)
}

// AnchorAfterPrepend returns the scroll offset that keeps the content
// the user was reading visually fixed after older history was inserted.
func (s *RoomSession) AnchorAfterPrepend(before, after Viewport) int {
	return s.anchor.AfterPrepend(before, after)
}

// AnchorAfterAppend returns the offset to apply after a live message
// was appended and whether to apply it; the position is never stolen
// from a user reading history.
func (s *RoomSession) AnchorAfterAppend(v Viewport) (int, bool) {
	return s.anchor.AfterAppend(v)
}

// Close tears the room down: in-flight fetch results are discarded,
// leaveRoom is emitted and the transport closed. Push or fetch results
// arriving afterwards do not mutate any state. Safe to call more than
// once.
func (s *RoomSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return s.conn.Close()
}
