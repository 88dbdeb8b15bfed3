package roomlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
)

// FSM triggers for the connection lifecycle.
var (
	triggerDial      stateless.Trigger = "Dial"
	triggerConnected stateless.Trigger = "Connected"
	triggerDrop      stateless.Trigger = "Drop"
	triggerClose     stateless.Trigger = "Close"
)

// Connection owns the push subscription for one open room:
// Disconnected -> Connecting -> Joined, back to Disconnected on
// teardown or transport failure. At most one subscription exists per
// room per view. Inbound broadcasts append to the log; activity signals
// go to the bridge; sends never mutate the log, the server echo is the
// only append path for the sender's own messages.
type Connection struct {
	roomID string
	url    string
	token  TokenProvider
	dial   Dialer

	log    *Log
	bridge *Bridge
	logger Logger
	events dispatcher

	onAppend func(Message)
	now      func() time.Time

	fsm *stateless.StateMachine

	mu        sync.Mutex
	transport Transport
	cancel    context.CancelFunc
	closed    bool
}

// NewConnection constructs a connection manager for roomID. The push
// subscription is not opened until Open is called.
func NewConnection(cfg Config, roomID string, log *Log, bridge *Bridge) *Connection {
	if bridge == nil {
		bridge = NewBridge(nil)
	}
	c := &Connection{
		roomID: roomID,
		url:    cfg.SocketURL,
		token:  cfg.Token,
		dial:   websocketDialer(cfg.HandshakeTimeout, cfg.ReadTimeout, cfg.WriteTimeout),
		log:    log,
		bridge: bridge,
		logger: noopLogger{},
		now:    time.Now,
	}
	c.events = dispatcher{
		onBroadcast: c.applyBroadcast,
		onActivity:  c.applyActivity,
		onError: func(err error) {
			c.logger.Warn("event decode failed", map[string]any{"room": c.roomID, "error": err.Error()})
		},
	}

	fsm := stateless.NewStateMachine(StateDisconnected)
	fsm.Configure(StateDisconnected).
		Permit(triggerDial, StateConnecting).
		Ignore(triggerDrop).
		Ignore(triggerClose)
	fsm.Configure(StateConnecting).
		Permit(triggerConnected, StateJoined).
		Permit(triggerDrop, StateDisconnected).
		Permit(triggerClose, StateDisconnected)
	fsm.Configure(StateJoined).
		OnEntry(func(ctx context.Context, _ ...any) error {
			return c.announceJoin(ctx)
		}).
		Permit(triggerDrop, StateDisconnected).
		Permit(triggerClose, StateDisconnected)
	c.fsm = fsm
	return c
}

// SetLogger overrides the logger (optional).
func (c *Connection) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetDialer overrides the transport dialer. Tests substitute a fake
// transport here; call before Open.
func (c *Connection) SetDialer(d Dialer) {
	if d != nil {
		c.dial = d
	}
}

// SetOnAppend registers a callback fired for each live message after it
// lands in the log. Register before Open.
func (c *Connection) SetOnAppend(fn func(Message)) {
	c.onAppend = fn
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnectionState {
	s, ok := c.fsm.MustState().(ConnectionState)
	if !ok {
		return StateDisconnected
	}
	return s
}

// Open dials the transport, announces the room join and starts the read
// loop.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return NewError(ErrorClosed, "connection closed")
	}
	if c.transport != nil {
		c.mu.Unlock()
		return NewError(ErrorAlreadyOpen, "already connected")
	}
	c.mu.Unlock()

	if err := c.fsm.FireCtx(ctx, triggerDial); err != nil {
		return WrapError(ErrorConnectionFailed, "dial refused", err)
	}

	token := ""
	if c.token != nil {
		if t, ok := c.token(); ok {
			token = t
		}
	}

	t, err := c.dial(ctx, c.url, token)
	if err != nil {
		_ = c.fsm.Fire(triggerDrop)
		return WrapError(ErrorConnectionFailed, "dial "+c.url, err)
	}

	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()

	if err := c.fsm.FireCtx(ctx, triggerConnected); err != nil {
		// The join intent could not be written; the subscription is
		// unusable.
		_ = t.Close()
		_ = c.fsm.Fire(triggerDrop)
		c.mu.Lock()
		c.transport = nil
		c.mu.Unlock()
		return WrapError(ErrorConnectionFailed, "join "+c.roomID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	go c.readLoop(runCtx)

	c.logger.Info("room joined", map[string]any{"room": c.roomID})
	return nil
}

// Send publishes a message to the room. The log is not mutated here:
// the sender's copy is appended only when the server echoes it back as
// a broadcast, so sender and receivers see an identically ordered log.
func (c *Connection) Send(ctx context.Context, content string) error {
	c.mu.Lock()
	t := c.transport
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return NewError(ErrorClosed, "connection closed")
	}
	if t == nil || c.State() != StateJoined {
		return NewError(ErrorNotConnected, "room not joined")
	}

	in := Intent{Event: intentBroadcast, Data: BroadcastPayload{
		RoomID:      c.roomID,
		Content:     content,
		ClientMsgID: uuid.NewString(),
	}}
	if err := t.WriteIntent(ctx, in); err != nil {
		return WrapError(ErrorSendFailed, "broadcast to "+c.roomID, err)
	}
	return nil
}

// Close emits leaveRoom and closes the transport, unconditionally, even
// if the connect never completed. Safe to call more than once; events
// arriving after Close are discarded.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	t := c.transport
	cancel := c.cancel
	c.transport = nil
	c.cancel = nil
	c.mu.Unlock()

	var err error
	if t != nil {
		// Best effort: the socket may already be gone.
		_ = t.WriteIntent(context.Background(), Intent{Event: intentLeaveRoom, Data: RoomPayload{RoomID: c.roomID}})
		err = t.Close()
	}
	if cancel != nil {
		cancel()
	}
	_ = c.fsm.Fire(triggerClose)
	c.logger.Info("room left", map[string]any{"room": c.roomID})
	return err
}

func (c *Connection) announceJoin(ctx context.Context) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return NewError(ErrorNotConnected, "no transport")
	}
	return t.WriteIntent(ctx, Intent{Event: intentJoinRoom, Data: RoomPayload{RoomID: c.roomID}})
}

func (c *Connection) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		t := c.transport
		c.mu.Unlock()
		if t == nil {
			return
		}

		ev, err := t.ReadEvent(ctx)
		if err != nil {
			if isExpectedDisconnect(ctx, err) {
				return
			}
			c.logger.Warn("read loop exit", map[string]any{"room": c.roomID, "error": err.Error()})
			_ = c.fsm.Fire(triggerDrop)
			return
		}
		c.events.dispatch(ev)
	}
}

func (c *Connection) applyBroadcast(ev BroadcastEvent) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	msg := Message{
		ID:         ev.MessageID,
		Content:    ev.Content,
		SenderID:   ev.SenderID,
		SenderName: ev.SenderName,
		CreatedAt:  c.now(),
	}
	if !c.log.Append(msg) {
		c.logger.Debug("duplicate broadcast dropped", map[string]any{"room": c.roomID, "message_id": ev.MessageID})
		return
	}
	if c.onAppend != nil {
		c.onAppend(msg)
	}
}

func (c *Connection) applyActivity(ev ActivityEvent) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.bridge.Activity(ev)
}
