package roomlog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/roomlog/roomlog-go/roomlog/internal"

	"github.com/coder/websocket"
)

// Transport is a persistent push channel carrying JSON envelopes. The
// default implementation wraps a websocket; tests substitute a scripted
// fake so the connection manager can be exercised with synthetic
// events.
type Transport interface {
	ReadEvent(ctx context.Context) (Event, error)
	WriteIntent(ctx context.Context, in Intent) error
	Close() error
}

// Dialer opens a Transport. token may be empty for unauthenticated
// connections.
type Dialer func(ctx context.Context, rawURL, token string) (Transport, error)

// websocketDialer returns the default Dialer over coder/websocket.
func websocketDialer(handshakeTimeout, readTimeout, writeTimeout time.Duration) Dialer {
	return func(ctx context.Context, rawURL, token string) (Transport, error) {
		if rawURL == "" {
			return nil, errors.New("empty URL")
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}

		dialCtx := ctx
		if handshakeTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, handshakeTimeout)
			defer cancel()
		}

		opts := &websocket.DialOptions{}
		if token != "" {
			opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
		}
		ws, _, err := websocket.Dial(dialCtx, u.String(), opts)
		if err != nil {
			return nil, err
		}
		return &wsTransport{conn: internal.NewConn(ws, readTimeout, writeTimeout)}, nil
	}
}

// wsTransport frames the engine's envelopes over a websocket.
type wsTransport struct {
	conn *internal.Conn
}

func (t *wsTransport) ReadEvent(ctx context.Context) (Event, error) {
	var ev Event
	if err := t.conn.Read(ctx, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (t *wsTransport) WriteIntent(ctx context.Context, in Intent) error {
	return t.conn.Write(ctx, in)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "room exit")
}

// isExpectedDisconnect reports whether a read error is part of an
// orderly shutdown rather than a transport failure.
func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
