package roomlog

import "time"

// TokenProvider supplies the current auth token. The second return is
// false when no session is available; the engine then connects
// unauthenticated and lets the server decide.
type TokenProvider func() (string, bool)

// Config controls how the engine reaches the backend.
type Config struct {
	// SocketURL is the websocket endpoint of the push transport.
	SocketURL string
	// RESTBaseURL is the base URL of the history API, e.g.
	// "http://localhost:8080/api". Kept here so one Config describes
	// the whole backend even though the rest client is constructed
	// separately.
	RESTBaseURL string
	// Token supplies the bearer token for both channels.
	Token TokenProvider

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration

	// BottomSlack is how many pixels above the bottom edge still count
	// as "at the bottom" when deciding whether a new live message may
	// auto-scroll the view.
	BottomSlack int
}

// DefaultConfig returns sensible defaults. Set a timeout to 0 to
// disable it.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     10 * time.Second,
		BottomSlack:      40,
	}
}

// Validate checks the config for fields the engine cannot run without.
func (c Config) Validate() error {
	if c.SocketURL == "" {
		return NewError(ErrorInvalidConfig, "empty socket URL")
	}
	return nil
}
