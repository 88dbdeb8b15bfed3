package roomlog

// Notifier is the process-wide notification store owned outside the
// engine: an unread indicator plus a transient attention cue (icon
// shake).
type Notifier interface {
	SetUnreadMessages(bool)
	SetShake(bool)
}

// NopNotifier discards activity signals.
type NopNotifier struct{}

func (NopNotifier) SetUnreadMessages(bool) {}
func (NopNotifier) SetShake(bool)          {}

// Bridge forwards activity signals to the external Notifier. It owns no
// state and performs no buffering or de-duplication: repeated signals
// repeat the calls.
type Bridge struct {
	notifier Notifier
}

// NewBridge returns a bridge targeting n. A nil n is replaced with
// NopNotifier.
func NewBridge(n Notifier) *Bridge {
	if n == nil {
		n = NopNotifier{}
	}
	return &Bridge{notifier: n}
}

// SetNotifier replaces the target. Call before the room session opens.
func (b *Bridge) SetNotifier(n Notifier) {
	if n == nil {
		n = NopNotifier{}
	}
	b.notifier = n
}

// Activity fires both external setters for an inbound activity signal.
func (b *Bridge) Activity(ActivityEvent) {
	b.notifier.SetUnreadMessages(true)
	b.notifier.SetShake(true)
}
