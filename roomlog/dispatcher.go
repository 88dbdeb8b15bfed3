package roomlog

import "encoding/json"

// dispatcher decodes transport envelopes and routes them into the
// engine. Unknown event kinds are ignored: the server may grow kinds
// this client predates.
type dispatcher struct {
	onBroadcast func(BroadcastEvent)
	onActivity  func(ActivityEvent)
	onError     func(error)
}

func (d *dispatcher) dispatch(ev Event) {
	switch ev.Event {
	case eventBroadcast:
		if d.onBroadcast == nil {
			return
		}
		var b BroadcastEvent
		if err := json.Unmarshal(ev.Data, &b); err != nil {
			d.fireError(WrapError(ErrorSerialization, "failed to unmarshal broadcast event", err))
			return
		}
		d.onBroadcast(b)
	case eventNewMessage:
		if d.onActivity == nil {
			return
		}
		var a ActivityEvent
		if err := json.Unmarshal(ev.Data, &a); err != nil {
			d.fireError(WrapError(ErrorSerialization, "failed to unmarshal newMessage event", err))
			return
		}
		d.onActivity(a)
	}
}

func (d *dispatcher) fireError(err error) {
	if d.onError != nil && err != nil {
		d.onError(err)
	}
}
