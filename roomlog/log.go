package roomlog

import (
	"sync"
	"time"
)

// Message is a single chat message. Identity is ID: two messages with
// the same ID are the same message no matter how they arrived (history
// fetch or push echo).
type Message struct {
	ID         string
	Content    string
	SenderID   string
	SenderName string
	CreatedAt  time.Time
}

// Member is a room participant as reported by the history API.
type Member struct {
	ID   string
	Name string
}

// Log is the ordered, deduplicated message sequence for one room.
// History occupies the head and live messages the tail; prepends and
// appends target opposite ends, so the two input streams cannot corrupt
// each other's region even when interleaved. Safe for concurrent use:
// the push read loop appends while the paginator prepends.
type Log struct {
	mu       sync.Mutex
	messages []Message
	seen     map[string]struct{}
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{seen: make(map[string]struct{})}
}

// Append inserts msg at the tail. A duplicate ID is silently dropped,
// not an error: a message obtained via fetch may arrive again as a push
// echo, or a push may be delivered twice. Reports whether msg was
// inserted.
func (l *Log) Append(msg Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.seen[msg.ID]; dup {
		return false
	}
	l.seen[msg.ID] = struct{}{}
	l.messages = append(l.messages, msg)
	return true
}

// PrependBatch inserts older messages (oldest-first) before the current
// head, preserving the batch's internal order and skipping IDs already
// present. Returns the number of messages actually inserted.
func (l *Log) PrependBatch(older []Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	fresh := make([]Message, 0, len(older))
	for _, m := range older {
		if _, dup := l.seen[m.ID]; dup {
			continue
		}
		l.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return 0
	}
	l.messages = append(fresh, l.messages...)
	return len(fresh)
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Messages returns a copy of the current sequence for rendering.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}
