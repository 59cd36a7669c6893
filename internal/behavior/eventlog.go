package behavior

import "sync"

const defaultEventLogSize = 10000

// EventLog is the bounded history of security events the service has ingested.
// Events are immutable once appended; the log drops the oldest entries when
// full.
type EventLog struct {
	mu     sync.RWMutex
	events []SecurityEvent
	max    int
	total  uint64
}

func NewEventLog(max int) *EventLog {
	if max <= 0 {
		max = defaultEventLogSize
	}
	return &EventLog{max: max}
}

func (l *EventLog) Append(events ...SecurityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
	l.total += uint64(len(events))
	if len(l.events) > l.max {
		l.events = l.events[len(l.events)-l.max:]
	}
}

// Since returns the events appended after the given cursor, plus the cursor
// to pass next time. Events that aged out of the window before being read are
// gone; the cursor still advances past them.
func (l *EventLog) Since(cursor uint64) ([]SecurityEvent, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	dropped := l.total - uint64(len(l.events))
	start := 0
	if cursor > dropped {
		start = int(cursor - dropped)
	}
	if start > len(l.events) {
		start = len(l.events)
	}
	return append([]SecurityEvent(nil), l.events[start:]...), l.total
}

// All returns a snapshot of the log.
func (l *EventLog) All() []SecurityEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]SecurityEvent(nil), l.events...)
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
