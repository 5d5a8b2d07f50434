package eventlog

// EventLog is the local, single-threaded event sequence with an undo/redo
// head, per §3/§4.4. There are no internal locks: callers serialize access
// themselves (§5).
type EventLog struct {
	events      []Event
	head        int // index of last active event; -1 when empty
	baseVersion *int
}

// NewEventLog returns an empty log with no base version.
func NewEventLog() *EventLog {
	return &EventLog{head: -1}
}

// BaseVersion returns the remote head this log was based on at last sync.
func (l *EventLog) BaseVersion() (int, bool) {
	if l.baseVersion == nil {
		return 0, false
	}
	return *l.baseVersion, true
}

// SetBaseVersion installs v as the base version without touching events.
func (l *EventLog) SetBaseVersion(v int) { l.baseVersion = &v }

// Head returns the index of the last active event, or -1 when empty.
func (l *EventLog) Head() int { return l.head }

// Len returns the total number of events, including any redo tail.
func (l *EventLog) Len() int { return len(l.events) }

// Append appends ev, discarding any redo tail irrevocably. If ev.Version is
// nil and a base version is set, the new event's version is assigned
// base_version + (head+1) + 1 before insertion.
func (l *EventLog) Append(ev Event) {
	if l.head < len(l.events)-1 {
		l.events = l.events[:l.head+1]
	}
	if ev.Version == nil && l.baseVersion != nil {
		v := *l.baseVersion + (l.head + 1) + 1
		ev.Version = &v
	}
	l.events = append(l.events, ev)
	l.head = len(l.events) - 1
}

// Undo moves the head back by one, returning whether it moved.
func (l *EventLog) Undo() bool {
	if l.head < 0 {
		return false
	}
	l.head--
	return true
}

// Redo moves the head forward by one, returning whether it moved.
func (l *EventLog) Redo() bool {
	if l.head >= len(l.events)-1 {
		return false
	}
	l.head++
	return true
}

// Active returns the active prefix events[0:head+1], excluding the redo
// tail. The returned slice is a copy; callers may not mutate the log
// through it.
func (l *EventLog) Active() []Event {
	out := make([]Event, l.head+1)
	copy(out, l.events[:l.head+1])
	return out
}

// Replace installs events as the full sequence with head at its end,
// discarding whatever was there before.
func (l *EventLog) Replace(events []Event) {
	l.events = append([]Event(nil), events...)
	l.head = len(l.events) - 1
}

// Clear empties the event list and resets head to -1. BaseVersion is kept
// by design (§4.4).
func (l *EventLog) Clear() {
	l.events = nil
	l.head = -1
}

// ResequenceVersions sets BaseVersion to startFrom and walks Active(),
// assigning versions startFrom+1, startFrom+2, ...; any redo-tail events are
// dropped and their versions cleared (they are discarded by this call, since
// resequencing is always paired with a Replace/Active collapse in practice).
func (l *EventLog) ResequenceVersions(startFrom int) {
	l.baseVersion = &startFrom
	active := l.Active()
	for i := range active {
		v := startFrom + i + 1
		active[i].Version = &v
	}
	l.Replace(active)
}
