package service_test

import (
	"fmt"

	"github.com/jtomasevic/rbd/eventlog"
	"github.com/jtomasevic/rbd/service"
)

// inMemoryEventStore is a minimal EventStore test double, grounded on the
// teacher's InMemoryEventNetwork id-keyed map style
// (pkg/event_network/in_memory_network.go).
type inMemoryEventStore struct {
	events      []eventlog.Event
	failAppend  bool
	dropLastOne bool
}

func (s *inMemoryEventStore) HeadVersion() (int, error) {
	if len(s.events) == 0 {
		return 0, nil
	}
	last := s.events[len(s.events)-1]
	if last.Version == nil {
		return len(s.events), nil
	}
	return *last.Version, nil
}

func (s *inMemoryEventStore) Append(events []eventlog.Event) (int, error) {
	if s.failAppend {
		return 0, fmt.Errorf("simulated append failure")
	}
	toWrite := events
	if s.dropLastOne && len(events) > 0 {
		toWrite = events[:len(events)-1]
	}
	s.events = append(s.events, toWrite...)
	return len(toWrite), nil
}

func (s *inMemoryEventStore) Load(fromVersion int) ([]eventlog.Event, error) {
	var out []eventlog.Event
	for _, ev := range s.events {
		if ev.Version == nil || *ev.Version >= fromVersion {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *inMemoryEventStore) SearchByVersion(v, offset, limit int) ([]eventlog.Event, int, error) {
	var matches []eventlog.Event
	for _, ev := range s.events {
		if ev.Version != nil && *ev.Version == v {
			matches = append(matches, ev)
		}
	}
	return page(matches, offset, limit), len(matches), nil
}

func (s *inMemoryEventStore) SearchByKind(kinds []eventlog.Kind, offset, limit int) ([]eventlog.Event, int, error) {
	set := make(map[eventlog.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	var matches []eventlog.Event
	for _, ev := range s.events {
		if set[ev.Kind] {
			matches = append(matches, ev)
		}
	}
	return page(matches, offset, limit), len(matches), nil
}

func (s *inMemoryEventStore) SearchByTimestamp(prefix string, offset, limit int) ([]eventlog.Event, int, error) {
	return page(s.events, offset, limit), len(s.events), nil
}

func page(events []eventlog.Event, offset, limit int) []eventlog.Event {
	if offset >= len(events) {
		return nil
	}
	end := offset + limit
	if end > len(events) || limit <= 0 {
		end = len(events)
	}
	return events[offset:end]
}

// inMemorySnapshotStore is a minimal SnapshotStore test double.
type inMemorySnapshotStore struct {
	doc        *service.SnapshotDocument
	failSave   bool
	corruptAfterSave bool
}

func (s *inMemorySnapshotStore) Load() (*service.SnapshotDocument, error) {
	return s.doc, nil
}

func (s *inMemorySnapshotStore) Save(doc service.SnapshotDocument) error {
	if s.failSave {
		return fmt.Errorf("simulated snapshot save failure")
	}
	d := doc
	s.doc = &d
	if s.corruptAfterSave {
		s.doc.Coordination = nil
	}
	return nil
}

var (
	_ service.EventStore    = (*inMemoryEventStore)(nil)
	_ service.SnapshotStore = (*inMemorySnapshotStore)(nil)
)
