package table

import "github.com/talentmanager/talentmanager/pkg/types"

// EventKind names a change to the table.
type EventKind string

const (
	EventAdded        EventKind = "added"
	EventReloaded     EventKind = "reloaded"
	EventReloadFailed EventKind = "reload_failed"
)

// Event describes one change. Record is set for EventAdded, Err for
// EventReloadFailed. Count is the table length after the change.
type Event struct {
	Kind   EventKind
	Record types.Record
	Count  int
	Err    error
}

// Subscribe registers fn to be called after every change, outside the table
// lock and on the goroutine that made the change. fn must not block.
func (t *Table) Subscribe(fn func(Event)) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.subs = append(t.subs, fn)
}

func (t *Table) publish(ev Event) {
	t.subMu.Lock()
	subs := make([]func(Event), len(t.subs))
	copy(subs, t.subs)
	t.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
