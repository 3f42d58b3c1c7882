package form

// EventKind says what changed.
type EventKind string

const (
	EventValue  EventKind = "value"
	EventErrors EventKind = "errors"
	EventArray  EventKind = "array"
	EventState  EventKind = "state"
	EventReset  EventKind = "reset"
	EventSubmit EventKind = "submit"
)

// Event is delivered to subscribers after the change has been applied, so a
// read from inside the callback observes it. Path is empty for form-wide
// changes.
type Event struct {
	Kind EventKind
	Path string
}

// Subscribe registers fn for every event and returns a function that
// removes it. Callbacks run synchronously on the goroutine that made the
// change, outside the form lock; they may call back into the form.
func (f *Form) Subscribe(fn func(Event)) (unsubscribe func()) {
	f.subMu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.subMu.Unlock()
	return func() {
		f.subMu.Lock()
		delete(f.subs, id)
		f.subMu.Unlock()
	}
}

func (f *Form) emit(evs ...Event) {
	f.subMu.Lock()
	if len(f.subs) == 0 {
		f.subMu.Unlock()
		return
	}
	fns := make([]func(Event), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.subMu.Unlock()
	for _, ev := range evs {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
