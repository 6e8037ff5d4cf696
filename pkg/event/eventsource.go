// Package event provides the synchronous publish/subscribe primitive used by
// the graph engine to announce state transitions. Dispatch is in-process and
// single-threaded; callers that share a Source across goroutines must
// serialize access externally.
package event

// Name identifies a kind of event fired by a Source. The empty Name is the
// wildcard: listeners registered under it receive every event.
type Name string

// Wildcard subscribes a listener to all events of a Source.
const Wildcard Name = ""

// Event is the payload handed to listeners.
type Event struct {
	Name       Name
	Source     any
	Properties map[string]any
}

// Property returns the named payload entry, or nil.
func (e Event) Property(key string) any {
	if e.Properties == nil {
		return nil
	}
	return e.Properties[key]
}

// Listener receives events dispatched by a Source. Removal is by identity,
// so listener values must be comparable; implement Listener on a pointer
// type or use ListenerFunc.
type Listener interface {
	HandleEvent(ev Event)
}

// ListenerFunc wraps a plain function in a Listener with its own identity.
// Keep the returned value to remove the registration later.
func ListenerFunc(fn func(ev Event)) Listener {
	return &funcListener{fn: fn}
}

type funcListener struct {
	fn func(ev Event)
}

func (l *funcListener) HandleEvent(ev Event) { l.fn(ev) }

type registration struct {
	name     Name
	listener Listener
}

// Source dispatches named events to registered listeners synchronously and
// in registration order. The zero value is ready to use with events enabled.
// Source is intended to be embedded by the components that fire events.
type Source struct {
	listeners []registration
	disabled  bool
}

// AddListener registers listener for events with the given name. Register
// under Wildcard to receive every event. The same listener may be registered
// several times and will be invoked once per matching registration.
func (s *Source) AddListener(name Name, listener Listener) {
	if listener == nil {
		return
	}
	s.listeners = append(s.listeners, registration{name: name, listener: listener})
}

// RemoveListener drops every registration of listener regardless of name.
func (s *Source) RemoveListener(listener Listener) {
	if listener == nil {
		return
	}
	kept := s.listeners[:0]
	for _, reg := range s.listeners {
		if reg.listener != listener {
			kept = append(kept, reg)
		}
	}
	for i := len(kept); i < len(s.listeners); i++ {
		s.listeners[i] = registration{}
	}
	s.listeners = kept
}

// EventsEnabled reports whether Fire dispatches to listeners.
func (s *Source) EventsEnabled() bool {
	return !s.disabled
}

// SetEventsEnabled toggles dispatch. While disabled, Fire drops events
// without queueing them.
func (s *Source) SetEventsEnabled(enabled bool) {
	s.disabled = !enabled
}

// Fire dispatches ev to every listener whose registered name matches
// ev.Name or is the Wildcard. Dispatch iterates over a copy of the listener
// list, so listeners may add or remove registrations, or fire further
// events, from within their handler; such modifications take effect on the
// next Fire.
func (s *Source) Fire(ev Event) {
	if s.disabled || len(s.listeners) == 0 {
		return
	}
	snapshot := append([]registration(nil), s.listeners...)
	for _, reg := range snapshot {
		if reg.name == Wildcard || reg.name == ev.Name {
			reg.listener.HandleEvent(ev)
		}
	}
}
