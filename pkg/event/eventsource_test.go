package event

import "testing"

func TestFireDispatchesInRegistrationOrder(t *testing.T) {
	var src Source
	var order []string
	src.AddListener("change", ListenerFunc(func(Event) { order = append(order, "first") }))
	src.AddListener(Wildcard, ListenerFunc(func(Event) { order = append(order, "wildcard") }))
	src.AddListener("change", ListenerFunc(func(Event) { order = append(order, "second") }))
	src.AddListener("other", ListenerFunc(func(Event) { order = append(order, "other") }))

	src.Fire(Event{Name: "change"})

	want := []string{"first", "wildcard", "second"}
	if len(order) != len(want) {
		t.Fatalf("dispatched to %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dispatched to %v, want %v", order, want)
		}
	}
}

func TestRemoveListenerDropsAllRegistrations(t *testing.T) {
	var src Source
	calls := 0
	listener := ListenerFunc(func(Event) { calls++ })
	src.AddListener("change", listener)
	src.AddListener(Wildcard, listener)
	src.AddListener("other", listener)

	src.Fire(Event{Name: "change"})
	if calls != 2 {
		t.Fatalf("expected 2 calls before removal, got %d", calls)
	}

	src.RemoveListener(listener)
	src.Fire(Event{Name: "change"})
	src.Fire(Event{Name: "other"})
	if calls != 2 {
		t.Fatalf("expected no calls after removal, got %d", calls)
	}
}

func TestSetEventsEnabledSuppressesDispatch(t *testing.T) {
	var src Source
	calls := 0
	src.AddListener(Wildcard, ListenerFunc(func(Event) { calls++ }))

	if !src.EventsEnabled() {
		t.Fatalf("events should be enabled by default")
	}
	src.SetEventsEnabled(false)
	src.Fire(Event{Name: "change"})
	if calls != 0 {
		t.Fatalf("expected suppressed dispatch, got %d calls", calls)
	}
	src.SetEventsEnabled(true)
	src.Fire(Event{Name: "change"})
	if calls != 1 {
		t.Fatalf("expected dispatch after re-enable, got %d calls", calls)
	}
}

func TestReentrantFireAndMutationDuringDispatch(t *testing.T) {
	var src Source
	var order []string
	late := ListenerFunc(func(Event) { order = append(order, "late") })
	src.AddListener("outer", ListenerFunc(func(Event) {
		order = append(order, "outer")
		// Registering during dispatch must not affect the current fire.
		src.AddListener("outer", late)
		src.Fire(Event{Name: "inner"})
	}))
	src.AddListener("inner", ListenerFunc(func(Event) { order = append(order, "inner") }))

	src.Fire(Event{Name: "outer"})
	want := []string{"outer", "inner"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("dispatch order %v, want %v", order, want)
	}

	src.Fire(Event{Name: "outer"})
	if order[len(order)-1] != "late" {
		t.Fatalf("listener added during dispatch should fire next time, got %v", order)
	}
}

func TestEventProperty(t *testing.T) {
	ev := Event{Name: "change", Properties: map[string]any{"edit": 42}}
	if ev.Property("edit") != 42 {
		t.Fatalf("expected property value")
	}
	if ev.Property("missing") != nil {
		t.Fatalf("expected nil for missing property")
	}
	if (Event{}).Property("edit") != nil {
		t.Fatalf("expected nil for event without properties")
	}
}

func TestNilListenerIgnored(t *testing.T) {
	var src Source
	src.AddListener("change", nil)
	src.RemoveListener(nil)
	src.Fire(Event{Name: "change"})
}
