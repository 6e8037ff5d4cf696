// Package undo keeps the linear bounded history of committed edits and
// replays them through the model in either direction.
package undo

import (
	"fmt"

	"diagramcore/internal/graph"
	"diagramcore/pkg/event"
	"diagramcore/pkg/model"
)

// Manager records one history entry per committed transaction. Undo replays
// the entry before the cursor in reverse order with previous values; redo
// replays the entry at the cursor forward with new values. Replay runs
// through the model inside its own transaction, so each undo or redo fires
// one change event of its own. A manager is as single-threaded as the model
// it drives.
type Manager struct {
	model     *graph.Model
	entries   []*model.Edit
	cursor    int
	capacity  int
	replaying bool
}

// NewManager returns a manager bound to m. capacity limits the history
// length, evicting entries from the oldest end once the cursor has moved
// past them; zero means unbounded.
func NewManager(m *graph.Model, capacity int) *Manager {
	if capacity < 0 {
		capacity = 0
	}
	return &Manager{model: m, capacity: capacity}
}

// Attach subscribes the manager to the model's change events so every
// committed transaction is recorded, except the ones the manager itself
// replays. The registered listener is returned for later removal.
func (u *Manager) Attach() event.Listener {
	listener := event.ListenerFunc(func(ev event.Event) {
		if edit, ok := ev.Property(graph.PropertyEdit).(*model.Edit); ok {
			u.Record(edit)
		}
	})
	u.model.AddListener(graph.EventChange, listener)
	return listener
}

// Record appends an edit at the cursor, discarding any undone entries
// beyond it. Recording is skipped while the manager is replaying. Empty
// edits are kept and undo as no-ops.
func (u *Manager) Record(edit *model.Edit) {
	if u.replaying || edit == nil {
		return
	}
	u.entries = append(u.entries[:u.cursor], edit)
	u.cursor = len(u.entries)
	if u.capacity > 0 && len(u.entries) > u.capacity {
		drop := len(u.entries) - u.capacity
		u.entries = append([]*model.Edit(nil), u.entries[drop:]...)
		u.cursor -= drop
	}
}

// CanUndo reports whether an entry precedes the cursor.
func (u *Manager) CanUndo() bool {
	return u.cursor > 0
}

// CanRedo reports whether an undone entry follows the cursor.
func (u *Manager) CanRedo() bool {
	return u.cursor < len(u.entries)
}

// Replaying reports whether the manager is currently replaying an entry
// through the model.
func (u *Manager) Replaying() bool {
	return u.replaying
}

// Len reports the number of history entries.
func (u *Manager) Len() int {
	return len(u.entries)
}

// Clear drops the whole history.
func (u *Manager) Clear() {
	u.entries = nil
	u.cursor = 0
}

// Undo reverts the entry before the cursor. Undoing with nothing before the
// cursor is a no-op. When the model no longer matches what the entry
// expects, the history has diverged; Undo fails before touching the model
// and the cursor stays put.
func (u *Manager) Undo() error {
	if u.cursor == 0 {
		return nil
	}
	entry := u.entries[u.cursor-1]
	if err := u.precheck(entry, true); err != nil {
		return fmt.Errorf("undo: history diverged from model: %w", err)
	}
	if err := u.replay(entry, true); err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	u.cursor--
	return nil
}

// Redo re-applies the entry at the cursor. Redoing with no undone entry is
// a no-op; divergence is handled like Undo.
func (u *Manager) Redo() error {
	if u.cursor >= len(u.entries) {
		return nil
	}
	entry := u.entries[u.cursor]
	if err := u.precheck(entry, false); err != nil {
		return fmt.Errorf("redo: history diverged from model: %w", err)
	}
	if err := u.replay(entry, false); err != nil {
		return fmt.Errorf("redo: %w", err)
	}
	u.cursor++
	return nil
}

func (u *Manager) replay(entry *model.Edit, inverse bool) error {
	u.replaying = true
	defer func() { u.replaying = false }()
	return u.model.Batch(func() error {
		if inverse {
			for i := len(entry.Changes) - 1; i >= 0; i-- {
				if err := u.model.Replay(entry.Changes[i], true); err != nil {
					return err
				}
			}
			return nil
		}
		for i, ch := range entry.Changes {
			if err := u.model.Replay(ch, false); err != nil {
				return fmt.Errorf("change %d: %w", i, err)
			}
		}
		return nil
	})
}

// precheck walks an entry in replay order against a shadow of the arena's
// membership, catching divergence before any change is applied. The shadow
// tracks cells the entry itself attaches and detaches, so multi-step
// entries such as removal cascades validate exactly as they will replay.
func (u *Manager) precheck(entry *model.Edit, inverse bool) error {
	overlay := make(map[model.CellID]bool)
	var base model.Snapshot
	rebased := false
	exists := func(id model.CellID) bool {
		if v, ok := overlay[id]; ok {
			return v
		}
		if rebased {
			return base.Cell(id) != nil
		}
		return u.model.Contains(id)
	}

	check := func(ch model.Change) error {
		switch ch := ch.(type) {
		case *model.RootChange:
			snap := ch.Next
			if inverse {
				snap = ch.Previous
			}
			base = snap
			rebased = true
			overlay = make(map[model.CellID]bool)
		case *model.ChildChange:
			if ch.Child == nil {
				return fmt.Errorf("entry holds a child change without a cell record")
			}
			id := ch.Child.ID
			parent := ch.Parent
			if inverse {
				parent = ch.Previous
			}
			if parent == model.None {
				if !exists(id) {
					return model.UnknownCellError{ID: id}
				}
				overlay[id] = false
				return nil
			}
			if !exists(parent) {
				return model.UnknownCellError{ID: parent}
			}
			overlay[id] = true
		case *model.TerminalChange:
			if !exists(ch.Edge) {
				return model.UnknownCellError{ID: ch.Edge}
			}
			terminal := ch.Terminal
			if inverse {
				terminal = ch.Previous
			}
			if terminal != model.None && !exists(terminal) {
				return model.UnknownCellError{ID: terminal}
			}
		default:
			if id := ch.Subject(); id != model.None && !exists(id) {
				return model.UnknownCellError{ID: id}
			}
		}
		return nil
	}

	if inverse {
		for i := len(entry.Changes) - 1; i >= 0; i-- {
			if err := check(entry.Changes[i]); err != nil {
				return err
			}
		}
		return nil
	}
	for _, ch := range entry.Changes {
		if err := check(ch); err != nil {
			return err
		}
	}
	return nil
}
