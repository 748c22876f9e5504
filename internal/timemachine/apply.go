package timemachine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

// side selects which end of a change Apply drives the workspace toward.
type side string

const (
	sideBefore side = "before"
	sideAfter  side = "after"
)

// Undo walks the cursor backward up to steps entries, applying each entry's
// before-state. Returns the number of entries actually undone.
func (m *Machine) Undo(steps int) (int, error) {
	return m.walk(-steps)
}

// Redo walks the cursor forward up to steps entries, applying each entry's
// after-state. Returns the number of entries actually redone.
func (m *Machine) Redo(steps int) (int, error) {
	return m.walk(steps)
}

// walk moves the cursor by up to delta entries (negative = undo).
func (m *Machine) walk(delta int) (int, error) {
	st, err := m.loadState()
	if err != nil {
		return 0, err
	}
	applied, err := m.walkState(st, delta)
	if err != nil {
		return applied, err
	}
	if applied == 0 {
		return 0, nil
	}
	return applied, m.saveState(st)
}

func (m *Machine) walkState(st *State, delta int) (int, error) {
	applied := 0
	for delta < 0 && st.Cursor > 0 {
		entry, err := m.loadEntry(st.Entries[st.Cursor-1].ID)
		if err != nil {
			return applied, err
		}
		if err := m.apply(entry, sideBefore); err != nil {
			return applied, err
		}
		st.Cursor--
		delta++
		applied++
	}
	for delta > 0 && st.Cursor < len(st.Entries) {
		entry, err := m.loadEntry(st.Entries[st.Cursor].ID)
		if err != nil {
			return applied, err
		}
		if err := m.apply(entry, sideAfter); err != nil {
			return applied, err
		}
		st.Cursor++
		delta--
		applied++
	}
	return applied, nil
}

// Restore moves the workspace to the state immediately after entry id: undo
// down or redo up until the cursor equals index(id)+1.
func (m *Machine) Restore(id string) error {
	st, err := m.loadState()
	if err != nil {
		return err
	}
	idx := indexOf(st.Entries, id)
	if idx < 0 {
		return fmt.Errorf("%s: %w", id, ErrUnknownEntry)
	}
	target := idx + 1
	if _, err := m.walkState(st, target-st.Cursor); err != nil {
		return err
	}
	return m.saveState(st)
}

// apply drives the workspace to the given side of every change in the entry.
// Files are written from blobs or deleted; directories are created ascending
// and deleted descending by path length, with non-empty deletions silently
// skipped (unrelated state may live beneath them).
func (m *Machine) apply(entry *Entry, which side) error {
	for _, c := range entry.Changes {
		if c.Kind != "file" {
			continue
		}
		exists, blob := c.AfterExists, c.AfterBlob
		if which == sideBefore {
			exists, blob = c.BeforeExists, c.BeforeBlob
		}
		if exists {
			data, err := m.ws.ReadFile(blob)
			if err != nil {
				return fmt.Errorf("entry %s: blob for %s: %w", entry.ID, c.Path, err)
			}
			if err := m.ws.WriteFile(c.Path, data, true); err != nil {
				return fmt.Errorf("entry %s: apply %s: %w", entry.ID, c.Path, err)
			}
		} else if _, ok := m.ws.Stat(c.Path); ok {
			if err := m.ws.Delete(c.Path); err != nil {
				return fmt.Errorf("entry %s: remove %s: %w", entry.ID, c.Path, err)
			}
		}
	}

	var create, remove []string
	for _, c := range entry.Changes {
		if c.Kind != "dir" {
			continue
		}
		exists := c.AfterExists
		if which == sideBefore {
			exists = c.BeforeExists
		}
		if exists {
			create = append(create, c.Path)
		} else {
			remove = append(remove, c.Path)
		}
	}
	sort.Slice(create, func(i, j int) bool { return len(create[i]) < len(create[j]) })
	for _, p := range create {
		if err := m.ws.Mkdir(p, true); err != nil {
			return fmt.Errorf("entry %s: mkdir %s: %w", entry.ID, p, err)
		}
	}
	sort.Slice(remove, func(i, j int) bool { return len(remove[i]) > len(remove[j]) })
	for _, p := range remove {
		if err := m.ws.Delete(p); err != nil {
			if errors.Is(err, workspace.ErrNotEmpty) || errors.Is(err, workspace.ErrNotFound) {
				continue
			}
			return fmt.Errorf("entry %s: rmdir %s: %w", entry.ID, p, err)
		}
	}
	return nil
}
