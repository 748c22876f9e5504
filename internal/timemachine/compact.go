package timemachine

import (
	"bytes"
	"time"
)

// compact folds the oldest entries together while the journal exceeds the
// retention cap. A merge group never includes entries at or beyond the
// cursor, so compaction cannot cross the undo boundary; with that
// restriction the cursor adjustment of -(group-1) is exact (the clamp is a
// guard, not a semantic).
func (m *Machine) compact(st *State) error {
	for len(st.Entries) > st.Retention.MaxEntries {
		mergeable := len(st.Entries) - st.Retention.KeepRecent
		if mergeable > st.Cursor {
			mergeable = st.Cursor
		}
		if mergeable < 2 {
			return nil
		}
		group := st.Retention.MergeGroup
		if group > mergeable {
			group = mergeable
		}
		if group < 2 {
			return nil
		}
		if err := m.mergeOldest(st, group); err != nil {
			return err
		}
	}
	return nil
}

// mergedChange tracks a per-path collapsed record during a merge: the
// earliest before side and the newest after side, with the source blob
// locations they came from.
type mergedChange struct {
	change        Change
	srcBeforeBlob string
	srcAfterBlob  string
}

// mergeOldest folds the oldest n entries into one compacted entry.
func (m *Machine) mergeOldest(st *State, n int) error {
	group := st.Entries[:n]
	oldIDs := make([]string, 0, n)
	entries := make([]*Entry, 0, n)
	for _, summary := range group {
		entry, err := m.loadEntry(summary.ID)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		oldIDs = append(oldIDs, summary.ID)
	}

	// Fold: first-seen before fields, last-seen after fields, per path.
	var order []string
	acc := make(map[string]*mergedChange)
	for _, entry := range entries {
		for _, c := range entry.Changes {
			key := c.Kind + ":" + c.Path
			if existing, ok := acc[key]; ok {
				existing.change.AfterExists = c.AfterExists
				existing.change.AfterSize = c.AfterSize
				existing.srcAfterBlob = c.AfterBlob
			} else {
				acc[key] = &mergedChange{change: c, srcBeforeBlob: c.BeforeBlob, srcAfterBlob: c.AfterBlob}
				order = append(order, key)
			}
		}
	}

	now := time.Now().UTC()
	newID := newEntryID(now)

	// Drop no-ops and rewrite surviving blobs under the new id.
	var changes []Change
	for _, key := range order {
		mc := acc[key]
		c := mc.change
		switch c.Kind {
		case "dir":
			if c.BeforeExists == c.AfterExists {
				continue
			}
			changes = append(changes, c)
		case "file":
			var before, after []byte
			var err error
			if c.BeforeExists {
				if before, err = m.ws.ReadFile(mc.srcBeforeBlob); err != nil {
					return err
				}
			}
			if c.AfterExists {
				if after, err = m.ws.ReadFile(mc.srcAfterBlob); err != nil {
					return err
				}
			}
			if c.BeforeExists && c.AfterExists && bytes.Equal(before, after) {
				continue
			}
			if !c.BeforeExists && !c.AfterExists {
				continue
			}
			c.BeforeBlob, c.AfterBlob = "", ""
			if c.BeforeExists {
				c.BeforeBlob = blobPath(newID, "before", c.Path)
				if err := m.ws.WriteFile(c.BeforeBlob, before, true); err != nil {
					return err
				}
			}
			if c.AfterExists {
				c.AfterBlob = blobPath(newID, "after", c.Path)
				if err := m.ws.WriteFile(c.AfterBlob, after, true); err != nil {
					return err
				}
			}
			changes = append(changes, c)
		}
	}

	merged := &Entry{
		ID:            newID,
		CreatedAt:     now,
		Tool:          "compact",
		Changes:       changes,
		CompactedFrom: oldIDs,
	}
	if err := m.saveEntry(merged); err != nil {
		return err
	}
	for _, id := range oldIDs {
		m.deleteEntryArtifacts(id)
	}

	summary := EntrySummary{
		ID:           newID,
		CreatedAt:    now,
		Tool:         "compact",
		Compacted:    true,
		ChangedPaths: changedPaths(changes),
	}
	st.Entries = append([]EntrySummary{summary}, st.Entries[n:]...)
	st.Cursor -= n - 1
	if st.Cursor < 0 {
		st.Cursor = 0
	}
	if st.Cursor > len(st.Entries) {
		st.Cursor = len(st.Entries)
	}
	return nil
}
