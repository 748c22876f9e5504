package timemachine

import (
	"bytes"
	"sort"
	"time"

	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
)

// Record captures one mutation as a journal entry. The before/after maps are
// partial snapshots supplied by the caller: a path present in one map and
// absent from the other means the file was created or deleted. The dir sets
// are compared by symmetric difference. Returns the new entry id, or "" when
// the snapshots are byte-identical and nothing was recorded.
//
// Recording while the cursor is not at the head discards the redo tail first.
func (m *Machine) Record(tool, note string, beforeFiles, afterFiles map[string][]byte, beforeDirs, afterDirs map[string]struct{}) (string, error) {
	st, err := m.loadState()
	if err != nil {
		return "", err
	}

	// Discard the redo tail.
	discardedTail := false
	if st.Cursor < len(st.Entries) {
		for _, summary := range st.Entries[st.Cursor:] {
			m.deleteEntryArtifacts(summary.ID)
		}
		st.Entries = st.Entries[:st.Cursor]
		discardedTail = true
	}

	now := time.Now().UTC()
	id := newEntryID(now)
	changes := computeChanges(id, beforeFiles, afterFiles, beforeDirs, afterDirs)
	if len(changes) == 0 {
		if discardedTail {
			if err := m.saveState(st); err != nil {
				return "", err
			}
		}
		return "", nil
	}

	// Blobs for every present side of every file change.
	for _, c := range changes {
		if c.Kind != "file" {
			continue
		}
		if c.BeforeExists {
			if err := m.ws.WriteFile(c.BeforeBlob, beforeFiles[c.Path], true); err != nil {
				return "", err
			}
		}
		if c.AfterExists {
			if err := m.ws.WriteFile(c.AfterBlob, afterFiles[c.Path], true); err != nil {
				return "", err
			}
		}
	}

	entry := &Entry{ID: id, CreatedAt: now, Tool: tool, Note: note, Changes: changes}
	if err := m.saveEntry(entry); err != nil {
		return "", err
	}

	st.Entries = append(st.Entries, EntrySummary{
		ID:           id,
		CreatedAt:    now,
		Tool:         tool,
		ChangedPaths: changedPaths(changes),
	})
	st.Cursor = len(st.Entries)

	if err := m.compact(st); err != nil {
		return "", err
	}
	if err := m.saveState(st); err != nil {
		return "", err
	}
	return id, nil
}

// computeChanges diffs the partial snapshots into change records. Reserved
// paths and the root directory never produce changes.
func computeChanges(id string, beforeFiles, afterFiles map[string][]byte, beforeDirs, afterDirs map[string]struct{}) []Change {
	var changes []Change

	filePaths := make(map[string]struct{}, len(beforeFiles)+len(afterFiles))
	for p := range beforeFiles {
		filePaths[p] = struct{}{}
	}
	for p := range afterFiles {
		filePaths[p] = struct{}{}
	}
	for _, p := range sortedKeys(filePaths) {
		if vpath.IsReserved(p) {
			continue
		}
		before, beforeOK := beforeFiles[p]
		after, afterOK := afterFiles[p]
		if beforeOK && afterOK && bytes.Equal(before, after) {
			continue
		}
		if !beforeOK && !afterOK {
			continue
		}
		c := Change{Kind: "file", Path: p, BeforeExists: beforeOK, AfterExists: afterOK}
		if beforeOK {
			c.BeforeBlob = blobPath(id, "before", p)
			c.BeforeSize = len(before)
		}
		if afterOK {
			c.AfterBlob = blobPath(id, "after", p)
			c.AfterSize = len(after)
		}
		changes = append(changes, c)
	}

	dirPaths := make(map[string]struct{}, len(beforeDirs)+len(afterDirs))
	for p := range beforeDirs {
		dirPaths[p] = struct{}{}
	}
	for p := range afterDirs {
		dirPaths[p] = struct{}{}
	}
	for _, p := range sortedKeys(dirPaths) {
		if p == "/" || vpath.IsReserved(p) {
			continue
		}
		_, beforeOK := beforeDirs[p]
		_, afterOK := afterDirs[p]
		if beforeOK == afterOK {
			continue
		}
		changes = append(changes, Change{Kind: "dir", Path: p, BeforeExists: beforeOK, AfterExists: afterOK})
	}
	return changes
}

func changedPaths(changes []Change) []string {
	seen := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		seen[c.Path] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
