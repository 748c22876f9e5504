// Package timemachine records a stored, bidirectional history of workspace
// mutations. Journal state, entries and content blobs live entirely inside
// the workspace under the reserved "/.time" namespace; the package operates
// on the workspace directly and is the only writer under that prefix.
package timemachine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

const (
	statePath  = vpath.Reserved + "/state.json"
	entriesDir = vpath.Reserved + "/entries"
	blobsDir   = vpath.Reserved + "/blobs"

	schemaVersion = 1
)

// ErrUnknownEntry signals a restore or diff against an id not in the log.
var ErrUnknownEntry = errors.New("unknown history entry")

// Retention bounds journal growth.
type Retention struct {
	KeepRecent int `json:"keepRecent" yaml:"keepRecent"`
	MaxEntries int `json:"maxEntries" yaml:"maxEntries"`
	MergeGroup int `json:"mergeGroup" yaml:"mergeGroup"`
}

// DefaultRetention returns the standard policy.
func DefaultRetention() Retention {
	return Retention{KeepRecent: 50, MaxEntries: 200, MergeGroup: 5}
}

// EntrySummary is the by-value journal line kept in state.json.
type EntrySummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Tool         string    `json:"tool"`
	Compacted    bool      `json:"compacted"`
	ChangedPaths []string  `json:"changedPaths"`
}

// State is the schema-versioned persistent record at /.time/state.json.
// Entries strictly before Cursor form the undoable stack; entries at and
// after it form the redoable stack.
type State struct {
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Entries   []EntrySummary `json:"entries"`
	Cursor    int            `json:"cursor"`
	Retention Retention      `json:"retention"`
}

// Change is one recorded mutation. File changes reference blobs for every
// side that exists; dir changes carry existence flags only.
type Change struct {
	Kind         string `json:"kind"` // "file" or "dir"
	Path         string `json:"path"`
	BeforeExists bool   `json:"beforeExists"`
	AfterExists  bool   `json:"afterExists"`
	BeforeBlob   string `json:"beforeBlob,omitempty"`
	AfterBlob    string `json:"afterBlob,omitempty"`
	BeforeSize   int    `json:"beforeSize,omitempty"`
	AfterSize    int    `json:"afterSize,omitempty"`
}

// Entry is the full per-entry record at /.time/entries/<id>.json.
type Entry struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	Tool          string    `json:"tool"`
	Note          string    `json:"note,omitempty"`
	Changes       []Change  `json:"changes"`
	CompactedFrom []string  `json:"compactedFrom,omitempty"`
}

// Machine is the time machine over one workspace.
//
// Like the workspace it is not goroutine-safe; the host session serializes
// access.
type Machine struct {
	ws        *workspace.Workspace
	retention Retention
	logger    *slog.Logger
}

// New returns a machine over ws with the given retention policy. Zero fields
// in retention fall back to the defaults.
func New(ws *workspace.Workspace, retention Retention, logger *slog.Logger) *Machine {
	def := DefaultRetention()
	if retention.KeepRecent <= 0 {
		retention.KeepRecent = def.KeepRecent
	}
	if retention.MaxEntries <= 0 {
		retention.MaxEntries = def.MaxEntries
	}
	if retention.MergeGroup <= 0 {
		retention.MergeGroup = def.MergeGroup
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{ws: ws, retention: retention, logger: logger}
}

// newEntryID mints an id of the form YYYY-MM-DDTHH-MM-SS-<ms>Z_<6hex>.
// Ids are lexicographically monotonic per process but not across restarts.
func newEntryID(now time.Time) string {
	now = now.UTC()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%03dZ_%s",
		now.Format("2006-01-02T15-04-05"), now.Nanosecond()/1e6, suffix)
}

func entryPath(id string) string { return entriesDir + "/" + id + ".json" }

// blobPath derives the blob location for one side of a file change; p is the
// canonical workspace path of the file.
func blobPath(id, side, p string) string {
	return blobsDir + "/" + id + "/" + side + p
}

// loadState reads state.json, returning a fresh state when none exists.
func (m *Machine) loadState() (*State, error) {
	data, err := m.ws.ReadFile(statePath)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			now := time.Now().UTC()
			return &State{
				Version:   schemaVersion,
				CreatedAt: now,
				UpdatedAt: now,
				Entries:   []EntrySummary{},
				Retention: m.retention,
			}, nil
		}
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse %s: %w", statePath, err)
	}
	if st.Retention.KeepRecent <= 0 || st.Retention.MaxEntries <= 0 || st.Retention.MergeGroup <= 0 {
		st.Retention = m.retention
	}
	return &st, nil
}

func (m *Machine) saveState(st *State) error {
	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return m.ws.WriteFile(statePath, data, true)
}

func (m *Machine) loadEntry(id string) (*Entry, error) {
	data, err := m.ws.ReadFile(entryPath(id))
	if err != nil {
		return nil, fmt.Errorf("load entry %s: %w", id, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse entry %s: %w", id, err)
	}
	return &e, nil
}

func (m *Machine) saveEntry(e *Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return m.ws.WriteFile(entryPath(e.ID), data, true)
}

// History returns the entry summaries and the cursor.
func (m *Machine) History() ([]EntrySummary, int, error) {
	st, err := m.loadState()
	if err != nil {
		return nil, 0, err
	}
	return st.Entries, st.Cursor, nil
}

// Entry loads the full record for id.
func (m *Machine) Entry(id string) (*Entry, error) {
	st, err := m.loadState()
	if err != nil {
		return nil, err
	}
	if indexOf(st.Entries, id) < 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownEntry)
	}
	return m.loadEntry(id)
}

func indexOf(entries []EntrySummary, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// deleteEntryArtifacts removes an entry's JSON and its blob subtree.
func (m *Machine) deleteEntryArtifacts(id string) {
	if err := m.ws.Delete(entryPath(id)); err != nil && !errors.Is(err, workspace.ErrNotFound) {
		m.logger.Warn("failed to delete history entry", "id", id, "error", err)
	}
	m.deleteTree(blobsDir + "/" + id)
}

// deleteTree removes every file under prefix, then the directories bottom-up.
func (m *Machine) deleteTree(prefix string) {
	for _, p := range m.ws.Paths() {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			_ = m.ws.Delete(p)
		}
	}
	var dirs []string
	for _, d := range m.ws.DirPaths() {
		if d == prefix || strings.HasPrefix(d, prefix+"/") {
			dirs = append(dirs, d)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		_ = m.ws.Delete(d)
	}
}
