package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlhannes/agent-zip-sandbox/internal/config"
	"github.com/carlhannes/agent-zip-sandbox/internal/tools"
)

func openSession(t *testing.T) (*Session, string) {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "workspace.zip")
	s, err := Open(zipPath, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, zipPath
}

func invoke(t *testing.T, s *Session, tool, args string) any {
	t.Helper()
	res, err := s.Invoke(tool, json.RawMessage(args))
	require.NoError(t, err)
	return res
}

func TestOpenCreatesMissingZip(t *testing.T) {
	_, zipPath := openSession(t)
	_, err := os.Stat(zipPath)
	assert.NoError(t, err, "an empty workspace is persisted on creation")
}

func TestOpenRefusesLockedWorkspace(t *testing.T) {
	s, zipPath := openSession(t)
	_, err := Open(zipPath, nil, nil)
	assert.ErrorIs(t, err, ErrWorkspaceLocked)
	require.NoError(t, s.Close())

	// After release the workspace can be opened again.
	s2, err := Open(zipPath, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestWritePersistsAcrossSessions(t *testing.T) {
	s, zipPath := openSession(t)
	invoke(t, s, "fs_write", `{"path":"~/data/in.csv","content":"a,b\n1,2\n"}`)
	require.NoError(t, s.Close())

	s2, err := Open(zipPath, nil, nil)
	require.NoError(t, err)
	defer s2.Close()

	res, err := s2.Invoke("fs_read_lines", json.RawMessage(`{"path":"~/data/in.csv","startLine":1,"endLine":2}`))
	require.NoError(t, err)
	lines := res.(*tools.ReadLinesResult)
	assert.Equal(t, 3, lines.TotalLines)
	require.Len(t, lines.Lines, 2)
	assert.Equal(t, "a,b", lines.Lines[0].Content)
	assert.Equal(t, "1,2", lines.Lines[1].Content)
}

func TestHistoryPersistsInsideWorkspace(t *testing.T) {
	s, zipPath := openSession(t)
	invoke(t, s, "fs_write", `{"path":"~/a","content":"v1"}`)
	invoke(t, s, "fs_write", `{"path":"~/a","content":"v2"}`)
	require.NoError(t, s.Close())

	s2, err := Open(zipPath, nil, nil)
	require.NoError(t, err)
	defer s2.Close()

	entries, cursor, err := s2.History()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, cursor)
}

func TestUndoWrite(t *testing.T) {
	s, _ := openSession(t)
	invoke(t, s, "fs_write", `{"path":"~/a","content":"v1"}`)
	invoke(t, s, "fs_write", `{"path":"~/a","content":"v2"}`)

	n, err := s.Undo(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res := invoke(t, s, "fs_read", `{"path":"~/a"}`).(*tools.ReadResult)
	assert.Equal(t, "v1", res.Content)

	_, cursor, err := s.History()
	require.NoError(t, err)
	assert.Equal(t, 1, cursor)
}

func TestRestoreAcrossGap(t *testing.T) {
	s, _ := openSession(t)
	invoke(t, s, "fs_write", `{"path":"~/f","content":"v1"}`)
	invoke(t, s, "fs_write", `{"path":"~/f","content":"v2"}`)
	invoke(t, s, "fs_write", `{"path":"~/f","content":"v3"}`)

	entries, _, err := s.History()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.NoError(t, s.Restore(entries[1].ID))
	res := invoke(t, s, "fs_read", `{"path":"~/f"}`).(*tools.ReadResult)
	assert.Equal(t, "v2", res.Content)

	_, cursor, err := s.History()
	require.NoError(t, err)
	assert.Equal(t, 2, cursor)
}

func TestMutatingToolRecordsDirChanges(t *testing.T) {
	s, _ := openSession(t)
	invoke(t, s, "fs_mkdir", `{"path":"~/newdir"}`)

	entries, _, err := s.History()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fs_mkdir", entries[0].Tool)
	assert.Equal(t, []string{"/newdir"}, entries[0].ChangedPaths)

	n, err := s.Undo(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	res := invoke(t, s, "fs_stat", `{"path":"~/newdir"}`).(*tools.StatResult)
	assert.False(t, res.Exists)
}

func TestDeleteRecordsAndUndoes(t *testing.T) {
	s, _ := openSession(t)
	invoke(t, s, "fs_write", `{"path":"~/doomed","content":"keep me"}`)
	invoke(t, s, "fs_delete", `{"path":"~/doomed"}`)

	res := invoke(t, s, "fs_stat", `{"path":"~/doomed"}`).(*tools.StatResult)
	assert.False(t, res.Exists)

	_, err := s.Undo(1)
	require.NoError(t, err)
	read := invoke(t, s, "fs_read", `{"path":"~/doomed"}`).(*tools.ReadResult)
	assert.Equal(t, "keep me", read.Content)
}

func TestReservedNamespaceThroughDispatch(t *testing.T) {
	s, _ := openSession(t)
	invoke(t, s, "fs_write", `{"path":"~/x","content":"y"}`)

	// Listing the root never shows .time even though history state exists.
	list := invoke(t, s, "fs_list", `{}`).(*tools.ListResult)
	assert.NotContains(t, list.Entries, ".time")

	_, err := s.Invoke("fs_write", json.RawMessage(`{"path":"~/.time/x","content":"y"}`))
	require.Error(t, err)
	assert.Equal(t, "ACCESS_DENIED", tools.CodeFor(err))
}

func TestSmartCaseSearchThroughDispatch(t *testing.T) {
	s, _ := openSession(t)
	invoke(t, s, "fs_write", `{"path":"~/x.txt","content":"Hello\nhello\nHELLO\n"}`)

	res := invoke(t, s, "fs_search", `{"query":"hello","path":"~/"}`).(*tools.SearchResult)
	assert.Len(t, res.Results, 3)

	res = invoke(t, s, "fs_search", `{"query":"Hello"}`).(*tools.SearchResult)
	assert.Len(t, res.Results, 1)
}

func TestFailedToolDoesNotRecord(t *testing.T) {
	s, _ := openSession(t)
	_, err := s.Invoke("fs_delete", json.RawMessage(`{"path":"~/missing"}`))
	require.Error(t, err)

	entries, _, herr := s.History()
	require.NoError(t, herr)
	assert.Empty(t, entries)
}

func TestUnknownTool(t *testing.T) {
	s, _ := openSession(t)
	_, err := s.Invoke("fs_teleport", nil)
	assert.ErrorIs(t, err, tools.ErrInvalidArgument)
}

func TestNoopWriteRecordsNothing(t *testing.T) {
	s, _ := openSession(t)
	invoke(t, s, "fs_write", `{"path":"~/a","content":"same"}`)
	invoke(t, s, "fs_write", `{"path":"~/a","content":"same"}`)

	entries, _, err := s.History()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.zip")
	require.NoError(t, atomicWriteFile(target, []byte("one"), 0o644))
	require.NoError(t, atomicWriteFile(target, []byte("two"), 0o644))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	// No temp droppings left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConfigRetentionReachesTimeMachine(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "ws.zip")
	cfg := config.Default()
	cfg.Retention.KeepRecent = 1
	cfg.Retention.MaxEntries = 2
	cfg.Retention.MergeGroup = 2
	s, err := Open(zipPath, cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	for _, v := range []string{"v1", "v2", "v3", "v4"} {
		invoke(t, s, "fs_write", `{"path":"~/f","content":"`+v+`"}`)
	}
	entries, _, err := s.History()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 2)
}
