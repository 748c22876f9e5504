// Package session orchestrates the host side: it owns the workspace and its
// ZIP on disk, routes tool requests through the facade, records history, and
// runs guest code in a separate sandbox process.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/carlhannes/agent-zip-sandbox/internal/config"
	"github.com/carlhannes/agent-zip-sandbox/internal/timemachine"
	"github.com/carlhannes/agent-zip-sandbox/internal/tools"
	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

// Session is the single owner of one workspace. It is single-threaded and
// cooperative: all tool and history operations are synchronous, and no other
// invocation may begin while persistence or a sandbox spawn is in flight.
type Session struct {
	zipPath string
	cfg     *config.Config
	logger  *slog.Logger

	ws     *workspace.Workspace
	facade *tools.Facade
	tm     *timemachine.Machine
	lock   *fileLock

	// childPath overrides the executable spawned for sandbox children; empty
	// means this process's own binary.
	childPath string
}

// Open loads (or creates) the workspace ZIP at zipPath and takes ownership
// of it. Close releases the lock.
func Open(zipPath string, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	lock, err := acquireLock(zipPath)
	if err != nil {
		return nil, err
	}

	ws := workspace.New()
	s := &Session{
		zipPath: zipPath,
		cfg:     cfg,
		logger:  logger,
		ws:      ws,
		facade:  tools.New(ws),
		tm:      timemachine.New(ws, cfg.Retention, logger),
		lock:    lock,
	}

	data, err := os.ReadFile(zipPath)
	switch {
	case err == nil:
		if err := ws.ImportZip(data); err != nil {
			_ = lock.release()
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := s.persist(); err != nil {
			_ = lock.release()
			return nil, err
		}
	default:
		_ = lock.release()
		return nil, fmt.Errorf("read workspace %s: %w", zipPath, err)
	}
	return s, nil
}

// Close releases the workspace lock.
func (s *Session) Close() error {
	return s.lock.release()
}

// Workspace exposes the underlying tree, primarily for tests.
func (s *Session) Workspace() *workspace.Workspace { return s.ws }

// persist writes the workspace ZIP atomically: temp sibling, then rename.
func (s *Session) persist() error {
	buf, err := s.ws.ExportZipBuffer()
	if err != nil {
		return err
	}
	return atomicWriteFile(s.zipPath, buf, 0o644)
}

// snapshot is a minimal before/after capture of one target path.
type snapshot struct {
	files map[string][]byte
	dirs  map[string]struct{}
}

func (s *Session) captureTarget(p string) snapshot {
	snap := snapshot{files: map[string][]byte{}, dirs: map[string]struct{}{}}
	if data, err := s.ws.ReadFile(p); err == nil {
		snap.files[p] = data
	}
	if info, ok := s.ws.Stat(p); ok && info.Type == workspace.NodeDir {
		snap.dirs[p] = struct{}{}
	}
	return snap
}

// mutate wraps a mutating tool invocation: capture the target before and
// after, record the change, persist. History recording failures are logged
// and swallowed so the primary operation is never blocked; persistence
// failures are fatal for the call.
func (s *Session) mutate(tool, target string, fn func() (any, error)) (any, error) {
	norm := vpath.Normalize(target)
	before := s.captureTarget(norm)
	res, err := fn()
	if err != nil {
		return nil, err
	}
	after := s.captureTarget(norm)
	if _, rerr := s.tm.Record(tool, norm, before.files, after.files, before.dirs, after.dirs); rerr != nil {
		s.logger.Warn("history recording failed", "tool", tool, "path", norm, "error", rerr)
	}
	if perr := s.persist(); perr != nil {
		return nil, perr
	}
	return res, nil
}

// History returns the journal summaries and the cursor.
func (s *Session) History() ([]timemachine.EntrySummary, int, error) {
	return s.tm.History()
}

// Undo reverses up to steps entries and persists.
func (s *Session) Undo(steps int) (int, error) {
	n, err := s.tm.Undo(steps)
	if err != nil {
		return n, err
	}
	if n > 0 {
		if perr := s.persist(); perr != nil {
			return n, perr
		}
	}
	return n, nil
}

// Redo re-applies up to steps entries and persists.
func (s *Session) Redo(steps int) (int, error) {
	n, err := s.tm.Redo(steps)
	if err != nil {
		return n, err
	}
	if n > 0 {
		if perr := s.persist(); perr != nil {
			return n, perr
		}
	}
	return n, nil
}

// Restore moves the workspace to the state just after the given entry and
// persists.
func (s *Session) Restore(id string) error {
	if err := s.tm.Restore(id); err != nil {
		return err
	}
	return s.persist()
}

// Diff renders the diff view of one entry.
func (s *Session) Diff(id string, maxFiles, maxPreviewLines int) (*timemachine.DiffReport, error) {
	return s.tm.Diff(id, maxFiles, maxPreviewLines)
}
