package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/carlhannes/agent-zip-sandbox/internal/sandbox"
	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
)

// SandboxChildCommand is the hidden CLI command the session spawns to run
// guest code in a separate process.
const SandboxChildCommand = "sandbox-child"

// ErrProtocolFailure signals a malformed sandbox response.
var ErrProtocolFailure = errors.New("protocol failure")

// ExecRequest describes one guest execution.
type ExecRequest struct {
	EntryPath string
	Argv      []string
	Env       map[string]string
	TimeoutMs int
}

// ExecOutcome is the user-visible result of js_exec.
type ExecOutcome struct {
	OK       bool   `json:"ok"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exitCode"`
	Error    string `json:"error,omitempty"`
	Stack    string `json:"stack,omitempty"`
}

// Execute serializes the workspace, spawns the sandbox child, and merges the
// returned workspace back in, recording the whole-mapping diff as one
// history entry. A wall-clock timeout slightly above the script timeout
// kills a hung child; its partial state is never merged.
func (s *Session) Execute(req ExecRequest) (*ExecOutcome, error) {
	entry := req.EntryPath
	if entry == "" {
		entry = sandbox.DefaultEntryPath
	}
	entry = vpath.Normalize(entry)
	timeoutMs := req.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = s.cfg.Sandbox.TimeoutMs
	}

	beforeFiles := s.ws.Snapshot()
	beforeDirs := s.ws.DirSet()

	zipBuf, err := s.ws.ExportZipBuffer()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(&sandbox.Request{
		ZipBase64: base64.StdEncoding.EncodeToString(zipBuf),
		EntryPath: entry,
		Argv:      req.Argv,
		Env:       req.Env,
		TimeoutMs: timeoutMs,
	})
	if err != nil {
		return nil, err
	}

	execID := uuid.NewString()
	wall := time.Duration(timeoutMs+s.cfg.Sandbox.WallSlackMs) * time.Millisecond
	s.logger.Debug("spawning sandbox", "exec_id", execID, "entry", entry, "timeout_ms", timeoutMs)

	resp, err := s.spawnChild(payload, wall)
	if err != nil {
		if errors.Is(err, sandbox.ErrExecTimeout) {
			return &ExecOutcome{
				OK:       false,
				ExitCode: sandbox.ExitCodeTimeout,
				Error:    fmt.Sprintf("sandbox exceeded the wall-clock limit of %s", wall),
			}, nil
		}
		return nil, err
	}

	outcome := &ExecOutcome{
		OK:       resp.OK,
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		Error:    resp.Error,
		Stack:    resp.Stack,
	}
	if !resp.OK {
		return outcome, nil
	}

	updated, err := base64.StdEncoding.DecodeString(resp.ZipBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable workspace in response: %v", ErrProtocolFailure, err)
	}
	if err := s.ws.ImportZip(updated); err != nil {
		return nil, err
	}

	if _, rerr := s.tm.Record("js_exec", entry, beforeFiles, s.ws.Snapshot(), beforeDirs, s.ws.DirSet()); rerr != nil {
		s.logger.Warn("history recording failed", "tool", "js_exec", "error", rerr)
	}
	if perr := s.persist(); perr != nil {
		return nil, perr
	}
	return outcome, nil
}

// spawnChild runs one sandbox child process under the wall-clock deadline.
// The child environment is scrubbed; only PATH is retained. Its stdout is
// read fully before the response is decoded.
func (s *Session) spawnChild(payload []byte, wall time.Duration) (*sandbox.Response, error) {
	childPath := s.childPath
	if childPath == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate own executable: %w", err)
		}
		childPath = self
	}

	cmd := exec.Command(childPath, SandboxChildCommand)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn sandbox child: %w", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if len(stderr.Bytes()) > 0 {
			s.logger.Debug("sandbox child stderr", "output", stderr.String())
		}
		if err != nil && stdout.Len() == 0 {
			return nil, fmt.Errorf("%w: child exited without a response: %v", ErrProtocolFailure, err)
		}
	case <-time.After(wall):
		_ = cmd.Process.Kill()
		<-done
		return nil, sandbox.ErrExecTimeout
	}

	var resp sandbox.Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed child response: %v", ErrProtocolFailure, err)
	}
	return &resp, nil
}

// SetChildPath overrides the sandbox child binary, for tests.
func (s *Session) SetChildPath(path string) { s.childPath = path }
