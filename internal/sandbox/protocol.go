package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

// Defaults of the sandbox process protocol.
const (
	DefaultEntryPath = "~/main.ts"
	DefaultTimeoutMs = 1500

	// ExitCodeTimeout is reported when the guest exceeded its time budget,
	// whether the interpreter interrupt or the host's wall clock fired first.
	ExitCodeTimeout = 124
)

// Request is the single JSON object the sandbox child reads from stdin.
type Request struct {
	ZipBase64 string            `json:"zipBase64"`
	EntryPath string            `json:"entryPath"`
	Argv      []string          `json:"argv"`
	Env       map[string]string `json:"env"`
	TimeoutMs int               `json:"timeoutMs"`
}

// Response is the single JSON object the child writes to stdout.
type Response struct {
	OK        bool   `json:"ok"`
	Stdout    string `json:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	ExitCode  int    `json:"exitCode"`
	ZipBase64 string `json:"zipBase64,omitempty"`
	Error     string `json:"error,omitempty"`
	Stack     string `json:"stack,omitempty"`
}

// RunChild is the body of the sandbox child process: read one request from
// stdin, bundle and execute it against a private workspace copy, write one
// response to stdout. It never returns a non-nil error for guest failures;
// those travel in the response.
func RunChild(stdin io.Reader, stdout io.Writer) error {
	encoder := json.NewEncoder(stdout)
	var req Request
	if err := json.NewDecoder(stdin).Decode(&req); err != nil {
		return encoder.Encode(&Response{
			OK:       false,
			Error:    fmt.Sprintf("malformed request: %v", err),
			ExitCode: 1,
		})
	}
	return encoder.Encode(HandleRequest(&req))
}

// HandleRequest performs one bundle-and-execute cycle over the request's
// workspace copy.
func HandleRequest(req *Request) *Response {
	entry := req.EntryPath
	if entry == "" {
		entry = DefaultEntryPath
	}
	entry = vpath.Normalize(entry)
	timeoutMs := req.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}

	zipBytes, err := base64.StdEncoding.DecodeString(req.ZipBase64)
	if err != nil {
		return failure(fmt.Errorf("decode workspace archive: %w", err), 1)
	}
	ws := workspace.New()
	if err := ws.ImportZip(zipBytes); err != nil {
		return failure(err, 1)
	}

	bundle, err := Bundle(ws, entry)
	if err != nil {
		return failure(err, 1)
	}

	result, err := Execute(bundle, NewCapability(ws), ExecOptions{
		Filename: entry,
		Argv:     req.Argv,
		Env:      req.Env,
		Timeout:  time.Duration(timeoutMs) * time.Millisecond,
	})
	if err != nil {
		if errors.Is(err, ErrExecTimeout) {
			return failure(err, ExitCodeTimeout)
		}
		return failure(err, 1)
	}

	updated, err := ws.ExportZipBuffer()
	if err != nil {
		return failure(err, 1)
	}
	return &Response{
		OK:        true,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
		ExitCode:  0,
		ZipBase64: base64.StdEncoding.EncodeToString(updated),
	}
}

func failure(err error, exitCode int) *Response {
	resp := &Response{OK: false, Error: err.Error(), ExitCode: exitCode}
	var guest *GuestError
	if errors.As(err, &guest) {
		resp.Stack = guest.Stack
	}
	return resp
}
