package tools

import (
	"errors"

	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

var (
	// ErrAccessDenied signals a reserved-namespace violation.
	ErrAccessDenied = errors.New("access denied")
	// ErrTooLarge signals a read exceeding the caller's byte budget.
	ErrTooLarge = errors.New("file too large")
	// ErrInvalidArgument signals a malformed tool argument.
	ErrInvalidArgument = errors.New("invalid argument")
)

// CodeFor maps an error to its stable, machine-readable tool error code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, workspace.ErrNotADirectory):
		return "NOT_A_DIRECTORY"
	case errors.Is(err, workspace.ErrNotEmpty):
		return "NOT_EMPTY"
	case errors.Is(err, workspace.ErrExists):
		return "ALREADY_EXISTS"
	case errors.Is(err, workspace.ErrIsDirectory):
		return "NOT_A_FILE"
	case errors.Is(err, workspace.ErrCorruptArchive):
		return "CORRUPT_ARCHIVE"
	case errors.Is(err, ErrAccessDenied):
		return "ACCESS_DENIED"
	case errors.Is(err, ErrTooLarge):
		return "TOO_LARGE"
	case errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	default:
		return "ERROR"
	}
}

// ToolError is the structured failure surfaced to external callers.
type ToolError struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewToolError builds the {ok:false, error, code} object for err.
func NewToolError(err error) ToolError {
	return ToolError{OK: false, Error: err.Error(), Code: CodeFor(err)}
}
