package session

import (
	"encoding/json"
	"fmt"

	"github.com/carlhannes/agent-zip-sandbox/internal/tools"
)

// Tool argument shapes, matching the external tool surface field for field.

type readArgs struct {
	Path     string `json:"path"`
	Enc      string `json:"enc,omitempty"`
	MaxBytes int    `json:"maxBytes,omitempty"`
}

type readLinesArgs struct {
	Path      string `json:"path"`
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
	MaxBytes  int    `json:"maxBytes,omitempty"`
}

type writeArgs struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Enc       string `json:"enc,omitempty"`
	Overwrite *bool  `json:"overwrite,omitempty"`
}

type patchLinesArgs struct {
	Path        string `json:"path"`
	StartLine   int    `json:"startLine"`
	EndLine     int    `json:"endLine"`
	Replacement string `json:"replacement"`
}

type listArgs struct {
	Path string `json:"path,omitempty"`
}

type statArgs struct {
	Path string `json:"path"`
}

type mkdirArgs struct {
	Path      string `json:"path"`
	Recursive *bool  `json:"recursive,omitempty"`
}

type deleteArgs struct {
	Path string `json:"path"`
}

// Invoke dispatches one named tool with JSON arguments. Mutating tools are
// wrapped with history recording and persistence; read-only tools touch the
// facade directly.
func (s *Session) Invoke(name string, rawArgs json.RawMessage) (any, error) {
	switch name {
	case "fs_read":
		var a readArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return s.facade.Read(a.Path, a.Enc, a.MaxBytes)
	case "fs_read_lines":
		var a readLinesArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return s.facade.ReadLines(a.Path, a.StartLine, a.EndLine, a.MaxBytes)
	case "fs_search":
		var a tools.SearchRequest
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return s.facade.Search(a)
	case "fs_list":
		var a listArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		if a.Path == "" {
			a.Path = "/"
		}
		return s.facade.List(a.Path)
	case "fs_stat":
		var a statArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return s.facade.Stat(a.Path)
	case "fs_write":
		var a writeArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		overwrite := a.Overwrite == nil || *a.Overwrite
		return s.mutate("fs_write", a.Path, func() (any, error) {
			return s.facade.Write(a.Path, a.Content, a.Enc, overwrite)
		})
	case "fs_patch_lines":
		var a patchLinesArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return s.mutate("fs_patch_lines", a.Path, func() (any, error) {
			return s.facade.PatchLines(a.Path, a.StartLine, a.EndLine, a.Replacement)
		})
	case "fs_mkdir":
		var a mkdirArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		recursive := a.Recursive == nil || *a.Recursive
		return s.mutate("fs_mkdir", a.Path, func() (any, error) {
			return s.facade.Mkdir(a.Path, recursive)
		})
	case "fs_delete":
		var a deleteArgs
		if err := decodeArgs(rawArgs, &a); err != nil {
			return nil, err
		}
		return s.mutate("fs_delete", a.Path, func() (any, error) {
			return s.facade.Delete(a.Path)
		})
	default:
		return nil, fmt.Errorf("unknown tool %q: %w", name, tools.ErrInvalidArgument)
	}
}

func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decode tool arguments: %v: %w", err, tools.ErrInvalidArgument)
	}
	return nil
}
