// Package tools wraps workspace operations with hidden-namespace enforcement,
// argument normalization, line-oriented read/patch, and literal text search.
// It is the surface consumed by the host session's tool dispatch.
package tools

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

// DefaultMaxReadBytes bounds fs_read and fs_read_lines when the caller does
// not supply a budget.
const DefaultMaxReadBytes = 256 * 1024

// Encoding selects how file content crosses the tool boundary.
type Encoding string

const (
	EncodingText   Encoding = "text"
	EncodingBase64 Encoding = "base64"
)

// Facade mediates every tool operation over one workspace. All operations
// are synchronous; they either return a result record or a categorized error.
type Facade struct {
	ws *workspace.Workspace
}

// New returns a facade over ws.
func New(ws *workspace.Workspace) *Facade {
	return &Facade{ws: ws}
}

// guard normalizes p and rejects the reserved namespace.
func guard(p string) (string, error) {
	norm := vpath.Normalize(p)
	if vpath.IsReserved(norm) {
		return "", fmt.Errorf("%s: %w", norm, ErrAccessDenied)
	}
	return norm, nil
}

func parseEncoding(enc string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "text", "utf8", "utf-8":
		return EncodingText, nil
	case "base64":
		return EncodingBase64, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q: %w", enc, ErrInvalidArgument)
	}
}

// ReadResult is the payload of fs_read.
type ReadResult struct {
	Path     string `json:"path"`
	Encoding string `json:"enc"`
	Content  string `json:"content"`
	Size     int    `json:"size"`
}

// Read returns the file content, text or base64 encoded, rejecting files
// larger than maxBytes (<=0 selects DefaultMaxReadBytes).
func (f *Facade) Read(path, enc string, maxBytes int) (*ReadResult, error) {
	norm, err := guard(path)
	if err != nil {
		return nil, err
	}
	encoding, err := parseEncoding(enc)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxReadBytes
	}
	data, err := f.ws.ReadFile(norm)
	if err != nil {
		return nil, err
	}
	if len(data) > maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", norm, len(data), maxBytes, ErrTooLarge)
	}
	content := string(data)
	if encoding == EncodingBase64 {
		content = base64.StdEncoding.EncodeToString(data)
	}
	return &ReadResult{Path: norm, Encoding: string(encoding), Content: content, Size: len(data)}, nil
}

// WriteResult is the payload of fs_write.
type WriteResult struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

// Write stores text or base64 content at path.
func (f *Facade) Write(path, content, enc string, overwrite bool) (*WriteResult, error) {
	norm, err := guard(path)
	if err != nil {
		return nil, err
	}
	encoding, err := parseEncoding(enc)
	if err != nil {
		return nil, err
	}
	data := []byte(content)
	if encoding == EncodingBase64 {
		data, err = base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("decode base64 content: %w", ErrInvalidArgument)
		}
	}
	if err := f.ws.WriteFile(norm, data, overwrite); err != nil {
		return nil, err
	}
	return &WriteResult{Path: norm, Size: len(data)}, nil
}

// ListResult is the payload of fs_list.
type ListResult struct {
	Path    string   `json:"path"`
	Entries []string `json:"entries"`
}

// List returns the sorted children of path. Listing the root elides the
// reserved ".time" name.
func (f *Facade) List(path string) (*ListResult, error) {
	norm, err := guard(path)
	if err != nil {
		return nil, err
	}
	names, err := f.ws.List(norm)
	if err != nil {
		return nil, err
	}
	if norm == "/" {
		filtered := names[:0]
		for _, name := range names {
			if name != ".time" {
				filtered = append(filtered, name)
			}
		}
		names = filtered
	}
	return &ListResult{Path: norm, Entries: names}, nil
}

// StatResult is the payload of fs_stat.
type StatResult struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Type   string `json:"type,omitempty"`
	Size   int    `json:"size"`
}

// Stat reports whether path exists and what it is.
func (f *Facade) Stat(path string) (*StatResult, error) {
	norm, err := guard(path)
	if err != nil {
		return nil, err
	}
	info, ok := f.ws.Stat(norm)
	if !ok {
		return &StatResult{Path: norm, Exists: false}, nil
	}
	return &StatResult{Path: norm, Exists: true, Type: string(info.Type), Size: info.Size}, nil
}

// MkdirResult is the payload of fs_mkdir.
type MkdirResult struct {
	Path string `json:"path"`
}

// Mkdir creates a directory.
func (f *Facade) Mkdir(path string, recursive bool) (*MkdirResult, error) {
	norm, err := guard(path)
	if err != nil {
		return nil, err
	}
	if err := f.ws.Mkdir(norm, recursive); err != nil {
		return nil, err
	}
	return &MkdirResult{Path: norm}, nil
}

// DeleteResult is the payload of fs_delete.
type DeleteResult struct {
	Path string `json:"path"`
}

// Delete removes a file or empty directory.
func (f *Facade) Delete(path string) (*DeleteResult, error) {
	norm, err := guard(path)
	if err != nil {
		return nil, err
	}
	if err := f.ws.Delete(norm); err != nil {
		return nil, err
	}
	return &DeleteResult{Path: norm}, nil
}

// splitLines splits content on CRLF or LF line terminators. The terminators
// are not part of the returned lines; a trailing newline yields a final
// empty line, so "a\n" has two lines.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// isBinary applies the binary-detection heuristic to data: a NUL byte within
// the first 8 KiB, or more than 5% invalid UTF-8 sequences on samples of at
// least 256 bytes. It is a heuristic, not a guarantee.
func isBinary(data []byte) bool {
	sample := data
	if len(sample) > 8*1024 {
		sample = sample[:8*1024]
	}
	for _, b := range sample {
		if b == 0 {
			return true
		}
	}
	if len(sample) < 256 {
		return false
	}
	var runes, invalid int
	for i := 0; i < len(sample); {
		r, size := utf8.DecodeRune(sample[i:])
		runes++
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		i += size
	}
	return runes > 0 && invalid*20 > runes
}
