package tools

import (
	"fmt"
	"strings"
)

// Line is a single numbered line; numbering is 1-based.
type Line struct {
	LineNumber int    `json:"lineNumber"`
	Content    string `json:"content"`
}

// ReadLinesResult is the payload of fs_read_lines.
type ReadLinesResult struct {
	Path       string `json:"path"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	TotalLines int    `json:"totalLines"`
	Lines      []Line `json:"lines"`
}

// ReadLines returns the inclusive 1-based line range [startLine, endLine],
// clamped to the file length. Zero values select the defaults (1 and 200).
func (f *Facade) ReadLines(path string, startLine, endLine, maxBytes int) (*ReadLinesResult, error) {
	norm, err := guard(path)
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
	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 {
		endLine = 200
	}
	if endLine < startLine {
		return nil, fmt.Errorf("endLine %d before startLine %d: %w", endLine, startLine, ErrInvalidArgument)
	}
	lines := splitLines(string(data))
	total := len(lines)
	if startLine > total {
		startLine = total
	}
	if endLine > total {
		endLine = total
	}
	out := make([]Line, 0, endLine-startLine+1)
	for n := startLine; n <= endLine; n++ {
		out = append(out, Line{LineNumber: n, Content: lines[n-1]})
	}
	return &ReadLinesResult{
		Path:       norm,
		StartLine:  startLine,
		EndLine:    endLine,
		TotalLines: total,
		Lines:      out,
	}, nil
}

// PatchLinesResult is the payload of fs_patch_lines.
type PatchLinesResult struct {
	Path       string `json:"path"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	TotalLines int    `json:"totalLines"`
}

// PatchLines replaces the inclusive 1-based range [startLine, endLine] with
// the replacement text, which may itself span multiple lines. Surrounding
// lines are preserved verbatim; line terminators are normalized to LF. A
// startLine beyond the end of the file appends the replacement after the
// last line. Files containing NUL bytes are treated as text; the result of
// patching them is undefined.
func (f *Facade) PatchLines(path string, startLine, endLine int, replacement string) (*PatchLinesResult, error) {
	norm, err := guard(path)
	if err != nil {
		return nil, err
	}
	if startLine <= 0 {
		return nil, fmt.Errorf("startLine must be positive: %w", ErrInvalidArgument)
	}
	if endLine < startLine {
		return nil, fmt.Errorf("endLine %d before startLine %d: %w", endLine, startLine, ErrInvalidArgument)
	}
	data, err := f.ws.ReadFile(norm)
	if err != nil {
		return nil, err
	}
	lines := splitLines(string(data))
	total := len(lines)
	repl := splitLines(replacement)

	var patched []string
	if startLine > total {
		// Append after end.
		patched = append(append(patched, lines...), repl...)
	} else {
		if endLine > total {
			endLine = total
		}
		patched = append(patched, lines[:startLine-1]...)
		patched = append(patched, repl...)
		patched = append(patched, lines[endLine:]...)
	}
	if err := f.ws.WriteFile(norm, []byte(strings.Join(patched, "\n")), true); err != nil {
		return nil, err
	}
	return &PatchLinesResult{
		Path:       norm,
		StartLine:  startLine,
		EndLine:    endLine,
		TotalLines: len(patched),
	}, nil
}
