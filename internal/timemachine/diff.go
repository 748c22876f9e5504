package timemachine

import (
	"strings"
	"unicode/utf8"
)

// FileDiff describes one file operation in a diff view. Op is "file+" for a
// creation, "file-" for a deletion and "file~" for a modification.
type FileDiff struct {
	Op         string   `json:"op"`
	Path       string   `json:"path"`
	BeforeSize int      `json:"beforeSize,omitempty"`
	AfterSize  int      `json:"afterSize,omitempty"`
	Binary     bool     `json:"binary,omitempty"`
	// Start is the 1-based first differing line; EndA/EndB the 1-based last
	// differing line of each side, found by scanning up from its own bottom.
	// Zero for binary files.
	Start  int      `json:"start,omitempty"`
	EndA   int      `json:"endA,omitempty"`
	EndB   int      `json:"endB,omitempty"`
	Before []string `json:"before,omitempty"`
	After  []string `json:"after,omitempty"`
}

// DirDiff describes one directory operation: "dir+" or "dir-".
type DirDiff struct {
	Op   string `json:"op"`
	Path string `json:"path"`
}

// DiffReport is the human-readable view of one entry.
type DiffReport struct {
	ID        string     `json:"id"`
	Tool      string     `json:"tool"`
	Note      string     `json:"note,omitempty"`
	Files     []FileDiff `json:"files"`
	Dirs      []DirDiff  `json:"dirs,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
}

// Diff renders the entry's file and directory operations, with short text
// previews for file modifications. At most maxFiles file changes are
// rendered (<=0 selects 20); previews carry up to maxPreviewLines lines per
// side (<=0 selects 8).
func (m *Machine) Diff(id string, maxFiles, maxPreviewLines int) (*DiffReport, error) {
	if maxFiles <= 0 {
		maxFiles = 20
	}
	if maxPreviewLines <= 0 {
		maxPreviewLines = 8
	}
	entry, err := m.Entry(id)
	if err != nil {
		return nil, err
	}
	report := &DiffReport{ID: entry.ID, Tool: entry.Tool, Note: entry.Note}
	for _, c := range entry.Changes {
		if c.Kind == "dir" {
			op := "dir+"
			if !c.AfterExists {
				op = "dir-"
			}
			report.Dirs = append(report.Dirs, DirDiff{Op: op, Path: c.Path})
			continue
		}
		if len(report.Files) >= maxFiles {
			report.Truncated = true
			break
		}
		fd := FileDiff{Path: c.Path, BeforeSize: c.BeforeSize, AfterSize: c.AfterSize}
		switch {
		case !c.BeforeExists && c.AfterExists:
			fd.Op = "file+"
		case c.BeforeExists && !c.AfterExists:
			fd.Op = "file-"
		default:
			fd.Op = "file~"
		}
		var before, after []byte
		if c.BeforeExists {
			if before, err = m.ws.ReadFile(c.BeforeBlob); err != nil {
				return nil, err
			}
		}
		if c.AfterExists {
			if after, err = m.ws.ReadFile(c.AfterBlob); err != nil {
				return nil, err
			}
		}
		if looksBinary(before) || looksBinary(after) {
			fd.Binary = true
		} else {
			linesA := strings.Split(strings.ReplaceAll(string(before), "\r\n", "\n"), "\n")
			linesB := strings.Split(strings.ReplaceAll(string(after), "\r\n", "\n"), "\n")
			start, endA, endB := diffBounds(linesA, linesB)
			if start > 0 {
				fd.Start, fd.EndA, fd.EndB = start, endA, endB
				fd.Before = previewWindow(linesA, start, endA, maxPreviewLines)
				fd.After = previewWindow(linesB, start, endB, maxPreviewLines)
			}
		}
		report.Files = append(report.Files, fd)
	}
	return report, nil
}

// diffBounds finds the first differing line from the top and the last
// differing line from the bottom of each side, all 1-based. Returns zeros
// when the sides are identical.
func diffBounds(a, b []string) (start, endA, endB int) {
	top := 0
	for top < len(a) && top < len(b) && a[top] == b[top] {
		top++
	}
	if top == len(a) && top == len(b) {
		return 0, 0, 0
	}
	bottom := 0
	for bottom < len(a)-top && bottom < len(b)-top &&
		a[len(a)-1-bottom] == b[len(b)-1-bottom] {
		bottom++
	}
	return top + 1, len(a) - bottom, len(b) - bottom
}

// previewWindow slices out up to max lines starting at the 1-based start.
func previewWindow(lines []string, start, end, max int) []string {
	if start < 1 || start > len(lines) {
		return nil
	}
	stop := end
	if stop < start {
		stop = start - 1
	}
	if stop > len(lines) {
		stop = len(lines)
	}
	if stop-start+1 > max {
		stop = start + max - 1
	}
	if stop < start {
		return nil
	}
	return lines[start-1 : stop]
}

// looksBinary mirrors the tool facade's heuristic: NUL in the first 8 KiB or
// a high invalid-UTF-8 ratio on long samples.
func looksBinary(data []byte) bool {
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
