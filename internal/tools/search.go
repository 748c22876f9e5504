package tools

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

// SearchRequest carries the arguments of fs_search. Zero values select the
// documented defaults.
type SearchRequest struct {
	Query         string `json:"query"`
	PathPrefix    string `json:"path,omitempty"`
	MaxResults    int    `json:"maxResults,omitempty"`
	ContextLines  int    `json:"contextLines,omitempty"`
	MaxLineLength int    `json:"maxLineLength,omitempty"`
	// CaseSensitive defaults to smart case: sensitive iff the query contains
	// an uppercase character.
	CaseSensitive *bool `json:"caseSensitive,omitempty"`
}

// SearchMatch is one completed search result: a match line with up to
// ContextLines of before and after context.
type SearchMatch struct {
	Path             string `json:"path"`
	MatchLine        int    `json:"matchLine"`
	ContextStartLine int    `json:"contextStartLine"`
	ContextEndLine   int    `json:"contextEndLine"`
	Lines            []Line `json:"lines"`
}

// SearchResult is the payload of fs_search.
type SearchResult struct {
	Query              string        `json:"query"`
	CaseSensitive      bool          `json:"caseSensitive"`
	Results            []SearchMatch `json:"results"`
	Truncated          bool          `json:"truncated"`
	ScannedFiles       int           `json:"scannedFiles"`
	MatchedFiles       int           `json:"matchedFiles"`
	SkippedBinaryFiles int           `json:"skippedBinaryFiles"`
}

// pendingMatch is a result still consuming after-context lines.
type pendingMatch struct {
	match  SearchMatch
	absorb int
}

// Search performs a literal text search across the workspace. Binary files
// (per the NUL / invalid-UTF-8 heuristic) are skipped and counted; files
// under the reserved namespace are never scanned. Every match line opens its
// own result, including lines already consumed as a neighbor's context. The
// scan halts as soon as MaxResults completed results exist, setting Truncated
// when unscanned input remained.
func (f *Facade) Search(req SearchRequest) (*SearchResult, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query must not be empty: %w", ErrInvalidArgument)
	}
	prefix, err := guard(firstNonEmpty(req.PathPrefix, "/"))
	if err != nil {
		return nil, err
	}
	maxResults := defaultInt(req.MaxResults, 8)
	contextLines := req.ContextLines
	if contextLines <= 0 {
		if req.ContextLines < 0 {
			contextLines = 0
		} else {
			contextLines = 2
		}
	}
	maxLineLength := defaultInt(req.MaxLineLength, 240)

	caseSensitive := strings.IndexFunc(req.Query, unicode.IsUpper) >= 0
	if req.CaseSensitive != nil {
		caseSensitive = *req.CaseSensitive
	}
	needle := req.Query
	if !caseSensitive {
		needle = strings.ToLower(needle)
	}
	matchFn := func(line string) bool {
		if caseSensitive {
			return strings.Contains(line, needle)
		}
		return strings.Contains(strings.ToLower(line), needle)
	}

	targets, err := f.searchTargets(prefix)
	if err != nil {
		return nil, err
	}

	res := &SearchResult{Query: req.Query, CaseSensitive: caseSensitive, Results: []SearchMatch{}}
	for fileIdx, path := range targets {
		data, err := f.ws.ReadFile(path)
		if err != nil {
			continue
		}
		res.ScannedFiles++
		if isBinary(data) {
			res.SkippedBinaryFiles++
			continue
		}
		lines := splitLines(string(data))
		fileMatched := false

		// Ring of the last contextLines lines, the before-context snapshot.
		var ring []Line
		var pendings []*pendingMatch

		// flush moves completed pendings (in match order) into the results,
		// reporting whether the cap was reached.
		flush := func(force bool) bool {
			for len(pendings) > 0 && (force || pendings[0].absorb == 0) {
				res.Results = append(res.Results, pendings[0].match)
				pendings = pendings[1:]
				if len(res.Results) >= maxResults {
					return true
				}
			}
			return false
		}

		full := false
		lastLine := 0
		for i, raw := range lines {
			num := i + 1
			clipped := clipLine(raw, maxLineLength)

			for _, p := range pendings {
				if p.absorb > 0 {
					p.match.Lines = append(p.match.Lines, Line{LineNumber: num, Content: clipped})
					p.match.ContextEndLine = num
					p.absorb--
				}
			}
			if matchFn(raw) {
				fileMatched = true
				m := SearchMatch{
					Path:             path,
					MatchLine:        num,
					ContextStartLine: num - len(ring),
					ContextEndLine:   num,
				}
				m.Lines = append(m.Lines, ring...)
				m.Lines = append(m.Lines, Line{LineNumber: num, Content: clipped})
				pendings = append(pendings, &pendingMatch{match: m, absorb: contextLines})
			}
			if full = flush(false); full {
				lastLine = i
				break
			}

			if contextLines > 0 {
				ring = append(ring, Line{LineNumber: num, Content: clipped})
				if len(ring) > contextLines {
					ring = ring[1:]
				}
			}
		}
		if !full {
			full = flush(true)
			lastLine = len(lines) - 1
		}
		if fileMatched {
			res.MatchedFiles++
		}
		if full {
			res.Truncated = lastLine < len(lines)-1 || fileIdx < len(targets)-1 || len(pendings) > 0
			return res, nil
		}
	}
	return res, nil
}

// searchTargets resolves the search scope: a single file, or every file
// beneath a directory in ascending path order, excluding the reserved
// namespace.
func (f *Facade) searchTargets(prefix string) ([]string, error) {
	info, ok := f.ws.Stat(prefix)
	if !ok {
		return nil, fmt.Errorf("search %s: %w", prefix, workspace.ErrNotFound)
	}
	if info.Type == workspace.NodeFile {
		return []string{prefix}, nil
	}
	var targets []string
	for _, p := range f.ws.Paths() {
		if vpath.IsReserved(p) {
			continue
		}
		if prefix == "/" || p == prefix || strings.HasPrefix(p, prefix+"/") {
			targets = append(targets, p)
		}
	}
	return targets, nil
}

// clipLine truncates line to max characters, appending an ellipsis marker.
func clipLine(line string, max int) string {
	runes := []rune(line)
	if len(runes) <= max {
		return line
	}
	return string(runes[:max]) + "…"
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
