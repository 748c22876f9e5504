package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSmartCase(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("~/x.txt", "Hello\nhello\nHELLO\n", "text", true)
	require.NoError(t, err)

	// Lowercase query: case-insensitive, matches all three lines.
	res, err := f.Search(SearchRequest{Query: "hello", PathPrefix: "~/"})
	require.NoError(t, err)
	assert.False(t, res.CaseSensitive)
	require.Len(t, res.Results, 3)
	assert.Equal(t, 1, res.Results[0].MatchLine)
	assert.Equal(t, 2, res.Results[1].MatchLine)
	assert.Equal(t, 3, res.Results[2].MatchLine)

	// Uppercase character in query: case-sensitive, only line 1.
	res, err = f.Search(SearchRequest{Query: "Hello"})
	require.NoError(t, err)
	assert.True(t, res.CaseSensitive)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 1, res.Results[0].MatchLine)
}

func TestSearchExplicitCaseOverride(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("/x.txt", "Hello\nhello\n", "text", true)
	require.NoError(t, err)

	insensitive := false
	res, err := f.Search(SearchRequest{Query: "Hello", CaseSensitive: &insensitive})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
}

func TestSearchContextWindow(t *testing.T) {
	f, _ := newFacade(t)
	content := "l1\nl2\nl3\nneedle\nl5\nl6\nl7\n"
	_, err := f.Write("/f.txt", content, "text", true)
	require.NoError(t, err)

	res, err := f.Search(SearchRequest{Query: "needle", ContextLines: 2})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	m := res.Results[0]
	assert.Equal(t, 4, m.MatchLine)
	assert.Equal(t, 2, m.ContextStartLine)
	assert.Equal(t, 6, m.ContextEndLine)
	require.Len(t, m.Lines, 5)
	assert.Equal(t, "l2", m.Lines[0].Content)
	assert.Equal(t, "needle", m.Lines[2].Content)
	assert.Equal(t, "l6", m.Lines[4].Content)
}

func TestSearchMatchAtFileStart(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("/f.txt", "needle\nafter\n", "text", true)
	require.NoError(t, err)

	res, err := f.Search(SearchRequest{Query: "needle"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 1, res.Results[0].ContextStartLine)
	assert.Equal(t, 1, res.Results[0].MatchLine)
}

func TestSearchMaxResultsTruncation(t *testing.T) {
	f, _ := newFacade(t)
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("needle line\nfiller\nfiller\n")
	}
	_, err := f.Write("/big.txt", sb.String(), "text", true)
	require.NoError(t, err)

	res, err := f.Search(SearchRequest{Query: "needle", MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, res.Results, 3)
	assert.True(t, res.Truncated)
}

func TestSearchNoTruncationWhenExhausted(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("/f.txt", "a\nneedle\nb\n", "text", true)
	require.NoError(t, err)

	res, err := f.Search(SearchRequest{Query: "needle"})
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
	assert.False(t, res.Truncated)
}

func TestSearchSkipsBinaryAndReserved(t *testing.T) {
	f, ws := newFacade(t)
	require.NoError(t, ws.WriteFile("/.time/entries/e.json", []byte("needle"), true))
	require.NoError(t, ws.WriteFile("/bin.dat", []byte("needle\x00needle"), true))
	_, err := f.Write("/text.txt", "needle\n", "text", true)
	require.NoError(t, err)

	res, err := f.Search(SearchRequest{Query: "needle"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "/text.txt", res.Results[0].Path)
	assert.Equal(t, 2, res.ScannedFiles)
	assert.Equal(t, 1, res.MatchedFiles)
	assert.Equal(t, 1, res.SkippedBinaryFiles)
}

func TestSearchSingleFileScope(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("/a.txt", "needle\n", "text", true)
	require.NoError(t, err)
	_, err = f.Write("/b.txt", "needle\n", "text", true)
	require.NoError(t, err)

	res, err := f.Search(SearchRequest{Query: "needle", PathPrefix: "/a.txt"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "/a.txt", res.Results[0].Path)
}

func TestSearchClipsLongLines(t *testing.T) {
	f, _ := newFacade(t)
	long := "needle " + strings.Repeat("x", 500)
	_, err := f.Write("/f.txt", long+"\n", "text", true)
	require.NoError(t, err)

	res, err := f.Search(SearchRequest{Query: "needle", MaxLineLength: 10})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	content := res.Results[0].Lines[0].Content
	assert.True(t, strings.HasSuffix(content, "…"))
	assert.Len(t, []rune(content), 11)
}

func TestSearchMissingPrefix(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Search(SearchRequest{Query: "x", PathPrefix: "/nope"})
	assert.Equal(t, "NOT_FOUND", CodeFor(err))
}
