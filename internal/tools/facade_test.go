package tools

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

func newFacade(t *testing.T) (*Facade, *workspace.Workspace) {
	t.Helper()
	ws := workspace.New()
	return New(ws), ws
}

func TestReadWriteText(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("~/a.txt", "hello", "text", true)
	require.NoError(t, err)

	res, err := f.Read("~/a.txt", "text", 0)
	require.NoError(t, err)
	assert.Equal(t, "/a.txt", res.Path)
	assert.Equal(t, "hello", res.Content)
	assert.Equal(t, 5, res.Size)
}

func TestReadWriteBase64(t *testing.T) {
	f, _ := newFacade(t)
	raw := []byte{0, 1, 2, 254}
	_, err := f.Write("/bin", base64.StdEncoding.EncodeToString(raw), "base64", true)
	require.NoError(t, err)

	res, err := f.Read("/bin", "base64", 0)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(res.Content)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestReadTooLarge(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("/big", "0123456789", "text", true)
	require.NoError(t, err)
	_, err = f.Read("/big", "text", 4)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "TOO_LARGE", CodeFor(err))
}

func TestWriteNoOverwrite(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("/a", "v1", "text", false)
	require.NoError(t, err)
	_, err = f.Write("/a", "v2", "text", false)
	assert.Equal(t, "ALREADY_EXISTS", CodeFor(err))
}

func TestReservedNamespaceDenied(t *testing.T) {
	f, ws := newFacade(t)
	require.NoError(t, ws.WriteFile("/.time/state.json", []byte("{}"), true))

	_, err := f.Read("~/.time/state.json", "text", 0)
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = f.Write("~/.time/x", "y", "text", true)
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = f.List("/.time")
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = f.Stat("/.time/state.json")
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = f.Mkdir("/.time/new", true)
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = f.Delete("/.time/state.json")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, "ACCESS_DENIED", CodeFor(err))
}

func TestListElidesTimeAtRoot(t *testing.T) {
	f, ws := newFacade(t)
	require.NoError(t, ws.WriteFile("/.time/state.json", []byte("{}"), true))
	_, err := f.Write("/visible.txt", "x", "text", true)
	require.NoError(t, err)

	res, err := f.List("~/")
	require.NoError(t, err)
	assert.Equal(t, []string{"visible.txt"}, res.Entries)
}

func TestStat(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Write("/a/b.txt", "xy", "text", true)
	require.NoError(t, err)

	res, err := f.Stat("/a/b.txt")
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "file", res.Type)
	assert.Equal(t, 2, res.Size)

	res, err = f.Stat("/a")
	require.NoError(t, err)
	assert.Equal(t, "dir", res.Type)

	res, err = f.Stat("/missing")
	require.NoError(t, err)
	assert.False(t, res.Exists)
}

func TestMkdirDelete(t *testing.T) {
	f, _ := newFacade(t)
	_, err := f.Mkdir("/x/y", true)
	require.NoError(t, err)
	_, err = f.Delete("/x/y")
	require.NoError(t, err)
	res, err := f.Stat("/x/y")
	require.NoError(t, err)
	assert.False(t, res.Exists)

	_, err = f.Delete("/x/y")
	assert.Equal(t, "NOT_FOUND", CodeFor(err))
}

func TestIsBinaryHeuristic(t *testing.T) {
	assert.True(t, isBinary([]byte("abc\x00def")))
	assert.False(t, isBinary([]byte("plain text\nwith lines\n")))

	// Long sample of invalid UTF-8 trips the replacement-character ratio.
	junk := make([]byte, 1024)
	for i := range junk {
		junk[i] = 0xfe
	}
	assert.True(t, isBinary(junk))

	// Short samples never trip the ratio check.
	assert.False(t, isBinary([]byte{0xfe, 0xff, 0xfe}))
}
