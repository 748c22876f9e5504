package sandbox

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

func zipFor(t *testing.T, files map[string]string) string {
	t.Helper()
	ws := wsWith(t, files)
	buf, err := ws.ExportZipBuffer()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(buf)
}

func TestRunChildRoundTrip(t *testing.T) {
	req := Request{
		ZipBase64: zipFor(t, map[string]string{
			"/main.ts": `
import * as fs from "fs";
fs.mkdirSync("/out", { recursive: true });
fs.writeFileSync("/out/hello.txt", "from the guest");
console.log("wrote it");
`,
		}),
	}
	reqJSON, err := json.Marshal(&req)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, RunChild(bytes.NewReader(reqJSON), &out))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 0, resp.ExitCode)
	assert.Equal(t, "wrote it\n", resp.Stdout)

	updated, err := base64.StdEncoding.DecodeString(resp.ZipBase64)
	require.NoError(t, err)
	ws := workspace.New()
	require.NoError(t, ws.ImportZip(updated))
	data, err := ws.ReadFile("/out/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "from the guest", string(data))
}

func TestRunChildMalformedRequest(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunChild(strings.NewReader("not json"), &out))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, 1, resp.ExitCode)
	assert.Contains(t, resp.Error, "malformed request")
}

func TestHandleRequestDefaultEntry(t *testing.T) {
	resp := HandleRequest(&Request{
		ZipBase64: zipFor(t, map[string]string{
			"/main.ts": `console.log("default entry");`,
		}),
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "default entry\n", resp.Stdout)
}

func TestHandleRequestArgvAndEnv(t *testing.T) {
	resp := HandleRequest(&Request{
		ZipBase64: zipFor(t, map[string]string{
			"/main.ts": `console.log(process.argv[2], process.env.K);`,
		}),
		Argv: []string{"a1"},
		Env:  map[string]string{"K": "v"},
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "a1 v\n", resp.Stdout)
}

func TestHandleRequestBlockedImport(t *testing.T) {
	resp := HandleRequest(&Request{
		ZipBase64: zipFor(t, map[string]string{
			"/main.ts": `import * as cp from "child_process"; console.log(cp);`,
		}),
	})
	assert.False(t, resp.OK)
	assert.Equal(t, 1, resp.ExitCode)
	assert.Contains(t, resp.Error, "blocked")
}

func TestHandleRequestTimeout(t *testing.T) {
	resp := HandleRequest(&Request{
		ZipBase64: zipFor(t, map[string]string{
			"/main.ts": `for (;;) {}`,
		}),
		TimeoutMs: 100,
	})
	assert.False(t, resp.OK)
	assert.Equal(t, ExitCodeTimeout, resp.ExitCode)
}

func TestHandleRequestGuestFailureCarriesStack(t *testing.T) {
	resp := HandleRequest(&Request{
		ZipBase64: zipFor(t, map[string]string{
			"/main.ts": `throw new Error("guest exploded");`,
		}),
	})
	assert.False(t, resp.OK)
	assert.Equal(t, 1, resp.ExitCode)
	assert.Contains(t, resp.Error, "guest exploded")
	assert.NotEmpty(t, resp.Stack)
}

func TestHandleRequestCorruptArchive(t *testing.T) {
	resp := HandleRequest(&Request{
		ZipBase64: base64.StdEncoding.EncodeToString([]byte("junk")),
	})
	assert.False(t, resp.OK)
	assert.Equal(t, 1, resp.ExitCode)
}

func TestHandleRequestMissingEntry(t *testing.T) {
	resp := HandleRequest(&Request{
		ZipBase64: zipFor(t, map[string]string{"/other.ts": `console.log(1);`}),
	})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "/main.ts")
}
