package sandbox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

// CapabilityGlobal is the well-known name under which the workspace
// capability is bound in the execution context.
const CapabilityGlobal = "__azs_capability__"

// ErrCapabilityDenied signals a guest mutation under the reserved namespace.
var ErrCapabilityDenied = errors.New("access denied")

// Capability is the sole handle through which a guest can affect the
// workspace. Reserved-namespace enforcement happens here, at the boundary:
// reads under the hidden prefix behave as nonexistent, mutations are denied.
type Capability struct {
	ws *workspace.Workspace
}

// NewCapability returns a capability over ws.
func NewCapability(ws *workspace.Workspace) *Capability {
	return &Capability{ws: ws}
}

// ReadFile returns file content encoded as utf8 text or base64.
func (c *Capability) ReadFile(path, enc string) (string, error) {
	norm := vpath.Normalize(path)
	if vpath.IsReserved(norm) {
		return "", fmt.Errorf("%s: %w", norm, workspace.ErrNotFound)
	}
	data, err := c.ws.ReadFile(norm)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(enc, "base64") {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return string(data), nil
}

// WriteFile stores utf8 or base64 content at path, overwriting.
func (c *Capability) WriteFile(path, data, enc string) error {
	norm := vpath.Normalize(path)
	if vpath.IsReserved(norm) {
		return fmt.Errorf("%s: %w", norm, ErrCapabilityDenied)
	}
	raw := []byte(data)
	if strings.EqualFold(enc, "base64") {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return fmt.Errorf("write %s: invalid base64 payload", norm)
		}
		raw = decoded
	}
	return c.ws.WriteFile(norm, raw, true)
}

// Readdir lists the children of a directory; the reserved name is elided at
// the root and the reserved subtree itself does not exist.
func (c *Capability) Readdir(path string) ([]string, error) {
	norm := vpath.Normalize(path)
	if vpath.IsReserved(norm) {
		return nil, fmt.Errorf("%s: %w", norm, workspace.ErrNotFound)
	}
	names, err := c.ws.List(norm)
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
	return names, nil
}

// Stat returns {type, size} or nil when nothing exists at path.
func (c *Capability) Stat(path string) (map[string]any, error) {
	norm := vpath.Normalize(path)
	if vpath.IsReserved(norm) {
		return nil, nil
	}
	info, ok := c.ws.Stat(norm)
	if !ok {
		return nil, nil
	}
	return map[string]any{"type": string(info.Type), "size": info.Size}, nil
}

// Mkdir creates a directory.
func (c *Capability) Mkdir(path string, recursive bool) error {
	norm := vpath.Normalize(path)
	if vpath.IsReserved(norm) {
		return fmt.Errorf("%s: %w", norm, ErrCapabilityDenied)
	}
	return c.ws.Mkdir(norm, recursive)
}

// DeletePath removes a file or empty directory.
func (c *Capability) DeletePath(path string) error {
	norm := vpath.Normalize(path)
	if vpath.IsReserved(norm) {
		return fmt.Errorf("%s: %w", norm, ErrCapabilityDenied)
	}
	return c.ws.Delete(norm)
}

// bindings is the exact surface exposed to the guest shims.
func (c *Capability) bindings() map[string]any {
	return map[string]any{
		"readFile":   c.ReadFile,
		"writeFile":  c.WriteFile,
		"readdir":    c.Readdir,
		"stat":       c.Stat,
		"mkdir":      c.Mkdir,
		"deletePath": c.DeletePath,
	}
}
