package sandbox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
	"github.com/carlhannes/agent-zip-sandbox/internal/workspace"
)

// ErrBundleFailure signals an unresolved import, a blocked specifier, or a
// missing entry file.
var ErrBundleFailure = errors.New("bundle failure")

// deniedModules are capability-bearing node modules rejected at the bundler
// boundary as defense-in-depth; the executor would refuse them anyway.
var deniedModules = map[string]struct{}{
	"child_process":  {},
	"cluster":        {},
	"dgram":          {},
	"dns":            {},
	"http":           {},
	"http2":          {},
	"https":          {},
	"inspector":      {},
	"module":         {},
	"net":            {},
	"process":        {},
	"repl":           {},
	"tls":            {},
	"v8":             {},
	"vm":             {},
	"worker_threads": {},
}

// resolveExtensions is the probe order for extensionless workspace imports.
var resolveExtensions = []string{".ts", ".tsx", ".js", ".mjs", ".cjs", ".json"}

// Bundle resolves the entry file and its transitive imports against the
// workspace (or the shim set) and emits one self-contained CommonJS module.
// Imports that are neither workspace-local nor shimmed are rejected.
func Bundle(ws *workspace.Workspace, entryPath string) (string, error) {
	entry := vpath.Normalize(entryPath)
	if _, ok := resolveWorkspacePath(ws, entry); !ok {
		return "", fmt.Errorf("%w: entry %s not found in workspace", ErrBundleFailure, entry)
	}

	result := api.Build(api.BuildOptions{
		EntryPoints: []string{entry},
		Bundle:      true,
		Write:       false,
		Format:      api.FormatCommonJS,
		Platform:    api.PlatformNeutral,
		Target:      api.ES2017,
		LogLevel:    api.LogLevelSilent,
		Plugins:     []api.Plugin{workspacePlugin(ws)},
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			msgs = append(msgs, m.Text)
		}
		return "", fmt.Errorf("%w: %s", ErrBundleFailure, strings.Join(msgs, "; "))
	}
	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("%w: bundler produced no output", ErrBundleFailure)
	}
	return string(result.OutputFiles[0].Contents), nil
}

// workspacePlugin routes every import through workspace resolution. Shim
// names load embedded sources; relative and absolute specifiers resolve in
// the workspace with the documented extension order; anything else fails.
func workspacePlugin(ws *workspace.Workspace) api.Plugin {
	return api.Plugin{
		Name: "workspace",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				spec := args.Path
				name := strings.TrimPrefix(spec, "node:")
				importer := args.Importer
				if importer == "" {
					importer = "<entry>"
				}

				if _, ok := shimSource(name); ok {
					return api.OnResolveResult{Path: name, Namespace: "shim"}, nil
				}
				if _, denied := deniedModules[name]; denied {
					return api.OnResolveResult{}, fmt.Errorf("blocked module %q imported by %s", spec, importer)
				}

				var target string
				switch {
				case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"):
					if args.Importer == "" {
						target = vpath.Normalize(spec)
					} else {
						target = vpath.Join(vpath.Dirname(args.Importer), spec)
					}
				case strings.HasPrefix(spec, "/"), strings.HasPrefix(spec, "~/"), spec == "~":
					target = vpath.Normalize(spec)
				default:
					return api.OnResolveResult{}, fmt.Errorf("cannot resolve %q imported by %s: only workspace paths and the fs/os/path shims are available", spec, importer)
				}

				resolved, ok := resolveWorkspacePath(ws, target)
				if !ok {
					return api.OnResolveResult{}, fmt.Errorf("cannot resolve %q imported by %s: no such workspace file", spec, importer)
				}
				return api.OnResolveResult{Path: resolved, Namespace: "ws"}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: "shim"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				src, ok := shimSource(args.Path)
				if !ok {
					return api.OnLoadResult{}, fmt.Errorf("unknown shim %q", args.Path)
				}
				loader := api.LoaderJS
				return api.OnLoadResult{Contents: &src, Loader: loader}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: "ws"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				data, err := ws.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, fmt.Errorf("read %s: %v", args.Path, err)
				}
				contents := string(data)
				return api.OnLoadResult{Contents: &contents, Loader: loaderFor(args.Path)}, nil
			})
		},
	}
}

// resolveWorkspacePath probes for a module file: exact path first, then the
// extension list, then index files, in that order. First match wins.
func resolveWorkspacePath(ws *workspace.Workspace, p string) (string, bool) {
	if info, ok := ws.Stat(p); ok && info.Type == workspace.NodeFile {
		return p, true
	}
	for _, ext := range resolveExtensions {
		candidate := p + ext
		if info, ok := ws.Stat(candidate); ok && info.Type == workspace.NodeFile {
			return candidate, true
		}
	}
	for _, ext := range resolveExtensions {
		candidate := vpath.Join(p, "index"+ext)
		if info, ok := ws.Stat(candidate); ok && info.Type == workspace.NodeFile {
			return candidate, true
		}
	}
	return "", false
}

func loaderFor(p string) api.Loader {
	switch vpath.Ext(p) {
	case ".ts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".json":
		return api.LoaderJSON
	default:
		return api.LoaderJS
	}
}
