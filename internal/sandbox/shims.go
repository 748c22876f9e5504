package sandbox

import (
	_ "embed"
)

// Shim sources are embedded JavaScript, presented to guests in place of the
// node modules of the same name. They forward to the capability object; no
// host library is ever reachable from guest code.

//go:embed shims/fs.js
var fsShimSource string

//go:embed shims/path.js
var pathShimSource string

//go:embed shims/os.js
var osShimSource string

//go:embed shims/prelude.js
var preludeSource string

// shimSource returns the module source for a shim name, or ok=false when the
// name is not shimmed.
func shimSource(name string) (string, bool) {
	switch name {
	case "fs":
		return fsShimSource, true
	case "path":
		return pathShimSource, true
	case "os":
		return osShimSource, true
	default:
		return "", false
	}
}
