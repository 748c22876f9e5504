package workspace

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	kflate "github.com/klauspost/compress/flate"

	"github.com/carlhannes/agent-zip-sandbox/internal/vpath"
)

// ImportZip replaces the workspace state with the contents of the archive.
// Member names are workspace paths without the leading slash; directories are
// synthesized from member paths, so empty directories do not survive a
// round-trip. A nil or empty buffer yields an empty workspace.
func (w *Workspace) ImportZip(buf []byte) error {
	files := make(map[string][]byte)
	if len(buf) > 0 {
		reader, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
		if err != nil {
			return fmt.Errorf("import: %w: %v", ErrCorruptArchive, err)
		}
		for _, member := range reader.File {
			if strings.HasSuffix(member.Name, "/") {
				continue
			}
			rc, err := member.Open()
			if err != nil {
				return fmt.Errorf("import %s: %w: %v", member.Name, ErrCorruptArchive, err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return fmt.Errorf("import %s: %w: %v", member.Name, ErrCorruptArchive, err)
			}
			files[vpath.Normalize(member.Name)] = data
		}
	}
	w.files = files
	w.dirs = map[string]struct{}{"/": {}}
	for p := range files {
		w.ensureDirs(vpath.Dirname(p))
	}
	return nil
}

// ExportZipBuffer serializes the workspace as a ZIP archive. Only file
// entries are emitted; directories are implicit in member paths. Deflate
// compression is provided by klauspost/compress.
func (w *Workspace) ExportZipBuffer() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return kflate.NewWriter(out, kflate.DefaultCompression)
	})
	for _, p := range w.Paths() {
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:   strings.TrimPrefix(p, "/"),
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", p, err)
		}
		if _, err := entry.Write(w.files[p]); err != nil {
			return nil, fmt.Errorf("export %s: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return buf.Bytes(), nil
}
