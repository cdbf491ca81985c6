// Package archive builds Walk abstraction on top of "archive/zip" for
// in-memory package buffers.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/text/encoding"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The file argument is the zip.File structure for file in
// archive which satisfies match condition. If an error is returned, processing
// stops.
type WalkFunc func(file *zip.File) error

// Walk walks the all files in the zipped buffer which satisfy match condition,
// calling walkFn for each item. Entries with path traversal components
// ("..") or absolute paths are rejected to prevent Zip Slip attacks.
func Walk(data []byte, pattern string, walkFn WalkFunc) error {

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, pattern) {
			if err := walkFn(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadAll opens file in archive and reads it fully.
func ReadAll(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// DecodedName returns entry name converting it from the forced code page when
// entry is marked as non UTF-8. Zip "standard" does not define file name
// encoding so old authoring tools may use archaic code pages.
func DecodedName(f *zip.File, cp encoding.Encoding) string {
	name := f.FileHeader.Name
	if cp == nil || !f.FileHeader.NonUTF8 {
		return name
	}
	if n, err := cp.NewDecoder().String(name); err == nil {
		return n
	}
	return name
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
