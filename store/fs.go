package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

// FileStore keeps objects under one root directory. Locators are
// slash-separated keys relative to the root, sanitized per path segment.
type FileStore struct {
	root string
	log  *zap.Logger
}

func NewFileStore(root string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating object store root: %w", err)
	}
	return &FileStore{root: root, log: log.Named("store")}, nil
}

// Save writes an object. An empty key gets a generated name with an
// extension derived from the content type or the bytes themselves.
func (s *FileStore) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	locator := sanitizeKey(key)
	if len(locator) == 0 {
		locator = uuid.NewString() + extensionFor(data, contentType)
	}

	full := filepath.Join(s.root, filepath.FromSlash(locator))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating object directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("writing object %s: %w", locator, err)
	}

	s.log.Debug("Object saved", zap.String("locator", locator), zap.Int("bytes", len(data)))
	return locator, nil
}

func (s *FileStore) Download(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := sanitizeKey(locator)
	if clean != locator || len(clean) == 0 {
		return nil, fmt.Errorf("invalid object locator %q", locator)
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(locator)))
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", locator, err)
	}
	return data, nil
}

func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var locators []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		locator := filepath.ToSlash(rel)
		if strings.HasPrefix(locator, prefix) {
			locators = append(locators, locator)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	sort.Strings(locators)
	return locators, nil
}

// sanitizeKey slugs every path segment, dropping traversal attempts. The
// extension of the last segment survives slugging.
func sanitizeKey(key string) string {
	var segments []string
	for _, seg := range strings.Split(path.Clean("/"+key), "/") {
		if len(seg) == 0 || seg == "." || seg == ".." {
			continue
		}
		segments = append(segments, slugSegment(seg))
	}
	return strings.Join(segments, "/")
}

func slugSegment(seg string) string {
	ext := path.Ext(seg)
	base := strings.TrimSuffix(seg, ext)
	out := slug.Make(base)
	if len(ext) > 1 {
		out += "." + slug.Make(ext[1:])
	}
	return out
}

func extensionFor(data []byte, contentType string) string {
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		return "." + t.Extension
	}
	if idx := strings.LastIndexByte(contentType, '/'); idx >= 0 && idx < len(contentType)-1 {
		return "." + contentType[idx+1:]
	}
	return ".bin"
}
