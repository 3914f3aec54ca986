package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileSource reads a YAML or JSON document from disk. Its version is the file
// modification time and size unless the document names one.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: strings.TrimSpace(path)}
}

func (s *FileSource) Name() string {
	return "file"
}

func (s *FileSource) Fetch(ctx context.Context) (ResultSet, error) {
	if err := ctx.Err(); err != nil {
		return ResultSet{}, err
	}
	if s.path == "" {
		return ResultSet{}, ErrNoResultSet
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ResultSet{}, ErrNoResultSet
		}
		return ResultSet{}, fmt.Errorf("stat %s: %w", s.path, err)
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return ResultSet{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return Decode(raw, fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()))
}
