package align

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirLoader serves pre-computed alignments stored as <clip-stem>.json in a
// directory, one file per clip.
type DirLoader struct {
	dir string
}

// NewDirLoader creates a loader reading alignments from dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

// Load checks that the directory exists.
func (l *DirLoader) Load(ctx context.Context) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("align: context cancelled: %w", err)
	}
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("align: alignment directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("align: %s is not a directory", l.dir)
	}
	return dirModel{dir: l.dir}, nil
}

type dirModel struct {
	dir string
}

var _ Loader = (*DirLoader)(nil)
var _ Model = dirModel{}

func (m dirModel) Align(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("align: context cancelled: %w", err)
	}
	if req.ClipPath == "" {
		return nil, ErrClipPathRequired
	}

	base := filepath.Base(req.ClipPath)
	path := filepath.Join(m.dir, strings.TrimSuffix(base, filepath.Ext(base))+".json")
	data, err := os.ReadFile(path) // #nosec G304 - path is derived from the alignment directory
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoAlignment, base)
	}
	if err != nil {
		return nil, fmt.Errorf("align: read alignment: %w", err)
	}
	return data, nil
}
