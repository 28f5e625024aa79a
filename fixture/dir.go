package fixture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is appended to fixture names by Dir
const DefaultExtension = ".json"

// Dir reads fixtures from files named "<name><ext>" under a root directory.
// Reads are blocking; wrap Dir in a Pool to bound how many run at once.
type Dir struct {
	root string
	ext  string
	fsys fs.FS
}

// NewDir creates a Dir store rooted at root using DefaultExtension
func NewDir(root string) *Dir {
	return &Dir{
		root: root,
		ext:  DefaultExtension,
		fsys: os.DirFS(root),
	}
}

// NewFS creates a Dir store over an fs.FS, e.g. an embed.FS
func NewFS(fsys fs.FS, ext string) *Dir {
	return &Dir{
		root: "",
		ext:  ext,
		fsys: fsys,
	}
}

// Root returns the directory the store reads from
func (d *Dir) Root() string {
	return d.root
}

// Path returns the file name used for a fixture
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name+d.ext)
}

// Fetch implements Provider. A single trailing line break is removed from
// the file content since the framing adds its own terminator.
func (d *Dir) Fetch(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !fs.ValidPath(name + d.ext) {
		return "", fmt.Errorf("invalid fixture name %q", name)
	}

	data, err := fs.ReadFile(d.fsys, name+d.ext)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Name: name, Source: d.source()}
		}
		return "", fmt.Errorf("failed to read fixture %q: %w", name, err)
	}

	text := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(text, "\r"), nil
}

// Names lists the fixtures available in the directory
func (d *Dir) Names() ([]string, error) {
	matches, err := fs.Glob(d.fsys, "*"+d.ext)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = strings.TrimSuffix(m, d.ext)
	}
	return names, nil
}

func (d *Dir) source() string {
	if d.root == "" {
		return "filesystem"
	}
	return d.root
}
