// Package staging manages the ephemeral working directory owned by a single
// pass generation call.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Area is an exclusively-owned scratch directory. It exists from New until
// Cleanup; no two calls ever share one because the directory name carries a
// random suffix in addition to the request serial.
type Area struct {
	path string
}

// New allocates a staging directory under root named <serial>-<uuid>. The
// caller must arrange for Cleanup to run on every exit path, typically via
// defer immediately after a successful New.
func New(root, serial string) (*Area, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	path := filepath.Join(root, serial+"-"+uuid.NewString())
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Area{path: path}, nil
}

// Path returns the staging directory's location on disk.
func (a *Area) Path() string {
	return a.path
}

// WriteFile places data into the staging area under name. Nested names are
// rejected: the pass layout is flat.
func (a *Area) WriteFile(name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(a.path, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// CopyFile copies the file at src into the staging area under name.
func (a *Area) CopyFile(name, src string) error {
	if err := validateName(name); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open asset %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(a.path, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return out.Close()
}

// Cleanup removes the staging directory and everything in it. Safe to call
// more than once.
func (a *Area) Cleanup() error {
	return os.RemoveAll(a.path)
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid staging file name %q: must be a bare file name", name)
	}
	return nil
}
