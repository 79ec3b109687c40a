// Package manifest computes the content-integrity digest map over a staging
// directory.
package manifest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// FileName is the serialized manifest's reserved name inside the bundle.
	FileName = "manifest.json"
	// SignatureName is the detached signature's reserved name.
	SignatureName = "signature"
)

// Build enumerates the immediate regular files of dir (the pass format is
// flat, so subdirectories are not descended into) and returns a mapping from
// file name to SHA-1 hex digest. The manifest and signature files are
// excluded by construction.
//
// SHA-1 is mandated by the consuming verifier; it is an interoperability
// constraint, not an algorithm choice this package is free to revisit.
func Build(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}

	digests := make(map[string]string, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if name == FileName || name == SignatureName {
			continue
		}
		sum, err := hashFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		digests[name] = sum
	}
	return digests, nil
}

// Serialize renders the manifest as indented JSON. encoding/json emits map
// keys in sorted order, so the output is deterministic for a given digest
// set.
func Serialize(digests map[string]string) ([]byte, error) {
	data, err := json.MarshalIndent(digests, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	return append(data, '\n'), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
