// Package archive packs a staging directory into the final in-memory zip.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Build packs every immediate regular file of dir into a zip archive held
// entirely in memory. Entry names are bare file names: the consumer's
// unpacking logic assumes a flat layout and silently mis-parses nested
// entries, so flattening is enforced here rather than assumed.
//
// Compression is maximal. The archive goes out over a network response, so
// the size/CPU tradeoff is biased toward size.
func Build(dir string) (*bytes.Buffer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	buf := bytes.NewBuffer(nil)
	writer := zip.NewWriter(buf)
	writer.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, name := range names {
		if err := addEntry(writer, dir, name); err != nil {
			_ = writer.Close()
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf, nil
}

func addEntry(writer *zip.Writer, dir, name string) error {
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("nested archive entry %q rejected: pass layout is flat", name)
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	entry, err := writer.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
