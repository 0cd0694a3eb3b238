// Package fshelper expands command line paths into the files to ingest.
package fshelper

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// Source is one file found under the ingest paths.
type Source struct {
	FS      fs.FS
	Path    string // slash separated, relative to FS
	Display string // the name shown to users and used as journal key
	Archive string // the zip file holding it, if any
}

// ReadFile returns the file's contents.
func (s Source) ReadFile() ([]byte, error) {
	return fs.ReadFile(s.FS, s.Path)
}

// Collection is the result of Collect. Close releases the opened archives.
type Collection struct {
	Sources []Source
	closers []io.Closer
}

// Close closes every archive opened by Collect.
func (c *Collection) Close() error {
	var errs error
	for _, cl := range c.closers {
		errs = multierr.Append(errs, cl.Close())
	}
	c.closers = nil
	return errs
}

// Collect expands glob patterns, walks directories and zip archives, and
// returns every regular file found, in path order. Hidden files and
// directories below a walked root are skipped.
func Collect(paths []string) (*Collection, error) {
	c := &Collection{}

	for _, pattern := range paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("invalid glob pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// No matches, try as a direct path
			matches = []string{pattern}
		}

		for _, match := range matches {
			if err := c.add(match); err != nil {
				_ = c.Close()
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Collection) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		return fmt.Errorf("error accessing path %s: %w", path, err)
	}

	switch {
	case info.IsDir():
		return c.walk(os.DirFS(path), func(p string) string { return filepath.Join(path, filepath.FromSlash(p)) }, "")
	case strings.HasSuffix(strings.ToLower(path), ".zip"):
		zr, err := OpenZip(path)
		if err != nil {
			return fmt.Errorf("error opening zip file %s: %w", path, err)
		}
		c.closers = append(c.closers, zr)
		return c.walk(zr, func(p string) string { return path + "!" + p }, path)
	default:
		c.Sources = append(c.Sources, Source{
			FS:      os.DirFS(filepath.Dir(path)),
			Path:    filepath.Base(path),
			Display: path,
		})
		return nil
	}
}

func (c *Collection) walk(fsys fs.FS, display func(string) string, archive string) error {
	var found []Source
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		found = append(found, Source{FS: fsys, Path: p, Display: display(p), Archive: archive})
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	c.Sources = append(c.Sources, found...)
	return nil
}

// ZipFS is an open zip archive
type ZipFS struct {
	*zip.Reader
	rc io.Closer
}

// Close closes the zip file
func (z *ZipFS) Close() error {
	if z.rc != nil {
		return z.rc.Close()
	}
	return nil
}

// OpenZip opens a zip file as a filesystem
func OpenZip(path string) (*ZipFS, error) {
	zipFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening zip file: %w", err)
	}

	info, err := zipFile.Stat()
	if err != nil {
		_ = zipFile.Close()
		return nil, fmt.Errorf("error getting zip file info: %w", err)
	}

	zipReader, err := zip.NewReader(zipFile, info.Size())
	if err != nil {
		_ = zipFile.Close()
		return nil, fmt.Errorf("error creating zip reader: %w", err)
	}

	return &ZipFS{Reader: zipReader, rc: zipFile}, nil
}
