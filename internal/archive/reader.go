// Package archive reads zip-formatted application archives entry by entry.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/jvs-project/ctverify/pkg/errclass"
)

// DefaultMaxEntryBytes caps a single entry's uncompressed size.
const DefaultMaxEntryBytes int64 = 1 << 30

// Options configures how an archive is read.
type Options struct {
	// MaxEntryBytes caps the bytes read from one entry. Zero means DefaultMaxEntryBytes.
	MaxEntryBytes int64
}

// Entry is a regular file inside an archive.
type Entry struct {
	Name string
	Size uint64
	file *zip.File
}

// Archive is an open zip archive. It must be closed by the caller.
type Archive struct {
	path     string
	rc       *zip.ReadCloser
	entries  []Entry
	byName   map[string]int
	maxBytes int64
}

// Open opens the archive at path.
func Open(path string, opts Options) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errclass.ErrArchiveUnreadable.WithMessagef("archive not found: %s", path)
		}
		return nil, errclass.ErrArchiveUnreadable.Wrap("stat "+path, err)
	}

	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, errclass.ErrArchiveUnreadable.Wrap("open "+path, err)
	}

	maxBytes := opts.MaxEntryBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEntryBytes
	}

	a := &Archive{
		path:     path,
		rc:       rc,
		byName:   make(map[string]int, len(rc.File)),
		maxBytes: maxBytes,
	}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if _, dup := a.byName[f.Name]; !dup {
			a.byName[f.Name] = len(a.entries)
		}
		a.entries = append(a.entries, Entry{Name: f.Name, Size: f.UncompressedSize64, file: f})
	}
	return a, nil
}

// Path returns the filesystem path the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Close releases the underlying file handle.
func (a *Archive) Close() error {
	return a.rc.Close()
}

// Entries returns the regular file entries in archive order.
// Each call returns a fresh slice, so iteration can be restarted.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Lookup finds the first entry named name.
func (a *Archive) Lookup(name string) (Entry, bool) {
	i, ok := a.byName[name]
	if !ok {
		return Entry{}, false
	}
	return a.entries[i], true
}

// OpenEntry returns a stream over e's uncompressed bytes. Reading past the
// configured size cap fails with E_ARCHIVE_UNREADABLE.
func (a *Archive) OpenEntry(e Entry) (io.ReadCloser, error) {
	if e.file == nil {
		return nil, errclass.ErrEntryNotFound.WithMessagef("%s: %s", a.path, e.Name)
	}
	if e.file.UncompressedSize64 > uint64(a.maxBytes) {
		return nil, errclass.ErrArchiveUnreadable.WithMessagef("%s: entry %s too large: %d bytes", a.path, e.Name, e.file.UncompressedSize64)
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, errclass.ErrArchiveUnreadable.Wrap(fmt.Sprintf("%s: open entry %s", a.path, e.Name), err)
	}
	return &cappedReader{rc: rc, remaining: a.maxBytes, name: e.Name}, nil
}

// ReadEntry reads the whole entry named name.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	e, ok := a.Lookup(name)
	if !ok {
		return nil, errclass.ErrEntryNotFound.WithMessagef("%s: %s", a.path, name)
	}
	rc, err := a.OpenEntry(e)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errclass.ErrArchiveUnreadable.Wrap(fmt.Sprintf("%s: read entry %s", a.path, name), err)
	}
	return data, nil
}

type cappedReader struct {
	rc        io.ReadCloser
	remaining int64
	name      string
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		// One probe byte tells a clean EOF apart from an oversized entry.
		var probe [1]byte
		n, err := c.rc.Read(probe[:])
		if n > 0 {
			return 0, errclass.ErrArchiveUnreadable.WithMessagef("entry %s exceeds max size", c.name)
		}
		return 0, err
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.rc.Read(p)
	c.remaining -= int64(n)
	return n, err
}

func (c *cappedReader) Close() error {
	return c.rc.Close()
}
