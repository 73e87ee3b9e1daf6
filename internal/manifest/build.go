package manifest

import (
	"context"

	"github.com/jvs-project/ctverify/internal/archive"
	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/model"
)

// Classifier decides which archive entries are code files.
type Classifier interface {
	Classify(name string) (model.FileKind, bool)
}

// Build hashes every classified entry of archives into a new manifest.
// The same file shipped twice collapses to one entry; the same bytes under
// two different native library paths cannot be expressed and is an error.
func Build(ctx context.Context, archives []*archive.Archive, classifier Classifier) (*Manifest, error) {
	var entries []Entry
	seen := make(map[model.HashValue]Entry)

	for _, a := range archives {
		for _, e := range a.Entries() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			kind, ok := classifier.Classify(e.Name)
			if !ok {
				continue
			}
			digest, err := hashEntry(a, e)
			if err != nil {
				return nil, err
			}

			entry := Entry{Kind: kind, Digest: digest}
			if kind == model.KindNativeLibrary {
				entry.ArchivePath = e.Name
			}
			if prev, dup := seen[digest]; dup {
				if prev == entry {
					continue
				}
				return nil, errclass.ErrMalformedManifest.WithMessagef("%s: digest %s already used by another %s entry", e.Name, digest, prev.Kind)
			}
			seen[digest] = entry
			entries = append(entries, entry)
		}
	}
	return New(entries)
}

func hashEntry(a *archive.Archive, e archive.Entry) (model.HashValue, error) {
	rc, err := a.OpenEntry(e)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return integrity.Digest(rc)
}
