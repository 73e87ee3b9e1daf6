package compare

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jvs-project/ctverify/internal/archive"
	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/internal/manifest"
	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/logging"
	"github.com/jvs-project/ctverify/pkg/model"
	"github.com/jvs-project/ctverify/pkg/progress"
)

// Options configures a Comparator.
type Options struct {
	// Workers bounds concurrent entry hashing. Values below 2 hash sequentially.
	Workers int
	// Progress is called once per hashed entry.
	Progress progress.Callback
	Logger   *logging.Logger
}

// Comparator hashes classified archive entries and checks them against a manifest.
type Comparator struct {
	classifier *Classifier
	workers    int
	progress   progress.Callback
	log        *logging.Logger
}

// NewComparator creates a comparator using classifier.
func NewComparator(classifier *Classifier, opts Options) *Comparator {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	log := opts.Logger
	if log == nil {
		log = logging.Global()
	}
	return &Comparator{
		classifier: classifier,
		workers:    workers,
		progress:   opts.Progress,
		log:        log,
	}
}

type job struct {
	archive *archive.Archive
	entry   archive.Entry
	kind    model.FileKind
}

// Compare returns the sorted names of classified entries that the manifest
// does not vouch for. An entry is modified when its digest is unknown, when
// the manifest lists the digest under another kind, or when a native library
// sits at a different path than the manifest records. Manifest entries with no
// counterpart in any archive are not reported.
func (c *Comparator) Compare(ctx context.Context, m *manifest.Manifest, archives []*archive.Archive) ([]string, error) {
	var jobs []job
	for _, a := range archives {
		for _, e := range a.Entries() {
			if kind, ok := c.classifier.Classify(e.Name); ok {
				jobs = append(jobs, job{archive: a, entry: e, kind: kind})
			}
		}
	}

	p := progress.New("hash", len(jobs), c.progress)
	var (
		mu       sync.Mutex
		modified []string
	)
	check := func(j job) error {
		digest, err := hashEntry(j.archive, j.entry)
		if err != nil {
			return err
		}
		ok := matches(m, j, digest)
		if !ok {
			c.log.Debug("entry modified", map[string]any{
				"archive": j.archive.Path(),
				"entry":   j.entry.Name,
				"sha256":  digest.String(),
			})
			mu.Lock()
			modified = append(modified, j.entry.Name)
			mu.Unlock()
		}
		p.Increment(j.entry.Name)
		return nil
	}

	if c.workers == 1 {
		for _, j := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := check(j); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for _, j := range jobs {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return check(j)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sort.Strings(modified)
	return modified, nil
}

func matches(m *manifest.Manifest, j job, digest model.HashValue) bool {
	expected, ok := m.Lookup(digest)
	if !ok || expected.Kind != j.kind {
		return false
	}
	if j.kind == model.KindNativeLibrary && expected.ArchivePath != j.entry.Name {
		return false
	}
	return true
}

func hashEntry(a *archive.Archive, e archive.Entry) (model.HashValue, error) {
	rc, err := a.OpenEntry(e)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	digest, err := integrity.Digest(rc)
	if err != nil {
		if code := errclass.Code(err); code != errclass.ErrUnknown.Code {
			return "", err
		}
		return "", errclass.ErrArchiveUnreadable.Wrap(a.Path()+": hash "+e.Name, err)
	}
	return digest, nil
}
