package compare_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/ctverify/internal/archive"
	"github.com/jvs-project/ctverify/internal/compare"
	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/internal/manifest"
	"github.com/jvs-project/ctverify/internal/testutil"
	"github.com/jvs-project/ctverify/pkg/config"
	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/model"
)

var (
	dexBytes   = []byte("dex-contents")
	soArmBytes = []byte("arm64-library")
	soX86Bytes = []byte("x86-library")
)

func trustedManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New([]manifest.Entry{
		{Kind: model.KindDex, Digest: integrity.DigestBytes(dexBytes)},
		{Kind: model.KindNativeLibrary, Digest: integrity.DigestBytes(soArmBytes), ArchivePath: "lib/arm64-v8a/libfoo.so"},
		{Kind: model.KindNativeLibrary, Digest: integrity.DigestBytes(soX86Bytes), ArchivePath: "lib/x86_64/libfoo.so"},
	})
	require.NoError(t, err)
	return m
}

func open(t *testing.T, path string) *archive.Archive {
	t.Helper()
	a, err := archive.Open(path, archive.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func newComparator(t *testing.T, opts compare.Options) *compare.Comparator {
	t.Helper()
	c, err := compare.NewClassifier(nil)
	require.NoError(t, err)
	return compare.NewComparator(c, opts)
}

func TestClassify_Defaults(t *testing.T) {
	c, err := compare.NewClassifier(nil)
	require.NoError(t, err)

	kind, ok := c.Classify("classes3.dex")
	assert.True(t, ok)
	assert.Equal(t, model.KindDex, kind)

	kind, ok = c.Classify("lib/armeabi-v7a/libbar.so")
	assert.True(t, ok)
	assert.Equal(t, model.KindNativeLibrary, kind)

	for _, name := range []string{"AndroidManifest.xml", "assets/x.so.txt", "classes.DEX", "resources.arsc"} {
		_, ok := c.Classify(name)
		assert.False(t, ok, name)
	}
}

func TestClassify_CustomRules(t *testing.T) {
	c, err := compare.NewClassifier([]config.ClassifierRule{
		{Suffix: ".odex", Kind: model.KindDex},
		{Suffix: ".dex", Kind: model.KindDex},
	})
	require.NoError(t, err)

	_, ok := c.Classify("oat/base.odex")
	assert.True(t, ok)
	_, ok = c.Classify("lib/x.so")
	assert.False(t, ok)
}

func TestNewClassifier_InvalidRule(t *testing.T) {
	_, err := compare.NewClassifier([]config.ClassifierRule{{Suffix: "", Kind: model.KindDex}})
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)

	_, err = compare.NewClassifier([]config.ClassifierRule{{Suffix: ".jar", Kind: "JAR"}})
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)
}

func TestCompare_AllMatch(t *testing.T) {
	base := testutil.WriteZip(t, filepath.Join(t.TempDir(), "base.apk"),
		testutil.ZipFile{Name: "classes.dex", Data: dexBytes},
		testutil.ZipFile{Name: "lib/arm64-v8a/libfoo.so", Data: soArmBytes},
		testutil.ZipFile{Name: "AndroidManifest.xml", Data: []byte("<manifest/>")},
	)

	modified, err := newComparator(t, compare.Options{}).Compare(context.Background(), trustedManifest(t), []*archive.Archive{open(t, base)})
	require.NoError(t, err)
	assert.Empty(t, modified)
}

func TestCompare_ModifiedDex(t *testing.T) {
	base := testutil.WriteZip(t, filepath.Join(t.TempDir(), "base.apk"),
		testutil.ZipFile{Name: "classes.dex", Data: []byte("patched")},
		testutil.ZipFile{Name: "lib/arm64-v8a/libfoo.so", Data: soArmBytes},
	)

	modified, err := newComparator(t, compare.Options{}).Compare(context.Background(), trustedManifest(t), []*archive.Archive{open(t, base)})
	require.NoError(t, err)
	assert.Equal(t, []string{"classes.dex"}, modified)
}

func TestCompare_NativeLibraryMoved(t *testing.T) {
	base := testutil.WriteZip(t, filepath.Join(t.TempDir(), "base.apk"),
		testutil.ZipFile{Name: "classes.dex", Data: dexBytes},
		testutil.ZipFile{Name: "lib/x86_64/libfoo.so", Data: soArmBytes},
	)

	modified, err := newComparator(t, compare.Options{}).Compare(context.Background(), trustedManifest(t), []*archive.Archive{open(t, base)})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/x86_64/libfoo.so"}, modified)
}

func TestCompare_KindMismatch(t *testing.T) {
	base := testutil.WriteZip(t, filepath.Join(t.TempDir(), "base.apk"),
		testutil.ZipFile{Name: "lib/arm64-v8a/libfoo.dex", Data: soArmBytes},
	)

	modified, err := newComparator(t, compare.Options{}).Compare(context.Background(), trustedManifest(t), []*archive.Archive{open(t, base)})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/arm64-v8a/libfoo.dex"}, modified)
}

func TestCompare_MissingManifestEntriesNotReported(t *testing.T) {
	base := testutil.WriteZip(t, filepath.Join(t.TempDir(), "base.apk"),
		testutil.ZipFile{Name: "classes.dex", Data: dexBytes},
	)

	modified, err := newComparator(t, compare.Options{}).Compare(context.Background(), trustedManifest(t), []*archive.Archive{open(t, base)})
	require.NoError(t, err)
	assert.Empty(t, modified)
}

func TestCompare_SplitsAndWorkers(t *testing.T) {
	dir := t.TempDir()
	base := testutil.WriteZip(t, filepath.Join(dir, "base.apk"),
		testutil.ZipFile{Name: "classes.dex", Data: dexBytes},
		testutil.ZipFile{Name: "classes2.dex", Data: []byte("injected")},
	)
	split := testutil.WriteZip(t, filepath.Join(dir, "split_config.arm64_v8a.apk"),
		testutil.ZipFile{Name: "lib/arm64-v8a/libfoo.so", Data: soArmBytes},
		testutil.ZipFile{Name: "lib/arm64-v8a/libevil.so", Data: []byte("evil")},
		testutil.ZipFile{Name: "classes.dex", Data: []byte("split-dex")},
	)
	archives := []*archive.Archive{open(t, base), open(t, split)}
	want := []string{"classes.dex", "classes2.dex", "lib/arm64-v8a/libevil.so"}

	for _, workers := range []int{0, 1, 4} {
		var calls atomic.Int32
		c := newComparator(t, compare.Options{
			Workers: workers,
			Progress: func(op string, current, total int, message string) {
				calls.Add(1)
				assert.Equal(t, 5, total)
			},
		})
		modified, err := c.Compare(context.Background(), trustedManifest(t), archives)
		require.NoError(t, err)
		assert.Equal(t, want, modified, "workers=%d", workers)
		assert.EqualValues(t, 5, calls.Load())
	}
}

func TestCompare_EntryTooLarge(t *testing.T) {
	path := testutil.WriteZip(t, filepath.Join(t.TempDir(), "base.apk"),
		testutil.ZipFile{Name: "classes.dex", Data: make([]byte, 128)},
	)
	a, err := archive.Open(path, archive.Options{MaxEntryBytes: 64})
	require.NoError(t, err)
	defer a.Close()

	_, err = newComparator(t, compare.Options{}).Compare(context.Background(), trustedManifest(t), []*archive.Archive{a})
	assert.ErrorIs(t, err, errclass.ErrArchiveUnreadable)
}

func TestCompare_Canceled(t *testing.T) {
	base := testutil.WriteZip(t, filepath.Join(t.TempDir(), "base.apk"),
		testutil.ZipFile{Name: "classes.dex", Data: dexBytes},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newComparator(t, compare.Options{}).Compare(ctx, trustedManifest(t), []*archive.Archive{open(t, base)})
	assert.ErrorIs(t, err, context.Canceled)
}
