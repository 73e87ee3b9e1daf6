// Package manifest models the signed list of expected code file digests.
package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"

	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/model"
	"github.com/jvs-project/ctverify/pkg/pathutil"
)

//go:embed manifest.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		schema, schemaErr = compiler.Compile(schemaJSON)
	})
	return schema, schemaErr
}

// Entry is one expected code file.
type Entry struct {
	Kind   model.FileKind  `json:"type"`
	Digest model.HashValue `json:"sha256"`
	// ArchivePath is the entry name inside its archive. Native libraries only.
	ArchivePath string `json:"apkPath,omitempty"`
	// Path is the source path in the publisher's build, for display.
	Path string `json:"path,omitempty"`
}

type document struct {
	CodeRelatedFile []Entry `json:"codeRelatedFile"`
}

// Manifest is an ordered, digest-indexed set of entries.
type Manifest struct {
	entries []Entry
	index   map[model.HashValue]int
}

// New validates entries and indexes them by digest. Digests are lowercased;
// a digest may appear only once.
func New(entries []Entry) (*Manifest, error) {
	m := &Manifest{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[model.HashValue]int, len(entries)),
	}
	for i, e := range entries {
		e.Digest = e.Digest.Normalize()
		if err := validateEntry(e); err != nil {
			return nil, errclass.ErrMalformedManifest.WithMessagef("entry %d: %v", i, err)
		}
		if prev, dup := m.index[e.Digest]; dup {
			return nil, errclass.ErrMalformedManifest.WithMessagef("entry %d: digest %s already listed by entry %d", i, e.Digest, prev)
		}
		m.index[e.Digest] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m, nil
}

func validateEntry(e Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown type %q", e.Kind)
	}
	if len(e.Digest) != 64 || strings.Trim(string(e.Digest), "0123456789abcdef") != "" {
		return fmt.Errorf("sha256 must be 64 hex characters: %q", e.Digest)
	}
	switch e.Kind {
	case model.KindNativeLibrary:
		if e.ArchivePath == "" {
			return fmt.Errorf("native library %s has no apkPath", e.Digest)
		}
		if err := pathutil.ValidateArchivePath(e.ArchivePath); err != nil {
			return fmt.Errorf("apkPath: %w", err)
		}
	case model.KindDex:
		if e.ArchivePath != "" {
			return fmt.Errorf("dex entry %s must not carry apkPath", e.Digest)
		}
	}
	return nil
}

// Parse validates payload against the manifest schema and decodes it.
func Parse(payload []byte) (*Manifest, error) {
	if !json.Valid(payload) {
		return nil, errclass.ErrMalformedManifest.WithMessage("payload is not valid JSON")
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, errclass.ErrUnknown.Wrap("compile manifest schema", err)
	}
	result := s.ValidateJSON(payload)
	if !result.IsValid() {
		return nil, errclass.ErrMalformedManifest.WithMessagef("schema validation failed: %s", describeErrors(result.Errors))
	}

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, errclass.ErrMalformedManifest.Wrap("decode manifest", err)
	}
	return New(doc.CodeRelatedFile)
}

func describeErrors(errs map[string]*jsonschema.EvaluationError) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, errs[k]))
	}
	return strings.Join(parts, "; ")
}

// Marshal renders m in RFC 8785 canonical form.
func Marshal(m *Manifest) ([]byte, error) {
	raw, err := json.Marshal(document{CodeRelatedFile: m.Entries()})
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize manifest: %w", err)
	}
	return canonical, nil
}

// Lookup finds the entry for digest. The digest is compared case-insensitively.
func (m *Manifest) Lookup(digest model.HashValue) (Entry, bool) {
	i, ok := m.index[digest.Normalize()]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Entries returns the entries in manifest order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}
