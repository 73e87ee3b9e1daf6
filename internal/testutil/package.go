package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/ctverify/internal/token"
)

// TokenEntry is where WritePackage stores the signed token.
const TokenEntry = "META-INF/code_transparency_signed.jwt"

// ManifestFor returns a manifest payload listing every .dex and .so file.
func ManifestFor(t *testing.T, files ...ZipFile) []byte {
	t.Helper()
	type entry struct {
		Type    string `json:"type"`
		SHA256  string `json:"sha256"`
		APKPath string `json:"apkPath,omitempty"`
	}
	entries := []entry{}
	seen := map[string]bool{}
	for _, f := range files {
		sum := sha256.Sum256(f.Data)
		digest := hex.EncodeToString(sum[:])
		if seen[digest] {
			continue
		}
		switch {
		case strings.HasSuffix(f.Name, ".dex"):
			entries = append(entries, entry{Type: "DEX", SHA256: digest})
		case strings.HasSuffix(f.Name, ".so"):
			entries = append(entries, entry{Type: "NATIVE_LIBRARY", SHA256: digest, APKPath: f.Name})
		default:
			continue
		}
		seen[digest] = true
	}
	data, err := json.Marshal(map[string]any{"codeRelatedFile": entries})
	require.NoError(t, err)
	return data
}

// SignToken signs payload with RS256 under s.
func (s *Signer) SignToken(t *testing.T, payload []byte) string {
	t.Helper()
	compact, err := token.Sign(payload, s.Key, [][]byte{s.DER}, jose.RS256)
	require.NoError(t, err)
	return compact
}

// WritePackage lays out an installed package in dir: base.apk holding the
// token (when non-empty) plus base files, and split_<name>.apk per split.
// It returns the base path and the sorted split paths.
func WritePackage(t *testing.T, dir, compact string, base []ZipFile, splits map[string][]ZipFile) (string, []string) {
	t.Helper()
	files := append([]ZipFile(nil), base...)
	if compact != "" {
		files = append(files, ZipFile{Name: TokenEntry, Data: []byte(compact)})
	}
	basePath := WriteZip(t, filepath.Join(dir, "base.apk"), files...)

	var splitPaths []string
	for name, contents := range splits {
		splitPaths = append(splitPaths, WriteZip(t, filepath.Join(dir, "split_"+name+".apk"), contents...))
	}
	sort.Strings(splitPaths)
	return basePath, splitPaths
}
