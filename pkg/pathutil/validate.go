// Package pathutil validates archive entry paths and filesystem locations.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrUnsafePath is returned for paths that could address something outside
// their archive or package directory.
var ErrUnsafePath = errors.New("unsafe path")

// ValidateArchivePath checks that p is a relative, forward-slash archive entry
// path that stays inside the archive.
func ValidateArchivePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty", ErrUnsafePath)
	}
	if !norm.NFC.IsNormalString(p) {
		return fmt.Errorf("%w: not NFC normalized: %q", ErrUnsafePath, p)
	}
	for _, r := range p {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character in %q", ErrUnsafePath, p)
		}
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("%w: must be relative with '/' separators: %s", ErrUnsafePath, p)
	}
	if len(p) >= 2 && p[1] == ':' {
		return fmt.Errorf("%w: drive letter: %s", ErrUnsafePath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return fmt.Errorf("%w: empty segment: %s", ErrUnsafePath, p)
		case ".", "..":
			return fmt.Errorf("%w: dot segment: %s", ErrUnsafePath, p)
		}
	}
	return nil
}

// WithinRoot verifies that target, after resolving symlinks, does not escape
// root.
func WithinRoot(root, target string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve root: %v", ErrUnsafePath, err)
	}

	resolvedTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(target)
		} else {
			return fmt.Errorf("%w: cannot resolve target: %v", ErrUnsafePath, err)
		}
	}

	sep := string(filepath.Separator)
	if resolvedTarget != resolvedRoot && !strings.HasPrefix(resolvedTarget+sep, resolvedRoot+sep) {
		return fmt.Errorf("%w: %s escapes %s", ErrUnsafePath, target, root)
	}
	return nil
}

// resolveClosestAncestor walks up from path to the closest existing ancestor,
// resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) && dir != path {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
