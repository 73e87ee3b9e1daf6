package model

import "strings"

// FileKind identifies a code-bearing file class in a transparency manifest.
type FileKind string

const (
	// KindDex is compiled executable bytecode.
	KindDex FileKind = "DEX"
	// KindNativeLibrary is a shared object loaded through the platform linker.
	KindNativeLibrary FileKind = "NATIVE_LIBRARY"
)

// Valid reports whether k is one of the known kinds.
func (k FileKind) Valid() bool {
	return k == KindDex || k == KindNativeLibrary
}

// ParseFileKind maps a manifest type name to a FileKind.
func ParseFileKind(s string) (FileKind, bool) {
	k := FileKind(strings.TrimSpace(s))
	return k, k.Valid()
}

// HashValue is a SHA-256 hash stored as lowercase hex string.
type HashValue string

// Normalize lowercases the hex digits so digests compare by value.
func (h HashValue) Normalize() HashValue {
	return HashValue(strings.ToLower(string(h)))
}

// String returns the hex form.
func (h HashValue) String() string {
	return string(h)
}

// SigningInfo is what the platform reports about the signers of an installed package.
type SigningInfo struct {
	// Signers holds the DER certificate of every independent signer.
	Signers [][]byte
	// History is the rotation lineage of the current signer, oldest first.
	// Empty when the signer never rotated.
	History [][]byte
}

// HasMultipleSigners reports whether more than one independent signer is present.
func (s SigningInfo) HasMultipleSigners() bool {
	return len(s.Signers) > 1
}

// Certificates returns the certificates whose fingerprints describe the package.
func (s SigningInfo) Certificates() [][]byte {
	if len(s.History) > 0 {
		return s.History
	}
	return s.Signers
}
