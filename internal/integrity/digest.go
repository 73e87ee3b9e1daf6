// Package integrity computes the content digests and certificate fingerprints
// used to compare archive entries against a transparency manifest.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/jvs-project/ctverify/pkg/model"
)

// Digest streams r to EOF and returns its SHA-256 as lowercase hex.
func Digest(r io.Reader) (model.HashValue, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return model.HashValue(hex.EncodeToString(h.Sum(nil))), nil
}

// DigestBytes returns the SHA-256 of data as lowercase hex.
func DigestBytes(data []byte) model.HashValue {
	sum := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(sum[:]))
}

// Fingerprint returns the SHA-256 of a DER encoded certificate as uppercase
// hex byte pairs separated by spaces, e.g. "3A 0F ... 9C".
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	var b strings.Builder
	b.Grow(len(sum) * 3)
	for i, c := range sum {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", c)
	}
	return b.String()
}

// Fingerprints maps Fingerprint over certs, keeping order.
func Fingerprints(certs [][]byte) []string {
	out := make([]string, 0, len(certs))
	for _, der := range certs {
		out = append(out, Fingerprint(der))
	}
	return out
}

// NormalizeFingerprint canonicalizes a user supplied fingerprint so pinned
// values compare equal regardless of case or separator (space, colon, none).
func NormalizeFingerprint(s string) string {
	hexOnly := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			return r
		case r >= 'a' && r <= 'f':
			return r - 'a' + 'A'
		}
		return -1
	}, s)
	var b strings.Builder
	for i := 0; i+1 < len(hexOnly); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(hexOnly[i : i+2])
	}
	return b.String()
}
