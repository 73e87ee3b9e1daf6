// Package token parses and verifies the compact signed token that carries a
// code transparency manifest.
//
// The token is a JWS in compact serialization. Its protected header names the
// signature algorithm and embeds the signing certificate chain in "x5c"; the
// first certificate (the leaf) verifies the signature. Only algorithms on an
// explicit allow-list are accepted.
package token

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/pkg/errclass"
)

// DefaultAllowed is the reference policy: RSA PKCS#1 v1.5 with SHA-256 only.
var DefaultAllowed = []jose.SignatureAlgorithm{jose.RS256}

// Header is the decoded protected header.
type Header struct {
	Algorithm string   `json:"alg"`
	KeyID     string   `json:"kid,omitempty"`
	Type      string   `json:"typ,omitempty"`
	X5C       []string `json:"x5c"`
}

// Token is a parsed, not yet verified, signed token.
type Token struct {
	raw       string
	header    Header
	payload   []byte
	signature []byte
	chain     []*x509.Certificate
}

// Verified is what a successful Verify proves.
type Verified struct {
	// Fingerprint of the leaf certificate, see integrity.Fingerprint.
	Fingerprint string
	Certificate *x509.Certificate
	Payload     []byte
}

// Parse decodes a compact serialized token. It checks structure only; no
// signature is verified.
func Parse(serialized string) (*Token, error) {
	serialized = strings.TrimSpace(serialized)
	parts := strings.Split(serialized, ".")
	if len(parts) != 3 {
		return nil, errclass.ErrMalformedToken.WithMessagef("expected 3 segments, got %d", len(parts))
	}

	headerJSON, err := decodeSegment(parts[0])
	if err != nil {
		return nil, errclass.ErrMalformedToken.Wrap("decode header", err)
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, errclass.ErrMalformedToken.Wrap("decode payload", err)
	}
	signature, err := decodeSegment(parts[2])
	if err != nil {
		return nil, errclass.ErrMalformedToken.Wrap("decode signature", err)
	}

	var header Header
	dec := json.NewDecoder(bytes.NewReader(headerJSON))
	if err := dec.Decode(&header); err != nil {
		return nil, errclass.ErrMalformedToken.Wrap("parse header", err)
	}
	if header.Algorithm == "" {
		return nil, errclass.ErrMalformedToken.WithMessage("header has no alg")
	}
	if len(header.X5C) == 0 {
		return nil, errclass.ErrMalformedToken.WithMessage("header has no x5c certificate chain")
	}

	chain := make([]*x509.Certificate, 0, len(header.X5C))
	for i, encoded := range header.X5C {
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errclass.ErrMalformedToken.Wrap("decode x5c certificate", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, errclass.ErrMalformedToken.WithMessagef("parse x5c certificate %d: %v", i, err)
		}
		chain = append(chain, cert)
	}

	return &Token{
		raw:       serialized,
		header:    header,
		payload:   payload,
		signature: signature,
		chain:     chain,
	}, nil
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// Header returns the decoded protected header.
func (t *Token) Header() Header {
	return t.header
}

// Algorithm returns the algorithm the header declares.
func (t *Token) Algorithm() jose.SignatureAlgorithm {
	return jose.SignatureAlgorithm(t.header.Algorithm)
}

// Leaf returns the first certificate of the embedded chain.
func (t *Token) Leaf() *x509.Certificate {
	return t.chain[0]
}

// Chain returns the embedded certificate chain, leaf first.
func (t *Token) Chain() []*x509.Certificate {
	return append([]*x509.Certificate(nil), t.chain...)
}

// UnverifiedPayload returns the payload bytes without any signature check.
// Callers must not trust the content unless Verify succeeded.
func (t *Token) UnverifiedPayload() []byte {
	return append([]byte(nil), t.payload...)
}

// Verify checks the token signature with the leaf certificate's public key.
// The declared algorithm must be in allowed; that check runs before any
// cryptography so a symmetric or unlisted algorithm is refused outright.
func (t *Token) Verify(allowed []jose.SignatureAlgorithm) (*Verified, error) {
	leaf := t.Leaf()

	alg := t.Algorithm()
	if !containsAlgorithm(allowed, alg) {
		return nil, errclass.ErrUnsupportedAlgorithm.WithMessagef("algorithm %s is not permitted (allowed: %s)", alg, joinAlgorithms(allowed))
	}

	jws, err := jose.ParseSignedCompact(t.raw, allowed)
	if err != nil {
		return nil, errclass.ErrMalformedToken.Wrap("parse signed token", err)
	}
	payload, err := jws.Verify(leaf.PublicKey)
	if err != nil {
		return nil, errclass.ErrSignatureInvalid.Wrap("verify signature", err)
	}

	return &Verified{
		Fingerprint: integrity.Fingerprint(leaf.Raw),
		Certificate: leaf,
		Payload:     payload,
	}, nil
}

func containsAlgorithm(allowed []jose.SignatureAlgorithm, alg jose.SignatureAlgorithm) bool {
	for _, a := range allowed {
		if a == alg {
			return true
		}
	}
	return false
}

func joinAlgorithms(algs []jose.SignatureAlgorithm) string {
	names := make([]string, len(algs))
	for i, a := range algs {
		names[i] = string(a)
	}
	return strings.Join(names, ",")
}
