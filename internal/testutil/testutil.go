// Package testutil builds archives, keys and certificates for tests.
package testutil

import (
	"archive/zip"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ZipFile is one entry written by WriteZip.
type ZipFile struct {
	Name string
	Data []byte
}

// WriteZip writes files into a new zip archive at path and returns path.
func WriteZip(t *testing.T, path string, files ...ZipFile) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, file := range files {
		w, err := zw.Create(file.Name)
		require.NoError(t, err)
		_, err = w.Write(file.Data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

// Signer is an RSA key with a matching self-signed certificate.
type Signer struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
	DER  []byte
}

// NewSigner generates a 2048-bit RSA key and a self-signed certificate for it.
func NewSigner(t *testing.T, commonName string) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &Signer{Key: key, Cert: cert, DER: der}
}

// WriteCertPEM writes the signer certificate as PEM and returns the path.
func (s *Signer) WriteCertPEM(t *testing.T, path string) string {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: s.DER})
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// WriteKeyPEM writes the private key as PKCS#8 PEM and returns the path.
func (s *Signer) WriteKeyPEM(t *testing.T, path string) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(s.Key)
	require.NoError(t, err)
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
