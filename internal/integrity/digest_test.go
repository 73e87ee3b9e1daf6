package integrity_test

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/pkg/model"
)

// sha256("hello")
const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestDigest_KnownValue(t *testing.T) {
	got, err := integrity.Digest(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, model.HashValue(helloDigest), got)
}

func TestDigest_MatchesDigestBytes(t *testing.T) {
	data := []byte(strings.Repeat("dex\n", 10000))
	streamed, err := integrity.Digest(iotest.OneByteReader(strings.NewReader(string(data))))
	require.NoError(t, err)
	assert.Equal(t, integrity.DigestBytes(data), streamed)
}

func TestDigest_ReadError(t *testing.T) {
	_, err := integrity.Digest(iotest.ErrReader(errors.New("disk gone")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestFingerprint_Format(t *testing.T) {
	fp := integrity.Fingerprint([]byte("hello"))
	assert.Len(t, fp, 32*3-1)
	assert.True(t, strings.HasPrefix(fp, "2C F2 4D BA"))
	assert.Equal(t, strings.ToUpper(helloDigest), strings.ReplaceAll(fp, " ", ""))
}

func TestFingerprint_Deterministic(t *testing.T) {
	assert.Equal(t, integrity.Fingerprint([]byte("cert")), integrity.Fingerprint([]byte("cert")))
	assert.NotEqual(t, integrity.Fingerprint([]byte("cert")), integrity.Fingerprint([]byte("cert2")))
}

func TestFingerprints_KeepsOrder(t *testing.T) {
	fps := integrity.Fingerprints([][]byte{[]byte("a"), []byte("b")})
	require.Len(t, fps, 2)
	assert.Equal(t, integrity.Fingerprint([]byte("a")), fps[0])
	assert.Equal(t, integrity.Fingerprint([]byte("b")), fps[1])
	assert.Empty(t, integrity.Fingerprints(nil))
}

func TestNormalizeFingerprint(t *testing.T) {
	want := integrity.Fingerprint([]byte("hello"))
	assert.Equal(t, want, integrity.NormalizeFingerprint(helloDigest))
	assert.Equal(t, want, integrity.NormalizeFingerprint(strings.ReplaceAll(want, " ", ":")))
	assert.Equal(t, want, integrity.NormalizeFingerprint(strings.ToLower(want)))
}
