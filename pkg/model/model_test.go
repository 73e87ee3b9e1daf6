package model_test

import (
	"testing"

	"github.com/jvs-project/ctverify/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestParseFileKind(t *testing.T) {
	k, ok := model.ParseFileKind("DEX")
	assert.True(t, ok)
	assert.Equal(t, model.KindDex, k)

	k, ok = model.ParseFileKind("NATIVE_LIBRARY")
	assert.True(t, ok)
	assert.Equal(t, model.KindNativeLibrary, k)

	_, ok = model.ParseFileKind("TYPE_UNSPECIFIED")
	assert.False(t, ok)
}

func TestHashValue_Normalize(t *testing.T) {
	assert.Equal(t, model.HashValue("abcdef"), model.HashValue("ABCdef").Normalize())
}

func TestSigningInfo_Certificates(t *testing.T) {
	signer := []byte("signer")
	old := []byte("old")

	info := model.SigningInfo{Signers: [][]byte{signer}}
	assert.Equal(t, [][]byte{signer}, info.Certificates())
	assert.False(t, info.HasMultipleSigners())

	info.History = [][]byte{old, signer}
	assert.Equal(t, [][]byte{old, signer}, info.Certificates())

	info.Signers = append(info.Signers, []byte("second"))
	assert.True(t, info.HasMultipleSigners())
}

func TestVerificationResult_IsVerified(t *testing.T) {
	assert.False(t, model.VerificationResult{SignatureVerified: true}.IsVerified())
	assert.False(t, model.VerificationResult{ContentsVerified: true}.IsVerified())
	assert.True(t, model.VerificationResult{SignatureVerified: true, ContentsVerified: true}.IsVerified())
}
