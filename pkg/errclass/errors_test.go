package errclass_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCTVError_Error(t *testing.T) {
	err := errclass.ErrMissingToken.WithMessage("base.apk has no token")
	assert.Equal(t, "E_MISSING_TOKEN: base.apk has no token", err.Error())
}

func TestCTVError_ErrorWithoutMessage(t *testing.T) {
	assert.Equal(t, "E_SIGNATURE_INVALID", errclass.ErrSignatureInvalid.Error())
}

func TestCTVError_Is(t *testing.T) {
	err := errclass.ErrMalformedToken.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrMalformedToken))
	require.False(t, errors.Is(err, errclass.ErrSignatureInvalid))
}

func TestCTVError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("read token: %w", errclass.ErrArchiveUnreadable.WithMessage("truncated"))
	assert.True(t, errors.Is(err, errclass.ErrArchiveUnreadable))
}

func TestCTVError_WithMessagef(t *testing.T) {
	err := errclass.ErrUnsupportedAlgorithm.WithMessagef("alg %s not permitted", "HS256")
	assert.Equal(t, "E_UNSUPPORTED_ALGORITHM: alg HS256 not permitted", err.Error())
	assert.Empty(t, errclass.ErrUnsupportedAlgorithm.Message, "base error should stay untouched")
}

func TestCTVError_Wrap(t *testing.T) {
	cause := errors.New("crypto/rsa: verification error")
	err := errclass.ErrSignatureInvalid.Wrap("verify token", cause)

	assert.Equal(t, "E_SIGNATURE_INVALID: verify token: crypto/rsa: verification error", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, errclass.ErrSignatureInvalid))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "E_MULTIPLE_SIGNERS", errclass.Code(errclass.ErrMultipleSigners.WithMessage("2 signers")))
	assert.Equal(t, "E_UNKNOWN", errclass.Code(errors.New("boom")))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "E_MISSING_TOKEN: none", errclass.Message(errclass.ErrMissingToken.WithMessage("none")))
	assert.Equal(t, "E_UNKNOWN: boom", errclass.Message(errors.New("boom")))
	assert.Equal(t, "E_ARCHIVE_UNREADABLE: hash classes.dex: E_ARCHIVE_UNREADABLE: truncated",
		errclass.Message(fmt.Errorf("hash classes.dex: %w", errclass.ErrArchiveUnreadable.WithMessage("truncated"))))
}

func TestCTVError_AllErrorsDefined(t *testing.T) {
	all := []*errclass.CTVError{
		errclass.ErrMissingToken,
		errclass.ErrMalformedToken,
		errclass.ErrUnsupportedAlgorithm,
		errclass.ErrSignatureInvalid,
		errclass.ErrMalformedManifest,
		errclass.ErrArchiveUnreadable,
		errclass.ErrEntryNotFound,
		errclass.ErrMultipleSigners,
		errclass.ErrVerifierMismatch,
		errclass.ErrContentsModified,
		errclass.ErrPackageInfoUnreadable,
		errclass.ErrConfigInvalid,
		errclass.ErrUnknown,
	}
	seen := make(map[string]bool)
	for _, e := range all {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
	assert.Len(t, seen, 13)
}
