// Package errclass defines the stable error codes reported by ctverify.
package errclass

import (
	"errors"
	"fmt"
)

// CTVError is a stable, machine-readable error class.
type CTVError struct {
	Code    string
	Message string
	cause   error
}

func (e *CTVError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CTVError) Is(target error) bool {
	t, ok := target.(*CTVError)
	return ok && e.Code == t.Code
}

func (e *CTVError) Unwrap() error {
	return e.cause
}

// WithMessage returns a new CTVError with the same Code but a specific message.
func (e *CTVError) WithMessage(msg string) *CTVError {
	return &CTVError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new CTVError with a formatted message.
func (e *CTVError) WithMessagef(format string, args ...any) *CTVError {
	return &CTVError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new CTVError carrying cause. The message is the cause text
// prefixed by msg when msg is non-empty.
func (e *CTVError) Wrap(msg string, cause error) *CTVError {
	text := msg
	if cause != nil {
		if text == "" {
			text = cause.Error()
		} else {
			text = text + ": " + cause.Error()
		}
	}
	return &CTVError{Code: e.Code, Message: text, cause: cause}
}

// Code returns the class code of err, or ErrUnknown's code when err carries none.
func Code(err error) string {
	var ce *CTVError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrUnknown.Code
}

// Message renders err for a result record, always prefixed with its class code.
func Message(err error) string {
	if ce, ok := err.(*CTVError); ok {
		return ce.Error()
	}
	var ce *CTVError
	if errors.As(err, &ce) {
		return ce.Code + ": " + err.Error()
	}
	return ErrUnknown.Wrap("", err).Error()
}

// Error classes.
var (
	ErrMissingToken          = &CTVError{Code: "E_MISSING_TOKEN"}
	ErrMalformedToken        = &CTVError{Code: "E_MALFORMED_TOKEN"}
	ErrUnsupportedAlgorithm  = &CTVError{Code: "E_UNSUPPORTED_ALGORITHM"}
	ErrSignatureInvalid      = &CTVError{Code: "E_SIGNATURE_INVALID"}
	ErrMalformedManifest     = &CTVError{Code: "E_MALFORMED_MANIFEST"}
	ErrArchiveUnreadable     = &CTVError{Code: "E_ARCHIVE_UNREADABLE"}
	ErrEntryNotFound         = &CTVError{Code: "E_ENTRY_NOT_FOUND"}
	ErrMultipleSigners       = &CTVError{Code: "E_MULTIPLE_SIGNERS"}
	ErrVerifierMismatch      = &CTVError{Code: "E_VERIFIER_MISMATCH"}
	ErrContentsModified      = &CTVError{Code: "E_CONTENTS_MODIFIED"}
	ErrPackageInfoUnreadable = &CTVError{Code: "E_PACKAGE_INFO_UNREADABLE"}
	ErrConfigInvalid         = &CTVError{Code: "E_CONFIG_INVALID"}
	ErrUnknown               = &CTVError{Code: "E_UNKNOWN"}
)
