package model

// VerificationResult is the outcome of one code transparency check.
type VerificationResult struct {
	SignatureVerified              bool     `json:"signature_verified"`
	ContentsVerified               bool     `json:"contents_verified"`
	VerifierCertificateFingerprint string   `json:"verifier_certificate_fingerprint,omitempty"`
	SigningCertificateFingerprints []string `json:"signing_certificate_fingerprints"`
	ModifiedFiles                  []string `json:"modified_files,omitempty"`
	ErrorMessage                   string   `json:"error_message,omitempty"`
}

// IsVerified reports whether both the signature and the contents checked out.
func (r VerificationResult) IsVerified() bool {
	return r.SignatureVerified && r.ContentsVerified
}
