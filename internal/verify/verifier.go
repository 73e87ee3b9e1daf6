// Package verify runs the full code transparency check of an installed
// package and folds every outcome into a model.VerificationResult.
package verify

import (
	"context"
	"errors"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/jvs-project/ctverify/internal/archive"
	"github.com/jvs-project/ctverify/internal/compare"
	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/internal/manifest"
	"github.com/jvs-project/ctverify/internal/pkginfo"
	"github.com/jvs-project/ctverify/internal/token"
	"github.com/jvs-project/ctverify/pkg/config"
	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/logging"
	"github.com/jvs-project/ctverify/pkg/model"
	"github.com/jvs-project/ctverify/pkg/progress"
	"github.com/jvs-project/ctverify/pkg/uuidutil"
)

// Options configures a Verifier. The zero value verifies RS256 tokens at the
// default token path with the default classifier.
type Options struct {
	AllowedAlgorithms []string
	TokenPath         string
	MaxEntryBytes     int64
	Workers           int
	// ExpectedVerifierFingerprint pins the token's leaf certificate. Empty
	// accepts any leaf whose signature verifies.
	ExpectedVerifierFingerprint string
	ClassifierRules             []config.ClassifierRule
	Progress                    progress.Callback
	Logger                      *logging.Logger
}

// OptionsFromConfig maps a loaded configuration onto verifier options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AllowedAlgorithms:           cfg.AllowedAlgorithms,
		TokenPath:                   cfg.TokenPath,
		MaxEntryBytes:               cfg.MaxEntryBytes,
		Workers:                     cfg.Workers,
		ExpectedVerifierFingerprint: cfg.ExpectedVerifierFingerprint,
		ClassifierRules:             cfg.Classifier.Rules,
	}
}

// Verifier checks installed packages. It holds no per-run state and may be
// used for any number of runs.
type Verifier struct {
	allowed    []jose.SignatureAlgorithm
	tokenPath  string
	archive    archive.Options
	pinned     string
	comparator *compare.Comparator
	log        *logging.Logger
	// initErr is reported by every run when the options are unusable.
	initErr error
}

// NewVerifier creates a verifier. Invalid options do not fail here; every
// Verify call reports them in its result instead.
func NewVerifier(opts Options) *Verifier {
	v := &Verifier{
		tokenPath: opts.TokenPath,
		archive:   archive.Options{MaxEntryBytes: opts.MaxEntryBytes},
		pinned:    integrity.NormalizeFingerprint(opts.ExpectedVerifierFingerprint),
		log:       opts.Logger,
	}
	if v.tokenPath == "" {
		v.tokenPath = config.DefaultTokenPath
	}
	if v.log == nil {
		v.log = logging.Global()
	}

	names := opts.AllowedAlgorithms
	if len(names) == 0 {
		names = []string{string(jose.RS256)}
	}
	allowed, err := token.ParseAlgorithms(names)
	if err != nil {
		v.initErr = err
		return v
	}
	v.allowed = allowed

	classifier, err := compare.NewClassifier(opts.ClassifierRules)
	if err != nil {
		v.initErr = err
		return v
	}
	v.comparator = compare.NewComparator(classifier, compare.Options{
		Workers:  opts.Workers,
		Progress: opts.Progress,
		Logger:   v.log,
	})
	return v
}

// Verify runs the check against source. It never returns an error and never
// panics: any failure stops the run and is recorded in ErrorMessage, while
// whatever was established before the failure stays in the result.
func (v *Verifier) Verify(ctx context.Context, source pkginfo.PackageSource) (result model.VerificationResult) {
	r := &run{
		v:      v,
		log:    v.log.WithFields(map[string]any{"run_id": uuidutil.NewRunID()}),
		result: model.VerificationResult{SigningCertificateFingerprints: []string{}},
	}
	defer func() {
		if p := recover(); p != nil {
			r.fail("internal", errclass.ErrUnknown.WithMessagef("unexpected failure: %v", p))
			result = r.result
		}
	}()

	if v.initErr != nil {
		r.fail("options", v.initErr)
		return r.result
	}
	r.execute(ctx, source)
	return r.result
}

type run struct {
	v      *Verifier
	log    *logging.Logger
	result model.VerificationResult
}

func (r *run) fail(stage string, err error) {
	r.result.ErrorMessage = errclass.Message(err)
	r.log.Warn("verification stopped", map[string]any{
		"stage": stage,
		"code":  errclass.Code(err),
		"error": err.Error(),
	})
}

// execute runs the pipeline. Each stage returns early through fail.
func (r *run) execute(ctx context.Context, source pkginfo.PackageSource) {
	v := r.v

	info, err := source.SigningInfo()
	if err != nil {
		r.fail("signing_info", asClass(err, errclass.ErrPackageInfoUnreadable))
		return
	}
	r.result.SigningCertificateFingerprints = integrity.Fingerprints(info.Certificates())
	if info.HasMultipleSigners() {
		r.fail("signing_info", errclass.ErrMultipleSigners.WithMessagef("package has %d signers", len(info.Signers)))
		return
	}
	r.log.Debug("signing info loaded", map[string]any{"certificates": len(r.result.SigningCertificateFingerprints)})

	basePath, splitPaths, err := source.Archives()
	if err != nil {
		r.fail("locate_archives", asClass(err, errclass.ErrPackageInfoUnreadable))
		return
	}

	base, err := archive.Open(basePath, v.archive)
	if err != nil {
		r.fail("open_base", err)
		return
	}
	defer base.Close()

	raw, err := base.ReadEntry(v.tokenPath)
	if err != nil {
		if errors.Is(err, errclass.ErrEntryNotFound) {
			err = errclass.ErrMissingToken.WithMessagef("%s has no %s", basePath, v.tokenPath)
		}
		r.fail("read_token", err)
		return
	}

	tok, err := token.Parse(string(raw))
	if err != nil {
		r.fail("parse_token", err)
		return
	}
	verified, err := tok.Verify(v.allowed)
	if err != nil {
		r.fail("verify_signature", err)
		return
	}
	if v.pinned != "" && verified.Fingerprint != v.pinned {
		r.result.VerifierCertificateFingerprint = verified.Fingerprint
		r.fail("verify_signature", errclass.ErrVerifierMismatch.WithMessagef("token signed by %s, expected %s", verified.Fingerprint, v.pinned))
		return
	}
	r.result.SignatureVerified = true
	r.result.VerifierCertificateFingerprint = verified.Fingerprint
	r.log.Debug("signature verified", map[string]any{"algorithm": string(tok.Algorithm()), "verifier": verified.Fingerprint})

	m, err := manifest.Parse(verified.Payload)
	if err != nil {
		r.fail("parse_manifest", err)
		return
	}
	r.log.Debug("manifest parsed", map[string]any{"entries": m.Len()})

	archives := []*archive.Archive{base}
	for _, p := range splitPaths {
		split, err := archive.Open(p, v.archive)
		if err != nil {
			r.fail("open_split", err)
			return
		}
		defer split.Close()
		archives = append(archives, split)
	}

	modified, err := v.comparator.Compare(ctx, m, archives)
	if err != nil {
		r.fail("compare", asClass(err, errclass.ErrUnknown))
		return
	}
	if len(modified) > 0 {
		r.result.ModifiedFiles = modified
		r.fail("compare", errclass.ErrContentsModified.WithMessagef("%d code file(s) do not match the manifest: %s", len(modified), strings.Join(modified, ", ")))
		return
	}
	r.result.ContentsVerified = true
	r.log.Debug("contents verified", map[string]any{"archives": len(archives)})
}

// asClass keeps err's code when it has one and files it under class otherwise.
func asClass(err error, class *errclass.CTVError) error {
	var ce *errclass.CTVError
	if errors.As(err, &ce) {
		return err
	}
	return class.Wrap("", err)
}
