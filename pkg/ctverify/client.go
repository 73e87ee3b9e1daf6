package ctverify

import (
	"context"

	"github.com/jvs-project/ctverify/internal/pkginfo"
	"github.com/jvs-project/ctverify/internal/verify"
	"github.com/jvs-project/ctverify/pkg/config"
	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/logging"
	"github.com/jvs-project/ctverify/pkg/model"
	"github.com/jvs-project/ctverify/pkg/progress"
)

// PackageSource locates an installed package and its signing certificates.
type PackageSource = pkginfo.PackageSource

// Options configures a verification run.
type Options struct {
	// Config supplies verifier settings. Nil means config.Default().
	Config *config.Config
	// Progress, when set, is called once per hashed code file.
	Progress progress.Callback
	// Logger defaults to the global logger.
	Logger *logging.Logger
}

func (o Options) verifier() *verify.Verifier {
	cfg := o.Config
	if cfg == nil {
		cfg = config.Default()
	}
	vo := verify.OptionsFromConfig(cfg)
	vo.Progress = o.Progress
	vo.Logger = o.Logger
	return verify.NewVerifier(vo)
}

// Verify checks the code transparency of the package described by source.
func Verify(ctx context.Context, source PackageSource, opts Options) model.VerificationResult {
	if source == nil {
		return model.VerificationResult{
			SigningCertificateFingerprints: []string{},
			ErrorMessage:                   errclass.Message(errclass.ErrPackageInfoUnreadable.WithMessage("no package source")),
		}
	}
	return opts.verifier().Verify(ctx, source)
}

// VerifyArchives checks archives already on disk with signing information the
// caller obtained elsewhere, typically from the platform package manager.
func VerifyArchives(ctx context.Context, base string, splits []string, info model.SigningInfo, opts Options) model.VerificationResult {
	return Verify(ctx, pkginfo.Static{Base: base, Splits: splits, Info: info}, opts)
}

// VerifyDirectory checks a package directory holding base.apk and
// split_*.apk, signed by the PEM certificates in certFiles.
func VerifyDirectory(ctx context.Context, dir string, certFiles []string, opts Options) model.VerificationResult {
	return Verify(ctx, pkginfo.NewDirectory(dir, certFiles...), opts)
}

// VerifyDescriptor checks the package listed in a YAML descriptor file.
func VerifyDescriptor(ctx context.Context, path string, opts Options) model.VerificationResult {
	d, err := pkginfo.LoadDescriptor(path)
	if err != nil {
		return model.VerificationResult{
			SigningCertificateFingerprints: []string{},
			ErrorMessage:                   errclass.Message(err),
		}
	}
	return Verify(ctx, d, opts)
}
