package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvs-project/ctverify/internal/audit"
	"github.com/jvs-project/ctverify/internal/pkginfo"
	"github.com/jvs-project/ctverify/pkg/color"
	"github.com/jvs-project/ctverify/pkg/ctverify"
	"github.com/jvs-project/ctverify/pkg/model"
	"github.com/jvs-project/ctverify/pkg/progress"
)

type verifyFlags struct {
	certs        []string
	historyCerts []string
	descriptor   string
	auditLog     string
	progress     bool
}

// verifyOutput is the JSON form of a verification result.
type verifyOutput struct {
	model.VerificationResult
	IsVerified bool `json:"is_verified"`
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	f := &verifyFlags{}
	cmd := &cobra.Command{
		Use:   "verify [<package-dir> | <base.apk> [<split.apk>...]]",
		Short: "Verify the code transparency of an installed package",
		Long: `Verify the code transparency of an installed package.

The package is given as a directory holding base.apk and split_*.apk, as an
explicit list of archives (base first), or as a YAML descriptor. Signing
certificates are PEM files passed with --cert.

Examples:
  ctverify verify /data/app/com.example-1 --cert signer.pem
  ctverify verify base.apk split_config.arm64_v8a.apk --cert signer.pem
  ctverify verify --descriptor package.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, base, err := f.source(args)
			if err != nil {
				return err
			}

			opts := ctverify.Options{Config: g.cfg}
			var term *progress.Terminal
			if f.progressEnabled(cmd, g) {
				term = progress.NewTerminal(cmd.ErrOrStderr())
				opts.Progress = term.Callback()
			}

			res := ctverify.Verify(cmd.Context(), source, opts)
			if term != nil {
				term.Finish()
			}

			if f.auditLog != "" {
				if err := audit.NewFileAppender(f.auditLog).RecordResult(base, res); err != nil {
					return fmt.Errorf("audit log: %w", err)
				}
			}

			if g.jsonOutput {
				if err := outputJSON(cmd.OutOrStdout(), verifyOutput{VerificationResult: res, IsVerified: res.IsVerified()}); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), res)
			}
			if !res.IsVerified() {
				return errNotVerified
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&f.certs, "cert", nil, "PEM file with a package signing certificate (repeatable)")
	cmd.Flags().StringSliceVar(&f.historyCerts, "history-cert", nil, "PEM file of the signing rotation history, oldest first (repeatable)")
	cmd.Flags().StringVar(&f.descriptor, "descriptor", "", "YAML package descriptor")
	cmd.Flags().StringVar(&f.auditLog, "audit-log", "", "append the outcome to this hash-chained JSONL log")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "show a progress bar while hashing")
	return cmd
}

func (f *verifyFlags) source(args []string) (pkginfo.PackageSource, string, error) {
	if f.descriptor != "" {
		if len(args) > 0 {
			return nil, "", fmt.Errorf("--descriptor cannot be combined with archive arguments")
		}
		d, err := pkginfo.LoadDescriptor(f.descriptor)
		if err != nil {
			return nil, "", err
		}
		base, _, _ := d.Archives()
		return d, base, nil
	}
	if len(args) == 0 {
		return nil, "", fmt.Errorf("a package directory, archives or --descriptor is required")
	}

	if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
		if len(args) > 1 {
			return nil, "", fmt.Errorf("a package directory takes no further arguments")
		}
		d := pkginfo.NewDirectory(args[0], f.certs...)
		d.HistoryCerts = f.historyCerts
		return d, args[0], nil
	}
	return &pkginfo.Files{
		Base:         args[0],
		Splits:       args[1:],
		SignerCerts:  f.certs,
		HistoryCerts: f.historyCerts,
	}, args[0], nil
}

func (f *verifyFlags) progressEnabled(cmd *cobra.Command, g *globalFlags) bool {
	if cmd.Flags().Changed("progress") {
		return f.progress
	}
	if g.cfg != nil && g.cfg.ProgressEnabled != nil {
		return *g.cfg.ProgressEnabled
	}
	return false
}

func printResult(w io.Writer, res model.VerificationResult) {
	for _, fp := range res.SigningCertificateFingerprints {
		fmt.Fprintf(w, "Signing certificate: %s\n", color.Fingerprint(fp))
	}
	if res.IsVerified() {
		fmt.Fprintf(w, "%s code transparency verified\n", color.Success("OK"))
		fmt.Fprintf(w, "Verifier certificate: %s\n", color.Fingerprint(res.VerifierCertificateFingerprint))
		return
	}
	fmt.Fprintf(w, "%s %s\n", color.Error("FAILED"), res.ErrorMessage)
	for _, name := range res.ModifiedFiles {
		fmt.Fprintf(w, "  modified: %s\n", name)
	}
}
