package cli

import (
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/spf13/cobra"

	"github.com/jvs-project/ctverify/internal/archive"
	"github.com/jvs-project/ctverify/internal/audit"
	"github.com/jvs-project/ctverify/internal/compare"
	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/internal/manifest"
	"github.com/jvs-project/ctverify/internal/pkginfo"
	"github.com/jvs-project/ctverify/internal/token"
	"github.com/jvs-project/ctverify/pkg/color"
	"github.com/jvs-project/ctverify/pkg/fsutil"
	"github.com/jvs-project/ctverify/pkg/model"
)

type signFlags struct {
	keyPath   string
	certPaths []string
	outPath   string
	algorithm string
	auditLog  string
}

type signOutput struct {
	Token       string `json:"token"`
	Algorithm   string `json:"algorithm"`
	Fingerprint string `json:"verifier_certificate_fingerprint"`
	Entries     int    `json:"entries"`
}

func newSignCmd(g *globalFlags) *cobra.Command {
	f := &signFlags{}
	cmd := &cobra.Command{
		Use:   "sign --key <key.pem> --cert <cert.pem> --out <token.jwt> <archive>...",
		Short: "Build a manifest from archives and sign it",
		Long: `Build a code transparency manifest from the code files of the given archives
and write it as a signed token. The first --cert is the leaf matching --key;
further --cert files are embedded as the rest of the chain.

Example:
  ctverify sign --key publisher.key --cert publisher.pem --out code_transparency_signed.jwt base.apk split_config.arm64_v8a.apk`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := f.run(cmd, g, args)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s signed %d code files into %s\n", color.Success("OK"), out.Entries, out.Token)
			fmt.Fprintf(cmd.OutOrStdout(), "Verifier certificate: %s\n", color.Fingerprint(out.Fingerprint))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.keyPath, "key", "", "PEM private key (PKCS#1, PKCS#8 or EC)")
	cmd.Flags().StringSliceVar(&f.certPaths, "cert", nil, "PEM certificate chain, leaf first (repeatable)")
	cmd.Flags().StringVar(&f.outPath, "out", "", "token output file")
	cmd.Flags().StringVar(&f.algorithm, "alg", string(jose.RS256), "signature algorithm")
	cmd.Flags().StringVar(&f.auditLog, "audit-log", "", "append a token_signed record to this log")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("cert")
	cmd.MarkFlagRequired("out")
	return cmd
}

func (f *signFlags) run(cmd *cobra.Command, g *globalFlags, paths []string) (*signOutput, error) {
	algs, err := token.ParseAlgorithms([]string{f.algorithm})
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(f.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	key, err := cryptoutils.UnmarshalPEMToPrivateKey(keyPEM, cryptoutils.SkipPassword)
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	chain, err := pkginfo.LoadCertificates(f.certPaths...)
	if err != nil {
		return nil, err
	}

	classifier, err := compare.NewClassifier(g.cfg.Classifier.Rules)
	if err != nil {
		return nil, err
	}
	var archives []*archive.Archive
	defer func() {
		for _, a := range archives {
			a.Close()
		}
	}()
	for _, p := range paths {
		a, err := archive.Open(p, archive.Options{MaxEntryBytes: g.cfg.MaxEntryBytes})
		if err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}

	m, err := manifest.Build(cmd.Context(), archives, classifier)
	if err != nil {
		return nil, err
	}
	payload, err := manifest.Marshal(m)
	if err != nil {
		return nil, err
	}
	compact, err := token.Sign(payload, key, chain, algs[0])
	if err != nil {
		return nil, err
	}
	if err := fsutil.AtomicWrite(f.outPath, []byte(compact), 0o644); err != nil {
		return nil, fmt.Errorf("write token: %w", err)
	}

	out := &signOutput{
		Token:       f.outPath,
		Algorithm:   string(algs[0]),
		Fingerprint: integrity.Fingerprint(chain[0]),
		Entries:     m.Len(),
	}
	if f.auditLog != "" {
		details := map[string]any{
			"token":                            out.Token,
			"algorithm":                        out.Algorithm,
			"verifier_certificate_fingerprint": out.Fingerprint,
			"entries":                          out.Entries,
		}
		if err := audit.NewFileAppender(f.auditLog).Append(model.EventTypeTokenSigned, paths[0], details); err != nil {
			return nil, fmt.Errorf("audit log: %w", err)
		}
	}
	return out, nil
}
