package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jvs-project/ctverify/internal/archive"
	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/internal/manifest"
	"github.com/jvs-project/ctverify/internal/token"
	"github.com/jvs-project/ctverify/pkg/color"
	"github.com/jvs-project/ctverify/pkg/errclass"
)

// inspectOutput describes a token without claiming the package is intact.
type inspectOutput struct {
	Archive      string           `json:"archive"`
	Algorithm    string           `json:"algorithm"`
	KeyID        string           `json:"key_id,omitempty"`
	Certificates []certificateOut `json:"certificates"`
	Signature    string           `json:"signature"`
	Manifest     []manifest.Entry `json:"manifest,omitempty"`
	// ManifestTrusted is false when the manifest was read without a valid signature.
	ManifestTrusted bool   `json:"manifest_trusted"`
	ManifestError   string `json:"manifest_error,omitempty"`
}

type certificateOut struct {
	Subject     string `json:"subject"`
	Fingerprint string `json:"fingerprint"`
}

func newInspectCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <base.apk>",
		Short: "Show the code transparency token of a base archive",
		Long: `Show the code transparency token of a base archive: its algorithm, the
embedded certificate chain, whether the signature verifies, and the manifest
entries. Archive contents are not compared; use verify for that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := inspect(g, args[0])
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), out)
			}
			printInspect(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func inspect(g *globalFlags, path string) (*inspectOutput, error) {
	a, err := archive.Open(path, archive.Options{MaxEntryBytes: g.cfg.MaxEntryBytes})
	if err != nil {
		return nil, err
	}
	defer a.Close()

	raw, err := a.ReadEntry(g.cfg.TokenPath)
	if err != nil {
		if errclass.Code(err) == errclass.ErrEntryNotFound.Code {
			return nil, errclass.ErrMissingToken.WithMessagef("%s has no %s", path, g.cfg.TokenPath)
		}
		return nil, err
	}
	tok, err := token.Parse(string(raw))
	if err != nil {
		return nil, err
	}

	out := &inspectOutput{
		Archive:   path,
		Algorithm: string(tok.Algorithm()),
		KeyID:     tok.Header().KeyID,
	}
	for _, c := range tok.Chain() {
		out.Certificates = append(out.Certificates, certificateOut{
			Subject:     c.Subject.String(),
			Fingerprint: integrity.Fingerprint(c.Raw),
		})
	}

	payload := tok.UnverifiedPayload()
	allowed, err := token.ParseAlgorithms(g.cfg.AllowedAlgorithms)
	if err == nil {
		var v *token.Verified
		v, err = tok.Verify(allowed)
		if err == nil {
			payload = v.Payload
		}
	}
	if err != nil {
		out.Signature = errclass.Message(err)
	} else {
		out.Signature = "valid"
		out.ManifestTrusted = true
	}

	m, err := manifest.Parse(payload)
	if err != nil {
		out.ManifestError = errclass.Message(err)
		out.ManifestTrusted = false
		return out, nil
	}
	out.Manifest = m.Entries()
	return out, nil
}

func printInspect(w io.Writer, out *inspectOutput) {
	fmt.Fprintf(w, "%s %s\n", color.Header("Archive:"), out.Archive)
	fmt.Fprintf(w, "Algorithm: %s\n", out.Algorithm)
	if out.KeyID != "" {
		fmt.Fprintf(w, "Key ID: %s\n", out.KeyID)
	}
	for i, c := range out.Certificates {
		label := "Issuer"
		if i == 0 {
			label = "Verifier"
		}
		fmt.Fprintf(w, "%s certificate: %s\n  %s\n", label, c.Subject, color.Fingerprint(c.Fingerprint))
	}
	if out.Signature == "valid" {
		fmt.Fprintf(w, "Signature: %s\n", color.Success("valid"))
	} else {
		fmt.Fprintf(w, "Signature: %s\n", color.Error(out.Signature))
	}

	if out.ManifestError != "" {
		fmt.Fprintf(w, "Manifest: %s\n", color.Error(out.ManifestError))
		return
	}
	heading := "Manifest:"
	if !out.ManifestTrusted {
		heading = "Manifest " + color.Warning("(UNVERIFIED)") + ":"
	}
	fmt.Fprintf(w, "%s %d entries\n", heading, len(out.Manifest))
	for _, e := range out.Manifest {
		name := e.ArchivePath
		if name == "" {
			name = e.Path
		}
		fmt.Fprintf(w, "  %-14s %s %s\n", e.Kind, e.Digest, color.Dim(name))
	}
}
