// Package cli implements the ctverify command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvs-project/ctverify/pkg/color"
	"github.com/jvs-project/ctverify/pkg/config"
	"github.com/jvs-project/ctverify/pkg/logging"
)

// errNotVerified makes the process exit non-zero after the outcome has
// already been printed.
var errNotVerified = errors.New("not verified")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	jsonOutput bool
	configPath string
	logLevel   string
	noColor    bool

	cfg *config.Config
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "ctverify",
		Short: "ctverify - code transparency verification for application packages",
		Long: `ctverify checks that the code files of an installed application package
are the ones its publisher signed. It verifies the signed code transparency
token in the base archive and compares the digest of every executable and
native library in the base and split archives with the signed manifest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
	}
	root.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/ctverify/config.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newVerifyCmd(g),
		newInspectCmd(g),
		newSignCmd(g),
		newConfigCmd(g),
		newCompletionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errNotVerified) {
			fmtErr(os.Stderr, "%v", err)
		}
		os.Exit(1)
	}
}

func (g *globalFlags) setup(cmd *cobra.Command) error {
	color.Init(g.noColor)
	if g.noColor {
		color.Disable()
	}

	path, err := g.resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	g.cfg = cfg
	if cfg.OutputFormat == "json" && !cmd.Flags().Changed("json") {
		g.jsonOutput = true
	}

	levelName := cfg.Logging.Level
	if g.logLevel != "" {
		levelName = g.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(level)
	logger.SetFormat(format)
	logger.SetOutput(cmd.ErrOrStderr())
	logging.SetGlobal(logger)
	return nil
}

func (g *globalFlags) resolveConfigPath() (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.DefaultPath()
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(w io.Writer, format string, args ...any) {
	prefix := "ctverify: "
	if color.Enabled() {
		prefix = color.Error("ctverify:") + " "
	}
	fmt.Fprintf(w, prefix+format+"\n", args...)
}
