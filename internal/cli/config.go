package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/ctverify/pkg/color"
	"github.com/jvs-project/ctverify/pkg/config"
)

const configKeysHelp = `Available keys:
  allowed_algorithms             - JWS algorithms accepted for tokens (YAML list, default [RS256])
  token_path                     - token entry inside the base archive
  max_entry_bytes                - largest archive entry that will be read
  workers                        - concurrent entry hashing (1 = sequential)
  expected_verifier_fingerprint  - pin the token signer certificate (empty = any)
  output_format                  - default output format (text, json)
  progress_enabled               - show progress bars (true, false)
  logging.level                  - debug, info, warn, error
  logging.format                 - text, json`

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <command>",
		Short: "Manage ctverify configuration",
		Long: `Manage ctverify configuration stored in the file given by --config
(default $XDG_CONFIG_HOME/ctverify/config.yaml).

` + configKeysHelp,
		DisableFlagsInUseLine: true,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), g.cfg)
			}
			path, err := g.resolveConfigPath()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(g.cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.Dim("# "+path))
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long:  "Get a configuration value.\n\n" + configKeysHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := g.cfg.Get(args[0])
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), map[string]string{args[0]: strings.TrimSpace(value)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(value, "\n"))
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Examples:
  ctverify config set allowed_algorithms "[RS256, PS256]"
  ctverify config set workers 4
  ctverify config set expected_verifier_fingerprint "3A 0F ..."

` + configKeysHelp,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.resolveConfigPath()
			if err != nil {
				return err
			}
			if err := g.cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(path, g.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(show, get, set)
	return cmd
}
