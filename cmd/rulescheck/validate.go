package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsdesk/ticket-rules/internal/rules"
)

func newValidateCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "validate <rules-file>",
		Short: "Validate a rules file and print the resolved configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rules.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return printConfig(cmd, cfg, format)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format (yaml or json)")
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *rules.Config, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg.ToMap()); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg.ToMap())
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
