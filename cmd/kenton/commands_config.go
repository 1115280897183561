package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kenton-research/kenton/pkg/config"
)

const defaultConfigFile = "kenton.yaml"

func buildConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(buildConfigInitCmd(flags))
	return cmd
}

// buildConfigInitCmd writes the effective configuration (defaults plus
// environment overrides) so it can be edited. The model API key is left out.
func buildConfigInitCmd(flags *rootFlags) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Long: `Write the effective configuration to a YAML file. The path defaults to
--config, then ./kenton.yaml. Existing files are kept unless --overwrite is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = defaultConfigFile
			}

			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("%s already exists (use --overwrite to replace it)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check %s: %w", path, err)
			}

			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}
