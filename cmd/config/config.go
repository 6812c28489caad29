package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
)

// Command creates the config command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(initCommand())
	return cmd
}

func initCommand() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config.yaml with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = filepath.Join(conf.GetDefaultConfigPaths()[0], "config.yaml")
			}
			if _, err := os.Stat(output); err == nil && !force {
				return errors.Newf("config file %s already exists, use --force to overwrite", output).
					Component("conf").
					Category(errors.CategoryValidation).
					Context("path", output).
					Build()
			}

			settings, err := conf.DefaultSettings()
			if err != nil {
				return err
			}
			if err := conf.SaveYAML(output, settings); err != nil {
				return errors.New(err).
					Component("conf").
					Category(errors.CategoryConfiguration).
					Context("path", output).
					Build()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Path of the file to write (default: ./config.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
