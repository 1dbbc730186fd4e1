package calai

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/app"
	"github.com/yazinsai/cal-ai/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the local calai database and config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := config.Write(cfgViper, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", path)
		}
		if err := withStore(func(*env) error { return nil }); err != nil {
			return err
		}
		switch cfg.Storage.Driver {
		case "sqlite":
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized calai database at %s\n", cfg.DBPath)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized calai %s storage\n", cfg.Storage.Driver)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return app.DefaultConfigPath()
}
