package calai

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yazinsai/cal-ai/internal/config"
)

var (
	dbPath     string
	configPath string
	envFile    string

	cfg      config.Config
	cfgViper *viper.Viper
	logger   = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "calai",
	Short: "calai tracks calories and macros against a daily target",
	Long: "calai is a local-first food log. Entries are filed under the local calendar day of their timestamp, " +
		"totals and target progress are computed from the day's ledger, and the working day rolls over at local midnight.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default ./.env)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, v, err := config.Load(config.Options{ConfigFile: configPath, DBPath: dbPath, EnvFile: envFile})
	if err != nil {
		return err
	}
	cfg, cfgViper = c, v
	logger = config.NewLogger(c.Log)
	slog.SetDefault(logger)
	return nil
}
