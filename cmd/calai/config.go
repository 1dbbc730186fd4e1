package calai

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/service"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect calai configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := cfgViper.AllKeys()
		sort.Strings(keys)
		fmt.Fprintln(cmd.OutOrStdout(), "KEY\tVALUE")
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", k, cfgViper.Get(k))
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage app settings stored with your data",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one or all settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			if len(args) == 1 {
				v, ok, err := service.GetSetting(e.st, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("unknown setting %q", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}
			all := service.ListSettings(e.st)
			fmt.Fprintln(cmd.OutOrStdout(), "KEY\tVALUE")
			for _, k := range service.SettingKeys() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, all[k])
			}
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			if err := service.SetSetting(e.st, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configCmd, settingsCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
}
