package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuro-analyst/neuroclean/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage saved pipeline settings",
	Long: `Config reads and writes the persisted settings file
(~/.config/neuroclean.yaml by default). Saved settings override compiled
defaults for every run; command-line flags override both.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all saved settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := config.LoadUserConfig(userConfigPath())
		if err != nil {
			return err
		}
		all := user.All()
		if len(all) == 0 {
			fmt.Println("no settings saved")
			return nil
		}
		for k, v := range all {
			fmt.Printf("%s = %v\n", k, v)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one saved setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := config.LoadUserConfig(userConfigPath())
		if err != nil {
			return err
		}
		v := user.Get(args[0])
		if v == nil {
			fmt.Println("(unset)")
			return nil
		}
		fmt.Printf("%v\n", v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Save one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := config.LoadUserConfig(userConfigPath())
		if err != nil {
			return err
		}
		if err := user.Set(args[0], parseConfigValue(args[1])); err != nil {
			return err
		}
		// Validate the merged result before persisting a bad value.
		if _, err := user.Tuning(); err != nil {
			return fmt.Errorf("invalid value for %s: %w", args[0], err)
		}
		if err := user.Save(); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

// parseConfigValue interprets a command-line value as bool, number, list of
// numbers, or falls back to string.
func parseConfigValue(raw string) interface{} {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		floats := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return raw
			}
			floats = append(floats, f)
		}
		return floats
	}
	return raw
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
