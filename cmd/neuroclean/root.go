package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neuro-analyst/neuroclean/internal/config"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
)

var (
	tuningFile  string
	userCfgFile string
	historyDB   string
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:   "neuroclean",
	Short: "Automated EEG preprocessing",
	Long: `neuroclean runs an automated EEG cleaning pipeline over EDF recordings:
band-pass and notch filtering, statistical bad-channel detection, and
ICA-based removal of ocular and muscle artifacts.

Every run is deterministic for a given seed and is recorded in a local
run history database.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			monitoring.SetLogger(nil)
		}
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tuningFile, "tuning", "", "pipeline tuning file (JSON, overrides saved settings)")
	rootCmd.PersistentFlags().StringVar(&userCfgFile, "config", "", "settings file (default is ~/.config/neuroclean.yaml)")
	rootCmd.PersistentFlags().StringVar(&historyDB, "db", "", "run history database (default is ~/.local/share/neuroclean/runs.db)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress logging")

	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadTuning resolves the effective tuning: compiled defaults, overlaid by
// the saved settings file, overlaid by an explicit --tuning file.
func loadTuning() (*config.TuningConfig, error) {
	if tuningFile != "" {
		return config.LoadTuningConfig(tuningFile)
	}
	user, err := config.LoadUserConfig(userConfigPath())
	if err != nil {
		return nil, err
	}
	return user.Tuning()
}

func userConfigPath() string {
	if userCfgFile != "" {
		return userCfgFile
	}
	return config.DefaultUserConfigPath()
}

func historyDBPath() string {
	if historyDB != "" {
		return historyDB
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "neuroclean-runs.db"
	}
	return filepath.Join(home, ".local", "share", "neuroclean", "runs.db")
}
