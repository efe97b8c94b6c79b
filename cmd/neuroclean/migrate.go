package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuro-analyst/neuroclean/internal/runstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the run history database schema",
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(historyDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		version, dirty, err := store.MigrateVersion()
		if err != nil {
			return err
		}
		state := "clean"
		if dirty {
			state = "dirty"
		}
		fmt.Printf("version %d (%s)\n", version, state)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runstore.Open(historyDBPath())
		if err != nil {
			return err
		}
		defer store.Close()
		return store.MigrateDown()
	},
}

func init() {
	migrateCmd.AddCommand(migrateVersionCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
