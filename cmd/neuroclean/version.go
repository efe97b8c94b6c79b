package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuro-analyst/neuroclean/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}
