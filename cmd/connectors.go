package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"driveindex/internal/sources"
)

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "List available connectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		for _, d := range sources.DefaultRegistry().Descriptors() {
			fmt.Fprintf(out, "%s (%s)\n", d.Name, d.ShortName)
			fmt.Fprintf(out, "  auth:   %s\n", d.AuthType)
			fmt.Fprintf(out, "  labels: %s\n", strings.Join(d.Labels, ", "))

			for _, f := range d.ConfigFields {
				fmt.Fprintf(out, "  config: %s - %s\n", f.Name, f.Description)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectorsCmd)
}
