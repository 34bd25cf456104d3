package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testersCmd = &cobra.Command{
	Use:   "testers",
	Short: "List the supported testers",
	Args:  cobra.NoArgs,
	RunE:  runTesters,
}

func init() {
	rootCmd.AddCommand(testersCmd)
}

func runTesters(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-8s %s\n", "TESTER", "FILES")
	for _, e := range newRegistry().Entries() {
		fmt.Printf("%-8s %s\n", e.Label, e.Pattern)
	}
	return nil
}
