package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "Operate the reporting engine from the command line",
	Long: `reportctl talks to the reporting database directly. It seeds the system
template catalog, fires scheduler ticks and exports finished executions.`,
}

func init() {
	rootCmd.AddCommand(newSeedTemplatesCommand())
	rootCmd.AddCommand(newTickCommand())
	rootCmd.AddCommand(newExportCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
