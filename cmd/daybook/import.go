package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/daybook/pkg/daybook"
)

var importServerURL string

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Bulk-import journal text into a running server",
	Long: "Reads multi-day journal text from a file (or stdin when no file is given),\n" +
		"sends it to the server's import endpoint, and prints each progress line as\n" +
		"the server reports it. Each day in the text must start on a YYYY-MM-DD line.",
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importServerURL, "server", "http://localhost:8080",
		"Base URL of the daybook server")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	client := daybook.New(importServerURL)
	return client.Import(cmd.Context(), string(data), func(line string) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	})
}
