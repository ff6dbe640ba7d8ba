package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/daybook/pkg/daybook"
)

var searchServerURL string

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Ask a question over the journal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchServerURL, "server", "http://localhost:8080",
		"Base URL of the daybook server")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	client := daybook.New(searchServerURL)
	resp, err := client.Search(cmd.Context(), query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Summary.MainSummary)
	for _, section := range resp.Summary.Sections {
		fmt.Fprintf(out, "\n%s\n%s\n", section.Title, section.Content)
	}

	if len(resp.Activities) > 0 {
		fmt.Fprintf(out, "\nMatched %d activities (keywords: %s)\n",
			len(resp.Activities), strings.Join(resp.Keywords, ", "))
		for _, a := range resp.Activities {
			line := fmt.Sprintf("  [%s] %s", a.Date, a.Description)
			if a.DurationMinutes != nil {
				line += fmt.Sprintf(" (%d min)", *a.DurationMinutes)
			}
			fmt.Fprintln(out, line)
		}
	}

	return nil
}
