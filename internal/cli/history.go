package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codexpilot/codexpilot/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished tasks",
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().Bool("clear", false, "Delete the task history")
}

func showHistory(cmd *cobra.Command, _ []string) error {
	dir, err := configDir(cmd)
	if err != nil {
		return err
	}
	store, err := history.Open(dir)
	if err != nil {
		return err
	}

	if clear, _ := cmd.Flags().GetBool("clear"); clear {
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := store.Recent(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No tasks recorded yet.")
		return nil
	}

	for _, entry := range entries {
		status := "ok"
		if !entry.Success {
			status = "failed"
		}
		fmt.Fprintf(out, "%s  [%s]  %s  (%s)\n",
			entry.Timestamp.Format("2006-01-02 15:04"), status, entry.TaskTitle, entry.FolderPath)
		if entry.Summary != "" {
			fmt.Fprintf(out, "    %s\n", entry.Summary)
		}
	}
	return nil
}
