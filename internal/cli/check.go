package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coreupdater/internal/download"
	"coreupdater/internal/tui"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch the release catalog and report available updates",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	app.logf("check started")

	status := tui.NewStatusWriter(cmd.ErrOrStderr())
	status.Update("Fetching release catalog...")
	res, err := app.coord.CheckForUpdates(ctx)
	status.Stop()
	if err != nil {
		return err
	}
	app.logf("check resolved updates=%d new=%d", len(res.Updates), len(res.NewCores))

	tasks := app.coord.CoreList()
	if outputJSON {
		return writeCheckJSON(cmd, tasks)
	}
	writeCheckTable(cmd, tasks, len(res.Updates), len(res.NewCores))
	return nil
}

type checkRow struct {
	Core    string   `json:"core"`
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Systems []string `json:"systems"`
	Kind    string   `json:"kind"`
}

func checkRows(tasks []*download.Task) []checkRow {
	rows := make([]checkRow, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, checkRow{
			Core:    task.CoreID,
			Name:    task.Name,
			Version: task.Version,
			Systems: task.Systems,
			Kind:    taskKind(task),
		})
	}
	return rows
}

func taskKind(task *download.Task) string {
	if task.HasUpdate {
		return "update"
	}
	return "new"
}

func writeCheckJSON(cmd *cobra.Command, tasks []*download.Task) error {
	payload := struct {
		Cores []checkRow `json:"cores"`
	}{Cores: checkRows(tasks)}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode check json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func writeCheckTable(cmd *cobra.Command, tasks []*download.Task, updates, newCores int) {
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "All installed cores are up to date.")
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCORE\tVERSION\tKIND")
	for _, row := range checkRows(tasks) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Name, row.Core, row.Version, row.Kind)
	}
	w.Flush()

	fmt.Fprintf(cmd.OutOrStdout(), "Updates: %d, New cores: %d\n", updates, newCores)
}
