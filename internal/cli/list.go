package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coreupdater/internal/plugins"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed core bundles",
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	installed, err := app.registry.List()
	if err != nil {
		return err
	}
	sort.Slice(installed, func(i, j int) bool {
		return installed[i].Identifier < installed[j].Identifier
	})

	if outputJSON {
		return writeListJSON(cmd, installed)
	}
	writeListTable(cmd, installed)
	return nil
}

func writeListJSON(cmd *cobra.Command, installed []plugins.Installed) error {
	payload := struct {
		Installed []plugins.Installed `json:"installed"`
	}{Installed: installed}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode list json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func writeListTable(cmd *cobra.Command, installed []plugins.Installed) {
	if len(installed) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cores installed.")
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "CORE\tVERSION\tSYSTEMS\tARCHITECTURES")
	for _, plugin := range installed {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			plugin.Identifier,
			plugin.Version,
			nonEmptyOrDash(strings.Join(plugin.Systems, ",")),
			nonEmptyOrDash(strings.Join(plugin.Architectures, ",")),
		)
	}
	w.Flush()
}

func nonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
