package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coreupdater/internal/manifesttool"
)

var (
	manifestRepos       map[string]string
	manifestMinOS       string
	manifestURLTemplate string
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Maintain the published release manifest",
	}
	cmd.AddCommand(newManifestAddCmd())
	return cmd
}

func newManifestAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <manifest.json> <archive>...",
		Short: "Append releases for built plugin archives",
		Long: `Add computes each archive's SHA-256, reads the bundle metadata to find
the matching core, detects the supported architectures from the bundled
executable and appends a release entry. Existing entries are never
removed or reordered.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runManifestAdd,
	}

	cmd.Flags().StringToStringVar(&manifestRepos, "repo", nil, "Repository mapping core-id=owner/name (repeat for multiple)")
	cmd.Flags().StringVar(&manifestMinOS, "min-os", "", "Minimum host OS version recorded on appended releases")
	cmd.Flags().StringVar(&manifestURLTemplate, "url-template", "", "Download URL template with {repo}, {version} and {file} placeholders")

	return cmd
}

func runManifestAdd(cmd *cobra.Command, args []string) error {
	manifestPath, archives := args[0], args[1:]

	err := manifesttool.AppendReleases(manifesttool.Options{
		ManifestPath:         manifestPath,
		Repos:                manifestRepos,
		URLTemplate:          manifestURLTemplate,
		MinimumSystemVersion: manifestMinOS,
	}, archives)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Appended %d release(s) to %s\n", len(archives), manifestPath)
	return nil
}
