package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show index diagnostics",
	Long:  `Shows the location, backend, size and build details of every index.`,
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd, Options{}); err != nil {
		return err
	}
	if searchService == nil {
		return errors.New("search service not configured")
	}

	infos := searchService.Info(cmd.Context())
	if infoJSON {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal index info: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(infos) == 0 {
		cmd.Println("No indexes configured.")
		return nil
	}
	for i := range infos {
		printIndexInfo(cmd, &infos[i])
	}
	return nil
}

func printIndexInfo(cmd *cobra.Command, info *domain.IndexInfo) {
	cmd.Printf("%s (%s)\n", info.Kind, info.Class)
	cmd.Printf("  Path:    %s\n", info.FilePath)
	if !info.Built {
		cmd.Println("  Status:  not built, run `refida reindex`")
		cmd.Println()
		return
	}
	cmd.Printf("  Backend: %s\n", info.Backend)
	cmd.Printf("  Size:    %d\n", info.Size)

	keys := make([]string, 0, len(info.Config))
	for k := range info.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("  %s: %s\n", k, info.Config[k])
	}
	cmd.Println()
}
