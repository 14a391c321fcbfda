package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jbrache/goose/internal/metrics"
)

var (
	statsPath string
	statsDays int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how often the search tools have been invoked",
	Long: `
Show cumulative query command invocations per mode (answer, documents,
research) and the daily counts for recent days, read from the statistics
database named by --db or AGENTSPACE_STATS_PATH. MCP tool calls are not
recorded here; they are exported as OpenTelemetry metrics.
`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsPath, "db", "", "Path to the statistics database (default AGENTSPACE_STATS_PATH)")
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Number of recent days to list")
}

func runStats(cmd *cobra.Command, args []string) error {
	path := statsPath
	if path == "" {
		path = os.Getenv("AGENTSPACE_STATS_PATH")
	}

	store, err := metrics.OpenStore(path)
	if err != nil {
		return fmt.Errorf("failed to open stats store: %w", err)
	}
	defer store.Close()

	return printStats(cmd.OutOrStdout(), store, statsDays)
}

func printStats(w io.Writer, store *metrics.Store, days int) error {
	totals, err := store.GetAllTotals()
	if err != nil {
		return fmt.Errorf("failed to read totals: %w", err)
	}
	recent, err := store.GetRecentDays(days)
	if err != nil {
		return fmt.Errorf("failed to read daily counts: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tTOTAL")
	for _, mode := range metrics.AllModes {
		fmt.Fprintf(tw, "%s\t%d\n", mode, totals[mode])
	}

	if len(recent) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DATE\tMODE\tCOUNT")
		for _, day := range recent {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", day.Date, day.Mode, day.Count)
		}
	}
	return tw.Flush()
}
