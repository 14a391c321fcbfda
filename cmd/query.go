package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbrache/goose/internal/discovery"
	"github.com/jbrache/goose/internal/mcpserver"
	"github.com/jbrache/goose/internal/metrics"
	"github.com/jbrache/goose/internal/types"
)

var (
	queryText      string
	queryDocuments bool
	queryPageSize  int
	queryResearch  bool
	querySession   string
	outputJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a single search without starting the MCP server",
	Long: `
Run one query through the same tool logic the MCP server exposes and print
the result to stdout.

Examples:
  # Generated answer with cited sources
  agentspace-mcp query -q "What is our parental leave policy?"

  # Ranked documents instead of an answer
  agentspace-mcp query -q "expense report template" --documents --page-size 5

  # Deep research, then a follow-up in the same session
  agentspace-mcp query -q "Compare our travel policies" --research
  agentspace-mcp query -q "Start the research" --research --session projects/.../sessions/123

  # Raw result as JSON
  agentspace-mcp query -q "office hours" --json

Invocations are counted in AGENTSPACE_STATS_PATH when it is set.
`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "Text query to search for (required)")
	queryCmd.Flags().BoolVarP(&queryDocuments, "documents", "d", false, "Return ranked documents instead of a generated answer")
	queryCmd.Flags().IntVarP(&queryPageSize, "page-size", "k", 0, "Number of documents with --documents (default from AGENTSPACE_PAGE_SIZE)")
	queryCmd.Flags().BoolVarP(&queryResearch, "research", "r", false, "Run a deep research turn instead of a generated answer")
	queryCmd.Flags().StringVar(&querySession, "session", "", "Session name from an earlier --research call")
	queryCmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "Output results in JSON format")

	_ = queryCmd.MarkFlagRequired("query")
	queryCmd.MarkFlagsMutuallyExclusive("documents", "research")
}

// queryOptions mirrors the query flags.
type queryOptions struct {
	text      string
	documents bool
	pageSize  int
	research  bool
	session   string
	asJSON    bool
}

func (o queryOptions) mode() metrics.Mode {
	switch {
	case o.documents:
		return metrics.ModeDocuments
	case o.research:
		return metrics.ModeResearch
	default:
		return metrics.ModeAnswer
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.query(ctx, cmd.OutOrStdout(), queryOptions{
		text:      queryText,
		documents: queryDocuments,
		pageSize:  queryPageSize,
		research:  queryResearch,
		session:   querySession,
		asJSON:    outputJSON,
	})
}

// query runs one answer, document search or research turn and writes the result to w.
func (a *app) query(ctx context.Context, w io.Writer, opts queryOptions) error {
	if opts.session != "" && !opts.research {
		return types.NewInvalidArgument("session", "--session requires --research")
	}
	a.stats().RecordInvocation(opts.mode())

	var (
		result any
		text   string
	)
	switch {
	case opts.documents:
		tool := mcpserver.NewDocumentSearchTool(a.cfg, a.backend, a.logger)
		docs, err := tool.Documents(ctx, opts.text, opts.pageSize)
		if err != nil {
			return err
		}
		result, text = docs, mcpserver.FormatDocuments(docs)
	case opts.research:
		researcher, ok := a.backend.(discovery.Researcher)
		if !ok {
			return fmt.Errorf("backend %T does not support deep research", a.backend)
		}
		if a.cfg.EngineID == "" {
			return types.NewConfigurationError("deep research requires an engine", "AGENTSPACE_ENGINE_ID")
		}
		tool := mcpserver.NewResearchTool(a.cfg, researcher, a.logger)
		research, err := tool.Research(ctx, opts.text, opts.session)
		if err != nil {
			return err
		}
		result, text = research, mcpserver.FormatResearch(research)
	default:
		tool := mcpserver.NewSearchQueryTool(a.cfg, a.backend, a.logger)
		answer, err := tool.Answer(ctx, opts.text)
		if err != nil {
			return err
		}
		result, text = answer, mcpserver.FormatAnswer(answer)
	}

	if opts.asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return nil
	}

	a.logger.Debug("Query complete", zap.String("mode", string(opts.mode())))
	_, err := fmt.Fprintln(w, text)
	return err
}
