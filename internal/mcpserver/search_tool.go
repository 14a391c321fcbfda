package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jbrache/goose/internal/discovery"
	"github.com/jbrache/goose/internal/types"
)

const searchToolDescription = "Search your organization's internal data sources and get a generated answer " +
	"grounded in the matching documents. Returns the answer followed by a numbered list of sources."

// SearchQueryTool answers a natural-language question from the configured engine.
// It holds only immutable settings and is safe for concurrent calls.
type SearchQueryTool struct {
	name    string
	backend discovery.Backend
	timeout time.Duration
	metrics *callMetrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewSearchQueryTool creates the answer tool. logger may be nil.
func NewSearchQueryTool(cfg *types.Config, backend discovery.Backend, logger *zap.Logger) *SearchQueryTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.SearchToolName
	if name == "" {
		name = "search"
	}
	return &SearchQueryTool{
		name:    name,
		backend: backend,
		timeout: cfg.RequestTimeout,
		metrics: newCallMetrics(name, toolKindAnswer),
		logger:  logger.Named("tool").With(zap.String("tool", name)),
		tracer:  otel.Tracer("agentspace/mcpserver"),
	}
}

// Definition returns the MCP tool definition.
func (t *SearchQueryTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        t.name,
		Description: searchToolDescription,
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Natural-language question to answer from internal data sources",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Answer validates the query and makes exactly one backend call.
// An empty query never reaches the backend.
func (t *SearchQueryTool) Answer(ctx context.Context, query string) (*types.SearchResult, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	req := types.SearchRequest{Query: q, RequestID: uuid.NewString()}
	ctx, span := t.tracer.Start(ctx, "mcp.tool.search", trace.WithAttributes(
		attribute.String("mcp.tool.name", t.name),
		attribute.String("agentspace.request_id", req.RequestID),
	))
	defer span.End()

	start := time.Now()
	t.logger.Debug("calling backend", zap.String("request_id", req.RequestID), zap.String("query", q))

	result, err := callWithTimeout(ctx, t.timeout, func(ctx context.Context) (*types.SearchResult, error) {
		return t.backend.Answer(ctx, req)
	})
	if err == nil && result == nil {
		err = fmt.Errorf("%w: backend returned no result", discovery.ErrMalformedResponse)
	}
	if err != nil {
		err = backendFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, errorType(err))
		t.logger.Warn("search failed",
			zap.String("request_id", req.RequestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("agentspace.citations", len(result.Citations)))
	t.logger.Debug("search completed",
		zap.String("request_id", req.RequestID),
		zap.Int("citations", len(result.Citations)),
		zap.Bool("answer_skipped", len(result.SkippedReasons) > 0),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// Search returns the rendered answer text.
func (t *SearchQueryTool) Search(ctx context.Context, query string) (string, error) {
	result, err := t.Answer(ctx, query)
	if err != nil {
		return "", err
	}
	return FormatAnswer(result), nil
}

// HandleSDKToolCall is the mcp.ToolHandler for the answer tool.
// Failures are reported as IsError results rather than protocol errors.
func (t *SearchQueryTool) HandleSDKToolCall(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	text, err := t.handle(ctx, req)
	return finishCall(ctx, t.logger, t.metrics, req, start, text, err), nil
}

func (t *SearchQueryTool) handle(ctx context.Context, req *mcp.CallToolRequest) (string, error) {
	var args types.SearchToolArgs
	if err := decodeArguments(req, &args); err != nil {
		return "", err
	}
	return t.Search(ctx, args.Query)
}
