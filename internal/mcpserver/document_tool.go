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

// MaxDocumentPageSize bounds page_size on the document tool.
const MaxDocumentPageSize = 50

const documentToolDescription = "Search your organization's internal data sources for matching documents. " +
	"Returns an optional summary and a ranked list of documents with links and snippets."

// DocumentSearchTool lists ranked documents for a query without generating an answer.
type DocumentSearchTool struct {
	name     string
	backend  discovery.Backend
	timeout  time.Duration
	pageSize int
	metrics  *callMetrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewDocumentSearchTool creates the document tool. logger may be nil.
func NewDocumentSearchTool(cfg *types.Config, backend discovery.Backend, logger *zap.Logger) *DocumentSearchTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.DocumentToolName
	if name == "" {
		name = "search_documents"
	}
	return &DocumentSearchTool{
		name:     name,
		backend:  backend,
		timeout:  cfg.RequestTimeout,
		pageSize: cfg.PageSize,
		metrics:  newCallMetrics(name, toolKindDocuments),
		logger:   logger.Named("tool").With(zap.String("tool", name)),
		tracer:   otel.Tracer("agentspace/mcpserver"),
	}
}

// Definition returns the MCP tool definition.
func (t *DocumentSearchTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        t.name,
		Description: documentToolDescription,
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Search terms or question",
				},
				"page_size": {
					Type:        "integer",
					Description: fmt.Sprintf("Number of documents to return (1-%d)", MaxDocumentPageSize),
				},
			},
			Required: []string{"query"},
		},
	}
}

// Documents validates the arguments and makes exactly one search call.
func (t *DocumentSearchTool) Documents(ctx context.Context, query string, pageSize int) (*types.DocumentSearchResult, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	if pageSize < 0 || pageSize > MaxDocumentPageSize {
		return nil, types.NewInvalidArgument("page_size", fmt.Sprintf("must be between 1 and %d", MaxDocumentPageSize))
	}
	if pageSize == 0 {
		pageSize = t.pageSize
	}

	req := types.DocumentSearchRequest{Query: q, PageSize: pageSize, RequestID: uuid.NewString()}
	ctx, span := t.tracer.Start(ctx, "mcp.tool.search_documents", trace.WithAttributes(
		attribute.String("mcp.tool.name", t.name),
		attribute.String("agentspace.request_id", req.RequestID),
		attribute.Int("agentspace.page_size", pageSize),
	))
	defer span.End()

	start := time.Now()
	result, err := callWithTimeout(ctx, t.timeout, func(ctx context.Context) (*types.DocumentSearchResult, error) {
		return t.backend.Search(ctx, req)
	})
	if err == nil && result == nil {
		err = fmt.Errorf("%w: backend returned no result", discovery.ErrMalformedResponse)
	}
	if err != nil {
		err = backendFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, errorType(err))
		t.logger.Warn("document search failed",
			zap.String("request_id", req.RequestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	t.logger.Debug("document search completed",
		zap.String("request_id", req.RequestID),
		zap.Int("documents", len(result.Documents)),
		zap.Int64("total_size", result.TotalSize),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// HandleSDKToolCall is the mcp.ToolHandler for the document tool.
func (t *DocumentSearchTool) HandleSDKToolCall(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	text, err := t.handle(ctx, req)
	return finishCall(ctx, t.logger, t.metrics, req, start, text, err), nil
}

func (t *DocumentSearchTool) handle(ctx context.Context, req *mcp.CallToolRequest) (string, error) {
	var args types.DocumentToolArgs
	if err := decodeArguments(req, &args); err != nil {
		return "", err
	}
	result, err := t.Documents(ctx, args.Query, args.PageSize)
	if err != nil {
		return "", err
	}
	return FormatDocuments(result), nil
}
