package mcpserver

import (
	"context"
	"fmt"
	"strings"
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

const researchToolDescription = "Run a deep research session over your organization's internal data sources. " +
	"Returns the research plan and findings, and a session name; pass it back as 'session' to ask a follow-up."

// ResearchTool runs deep research turns. The server keeps no conversation
// state: the session name travels with each result and call.
type ResearchTool struct {
	name       string
	researcher discovery.Researcher
	timeout    time.Duration
	metrics    *callMetrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewResearchTool creates the deep research tool. logger may be nil.
func NewResearchTool(cfg *types.Config, researcher discovery.Researcher, logger *zap.Logger) *ResearchTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.ResearchToolName
	if name == "" {
		name = "deep_research"
	}
	return &ResearchTool{
		name:       name,
		researcher: researcher,
		timeout:    cfg.ResearchTimeout,
		metrics:    newCallMetrics(name, toolKindResearch),
		logger:     logger.Named("tool").With(zap.String("tool", name)),
		tracer:     otel.Tracer("agentspace/mcpserver"),
	}
}

// Definition returns the MCP tool definition.
func (t *ResearchTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        t.name,
		Description: researchToolDescription,
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Research question or follow-up instruction",
				},
				"session": {
					Type:        "string",
					Description: "Session name returned by an earlier call; omit to start a new session",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Research validates the arguments and makes exactly one assistant call.
func (t *ResearchTool) Research(ctx context.Context, query, session string) (*types.ResearchResult, error) {
	q, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	session = strings.TrimSpace(session)
	if session != "" && !strings.Contains(session, "/sessions/") {
		return nil, types.NewInvalidArgument("session", "must be a session name returned by an earlier call")
	}

	req := types.ResearchRequest{Query: q, Session: session, RequestID: uuid.NewString()}
	ctx, span := t.tracer.Start(ctx, "mcp.tool.deep_research", trace.WithAttributes(
		attribute.String("mcp.tool.name", t.name),
		attribute.String("agentspace.request_id", req.RequestID),
	))
	defer span.End()

	start := time.Now()
	result, err := callWithTimeout(ctx, t.timeout, func(ctx context.Context) (*types.ResearchResult, error) {
		return t.researcher.Research(ctx, req)
	})
	if err == nil && result == nil {
		err = fmt.Errorf("%w: backend returned no result", discovery.ErrMalformedResponse)
	}
	if err != nil {
		err = backendFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, errorType(err))
		t.logger.Warn("deep research failed",
			zap.String("request_id", req.RequestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("agentspace.replies", len(result.Replies)))
	t.logger.Debug("deep research completed",
		zap.String("request_id", req.RequestID),
		zap.Int("replies", len(result.Replies)),
		zap.String("session", result.Session),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// HandleSDKToolCall is the mcp.ToolHandler for the deep research tool.
func (t *ResearchTool) HandleSDKToolCall(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	text, err := t.handle(ctx, req)
	return finishCall(ctx, t.logger, t.metrics, req, start, text, err), nil
}

func (t *ResearchTool) handle(ctx context.Context, req *mcp.CallToolRequest) (string, error) {
	var args types.ResearchToolArgs
	if err := decodeArguments(req, &args); err != nil {
		return "", err
	}
	result, err := t.Research(ctx, args.Query, args.Session)
	if err != nil {
		return "", err
	}
	return FormatResearch(result), nil
}
