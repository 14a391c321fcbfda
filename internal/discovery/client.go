package discovery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/discoveryengine/v1"

	"github.com/jbrache/goose/internal/types"
)

// Backend is the search/answer service the MCP tools call.
// Implementations must be safe for concurrent use.
type Backend interface {
	Answer(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error)
	Search(ctx context.Context, req types.DocumentSearchRequest) (*types.DocumentSearchResult, error)
}

// Researcher runs deep research turns against the engine's assistant.
type Researcher interface {
	Research(ctx context.Context, req types.ResearchRequest) (*types.ResearchResult, error)
}

const (
	// Query classification types sent with every answer request
	queryTypeAdversarial        = "ADVERSARIAL_QUERY"
	queryTypeNonAnswerSeeking   = "NON_ANSWER_SEEKING_QUERY"
	maxRephraseSteps            = 1
	maxExtractiveAnswerCount    = 2
	maxExtractiveSegmentCount   = 2
	queryExpansionConditionAuto = "AUTO"
	spellCorrectionModeAuto     = "AUTO"
)

// Client calls Discovery Engine through the generated REST client.
// It holds only immutable settings plus a thread-safe limiter and service.
type Client struct {
	service         *discoveryengine.Service
	httpClient      *http.Client
	cfg             *types.Config
	answerConfig    string
	searchConfig    string
	assistURL       string
	limiter         *rate.Limiter
	logger          *zap.Logger
	tracer          trace.Tracer
	requestTimeout  time.Duration
	researchTimeout time.Duration
}

// NewClient creates a client with credentials resolved from cfg.
func NewClient(ctx context.Context, cfg *types.Config, logger *zap.Logger) (*Client, error) {
	service, err := NewService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	httpClient, err := NewHTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewClientWithService(cfg, service, httpClient, logger), nil
}

// NewClientWithService wraps an already constructed service.
// httpClient carries the streaming assistant calls; nil uses http.DefaultClient.
func NewClientWithService(cfg *types.Config, service *discoveryengine.Service, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		service:         service,
		httpClient:      httpClient,
		cfg:             cfg,
		answerConfig:    ServingConfigName(cfg, cfg.ServingConfigID),
		searchConfig:    ServingConfigName(cfg, cfg.SearchConfigID),
		assistURL:       EndpointFor(cfg) + "v1alpha/" + AssistantName(cfg) + ":streamAssist",
		limiter:         rate.NewLimiter(limit, burst),
		logger:          logger.Named("discovery"),
		tracer:          otel.Tracer("agentspace/discovery"),
		requestTimeout:  cfg.RequestTimeout,
		researchTimeout: cfg.ResearchTimeout,
	}
}

// Answer issues a single answer request and converts the response.
// The call is never retried.
func (c *Client) Answer(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error) {
	ctx, span := c.tracer.Start(ctx, "discovery.answer", trace.WithAttributes(
		attribute.String("discovery.serving_config", c.answerConfig),
		attribute.String("agentspace.request_id", req.RequestID),
	))
	defer span.End()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(span, "answer", limiterError(ctx, err))
	}

	start := time.Now()
	resp, err := c.doAnswer(ctx, req.Query)
	if err != nil {
		return nil, c.fail(span, "answer", err)
	}

	result, err := convertAnswer(resp)
	if err != nil {
		return nil, c.fail(span, "answer", err)
	}

	span.SetAttributes(attribute.Int("discovery.citations", len(result.Citations)))
	c.logger.Debug("answer completed",
		zap.String("request_id", req.RequestID),
		zap.Int("citations", len(result.Citations)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// Search issues a single search request for ranked documents.
func (c *Client) Search(ctx context.Context, req types.DocumentSearchRequest) (*types.DocumentSearchResult, error) {
	ctx, span := c.tracer.Start(ctx, "discovery.search", trace.WithAttributes(
		attribute.String("discovery.serving_config", c.searchConfig),
		attribute.String("agentspace.request_id", req.RequestID),
	))
	defer span.End()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(span, "search", limiterError(ctx, err))
	}

	start := time.Now()
	resp, err := c.doSearch(ctx, req)
	if err != nil {
		return nil, c.fail(span, "search", err)
	}

	result, err := convertSearch(resp)
	if err != nil {
		return nil, c.fail(span, "search", err)
	}

	span.SetAttributes(attribute.Int("discovery.documents", len(result.Documents)))
	c.logger.Debug("search completed",
		zap.String("request_id", req.RequestID),
		zap.Int("documents", len(result.Documents)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// doAnswer picks the engine or data store resource tree
func (c *Client) doAnswer(ctx context.Context, query string) (*discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryResponse, error) {
	body := c.answerRequest(query)
	if c.cfg.EngineID != "" {
		return c.service.Projects.Locations.Collections.Engines.ServingConfigs.Answer(c.answerConfig, body).Context(ctx).Do()
	}
	return c.service.Projects.Locations.Collections.DataStores.ServingConfigs.Answer(c.answerConfig, body).Context(ctx).Do()
}

func (c *Client) doSearch(ctx context.Context, req types.DocumentSearchRequest) (*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse, error) {
	body := c.searchRequest(req)
	if c.cfg.EngineID != "" {
		return c.service.Projects.Locations.Collections.Engines.ServingConfigs.Search(c.searchConfig, body).Context(ctx).Do()
	}
	return c.service.Projects.Locations.Collections.DataStores.ServingConfigs.Search(c.searchConfig, body).Context(ctx).Do()
}

func (c *Client) answerRequest(query string) *discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequest {
	generation := &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestAnswerGenerationSpec{
		IncludeCitations:   true,
		AnswerLanguageCode: c.cfg.LanguageCode,
	}
	if c.cfg.ModelVersion != "" {
		generation.ModelSpec = &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestAnswerGenerationSpecModelSpec{
			ModelVersion: c.cfg.ModelVersion,
		}
	}
	if c.cfg.Preamble != "" {
		generation.PromptSpec = &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestAnswerGenerationSpecPromptSpec{
			Preamble: c.cfg.Preamble,
		}
	}

	return &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequest{
		Query: &discoveryengine.GoogleCloudDiscoveryengineV1Query{Text: query},
		QueryUnderstandingSpec: &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestQueryUnderstandingSpec{
			QueryRephraserSpec: &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestQueryUnderstandingSpecQueryRephraserSpec{
				MaxRephraseSteps: maxRephraseSteps,
			},
			QueryClassificationSpec: &discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryRequestQueryUnderstandingSpecQueryClassificationSpec{
				Types: []string{queryTypeAdversarial, queryTypeNonAnswerSeeking},
			},
		},
		AnswerGenerationSpec: generation,
	}
}

func (c *Client) searchRequest(req types.DocumentSearchRequest) *discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = c.cfg.PageSize
	}

	summary := &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecSummarySpec{
		SummaryResultCount:           int64(c.cfg.SummaryResultCount),
		IncludeCitations:             true,
		IgnoreAdversarialQuery:       true,
		IgnoreNonSummarySeekingQuery: true,
	}
	if c.cfg.SummaryModel != "" {
		summary.ModelSpec = &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecSummarySpecModelSpec{
			Version: c.cfg.SummaryModel,
		}
	}
	if c.cfg.Preamble != "" {
		summary.ModelPromptSpec = &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecSummarySpecModelPromptSpec{
			Preamble: c.cfg.Preamble,
		}
	}

	return &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest{
		Query:    req.Query,
		PageSize: int64(pageSize),
		ContentSearchSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpec{
			SnippetSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecSnippetSpec{
				ReturnSnippet: true,
			},
			SummarySpec: summary,
			ExtractiveContentSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecExtractiveContentSpec{
				MaxExtractiveAnswerCount:     maxExtractiveAnswerCount,
				MaxExtractiveSegmentCount:    maxExtractiveSegmentCount,
				ReturnExtractiveSegmentScore: true,
			},
		},
		QueryExpansionSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestQueryExpansionSpec{
			Condition: queryExpansionConditionAuto,
		},
		SpellCorrectionSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestSpellCorrectionSpec{
			Mode: spellCorrectionModeAuto,
		},
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withDeadline(ctx, c.requestTimeout)
}

func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) fail(span trace.Span, op string, err error) error {
	backendErr := ClassifyError(err)
	span.RecordError(backendErr)
	span.SetStatus(codes.Error, string(backendErr.Kind))
	c.logger.Warn("backend call failed",
		zap.String("operation", op),
		zap.String("kind", string(backendErr.Kind)),
		zap.Int("status", backendErr.StatusCode),
		zap.Error(err),
	)
	return backendErr
}

// limiterError reports a limiter wait that would overrun the deadline as a timeout.
func limiterError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rate limiter: %w", ctxErr)
	}
	return fmt.Errorf("rate limiter: %v: %w", err, context.DeadlineExceeded)
}
