package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrache/goose/internal/types"
)

const testSession = "projects/demo-project/locations/global/collections/default_collection/engines/demo-engine/sessions/123"

// searchOnlyBackend answers and searches but cannot research.
type searchOnlyBackend struct {
	fake *fakeBackend
}

func (b searchOnlyBackend) Answer(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error) {
	return b.fake.Answer(ctx, req)
}

func (b searchOnlyBackend) Search(ctx context.Context, req types.DocumentSearchRequest) (*types.DocumentSearchResult, error) {
	return b.fake.Search(ctx, req)
}

func TestFormatResearch(t *testing.T) {
	testcases := []struct {
		name   string
		result *types.ResearchResult
		want   string
	}{
		{
			name: "replies and session",
			result: &types.ResearchResult{
				Replies: []string{"Step 1: read the wire policy.", "Wires settle in one day."},
				Session: testSession,
			},
			want: "# Research Plan\n" +
				"Step 1: read the wire policy.\n" +
				"Wires settle in one day.\n" +
				"\nSession: " + testSession,
		},
		{
			name:   "no session",
			result: &types.ResearchResult{Replies: []string{"Done."}},
			want:   "# Research Plan\nDone.\n",
		},
		{
			name:   "skipped",
			result: &types.ResearchResult{Replies: []string{}, SkippedReasons: []string{"NON_ASSIST_SEEKING_QUERY_IGNORED"}},
			want:   "# Research Plan\nNo research was generated for this query (non assist seeking query ignored).\n",
		},
		{
			name: "nil",
			want: "",
		},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatResearch(tt.result))
		})
	}
}

func TestResearchTool_Research(t *testing.T) {
	backend := &fakeBackend{
		research: func(ctx context.Context, req types.ResearchRequest) (*types.ResearchResult, error) {
			return &types.ResearchResult{Replies: []string{"plan for " + req.Query}, Session: testSession}, nil
		},
	}
	tool := NewResearchTool(testConfig(), backend, nil)

	result, err := tool.Research(context.Background(), "  ｗｉｒｅ ｆｅｅｓ ", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"plan for wire fees"}, result.Replies)
	assert.Equal(t, testSession, result.Session)

	req := backend.lastResearchRequest()
	assert.Equal(t, "wire fees", req.Query)
	assert.Empty(t, req.Session)
	assert.NotEmpty(t, req.RequestID)
}

func TestResearchTool_InvalidArguments(t *testing.T) {
	testcases := []struct {
		name     string
		query    string
		session  string
		argument string
	}{
		{"empty query", " ", "", "query"},
		{"session is not a resource name", "follow up", "abc", "session"},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			tool := NewResearchTool(testConfig(), backend, nil)

			_, err := tool.Research(context.Background(), tt.query, tt.session)
			var invalid *types.InvalidArgumentError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.argument, invalid.Argument)
			assert.Equal(t, int32(0), backend.calls.Load(), "backend must not be called")
		})
	}
}

func TestResearchTool_BackendFailure(t *testing.T) {
	backend := &fakeBackend{
		research: func(ctx context.Context, req types.ResearchRequest) (*types.ResearchResult, error) {
			return nil, nil
		},
	}
	tool := NewResearchTool(testConfig(), backend, nil)

	result, err := tool.HandleSDKToolCall(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: "deep_research", Arguments: json.RawMessage(`{"query": "q"}`)},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(types.BackendKindMalformed))
	assert.Equal(t, int32(1), backend.calls.Load(), "exactly one backend call, no retries")
}

func TestResearchTool_Definition(t *testing.T) {
	def := NewResearchTool(testConfig(), &fakeBackend{}, nil).Definition()
	assert.Equal(t, "deep_research", def.Name)

	schema, ok := def.InputSchema.(*jsonschema.Schema)
	require.True(t, ok)
	assert.Equal(t, []string{"query"}, schema.Required)
	assert.Contains(t, schema.Properties, "query")
	assert.Contains(t, schema.Properties, "session")
}

func TestToolRegistry_Research(t *testing.T) {
	cfg := testConfig()
	cfg.ResearchToolEnable = true

	registry, err := NewDefaultRegistry(cfg, &fakeBackend{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"deep_research", "search", "search_documents"}, registry.Names())

	_, err = NewDefaultRegistry(cfg, searchOnlyBackend{fake: &fakeBackend{}}, nil)
	assert.ErrorContains(t, err, "does not support deep research")

	cfg.ResearchToolEnable = false
	registry, err = NewDefaultRegistry(cfg, searchOnlyBackend{fake: &fakeBackend{}}, nil)
	require.NoError(t, err)
	assert.NotContains(t, registry.Names(), "deep_research")
}

func TestServerWrapper_ResearchSession(t *testing.T) {
	backend := &fakeBackend{
		research: func(ctx context.Context, req types.ResearchRequest) (*types.ResearchResult, error) {
			if req.Session == "" {
				return &types.ResearchResult{Replies: []string{"Here is the plan."}, Session: testSession}, nil
			}
			return &types.ResearchResult{Replies: []string{"Report for " + req.Query}, Session: req.Session}, nil
		},
	}
	cfg := testConfig()
	cfg.ResearchToolEnable = true
	registry, err := NewDefaultRegistry(cfg, backend, nil)
	require.NoError(t, err)
	server, err := NewServerWrapper(cfg, registry, "test", nil)
	require.NoError(t, err)
	session := connect(t, server)
	ctx := context.Background()

	first, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "deep_research",
		Arguments: map[string]any{"query": "compare wire fees"},
	})
	require.NoError(t, err)
	require.False(t, first.IsError)
	assert.Equal(t, "# Research Plan\nHere is the plan.\n\nSession: "+testSession, resultText(t, first))

	second, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "deep_research",
		Arguments: map[string]any{"query": "start research", "session": testSession},
	})
	require.NoError(t, err)
	require.False(t, second.IsError)
	assert.Contains(t, resultText(t, second), "Report for start research")
	assert.Equal(t, testSession, backend.lastResearchRequest().Session)
}
