package mcpserver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jbrache/goose/internal/types"
)

// fakeBackend records calls and delegates to the configured funcs.
type fakeBackend struct {
	calls atomic.Int32

	mu           sync.Mutex
	lastAnswer   types.SearchRequest
	lastDocument types.DocumentSearchRequest
	lastResearch types.ResearchRequest

	answer   func(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error)
	search   func(ctx context.Context, req types.DocumentSearchRequest) (*types.DocumentSearchResult, error)
	research func(ctx context.Context, req types.ResearchRequest) (*types.ResearchResult, error)
}

func (f *fakeBackend) Answer(ctx context.Context, req types.SearchRequest) (*types.SearchResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastAnswer = req
	f.mu.Unlock()
	if f.answer == nil {
		return &types.SearchResult{Answer: "ok", Citations: []types.Citation{}}, nil
	}
	return f.answer(ctx, req)
}

func (f *fakeBackend) Search(ctx context.Context, req types.DocumentSearchRequest) (*types.DocumentSearchResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastDocument = req
	f.mu.Unlock()
	if f.search == nil {
		return &types.DocumentSearchResult{Documents: []types.DocumentResult{}}, nil
	}
	return f.search(ctx, req)
}

func (f *fakeBackend) Research(ctx context.Context, req types.ResearchRequest) (*types.ResearchResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastResearch = req
	f.mu.Unlock()
	if f.research == nil {
		return &types.ResearchResult{Replies: []string{"plan"}, Session: req.Session}, nil
	}
	return f.research(ctx, req)
}

func (f *fakeBackend) lastAnswerRequest() types.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAnswer
}

func (f *fakeBackend) lastDocumentRequest() types.DocumentSearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDocument
}

func (f *fakeBackend) lastResearchRequest() types.ResearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastResearch
}

func testConfig() *types.Config {
	return &types.Config{
		ProjectID:                "demo-project",
		Location:                 "global",
		EngineID:                 "demo-engine",
		RequestTimeout:           2 * time.Second,
		PageSize:                 10,
		SearchToolName:           "search",
		DocumentToolName:         "search_documents",
		DocumentToolEnable:       true,
		ResearchToolName:         "deep_research",
		ResearchTimeout:          2 * time.Second,
		MCPServerHost:            "127.0.0.1",
		MCPServerPort:            0,
		MCPServerReadTimeout:     5 * time.Second,
		MCPServerWriteTimeout:    5 * time.Second,
		MCPServerIdleTimeout:     5 * time.Second,
		MCPServerShutdownTimeout: time.Second,
	}
}
