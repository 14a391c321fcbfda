package mcpserver

import (
	"context"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/jbrache/goose/internal/discovery"
	"github.com/jbrache/goose/internal/types"
)

// Tool is an MCP tool exposed by this server.
type Tool interface {
	Definition() *mcp.Tool
	HandleSDKToolCall(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// ToolRegistry is the explicit table of tools installed on a server.
type ToolRegistry struct {
	tools  map[string]Tool
	logger *zap.Logger
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry(logger *zap.Logger) *ToolRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolRegistry{
		tools:  make(map[string]Tool),
		logger: logger.Named("registry"),
	}
}

// NewDefaultRegistry registers the answer tool and, when enabled, the document
// and deep research tools. Deep research needs a backend that is also a discovery.Researcher.
func NewDefaultRegistry(cfg *types.Config, backend discovery.Backend, logger *zap.Logger) (*ToolRegistry, error) {
	registry := NewToolRegistry(logger)
	if err := registry.Register(NewSearchQueryTool(cfg, backend, logger)); err != nil {
		return nil, err
	}
	if cfg.DocumentToolEnable {
		if err := registry.Register(NewDocumentSearchTool(cfg, backend, logger)); err != nil {
			return nil, err
		}
	}
	if cfg.ResearchToolEnable {
		researcher, ok := backend.(discovery.Researcher)
		if !ok {
			return nil, fmt.Errorf("backend %T does not support deep research", backend)
		}
		if err := registry.Register(NewResearchTool(cfg, researcher, logger)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds tool. Names must be unique.
func (r *ToolRegistry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	def := tool.Definition()
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool with name '%s' already registered", def.Name)
	}

	r.tools[def.Name] = tool
	r.logger.Debug("registered tool", zap.String("tool", def.Name))
	return nil
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Install adds every registered tool to server.
func (r *ToolRegistry) Install(server *mcp.Server) {
	for _, name := range r.Names() {
		tool := r.tools[name]
		server.AddTool(tool.Definition(), tool.HandleSDKToolCall)
	}
}
