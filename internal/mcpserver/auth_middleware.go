package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jbrache/goose/internal/types"
)

// BuildAuthMiddlewares returns the HTTP auth chain for cfg.
// When both the IP allow-list and OIDC are configured a request must pass both.
func BuildAuthMiddlewares(ctx context.Context, cfg *types.Config, logger *zap.Logger) ([]Middleware, error) {
	var chain []Middleware

	if cfg.MCPIPAuthEnabled {
		ipAuth, err := NewIPAuthMiddleware(cfg.MCPAllowedIPs, cfg.MCPTrustedProxies, logger)
		if err != nil {
			return nil, types.NewConfigurationError(err.Error(), "MCP_ALLOWED_IPS", "MCP_TRUSTED_PROXIES")
		}
		chain = append(chain, ipAuth.Middleware)
	}

	if cfg.OIDCIssuer != "" {
		oidcAuth, err := NewOIDCAuthMiddleware(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, logger)
		if err != nil {
			return nil, types.NewConfigurationError(err.Error(), "MCP_OIDC_ISSUER")
		}
		chain = append(chain, oidcAuth.Middleware)
	}

	return chain, nil
}

type jsonRPCError struct {
	JSONRPC string `json:"jsonrpc"`
	Error   struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data,omitempty"`
	} `json:"error"`
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string, data interface{}) {
	body := jsonRPCError{JSONRPC: "2.0"}
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Data = data

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
