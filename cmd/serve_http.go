package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbrache/goose/internal/config"
	"github.com/jbrache/goose/internal/mcpserver"
	"github.com/jbrache/goose/internal/types"
)

var (
	httpHost           string
	httpPort           int
	httpAllowedIPs     []string
	httpTrustedProxies []string
	httpIPAuth         bool
	oidcIssuer         string
	oidcClientID       string
)

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Serve the MCP tools over streamable HTTP and SSE",
	Long: `
Serve the search tools over HTTP instead of stdio. The /mcp path accepts both
the streamable HTTP transport and legacy SSE clients; /health reports status.

Access can be restricted by client IP (enabled by default, localhost only) and
by OIDC bearer tokens. When both are configured a request must pass both.
X-Forwarded-For and X-Real-IP are only read from --trusted-proxies peers.

Examples:
  agentspace-mcp serve-http                                   # localhost:8080, localhost clients only
  agentspace-mcp serve-http --host 0.0.0.0 --allowed-ips 10.0.0.0/8
  agentspace-mcp serve-http --host 0.0.0.0 --allowed-ips 10.0.0.0/8 --trusted-proxies 10.8.0.2
  agentspace-mcp serve-http --enable-ip-auth=false \
      --oidc-issuer https://accounts.google.com --oidc-client-id my-client
`,
	Args: cobra.NoArgs,
	RunE: runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().StringVar(&httpHost, "host", "localhost", "Server host address")
	serveHTTPCmd.Flags().IntVar(&httpPort, "port", 8080, "Server port")
	serveHTTPCmd.Flags().StringSliceVar(&httpAllowedIPs, "allowed-ips", config.LocalhostIPs, "Comma-separated list of allowed IP addresses/ranges")
	serveHTTPCmd.Flags().StringSliceVar(&httpTrustedProxies, "trusted-proxies", nil, "Comma-separated proxy addresses/ranges whose forwarding headers are honoured")
	serveHTTPCmd.Flags().BoolVar(&httpIPAuth, "enable-ip-auth", true, "Enable IP-based authentication")
	serveHTTPCmd.Flags().StringVar(&oidcIssuer, "oidc-issuer", "", "OIDC issuer URL; enables bearer-token verification")
	serveHTTPCmd.Flags().StringVar(&oidcClientID, "oidc-client-id", "", "Expected audience of OIDC tokens")
}

// httpOverrides copies explicitly set flags over the loaded configuration.
func httpOverrides(cmd *cobra.Command) configure {
	return func(cfg *types.Config) {
		flags := cmd.Flags()
		if flags.Changed("host") {
			cfg.MCPServerHost = httpHost
		}
		if flags.Changed("port") {
			cfg.MCPServerPort = httpPort
		}
		if flags.Changed("allowed-ips") {
			cfg.MCPAllowedIPs = httpAllowedIPs
		}
		if flags.Changed("trusted-proxies") {
			cfg.MCPTrustedProxies = httpTrustedProxies
		}
		if flags.Changed("enable-ip-auth") {
			cfg.MCPIPAuthEnabled = httpIPAuth
		}
		if flags.Changed("oidc-issuer") {
			cfg.OIDCIssuer = oidcIssuer
		}
		if flags.Changed("oidc-client-id") {
			cfg.OIDCClientID = oidcClientID
		}
	}
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := loadApp(ctx, httpOverrides(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := config.ValidateHTTP(a.cfg); err != nil {
		return err
	}

	server, err := a.newServer()
	if err != nil {
		return err
	}

	middlewares, err := mcpserver.BuildAuthMiddlewares(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to configure authentication: %w", err)
	}
	if len(middlewares) == 0 {
		a.logger.Warn("No authentication enabled for the HTTP transport")
	}
	for _, mw := range middlewares {
		server.Use(mw)
	}

	a.logger.Info("Starting MCP HTTP server",
		zap.String("address", server.Address()),
		zap.Bool("ip_auth", a.cfg.MCPIPAuthEnabled),
		zap.Bool("oidc", a.cfg.OIDCIssuer != ""))

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("MCP HTTP server failed: %w", err)
	}

	a.logger.Info("MCP HTTP server stopped")
	return nil
}
