package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jbrache/goose/internal/types"
)

// ServerName is the implementation name reported during MCP initialization.
const ServerName = "agentspace-mcp"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// ServerWrapper wraps the MCP SDK server with the agentspace tools installed
// and serves it over stdio or HTTP.
type ServerWrapper struct {
	sdkServer   *mcp.Server
	registry    *ToolRegistry
	cfg         *types.Config
	logger      *zap.Logger
	middlewares []Middleware
	startedAt   time.Time
}

// NewServerWrapper creates the SDK server and installs every tool in registry.
func NewServerWrapper(cfg *types.Config, registry *ToolRegistry, version string, logger *zap.Logger) (*ServerWrapper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if version == "" {
		version = "dev"
	}

	sdkServer := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	registry.Install(sdkServer)

	sw := &ServerWrapper{
		sdkServer: sdkServer,
		registry:  registry,
		cfg:       cfg,
		logger:    logger.Named("server"),
		startedAt: time.Now(),
	}
	sw.logger.Info("MCP server initialized",
		zap.String("version", version),
		zap.Strings("tools", registry.Names()),
	)
	return sw, nil
}

// SDKServer returns the underlying SDK server instance.
func (sw *ServerWrapper) SDKServer() *mcp.Server {
	return sw.sdkServer
}

// RunStdio serves MCP over stdin/stdout until the client disconnects or ctx is done.
// A client closing stdin is a normal shutdown.
func (sw *ServerWrapper) RunStdio(ctx context.Context) error {
	sw.logger.Info("serving MCP over stdio")
	err := sw.sdkServer.Run(ctx, &mcp.StdioTransport{})
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		sw.logger.Info("stdio session ended")
		return nil
	}
	return fmt.Errorf("stdio server failed: %w", err)
}

// Use appends an HTTP middleware. Middlewares run in the order they were added.
func (sw *ServerWrapper) Use(mw Middleware) {
	if mw != nil {
		sw.middlewares = append(sw.middlewares, mw)
	}
}

// Handler returns the HTTP handler: streamable HTTP on /, both transports on /mcp
// and /health, wrapped in the configured middlewares, access logging and an
// OpenTelemetry server span per request.
func (sw *ServerWrapper) Handler() http.Handler {
	getServer := func(r *http.Request) *mcp.Server { return sw.sdkServer }

	mux := http.NewServeMux()
	mux.Handle("/", mcp.NewStreamableHTTPHandler(getServer, nil))
	mux.Handle("/mcp", NewDualTransportHandler(getServer))
	mux.HandleFunc("/health", sw.handleHealthCheck)

	var handler http.Handler = mux
	for i := len(sw.middlewares) - 1; i >= 0; i-- {
		handler = sw.middlewares[i](handler)
	}
	return otelhttp.NewHandler(sw.loggingMiddleware(handler), ServerName,
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
	)
}

// Address returns host:port from the configuration.
func (sw *ServerWrapper) Address() string {
	return net.JoinHostPort(sw.cfg.MCPServerHost, strconv.Itoa(sw.cfg.MCPServerPort))
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (sw *ServerWrapper) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", sw.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", sw.Address(), err)
	}
	return sw.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is done, then shuts down gracefully
// within the configured shutdown timeout.
func (sw *ServerWrapper) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           sw.Handler(),
		ReadTimeout:       sw.cfg.MCPServerReadTimeout,
		ReadHeaderTimeout: sw.cfg.MCPServerReadTimeout,
		WriteTimeout:      sw.cfg.MCPServerWriteTimeout,
		IdleTimeout:       sw.cfg.MCPServerIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sw.logger.Info("MCP HTTP server listening", zap.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sw.logger.Info("stopping MCP HTTP server")

		timeout := sw.cfg.MCPServerShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			sw.logger.Warn("graceful shutdown failed, forcing close", zap.Error(err))
			return server.Close()
		}
		return nil
	})

	err := g.Wait()
	sw.logger.Info("MCP HTTP server stopped")
	return err
}

type healthStatus struct {
	Status string   `json:"status"`
	Server string   `json:"server"`
	Tools  []string `json:"tools"`
	Uptime string   `json:"uptime"`
}

func (sw *ServerWrapper) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	status := healthStatus{
		Status: "healthy",
		Server: ServerName,
		Tools:  sw.registry.Names(),
		Uptime: time.Since(sw.startedAt).Round(time.Second).String(),
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		sw.logger.Warn("failed to write health response", zap.Error(err))
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += int64(n)
	return n, err
}

// Flush keeps SSE streaming working through the wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func (sw *ServerWrapper) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r.Header.Del(clientIPHeader)
		lrw := newLoggingResponseWriter(w)
		next.ServeHTTP(lrw, r)

		sw.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.status),
			zap.Int64("bytes", lrw.size),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
			zap.String("client_ip", r.Header.Get(clientIPHeader)),
			zap.String("forwarded", strings.Join(r.Header.Values("X-Forwarded-For"), ",")),
			zap.String("user_agent", r.Header.Get("User-Agent")),
		)
	})
}
