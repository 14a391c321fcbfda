package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jbrache/goose/internal/discovery"
	"github.com/jbrache/goose/internal/types"
)

type callResult[T any] struct {
	value T
	err   error
}

// callWithTimeout runs fn under a deadline and returns as soon as the deadline
// passes, even if fn ignores its context.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan callResult[T], 1)
	go func() {
		value, err := fn(ctx)
		done <- callResult[T]{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// normalizeQuery trims the query and folds compatibility characters
// (full-width letters, ligatures) so equivalent queries reach the backend identically.
func normalizeQuery(query string) (string, error) {
	q := strings.TrimSpace(norm.NFKC.String(query))
	if q == "" {
		return "", types.NewInvalidArgument("query", "query must not be empty")
	}
	return q, nil
}

// backendFailure maps an error from a backend call onto *types.BackendError.
func backendFailure(err error) error {
	return discovery.ClassifyError(err)
}

// errorType is the error.type metric attribute for err.
func errorType(err error) string {
	if err == nil {
		return ""
	}
	if backendErr, ok := types.AsBackendError(err); ok {
		return string(types.ErrorTypeBackend) + "." + string(backendErr.Kind)
	}
	return string(types.ClassifyError(err))
}

// toolErrorText is the text shown to the MCP client for a failed call.
func toolErrorText(err error) string {
	var invalid *types.InvalidArgumentError
	if errors.As(err, &invalid) {
		return fmt.Sprintf("Invalid argument %q: %s", invalid.Argument, invalid.Message)
	}

	if backendErr, ok := types.AsBackendError(err); ok {
		msg := fmt.Sprintf("Search failed (%s): %s", backendErr.Kind, backendErr.Message)
		if backendErr.Suggestion != "" {
			msg += "\nSuggestion: " + backendErr.Suggestion
		}
		return msg
	}

	return "Search failed: " + err.Error()
}

// finishCall records the call in metrics, writes the per-call log line and
// turns the outcome into a tool result.
func finishCall(ctx context.Context, logger *zap.Logger, m *callMetrics, req *mcp.CallToolRequest, start time.Time, text string, err error) *mcp.CallToolResult {
	elapsed := time.Since(start)
	m.observe(ctx, elapsed, err)

	fields := append(callerFields(req), zap.Duration("elapsed", elapsed))
	if err != nil {
		logger.Info("tool call failed", append(fields, zap.String("error_type", errorType(err)))...)
		return types.NewErrorResult(toolErrorText(err))
	}
	logger.Info("tool call completed", fields...)
	return types.NewTextResult(text)
}

// callerFields identifies the caller when the transport knows it:
// the OIDC subject and the client IP resolved by the allow-list.
func callerFields(req *mcp.CallToolRequest) []zap.Field {
	if req == nil || req.Extra == nil {
		return nil
	}
	var fields []zap.Field
	if info := req.Extra.TokenInfo; info != nil && info.UserID != "" {
		fields = append(fields, zap.String("subject", info.UserID))
	}
	if ip := req.Extra.Header.Get(clientIPHeader); ip != "" {
		fields = append(fields, zap.String("client_ip", ip))
	}
	return fields
}

// decodeArguments unmarshals the raw tool arguments into dst.
func decodeArguments(req *mcp.CallToolRequest, dst interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, dst); err != nil {
		return types.NewInvalidArgument("arguments", fmt.Sprintf("failed to parse arguments: %v", err))
	}
	return nil
}
