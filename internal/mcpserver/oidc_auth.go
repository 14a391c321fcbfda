package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/modelcontextprotocol/go-sdk/auth"
	"go.uber.org/zap"
)

// TokenVerifier verifies a raw ID token. *oidc.IDTokenVerifier satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// TokenInfo describes the caller behind a verified bearer token.
type TokenInfo struct {
	Subject   string
	Email     string
	Issuer    string
	ExpiresAt time.Time
}

// OIDCAuthMiddleware requires a bearer ID token issued for the configured client.
type OIDCAuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewOIDCAuthMiddleware discovers the issuer and verifies tokens against its keys.
func NewOIDCAuthMiddleware(ctx context.Context, issuer, clientID string, logger *zap.Logger) (*OIDCAuthMiddleware, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider %s: %w", issuer, err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return NewOIDCAuthMiddlewareWithVerifier(verifier, logger), nil
}

// NewOIDCAuthMiddlewareWithVerifier uses an existing verifier.
func NewOIDCAuthMiddlewareWithVerifier(verifier TokenVerifier, logger *zap.Logger) *OIDCAuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OIDCAuthMiddleware{verifier: verifier, logger: logger.Named("oidc")}
}

// sdkTokenInfo hands the verified caller to the MCP SDK, which exposes it to
// tool handlers as CallToolRequest.Extra.TokenInfo.
func sdkTokenInfo(_ context.Context, _ string, r *http.Request) (*auth.TokenInfo, error) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.TokenInfo{
		UserID:     user.Subject,
		Expiration: user.ExpiresAt,
		Extra: map[string]any{
			"email":  user.Email,
			"issuer": user.Issuer,
		},
	}, nil
}

// Middleware rejects requests without a valid bearer token with 401.
// /health stays open for probes.
func (m *OIDCAuthMiddleware) Middleware(next http.Handler) http.Handler {
	verified := auth.RequireBearerToken(sdkTokenInfo, nil)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Debug("no bearer token in request", zap.String("path", r.URL.Path))
			m.sendAuthenticationRequired(w)
			return
		}

		info, err := m.validateToken(r.Context(), token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("remote", r.RemoteAddr),
				zap.Error(err),
			)
			m.sendAuthenticationRequired(w)
			return
		}

		m.logger.Debug("authenticated", zap.String("subject", info.Subject), zap.String("email", info.Email))
		ctx := context.WithValue(r.Context(), userContextKey, info)
		verified.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) string {
	const bearerPrefix = "bearer "
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authHeader) > len(bearerPrefix) && strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(authHeader[len(bearerPrefix):])
	}
	return ""
}

func (m *OIDCAuthMiddleware) validateToken(ctx context.Context, raw string) (*TokenInfo, error) {
	idToken, err := m.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	info := &TokenInfo{
		Subject:   idToken.Subject,
		Issuer:    idToken.Issuer,
		ExpiresAt: idToken.Expiry,
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err == nil {
		info.Email = claims.Email
	}
	return info, nil
}

func (m *OIDCAuthMiddleware) sendAuthenticationRequired(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="agentspace-mcp"`)
	writeJSONRPCError(w, http.StatusUnauthorized, -32001, "Authentication required", nil)
}

// UserFromContext returns the verified caller, if any.
func UserFromContext(ctx context.Context) (*TokenInfo, bool) {
	info, ok := ctx.Value(userContextKey).(*TokenInfo)
	return info, ok
}
