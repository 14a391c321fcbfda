package mcpserver

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPAuthMiddleware(t *testing.T) {
	middleware, err := NewIPAuthMiddleware([]string{"192.168.1.10", "10.0.0.0/8", "::1"}, []string{"172.16.0.0/12"}, nil)
	require.NoError(t, err)

	var seenIP string
	handler := middleware.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenIP = r.Header.Get(clientIPHeader)
		w.WriteHeader(http.StatusNoContent)
	}))

	testcases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		wantStatus int
		wantIP     string
	}{
		{"exact ip", "192.168.1.10:5000", nil, http.StatusNoContent, "192.168.1.10"},
		{"cidr", "10.20.30.40:5000", nil, http.StatusNoContent, "10.20.30.40"},
		{"ipv6 loopback", "[::1]:5000", nil, http.StatusNoContent, "::1"},
		{"denied", "203.0.113.9:5000", nil, http.StatusForbidden, ""},
		{"spoofed forwarded for", "203.0.113.9:5000", map[string]string{"X-Forwarded-For": "127.0.0.1"}, http.StatusForbidden, ""},
		{"spoofed real ip", "203.0.113.9:5000", map[string]string{"X-Real-IP": "192.168.1.10"}, http.StatusForbidden, ""},
		{"untrusted peer ignores headers", "10.0.0.7:5000", map[string]string{"X-Forwarded-For": "203.0.113.9"}, http.StatusNoContent, "10.0.0.7"},
		{"trusted proxy forwards client", "172.16.0.1:5000", map[string]string{"X-Forwarded-For": "10.1.1.1"}, http.StatusNoContent, "10.1.1.1"},
		{"trusted proxy chain", "172.16.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.1.1.1, 172.16.0.2"}, http.StatusNoContent, "10.1.1.1"},
		{"trusted proxy forwards denied client", "172.16.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.9"}, http.StatusForbidden, ""},
		{"trusted proxy real ip", "172.16.0.1:5000", map[string]string{"X-Real-IP": "192.168.1.10"}, http.StatusNoContent, "192.168.1.10"},
		{"trusted proxy without headers", "172.16.0.1:5000", nil, http.StatusForbidden, ""},
		{"garbage forwarded", "172.16.0.1:5000", map[string]string{"X-Forwarded-For": "not-an-ip"}, http.StatusForbidden, ""},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			seenIP = ""
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantIP, seenIP)
			if tt.wantStatus == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "Access denied")
			}
		})
	}
}

func TestIPAuthMiddleware_NoTrustedProxies(t *testing.T) {
	middleware, err := NewIPAuthMiddleware([]string{"127.0.0.1", "::1"}, nil, nil)
	require.NoError(t, err)
	handler := middleware.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.RemoteAddr = "203.0.113.9:41000"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	req.Header.Set("X-Real-IP", "127.0.0.1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNewIPAuthMiddleware_Invalid(t *testing.T) {
	_, err := NewIPAuthMiddleware(nil, nil, nil)
	assert.Error(t, err)

	_, err = NewIPAuthMiddleware([]string{"10.0.0.0/33"}, nil, nil)
	assert.Error(t, err)

	_, err = NewIPAuthMiddleware([]string{"localhost"}, nil, nil)
	assert.Error(t, err)

	_, err = NewIPAuthMiddleware([]string{"127.0.0.1"}, []string{"proxy.internal"}, nil)
	assert.Error(t, err)
}

const (
	testIssuer   = "https://issuer.example.com"
	testClientID = "agentspace-mcp"
)

func newTestVerifier(t *testing.T) (*rsa.PrivateKey, *oidc.IDTokenVerifier) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return key, oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testClientID})
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestOIDCAuthMiddleware(t *testing.T) {
	key, verifier := newTestVerifier(t)
	middleware := NewOIDCAuthMiddlewareWithVerifier(verifier, nil)

	var user *TokenInfo
	var sdkInfo *auth.TokenInfo
	handler := middleware.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ = UserFromContext(r.Context())
		sdkInfo = auth.TokenInfoFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	now := time.Now()
	valid := signToken(t, key, jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testClientID,
		"sub":   "user-123",
		"email": "dev@example.com",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	expired := signToken(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testClientID,
		"sub": "user-123",
		"iat": now.Add(-2 * time.Hour).Unix(),
		"exp": now.Add(-time.Hour).Unix(),
	})
	wrongAudience := signToken(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"aud": "someone-else",
		"sub": "user-123",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})

	testcases := []struct {
		name       string
		path       string
		auth       string
		wantStatus int
	}{
		{"valid token", "/mcp", "Bearer " + valid, http.StatusNoContent},
		{"lowercase scheme", "/mcp", "bearer " + valid, http.StatusNoContent},
		{"missing token", "/mcp", "", http.StatusUnauthorized},
		{"basic auth", "/mcp", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"expired", "/mcp", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong audience", "/mcp", "Bearer " + wrongAudience, http.StatusUnauthorized},
		{"tampered", "/mcp", "Bearer " + valid + "x", http.StatusUnauthorized},
		{"health is open", "/health", "", http.StatusNoContent},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			user = nil
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
				assert.Contains(t, rec.Body.String(), "Authentication required")
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, user)
	assert.Equal(t, "user-123", user.Subject)
	assert.Equal(t, "dev@example.com", user.Email)
	assert.Equal(t, testIssuer, user.Issuer)

	require.NotNil(t, sdkInfo, "verified caller is visible to the MCP SDK")
	assert.Equal(t, "user-123", sdkInfo.UserID)
	assert.Equal(t, "dev@example.com", sdkInfo.Extra["email"])
}

func TestIsSSERequest(t *testing.T) {
	testcases := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		want    bool
	}{
		{"sse message post", http.MethodPost, "/mcp?sessionid=abc", nil, true},
		{"streamable post", http.MethodPost, "/mcp", map[string]string{"Accept": "application/json, text/event-stream"}, false},
		{"sse open", http.MethodGet, "/mcp", map[string]string{"Accept": "text/event-stream"}, true},
		{"sse open with params", http.MethodGet, "/mcp", map[string]string{"Accept": "text/event-stream; q=1.0"}, true},
		{"streamable resume", http.MethodGet, "/mcp", map[string]string{"Accept": "text/event-stream", "Mcp-Session-Id": "s1"}, false},
		{"plain get", http.MethodGet, "/mcp", map[string]string{"Accept": "application/json"}, false},
		{"delete", http.MethodDelete, "/mcp", nil, false},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, isSSERequest(req))
		})
	}
}
