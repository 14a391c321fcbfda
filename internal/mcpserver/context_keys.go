package mcpserver

type contextKey string

// userContextKey holds the *TokenInfo set by the OIDC middleware
const userContextKey contextKey = "agentspace.user"
