package mcpserver

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// clientIPHeader carries the resolved client address to tool handlers.
// Inbound values are dropped by the access log middleware.
const clientIPHeader = "X-Agentspace-Client-Ip"

// IPAuthMiddleware provides IP-based access control for the HTTP transport.
// X-Forwarded-For and X-Real-IP are only honoured when the peer is a trusted proxy.
type IPAuthMiddleware struct {
	allowedNets []*net.IPNet
	trustedNets []*net.IPNet
	logger      *zap.Logger
}

// NewIPAuthMiddleware creates a new IP authentication middleware.
// Entries may be single addresses or CIDR blocks.
func NewIPAuthMiddleware(allowedIPs, trustedProxies []string, logger *zap.Logger) (*IPAuthMiddleware, error) {
	if len(allowedIPs) == 0 {
		return nil, fmt.Errorf("no allowed IPs specified")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed, err := parseNetworks(allowedIPs)
	if err != nil {
		return nil, err
	}
	trusted, err := parseNetworks(trustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	middleware := &IPAuthMiddleware{
		allowedNets: allowed,
		trustedNets: trusted,
		logger:      logger.Named("ipauth"),
	}
	middleware.logger.Info("IP allow-list enabled",
		zap.Int("ranges", len(allowed)),
		zap.Int("trusted_proxies", len(trusted)),
	)
	return middleware, nil
}

func parseNetworks(entries []string) ([]*net.IPNet, error) {
	networks := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR block %s: %v", entry, err)
			}
			networks = append(networks, network)
			continue
		}

		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address: %s", entry)
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		networks = append(networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return networks, nil
}

// Middleware rejects requests whose client IP is not allowed with 403.
func (m *IPAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := m.ClientIP(r)

		if !m.IsIPAllowed(clientIP) {
			m.logger.Warn("access denied",
				zap.String("client_ip", clientIP),
				zap.String("remote", r.RemoteAddr),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.String("user_agent", r.Header.Get("User-Agent")),
			)
			writeJSONRPCError(w, http.StatusForbidden, -32603, "Access denied: IP not authorized", nil)
			return
		}

		r.Header.Set(clientIPHeader, clientIP)
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the address of the caller.
// A peer outside the trusted proxies is the client, whatever headers it sends.
// Behind a trusted proxy X-Forwarded-For is walked from the nearest hop and the
// first untrusted address wins; X-Real-IP is the fallback.
func (m *IPAuthMiddleware) ClientIP(r *http.Request) string {
	peer := remoteIP(r)
	if !containsIP(m.trustedNets, peer) {
		return peer
	}

	hops := forwardedHops(r)
	for i := len(hops) - 1; i >= 0; i-- {
		if i == 0 || !containsIP(m.trustedNets, hops[i]) {
			return hops[i]
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// forwardedHops lists every X-Forwarded-For entry, client first.
func forwardedHops(r *http.Request) []string {
	var hops []string
	for _, value := range r.Header.Values("X-Forwarded-For") {
		for _, part := range strings.Split(value, ",") {
			if hop := strings.TrimSpace(part); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}

func containsIP(networks []*net.IPNet, ipStr string) bool {
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil {
		return false
	}
	for _, network := range networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsIPAllowed reports whether ipStr falls inside an allowed range.
func (m *IPAuthMiddleware) IsIPAllowed(ipStr string) bool {
	return containsIP(m.allowedNets, ipStr)
}
