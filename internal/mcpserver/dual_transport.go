package mcpserver

import (
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DualTransportHandler serves Streamable HTTP and legacy SSE clients on one path.
type DualTransportHandler struct {
	streamable *mcp.StreamableHTTPHandler
	sse        *mcp.SSEHandler
}

// NewDualTransportHandler creates a new DualTransportHandler.
func NewDualTransportHandler(getServer func(*http.Request) *mcp.Server) *DualTransportHandler {
	return &DualTransportHandler{
		streamable: mcp.NewStreamableHTTPHandler(getServer, nil),
		sse:        mcp.NewSSEHandler(getServer, nil),
	}
}

// ServeHTTP sends SSE session traffic to the SSE handler and everything else
// to the streamable handler.
func (h *DualTransportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isSSERequest(r) {
		h.sse.ServeHTTP(w, r)
		return
	}
	h.streamable.ServeHTTP(w, r)
}

func isSSERequest(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost:
		// messages for an open SSE session carry its id
		return r.URL.Query().Has("sessionid")
	case http.MethodGet:
		// streamable clients resume with Mcp-Session-Id; a bare event-stream GET opens SSE
		if r.Header.Get("Mcp-Session-Id") != "" {
			return false
		}
		for _, value := range r.Header.Values("Accept") {
			for _, part := range strings.Split(value, ",") {
				mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
				if mediaType == "text/event-stream" || mediaType == "*/*" {
					return true
				}
			}
		}
	}
	return false
}
