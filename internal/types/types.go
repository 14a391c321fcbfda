package types

import "time"

// Config represents the agentspace MCP server configuration.
// Values are read once at startup and passed explicitly to every component.
type Config struct {
	// Discovery Engine backend
	ProjectID       string        `json:"project_id" env:"AGENTSPACE_PROJECT_ID"`
	Location        string        `json:"location" env:"AGENTSPACE_LOCATION,default=global"`
	EngineID        string        `json:"engine_id" env:"AGENTSPACE_ENGINE_ID"`
	DataStoreID     string        `json:"data_store_id" env:"AGENTSPACE_DATA_STORE_ID"`
	CollectionID    string        `json:"collection_id" env:"AGENTSPACE_COLLECTION_ID,default=default_collection"`
	ServingConfigID string        `json:"serving_config_id" env:"AGENTSPACE_SERVING_CONFIG_ID,default=default_serving_config"`
	SearchConfigID  string        `json:"search_config_id" env:"AGENTSPACE_SEARCH_CONFIG_ID,default=default_config"`
	Endpoint        string        `json:"endpoint" env:"AGENTSPACE_ENDPOINT"`
	CredentialsFile string        `json:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	RequestTimeout  time.Duration `json:"request_timeout" env:"AGENTSPACE_REQUEST_TIMEOUT,default=30s"`
	RateLimit       float64       `json:"rate_limit" env:"AGENTSPACE_RATE_LIMIT,default=5.0"`
	RateBurst       int           `json:"rate_burst" env:"AGENTSPACE_RATE_BURST,default=10"`

	// Assistant used by deep research
	AssistantID     string        `json:"assistant_id" env:"AGENTSPACE_ASSISTANT_ID,default=default_assistant"`
	ResearchTimeout time.Duration `json:"research_timeout" env:"AGENTSPACE_RESEARCH_TIMEOUT,default=5m"`

	// Answer generation
	Preamble     string `json:"preamble" env:"AGENTSPACE_PREAMBLE,default=Give a detailed answer."`
	ModelVersion string `json:"model_version" env:"AGENTSPACE_MODEL_VERSION,default=gemini-2.0-flash-001/answer_gen/v1"`
	LanguageCode string `json:"language_code" env:"AGENTSPACE_LANGUAGE_CODE,default=en"`

	// Document search
	PageSize           int    `json:"page_size" env:"AGENTSPACE_PAGE_SIZE,default=10"`
	SummaryResultCount int    `json:"summary_result_count" env:"AGENTSPACE_SUMMARY_RESULT_COUNT,default=5"`
	SummaryModel       string `json:"summary_model" env:"AGENTSPACE_SUMMARY_MODEL,default=stable"`

	// MCP tools
	ToolPrefix         string `json:"tool_prefix" env:"MCP_TOOL_PREFIX"`
	SearchToolName     string `json:"search_tool_name" env:"MCP_SEARCH_TOOL_NAME,default=search"`
	DocumentToolName   string `json:"document_tool_name" env:"MCP_DOCUMENT_TOOL_NAME,default=search_documents"`
	DocumentToolEnable bool   `json:"document_tool_enabled" env:"MCP_DOCUMENT_TOOL_ENABLED,default=true"`
	ResearchToolName   string `json:"research_tool_name" env:"MCP_RESEARCH_TOOL_NAME,default=deep_research"`
	ResearchToolEnable bool   `json:"research_tool_enabled" env:"MCP_RESEARCH_TOOL_ENABLED,default=false"`

	// MCP HTTP transport
	MCPServerHost            string        `json:"mcp_server_host" env:"MCP_SERVER_HOST,default=localhost"`
	MCPServerPort            int           `json:"mcp_server_port" env:"MCP_SERVER_PORT,default=8080"`
	MCPServerReadTimeout     time.Duration `json:"mcp_server_read_timeout" env:"MCP_SERVER_READ_TIMEOUT,default=30s"`
	MCPServerWriteTimeout    time.Duration `json:"mcp_server_write_timeout" env:"MCP_SERVER_WRITE_TIMEOUT,default=2m"`
	MCPServerIdleTimeout     time.Duration `json:"mcp_server_idle_timeout" env:"MCP_SERVER_IDLE_TIMEOUT,default=2m"`
	MCPServerShutdownTimeout time.Duration `json:"mcp_server_shutdown_timeout" env:"MCP_SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	MCPIPAuthEnabled         bool          `json:"mcp_ip_auth_enabled" env:"MCP_IP_AUTH_ENABLED,default=true"`
	MCPAllowedIPsStr         string        `json:"-" env:"MCP_ALLOWED_IPS"`
	MCPAllowedIPs            []string      `json:"mcp_allowed_ips"`
	MCPTrustedProxiesStr     string        `json:"-" env:"MCP_TRUSTED_PROXIES"`
	MCPTrustedProxies        []string      `json:"mcp_trusted_proxies"`
	OIDCIssuer               string        `json:"oidc_issuer" env:"MCP_OIDC_ISSUER"`
	OIDCClientID             string        `json:"oidc_client_id" env:"MCP_OIDC_CLIENT_ID"`

	// Logging
	LogLevel  string `json:"log_level" env:"LOG_LEVEL,default=info"`
	LogFormat string `json:"log_format" env:"LOG_FORMAT,default=console"`

	// Invocation statistics for the query command; empty disables them
	StatsPath string `json:"stats_path" env:"AGENTSPACE_STATS_PATH"`

	// OpenTelemetry
	OTelEnabled              bool    `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=agentspace"`
	OTelExporterOTLPEndpoint string  `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string  `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string  `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
}

