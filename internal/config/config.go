package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	env "github.com/netflix/go-env"
	"gopkg.in/yaml.v3"

	"github.com/jbrache/goose/internal/types"
)

// Type alias for Config
type Config = types.Config

const (
	// FileEnvVar points at an optional YAML file keyed by environment variable names.
	FileEnvVar = "AGENTSPACE_CONFIG_FILE"

	maxRequestTimeout  = 5 * time.Minute
	maxResearchTimeout = 30 * time.Minute
	maxPageSize        = 50
	maxSummaryCount    = 10
)

var (
	locationPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	resourcePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	// LocalhostIPs is the default allow-list for the HTTP transport
	LocalhostIPs = []string{"127.0.0.1", "::1"}
)

// Load reads configuration from .env, the optional YAML file and the process
// environment, in increasing order of precedence, and validates it.
// Every failure is reported as a *types.ConfigurationError.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, types.NewConfigurationError(fmt.Sprintf("failed to read .env file: %v", err))
	}

	if path := strings.TrimSpace(os.Getenv(FileEnvVar)); path != "" {
		if err := applyFile(path); err != nil {
			return nil, err
		}
	}

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return nil, types.NewConfigurationError(fmt.Sprintf("failed to parse environment variables: %v", err))
	}

	config.MCPAllowedIPs = splitList(config.MCPAllowedIPsStr)
	if len(config.MCPAllowedIPs) == 0 {
		config.MCPAllowedIPs = append([]string(nil), LocalhostIPs...)
	}
	config.MCPTrustedProxies = splitList(config.MCPTrustedProxiesStr)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyFile exports the keys of a YAML file into the environment without
// overriding variables that are already set.
func applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.NewConfigurationError(fmt.Sprintf("failed to read config file %s: %v", path, err), FileEnvVar)
	}

	values := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &values); err != nil {
		return types.NewConfigurationError(fmt.Sprintf("failed to parse config file %s: %v", path, err), FileEnvVar)
	}

	for key, value := range values {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, stringify(value)); err != nil {
			return types.NewConfigurationError(fmt.Sprintf("failed to apply %s from config file: %v", key, err), key)
		}
	}
	return nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	if err := validateBackendConfig(config); err != nil {
		return err
	}

	if err := validateToolConfig(config); err != nil {
		return err
	}

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
		config.LogLevel = strings.ToLower(config.LogLevel)
	default:
		return types.NewConfigurationError("must be one of debug, info, warn, error", "LOG_LEVEL")
	}

	switch strings.ToLower(config.LogFormat) {
	case "console", "json":
		config.LogFormat = strings.ToLower(config.LogFormat)
	default:
		return types.NewConfigurationError("must be console or json", "LOG_FORMAT")
	}

	return nil
}

// validateBackendConfig validates the Discovery Engine identifiers and call limits
func validateBackendConfig(config *Config) error {
	var missing []string
	if strings.TrimSpace(config.ProjectID) == "" {
		missing = append(missing, "AGENTSPACE_PROJECT_ID")
	}
	if strings.TrimSpace(config.EngineID) == "" && strings.TrimSpace(config.DataStoreID) == "" {
		missing = append(missing, "AGENTSPACE_ENGINE_ID", "AGENTSPACE_DATA_STORE_ID")
	}
	if strings.TrimSpace(config.Location) == "" {
		missing = append(missing, "AGENTSPACE_LOCATION")
	}
	if len(missing) > 0 {
		return types.NewConfigurationError("required value is missing", missing...)
	}

	config.ProjectID = strings.TrimSpace(config.ProjectID)
	config.EngineID = strings.TrimSpace(config.EngineID)
	config.DataStoreID = strings.TrimSpace(config.DataStoreID)
	config.Location = strings.ToLower(strings.TrimSpace(config.Location))

	if !locationPattern.MatchString(config.Location) {
		return types.NewConfigurationError(fmt.Sprintf("invalid location %q", config.Location), "AGENTSPACE_LOCATION")
	}

	identifiers := []struct {
		key   string
		value string
	}{
		{"AGENTSPACE_ENGINE_ID", config.EngineID},
		{"AGENTSPACE_DATA_STORE_ID", config.DataStoreID},
		{"AGENTSPACE_COLLECTION_ID", config.CollectionID},
		{"AGENTSPACE_SERVING_CONFIG_ID", config.ServingConfigID},
		{"AGENTSPACE_SEARCH_CONFIG_ID", config.SearchConfigID},
	}
	for _, id := range identifiers {
		if id.value != "" && !resourcePattern.MatchString(id.value) {
			return types.NewConfigurationError(fmt.Sprintf("invalid resource id %q", id.value), id.key)
		}
	}

	if config.Endpoint != "" {
		parsed, err := url.Parse(config.Endpoint)
		if err != nil || parsed.Host == "" || !strings.HasPrefix(parsed.Scheme, "http") {
			return types.NewConfigurationError("must be an http or https URL", "AGENTSPACE_ENDPOINT")
		}
	}

	if config.RequestTimeout <= 0 {
		return types.NewConfigurationError("must be greater than 0", "AGENTSPACE_REQUEST_TIMEOUT")
	}
	if config.RequestTimeout > maxRequestTimeout {
		return types.NewConfigurationError(fmt.Sprintf("cannot exceed %s", maxRequestTimeout), "AGENTSPACE_REQUEST_TIMEOUT")
	}

	if config.RateLimit <= 0 {
		return types.NewConfigurationError("must be greater than 0", "AGENTSPACE_RATE_LIMIT")
	}
	if config.RateLimit > 1000 {
		return types.NewConfigurationError("cannot exceed 1000 requests/second", "AGENTSPACE_RATE_LIMIT")
	}
	if config.RateBurst <= 0 {
		return types.NewConfigurationError("must be greater than 0", "AGENTSPACE_RATE_BURST")
	}

	// Clamp document search sizes
	if config.PageSize < 1 {
		config.PageSize = 1
	}
	if config.PageSize > maxPageSize {
		config.PageSize = maxPageSize
	}
	if config.SummaryResultCount < 1 {
		config.SummaryResultCount = 1
	}
	if config.SummaryResultCount > maxSummaryCount {
		config.SummaryResultCount = maxSummaryCount
	}

	return nil
}

// validateToolConfig applies the tool prefix and checks tool names
func validateToolConfig(config *Config) error {
	prefix := strings.TrimSpace(config.ToolPrefix)
	config.SearchToolName = prefix + strings.TrimSpace(config.SearchToolName)
	config.DocumentToolName = prefix + strings.TrimSpace(config.DocumentToolName)
	config.ResearchToolName = prefix + strings.TrimSpace(config.ResearchToolName)

	if !toolNamePattern.MatchString(config.SearchToolName) {
		return types.NewConfigurationError(fmt.Sprintf("invalid tool name %q", config.SearchToolName), "MCP_SEARCH_TOOL_NAME")
	}
	if config.DocumentToolEnable {
		if !toolNamePattern.MatchString(config.DocumentToolName) {
			return types.NewConfigurationError(fmt.Sprintf("invalid tool name %q", config.DocumentToolName), "MCP_DOCUMENT_TOOL_NAME")
		}
		if config.DocumentToolName == config.SearchToolName {
			return types.NewConfigurationError("tool names must be distinct", "MCP_SEARCH_TOOL_NAME", "MCP_DOCUMENT_TOOL_NAME")
		}
	}
	if config.ResearchToolEnable {
		if !toolNamePattern.MatchString(config.ResearchToolName) {
			return types.NewConfigurationError(fmt.Sprintf("invalid tool name %q", config.ResearchToolName), "MCP_RESEARCH_TOOL_NAME")
		}
		if config.ResearchToolName == config.SearchToolName ||
			(config.DocumentToolEnable && config.ResearchToolName == config.DocumentToolName) {
			return types.NewConfigurationError("tool names must be distinct", "MCP_RESEARCH_TOOL_NAME")
		}
		if config.EngineID == "" {
			return types.NewConfigurationError("deep research requires an engine", "AGENTSPACE_ENGINE_ID")
		}
		if !resourcePattern.MatchString(config.AssistantID) {
			return types.NewConfigurationError(fmt.Sprintf("invalid assistant id %q", config.AssistantID), "AGENTSPACE_ASSISTANT_ID")
		}
		if config.ResearchTimeout <= 0 || config.ResearchTimeout > maxResearchTimeout {
			return types.NewConfigurationError(fmt.Sprintf("must be between 0 and %s", maxResearchTimeout), "AGENTSPACE_RESEARCH_TIMEOUT")
		}
	}
	return nil
}

// ValidateHTTP validates the settings only the HTTP transport needs.
func ValidateHTTP(config *Config) error {
	if config.MCPServerHost == "" {
		return types.NewConfigurationError("cannot be empty", "MCP_SERVER_HOST")
	}
	if config.MCPServerPort < 1 || config.MCPServerPort > 65535 {
		return types.NewConfigurationError("must be between 1 and 65535", "MCP_SERVER_PORT")
	}

	timeoutChecks := []struct {
		key   string
		value time.Duration
	}{
		{"MCP_SERVER_READ_TIMEOUT", config.MCPServerReadTimeout},
		{"MCP_SERVER_WRITE_TIMEOUT", config.MCPServerWriteTimeout},
		{"MCP_SERVER_IDLE_TIMEOUT", config.MCPServerIdleTimeout},
		{"MCP_SERVER_SHUTDOWN_TIMEOUT", config.MCPServerShutdownTimeout},
	}
	for _, check := range timeoutChecks {
		if check.value <= 0 {
			return types.NewConfigurationError("must be greater than 0", check.key)
		}
	}
	if config.MCPServerWriteTimeout < config.RequestTimeout {
		return types.NewConfigurationError("must not be shorter than AGENTSPACE_REQUEST_TIMEOUT", "MCP_SERVER_WRITE_TIMEOUT")
	}
	if config.ResearchToolEnable && config.MCPServerWriteTimeout < config.ResearchTimeout {
		return types.NewConfigurationError("must not be shorter than AGENTSPACE_RESEARCH_TIMEOUT", "MCP_SERVER_WRITE_TIMEOUT")
	}

	if config.MCPIPAuthEnabled {
		if len(config.MCPAllowedIPs) == 0 {
			return types.NewConfigurationError("cannot be empty when IP authentication is enabled", "MCP_ALLOWED_IPS")
		}
		if err := validateNetworks(config.MCPAllowedIPs, "MCP_ALLOWED_IPS"); err != nil {
			return err
		}
	}
	if err := validateNetworks(config.MCPTrustedProxies, "MCP_TRUSTED_PROXIES"); err != nil {
		return err
	}

	if (config.OIDCIssuer == "") != (config.OIDCClientID == "") {
		return types.NewConfigurationError("issuer and client id must be set together", "MCP_OIDC_ISSUER", "MCP_OIDC_CLIENT_ID")
	}
	if config.OIDCIssuer != "" {
		parsed, err := url.Parse(config.OIDCIssuer)
		if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
			return types.NewConfigurationError("must be an https URL", "MCP_OIDC_ISSUER")
		}
	}

	return nil
}

// validateNetworks checks that every entry is an IP address or CIDR block
func validateNetworks(entries []string, key string) error {
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return types.NewConfigurationError(fmt.Sprintf("invalid CIDR block %q", entry), key)
			}
			continue
		}
		if net.ParseIP(entry) == nil {
			return types.NewConfigurationError(fmt.Sprintf("invalid IP address %q", entry), key)
		}
	}
	return nil
}
