package discovery

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/discoveryengine/v1"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/jbrache/goose/internal/types"
)

const globalEndpoint = "https://discoveryengine.googleapis.com/"

// NewService creates a Discovery Engine API client
// using a credentials file or Application Default Credentials
func NewService(ctx context.Context, cfg *types.Config) (*discoveryengine.Service, error) {
	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service, err := discoveryengine.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discovery Engine service: %w", err)
	}
	return service, nil
}

// NewHTTPClient returns an authorized HTTP client for the endpoints the
// generated service cannot call, such as the streaming assistant.
func NewHTTPClient(ctx context.Context, cfg *types.Config) (*http.Client, error) {
	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, _, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discovery Engine HTTP client: %w", err)
	}
	return client, nil
}

func clientOptions(ctx context.Context, cfg *types.Config) ([]option.ClientOption, error) {
	opts := []option.ClientOption{
		option.WithEndpoint(EndpointFor(cfg)),
		option.WithQuotaProject(cfg.ProjectID),
	}

	if cfg.CredentialsFile != "" {
		credOpt, err := credentialsFromFile(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return append(opts, credOpt), nil
	}
	// Application Default Credentials: gcloud user login, metadata server, workload identity
	return append(opts, option.WithScopes(discoveryengine.CloudPlatformScope)), nil
}

// credentialsFromFile loads service account or workload identity federation credentials
func credentialsFromFile(ctx context.Context, path string) (option.ClientOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewConfigurationError(fmt.Sprintf("failed to read credentials file: %v", err), "GOOGLE_APPLICATION_CREDENTIALS")
	}

	creds, err := google.CredentialsFromJSON(ctx, data, discoveryengine.CloudPlatformScope)
	if err != nil {
		return nil, types.NewConfigurationError(fmt.Sprintf("failed to parse credentials: %v", err), "GOOGLE_APPLICATION_CREDENTIALS")
	}

	return option.WithCredentials(creds), nil
}

// EndpointFor returns the API endpoint for the configured location.
// Non-global locations are served from a regional host.
func EndpointFor(cfg *types.Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/"
	}
	if cfg.Location == "" || cfg.Location == "global" {
		return globalEndpoint
	}
	return fmt.Sprintf("https://%s-discoveryengine.googleapis.com/", cfg.Location)
}

// ServingConfigName builds the full resource name of a serving config.
// An engine id wins over a data store id.
func ServingConfigName(cfg *types.Config, servingConfigID string) string {
	parent := fmt.Sprintf("projects/%s/locations/%s/collections/%s", cfg.ProjectID, cfg.Location, cfg.CollectionID)
	if cfg.EngineID != "" {
		return fmt.Sprintf("%s/engines/%s/servingConfigs/%s", parent, cfg.EngineID, servingConfigID)
	}
	return fmt.Sprintf("%s/dataStores/%s/servingConfigs/%s", parent, cfg.DataStoreID, servingConfigID)
}

// AssistantName builds the full resource name of the engine's assistant.
func AssistantName(cfg *types.Config) string {
	return fmt.Sprintf("projects/%s/locations/%s/collections/%s/engines/%s/assistants/%s",
		cfg.ProjectID, cfg.Location, cfg.CollectionID, cfg.EngineID, cfg.AssistantID)
}
