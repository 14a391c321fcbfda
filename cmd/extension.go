package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	extensionName    string
	extensionTimeout int
	extensionEnvKeys []string
)

var extensionCmd = &cobra.Command{
	Use:   "extension",
	Short: "Print a Goose extension entry for this binary",
	Long: `
Print the YAML entry that registers this server as a stdio extension in the
Goose configuration file (~/.config/goose/config.yaml). The listed environment
variables are copied from the current environment when set.

Example:
  agentspace-mcp extension >> ~/.config/goose/config.yaml
`,
	Args: cobra.NoArgs,
	RunE: runExtension,
}

func init() {
	extensionCmd.Flags().StringVar(&extensionName, "name", "agentspace", "Extension key in the Goose configuration")
	extensionCmd.Flags().IntVar(&extensionTimeout, "timeout", 300, "Extension timeout in seconds")
	extensionCmd.Flags().StringSliceVar(&extensionEnvKeys, "env", []string{
		"AGENTSPACE_PROJECT_ID",
		"AGENTSPACE_LOCATION",
		"AGENTSPACE_ENGINE_ID",
		"AGENTSPACE_DATA_STORE_ID",
		"AGENTSPACE_ASSISTANT_ID",
		"MCP_RESEARCH_TOOL_ENABLED",
		"GOOGLE_APPLICATION_CREDENTIALS",
	}, "Environment variables to embed in the extension entry")
}

// gooseExtension is one entry under the "extensions" key of the Goose config.
type gooseExtension struct {
	Enabled     bool              `yaml:"enabled"`
	Type        string            `yaml:"type"`
	Name        string            `yaml:"name"`
	Cmd         string            `yaml:"cmd"`
	Args        []string          `yaml:"args"`
	Envs        map[string]string `yaml:"envs,omitempty"`
	Timeout     int               `yaml:"timeout"`
	Description string            `yaml:"description"`
}

func runExtension(cmd *cobra.Command, args []string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}
	return writeExtension(cmd.OutOrStdout(), extensionName, executable, extensionTimeout, lookupEnv(extensionEnvKeys))
}

func lookupEnv(keys []string) map[string]string {
	envs := make(map[string]string)
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if value, ok := os.LookupEnv(key); ok && value != "" {
			envs[key] = value
		}
	}
	return envs
}

func writeExtension(w io.Writer, name, executable string, timeout int, envs map[string]string) error {
	doc := map[string]map[string]gooseExtension{
		"extensions": {
			name: {
				Enabled:     true,
				Type:        "stdio",
				Name:        name,
				Cmd:         executable,
				Args:        []string{},
				Envs:        envs,
				Timeout:     timeout,
				Description: description,
			},
		},
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode extension: %w", err)
	}
	return encoder.Close()
}
