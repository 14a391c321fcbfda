package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const description = "Gives you the ability to search your internal data sources."

var rootCmd = &cobra.Command{
	Use:   "agentspace-mcp",
	Short: description,
	Long: description + `

With no subcommand the server speaks MCP over stdin/stdout, which is how chat
agents such as Goose launch extensions. Configuration comes from the
environment (AGENTSPACE_PROJECT_ID, AGENTSPACE_ENGINE_ID, ...), an optional
.env file and the YAML file named by AGENTSPACE_CONFIG_FILE.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runStdio,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveHTTPCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(extensionCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runStdio(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := a.newServer()
	if err != nil {
		return err
	}

	a.logger.Info("Serving MCP over stdio",
		zap.String("version", version),
		zap.String("project", a.cfg.ProjectID),
		zap.String("location", a.cfg.Location))

	if err := server.RunStdio(ctx); err != nil {
		a.logger.Error("MCP stdio session failed", zap.Error(err))
		return err
	}

	a.logger.Info("MCP stdio session ended")
	return nil
}
