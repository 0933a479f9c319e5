package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sidekick-dev/sidekick/internal/clienttool"
	"github.com/sidekick-dev/sidekick/internal/config"
	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/internal/mcp"
	"github.com/sidekick-dev/sidekick/internal/provider"
	"github.com/sidekick-dev/sidekick/internal/secrets"
	"github.com/sidekick-dev/sidekick/internal/server"
	"github.com/sidekick-dev/sidekick/internal/session"
	"github.com/sidekick-dev/sidekick/internal/storage"
	"github.com/sidekick-dev/sidekick/internal/tool"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Sidekick backend server",
	Long: `Start the headless server the editor extension connects to.

The server exposes an RPC endpoint for request/response calls and an
SSE stream for subscription pushes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8199, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Best effort: a missing .env is not an error.
	godotenv.Load()

	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}

	level := logLevel
	if appConfig.LogLevel != "" {
		level = appConfig.LogLevel
	}
	logging.Init(logging.Config{Level: level})

	log := logging.With("serve")
	log.Info().Str("version", Version).Str("workDir", workDir).Msg("starting sidekick server")

	store := storage.New(paths.StoragePath())
	keys := secrets.NewKeys(store)

	ctx := context.Background()
	providers := provider.InitializeProviders(ctx, appConfig, keys)

	tools := tool.DefaultRegistry(workDir)
	policy := func() *tool.Policy { return tool.NewPolicy(appConfig.Tools) }

	bus := event.NewBus()
	sessions := session.NewService(store, bus)
	orchestrator := session.NewOrchestrator(sessions, providers, tools, policy, bus)
	clientTools := clienttool.NewRegistry(tools, bus, 0)

	mcpManager := mcp.NewManager(
		config.GlobalMCPConfigPath(),
		config.ProjectMCPConfigPath(workDir),
		tools,
		bus,
	)
	if err := mcpManager.ReloadAll(ctx); err != nil {
		log.Warn().Err(err).Msg("some tool servers failed to connect")
	}
	watcher, err := mcp.NewWatcher(mcpManager)
	if err != nil {
		log.Warn().Err(err).Msg("tool server config watcher unavailable")
	} else {
		watcher.Start()
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort

	srv := server.New(serverConfig, &server.Deps{
		AppConfig:    appConfig,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Providers:    providers,
		Tools:        tools,
		Policy:       policy,
		Secrets:      keys,
		MCP:          mcpManager,
		ClientTools:  clientTools,
		Bus:          bus,
	})

	go func() {
		log.Info().Int("port", servePort).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if watcher != nil {
		watcher.Stop()
	}
	if err := mcpManager.Close(); err != nil {
		log.Error().Err(err).Msg("tool server shutdown error")
	}
	bus.Close()

	log.Info().Msg("server stopped")
	return nil
}
