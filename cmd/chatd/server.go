package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/fooodis/chatd/internal/api"
	"github.com/fooodis/chatd/internal/chatbot"
	"github.com/fooodis/chatd/internal/config"
	"github.com/fooodis/chatd/internal/embed"
	"github.com/fooodis/chatd/internal/flow"
	"github.com/fooodis/chatd/internal/intent"
	"github.com/fooodis/chatd/internal/memory"
	"github.com/fooodis/chatd/internal/retrieval"
	"github.com/fooodis/chatd/internal/storage"
	"github.com/fooodis/chatd/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the chatd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running chatd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chatd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "chatd.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "chatd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	token, err := config.AdminToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing admin token: %w", err)
	}
	slog.Info("admin bearer token available")

	// Refuse to start twice: probe the health endpoint, then claim the PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("chatd is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("chatd is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Memory layer. With no embedding provider configured the service still
	// starts; memory routes report the configuration error per call.
	var memorySvc *memory.Service
	provider, err := embed.FromOptions(embed.Options{
		OllamaBaseURL:    cfg.Ollama.BaseURL,
		OllamaEmbedModel: cfg.Ollama.EmbedModel,
		OpenAIAPIKey:     cfg.OpenAI.APIKey,
		OpenAIEmbedModel: cfg.OpenAI.EmbedModel,
	})
	switch {
	case errors.Is(err, embed.ErrNotConfigured):
		slog.Warn("no embedding service configured; memory disabled")
	case err != nil:
		return fmt.Errorf("configuring embedding provider: %w", err)
	default:
		if ollama, ok := provider.(*embed.OllamaProvider); ok && !ollama.IsRunning(ctx) {
			slog.Warn("ollama is not reachable; memory calls will fail until it starts", "base_url", cfg.Ollama.BaseURL)
		}
		slog.Info("embedding provider configured", "provider", provider.Name())
		embedder := retrieval.NewEmbedder(provider)
		vectorStore := retrieval.NewSQLiteStore(store.DB())
		memorySvc = memory.NewService(store, vectorStore, embedder)

		// Jobs orphaned in 'running' by a crashed process would otherwise
		// never be claimed again.
		if n, err := store.RequeueRunningJobs(); err != nil {
			slog.Warn("requeueing interrupted jobs failed", "error", err)
		} else if n > 0 {
			slog.Info("requeued interrupted jobs", "count", n)
		}

		// Reconciliation worker repairs vector rows that failed to write.
		w := worker.New(store, memorySvc, 500*time.Millisecond)
		go w.Run(ctx)
	}

	// Flow execution pipeline.
	matcher := intent.NewMatcher(intent.DefaultKeywords())
	executor := flow.NewExecutor(matcher, chatbot.StoreAgents{Store: store}, flow.LabelSelector{})
	chatbotSvc := chatbot.NewService(store, executor, store, cfg.Chatbot.DefaultLanguage)

	handler := api.NewAppHandler(api.AppDeps{
		Store:   store,
		Chatbot: chatbotSvc,
		Memory:  memorySvc,
		Token:   token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over stdio for LLM clients.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:  store,
		Memory: memorySvc,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "chatd listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("chatd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop chatd (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to chatd (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Default language", "%s", cfg.Chatbot.DefaultLanguage)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
