package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
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
	"golang.org/x/sync/errgroup"

	"github.com/aupadhyay/thoughts/internal/action"
	"github.com/aupadhyay/thoughts/internal/api"
	"github.com/aupadhyay/thoughts/internal/config"
	"github.com/aupadhyay/thoughts/internal/importer"
	"github.com/aupadhyay/thoughts/internal/metrics"
	"github.com/aupadhyay/thoughts/internal/storage"
	"github.com/aupadhyay/thoughts/internal/surface"
	"github.com/aupadhyay/thoughts/internal/thoughts"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the thoughts API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running thoughts server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the actions as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

// app is the wired core shared by serve, mcp and openapi.
type app struct {
	store    *storage.Store
	registry *action.Registry
}

func openApp(dataDir string, logger *slog.Logger) (*app, error) {
	store, err := storage.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	reg, _, err := thoughts.NewRegistry(thoughts.Deps{
		Store:    store,
		Importer: importer.New(store, logger),
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("registering actions: %w", err)
	}
	return &app{store: store, registry: reg}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "thoughts.pid")
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

func listenAddr(cfg config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

func localURL(cfg config.Config) string {
	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

// documentPath is where serve publishes the OpenAPI document on startup.
func documentPath(cfg config.Config) string {
	if cfg.API.OpenAPIPath != "" {
		return cfg.API.OpenAPIPath
	}
	return filepath.Join(cfg.Storage.DataDir, "openapi.json")
}

func runServer(withMCP bool) error {
	fmt.Fprintln(os.Stderr, versionString())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(localURL(cfg) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("thoughts is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("something is already listening on %s", listenAddr(cfg))
		return fmt.Errorf("server already running on %s", listenAddr(cfg))
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	a, err := openApp(cfg.Storage.DataDir, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	coll := metrics.NewCollector()
	surf, err := surface.Generate(a.registry.Operations(), thoughts.APIInfo(cfg.BaseURL()),
		surface.WithLogger(logger),
		surface.WithObserver(coll.ObserveAction),
	)
	if err != nil {
		return fmt.Errorf("generating API surface: %w", err)
	}
	docPath := documentPath(cfg)
	if err := surf.WriteDocumentFile(docPath); err != nil {
		return fmt.Errorf("writing OpenAPI document: %w", err)
	}
	logger.Info("OpenAPI document written", "path", docPath)

	handler, err := api.NewHandler(api.Deps{
		Surface:     surf,
		Metrics:     coll,
		Logger:      logger,
		Token:       cfg.Server.Token,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "thoughts listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if withMCP {
		g.Go(func() error {
			return serveMCPStdio(gctx, a.registry, logger)
		})
	}

	return g.Wait()
}

func serveMCPStdio(ctx context.Context, reg *action.Registry, logger *slog.Logger) error {
	mcpSrv := api.NewMCPServer(api.MCPDeps{Registry: reg, Version: version})
	stdio := server.NewStdioServer(mcpSrv)
	logger.Info("MCP server started (stdio transport)", "tools", len(reg.Operations()))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	a, err := openApp(cfg.Storage.DataDir, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serveMCPStdio(ctx, a.registry, logger)
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
		printError("thoughts is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop thoughts (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to thoughts (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := &apiClient{
		baseURL:    localURL(cfg),
		token:      cfg.Server.Token,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}

	running := false
	resp, err := client.get(ctx, "/health")
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		running = true
		printStatus("Server", "running on %s", listenAddr(cfg))
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
		printStatus("PID", "%d", pid)
	}

	if running {
		var count thoughts.CountOutput
		if err := client.call(ctx, "getThoughtCount", nil, &count); err == nil {
			printStatus("Thoughts", "%d", count.Count)
		} else if isActionError(err) {
			printStatus("Thoughts", "unavailable (%v)", err)
		}
		var dbPath thoughts.DatabasePathOutput
		if err := client.call(ctx, "getDatabasePath", nil, &dbPath); err == nil && dbPath.Path != nil {
			printStatus("Database", "%s", *dbPath.Path)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Config", "%s", config.ConfigFilePath())
	return nil
}
