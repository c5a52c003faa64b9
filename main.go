// Command vinecheck certifies vine puzzle levels.
//
// It supports four commands:
//  1. "validate" (default) – validates every level file, writes the computed metrics back and
//     exits 1 when any level is invalid
//  2. "serve" – runs the HTTP server exposing REST API, WebSocket progress, and an /mcp HTTP endpoint
//  3. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  4. "tiers" – prints the tier table in use
//
// Global flags select the levels directory, an optional YAML rules file and debug logging.
// The serve command can expose itself through an ngrok tunnel during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/vinecheck/api"
	"github.com/wricardo/vinecheck/game/engine"
	"github.com/wricardo/vinecheck/game/rules"
	"github.com/wricardo/vinecheck/game/service"
	"github.com/wricardo/vinecheck/game/store"
	"github.com/wricardo/vinecheck/transport/mcp"
	"github.com/wricardo/vinecheck/transport/websocket"
	"github.com/wricardo/vinecheck/ui"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "vinecheck"
)

// Exit codes
const (
	exitValid   = 0
	exitInvalid = 1
	exitFailure = 2
)

// app carries the output streams and the exit status chosen by a command
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	exitCode int
}

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	err := a.command().Run(ctx, os.Args)
	stop()
	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(exitFailure)
	}
	os.Exit(a.exitCode)
}

// command builds the CLI definition
func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:           AppName,
		Usage:          "validate vine puzzle levels",
		Version:        Version,
		Writer:         a.stdout,
		ErrWriter:      a.stderr,
		DefaultCommand: "validate",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "levels-dir",
				Value:   "assets/levels",
				Usage:   "directory containing level_*.json files",
				Sources: cli.EnvVars("LEVELS_DIR"),
			},
			&cli.StringFlag{
				Name:    "rules",
				Usage:   "YAML file overriding the built-in tier table",
				Sources: cli.EnvVars("RULES_FILE"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.SetOutput(a.stderr)
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			a.validateCommand(),
			a.serveCommand(),
			a.mcpCommand(),
			a.tiersCommand(),
		},
	}
}

// buildService wires the store, rule set and engine behind the validation service
func buildService(cmd *cli.Command) (*store.Store, service.ValidationService, error) {
	levels, err := store.New(cmd.String("levels-dir"))
	if err != nil {
		return nil, nil, err
	}

	rs := rules.Default()
	if path := cmd.String("rules"); path != "" {
		rs, err = rules.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Loaded rules from %s", path)
	}

	return levels, service.NewValidationService(levels, engine.NewValidator(rs)), nil
}

func (a *app) validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate level files and write the metrics back",
		ArgsUsage: "[level names...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "workers",
				Value:   "half",
				Usage:   "parallel workers: a number, half or full",
				Sources: cli.EnvVars("VALIDATE_WORKERS"),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "validate without writing metrics back",
			},
			&cli.StringFlag{
				Name:    "backup-dir",
				Usage:   "back up level files into this directory before writing",
				Sources: cli.EnvVars("BACKUP_DIR"),
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "show a live spinner on stderr",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "only print invalid levels",
			},
			&cli.BoolFlag{
				Name:  "no-warnings",
				Usage: "hide warnings in the per-file report",
			},
		},
		Action: a.runValidate,
	}
}

func (a *app) runValidate(ctx context.Context, cmd *cli.Command) error {
	levels, svc, err := buildService(cmd)
	if err != nil {
		return err
	}
	opts := ui.ReportOptions{Quiet: cmd.Bool("quiet"), HideWarnings: cmd.Bool("no-warnings")}

	// Named levels are validated one by one
	if cmd.Args().Len() > 0 {
		a.exitCode = exitValid
		for _, name := range cmd.Args().Slice() {
			report, err := svc.ValidateLevel(ctx, name, !cmd.Bool("dry-run"))
			if errors.Is(err, store.ErrUnparseable) {
				// A broken file is reported like any other invalid level
				report = service.LoadFailureReport(name, err)
			} else if err != nil {
				return err
			}
			ui.WriteFileReport(a.stdout, report, opts)
			if !report.Valid {
				a.exitCode = exitInvalid
			}
		}
		return nil
	}

	workers, err := service.ParseWorkers(cmd.String("workers"))
	if err != nil {
		return err
	}
	batch := service.BatchOptions{
		Workers:   workers,
		DryRun:    cmd.Bool("dry-run"),
		BackupDir: cmd.String("backup-dir"),
	}

	var progress *ui.Progress
	if cmd.Bool("progress") {
		names, err := levels.Discover()
		if err != nil {
			return err
		}
		progress = ui.StartProgress(a.stderr, len(names))
		batch.Observer = progress.Observe
	}

	summary, err := svc.ValidateAll(ctx, batch)
	if progress != nil {
		// Clear the spinner before printing
		progress.Stop()
	}
	if summary == nil {
		return err
	}

	ui.WriteBatchReport(a.stdout, summary, opts)
	a.exitCode = summary.ExitCode()
	if err != nil {
		log.Printf("Batch finished with errors: %v", err)
		a.exitCode = exitInvalid
	}
	return nil
}

func (a *app) tiersCommand() *cli.Command {
	return &cli.Command{
		Name:  "tiers",
		Usage: "print the tier table in use",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rs := rules.Default()
			if path := cmd.String("rules"); path != "" {
				loaded, err := rules.LoadFile(path)
				if err != nil {
					return err
				}
				rs = loaded
			}

			// The tier table does not need a levels directory
			svc := service.NewValidationService(nil, engine.NewValidator(rs))
			table, err := svc.ListTiers(ctx)
			if err != nil {
				return err
			}
			ui.WriteTierTable(a.stdout, table)
			return nil
		},
	}
}

// ngrokSettings holds the resolved tunnel configuration
type ngrokSettings struct {
	enabled   bool
	authToken string
	domain    string
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the REST API, WebSocket progress and /mcp endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.StringFlag{
				Name:    "port",
				Value:   "8080",
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "backup-dir",
				Usage:   "backup root for batches that ask for a backup",
				Sources: cli.EnvVars("BACKUP_DIR"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			port, err := strconv.Atoi(cmd.String("port"))
			if err != nil || port < 0 || port > 65535 {
				return fmt.Errorf("invalid port %q", cmd.String("port"))
			}

			addr := net.JoinHostPort(cmd.String("host"), strconv.Itoa(port))
			tunnel := ngrokSettings{
				enabled:   cmd.Bool("ngrok"),
				authToken: cmd.String("ngrok-auth"),
				domain:    cmd.String("ngrok-domain"),
			}
			return runHTTPServer(ctx, svc, addr, cmd.String("backup-dir"), tunnel)
		},
	}
}

// newRouter mounts the REST API, WebSocket hub and the /mcp endpoint on one
// router
func newRouter(svc service.ValidationService, hub *websocket.Hub, mcpClient *mcp.Client, opts ...api.Option) http.Handler {
	apiServer := api.NewServer(svc, hub, opts...)
	apiServer.Router().HandleFunc("/mcp", mcpHandler(mcpClient)).Methods("POST")
	return apiServer
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		if response == nil {
			// Notifications have no response
			w.WriteHeader(http.StatusAccepted)
			return
		}
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled it also provisions a public tunnel. It returns once ctx is done and the
// server has shut down.
func runHTTPServer(ctx context.Context, svc service.ValidationService, addr, backupDir string, tunnel ngrokSettings) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	mcpClient := mcp.NewClient("http://" + addr)
	router := newRouter(svc, hub, mcpClient,
		api.WithBackupRoot(backupDir),
		api.WithBatchContext(ctx),
	)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?channel=<batch_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	if tunnel.enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTunnel(ctx, router, tunnel)
		}()
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

// runTunnel serves handler through an ngrok tunnel until ctx is done
func runTunnel(ctx context.Context, handler http.Handler, tunnel ngrokSettings) {
	if tunnel.authToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	endpoint := ngrokConfig.HTTPEndpoint()
	if tunnel.domain != "" {
		endpoint = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(tunnel.domain))
		log.Printf("Using custom ngrok domain: %s", tunnel.domain)
	}

	tun, err := ngrok.Listen(ctx, endpoint, ngrok.WithAuthtoken(tunnel.authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

func (a *app) mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "run an MCP stdio server backed by the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   "http://localhost:8080",
				Usage:   "REST API to reuse when it is already running",
				Sources: cli.EnvVars("VINECHECK_API_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, svc, err := buildService(cmd)
			if err != nil {
				return err
			}

			baseURL, shutdown, err := resolveAPI(ctx, svc, cmd.String("api-url"))
			if err != nil {
				return err
			}
			defer shutdown()

			mcpClient := mcp.NewClient(baseURL)
			log.Printf("MCP stdio server ready (API: %s)", baseURL)
			return server.ServeStdio(mcpClient.GetMCPServer())
		},
	}
}

// resolveAPI reuses an API already answering at externalURL; otherwise it
// starts an internal one on a random loopback port. The returned function
// stops the internal server.
func resolveAPI(ctx context.Context, svc service.ValidationService, externalURL string) (string, func(), error) {
	if externalURL != "" {
		log.Printf("Checking for external API server at %s...", externalURL)
		testClient := &http.Client{Timeout: 2 * time.Second}
		resp, err := testClient.Get(externalURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				log.Printf("External API server found at %s, using it for MCP", externalURL)
				return externalURL, func() {}, nil
			}
		}
	}

	log.Printf("No external API server found, starting internal HTTP server")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	hubCtx, cancel := context.WithCancel(ctx)
	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	httpServer := &http.Server{
		Handler: api.NewServer(svc, hub, api.WithBatchContext(hubCtx)),
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Internal HTTP server error: %v", err)
		}
	}()

	baseURL := "http://" + listener.Addr().String()
	log.Printf("Internal HTTP server for MCP stdio on %s", baseURL)

	shutdown := func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}
	return baseURL, shutdown, nil
}
