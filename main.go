// Command capy-arena runs the capy arena two-player room relay.
//
// It supports three commands:
//  1. "serve" (default) runs the HTTP server with the WebSocket relay, the REST
//     introspection API and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server against a relay's REST API, starting an
//     internal relay if none is reachable
//  3. "version" prints the version
//
// Settings come from built-in defaults, then an optional YAML or JSON config
// file, then environment variables (a .env file is loaded first), then flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/capy-arena/api"
	"github.com/wricardo/capy-arena/game/config"
	"github.com/wricardo/capy-arena/game/relay"
	"github.com/wricardo/capy-arena/game/room"
	"github.com/wricardo/capy-arena/transport/mcp"
	"github.com/wricardo/capy-arena/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Capy Arena Relay"
)

const defaultAPIURL = "http://localhost:8080"

var ErrNgrokAuthMissing = errors.New("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.Printf("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "capy-arena",
		Usage:   "two-player room relay for capy arena",
		Version: Version,
		Flags:   serveFlags(),
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the relay HTTP server (default)",
				Flags:  serveFlags(),
				Action: runServe,
			},
			{
				Name:  "mcp",
				Usage: "run an MCP stdio server against a relay's REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   defaultAPIURL,
						Usage:   "relay REST API to proxy; an internal relay is started if it is unreachable",
						Sources: cli.EnvVars("RELAY_API_URL"),
					},
					&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("DEBUG")},
				},
				Action: runMCP,
			},
			configCommand(),
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML or JSON config file", Sources: cli.EnvVars("RELAY_CONFIG")},
		&cli.StringFlag{Name: "host", Value: config.DefaultHost, Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
		&cli.IntFlag{Name: "port", Value: config.DefaultPort, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "socket-path", Value: config.DefaultSocketPath, Usage: "WebSocket endpoint path", Sources: cli.EnvVars("SOCKET_PATH")},
		&cli.StringFlag{Name: "static-dir", Usage: "directory of client files to serve at /", Sources: cli.EnvVars("STATIC_DIR")},
		&cli.StringSliceFlag{Name: "allowed-origin", Usage: "accepted WebSocket Origin (repeatable, * for any)", Sources: cli.EnvVars("ALLOWED_ORIGINS")},
		&cli.IntFlag{Name: "capacity", Value: config.DefaultCapacity, Usage: "players per room", Sources: cli.EnvVars("ROOM_CAPACITY")},
		&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("DEBUG")},
		&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}
}

// loadConfig applies the config file and then any flag or environment
// variable that was explicitly set.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("socket-path") {
		cfg.Server.SocketPath = cmd.String("socket-path")
	}
	if cmd.IsSet("static-dir") {
		cfg.Server.StaticDir = cmd.String("static-dir")
	}
	if cmd.IsSet("allowed-origin") {
		cfg.Server.AllowedOrigins = cmd.StringSlice("allowed-origin")
	}
	if cmd.IsSet("capacity") {
		cfg.Relay.Capacity = int(cmd.Int("capacity"))
	}
	if cmd.IsSet("debug") {
		cfg.Relay.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Ngrok.Enabled && cfg.Ngrok.AuthToken == "" {
		return nil, ErrNgrokAuthMissing
	}
	return cfg, nil
}

func setupLogging(debug bool) {
	if debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg.Relay.Debug)

	log.Printf("Starting %s v%s", AppName, Version)

	// Bind before starting anything so a taken port fails the command.
	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	return serve(ctx, cfg, listener)
}

// serve runs the relay on listener until ctx is cancelled or a component
// fails. It closes listener.
func serve(ctx context.Context, cfg *config.Config, listener net.Listener) error {
	registry := room.NewRegistry(cfg.Relay.Capacity)
	handler := relay.NewHandler(registry, relay.WithDebug(cfg.Relay.Debug))
	hubOpts := websocket.Options{
		MaxMessageSize: cfg.Relay.MaxMessageSize,
		SendBuffer:     cfg.Relay.SendBuffer,
	}
	if cfg.AllowsAnyOrigin() {
		log.Printf("Accepting WebSocket connections from any origin")
	} else {
		hubOpts.AllowedOrigins = cfg.Server.AllowedOrigins
		log.Printf("Accepting WebSocket connections from: %s", strings.Join(cfg.Server.AllowedOrigins, ", "))
	}
	hub := websocket.NewHub(handler, hubOpts)

	addr := listener.Addr().String()
	mcpClient := mcp.NewClient("http://"+addr, Version)

	apiServer := api.NewServer(handler, hub, api.Options{
		SocketPath: cfg.Server.SocketPath,
		StaticDir:  cfg.Server.StaticDir,
		MCP:        mcpClient.HTTPHandler(),
	})

	httpServer := &http.Server{
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		log.Printf("HTTP server listening on %s", addr)
		log.Printf("WebSocket: ws://%s%s (also %s)", addr, cfg.Server.SocketPath, api.SocketPath)
		log.Printf("REST API: http://%s/api/rooms", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)
		log.Printf("Room capacity: %d", cfg.Relay.Capacity)

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if cfg.Ngrok.Enabled {
		g.Go(func() error {
			return runTunnel(gctx, cfg.Ngrok, apiServer)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	log.Println("Server stopped")
	return err
}

// runTunnel serves handler through an ngrok tunnel until ctx is cancelled.
func runTunnel(ctx context.Context, cfg config.NgrokConfig, handler http.Handler) error {
	if cfg.AuthToken == "" {
		return ErrNgrokAuthMissing
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		log.Printf("Using custom ngrok domain: %s", cfg.Domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		return fmt.Errorf("failed to start ngrok tunnel: %w", err)
	}

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s%s", strings.Replace(ngrokURL, "https://", "wss://", 1), api.SocketPath)
	log.Printf("  REST API (ngrok): %s/api/rooms", ngrokURL)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		return fmt.Errorf("ngrok server error: %w", err)
	}
	log.Println("Ngrok tunnel closed")
	return nil
}

// runMCP runs an MCP stdio server. It proxies to --api-url when that relay
// answers /health, and otherwise starts an internal relay on a loopback port.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd.Bool("debug"))

	baseURL := cmd.String("api-url")
	log.Printf("Checking for relay at %s...", baseURL)

	if !relayAvailable(baseURL) {
		log.Printf("No relay found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- serve(internalCtx, config.Default(), listener)
		}()
		defer func() {
			cancel()
			if err := <-errCh; err != nil {
				log.Printf("Internal relay error: %v", err)
			}
		}()

		baseURL = "http://" + listener.Addr().String()
	}

	log.Printf("MCP stdio server ready (relay at %s)", baseURL)
	if err := server.ServeStdio(mcp.NewClient(baseURL, Version).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func relayAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
