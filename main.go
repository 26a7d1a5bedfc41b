// Command festival runs the party-game lobby.
//
// It has three commands:
//  1. "serve" runs the HTTP server exposing the REST API, the room and global
//     WebSocket channels, and an /mcp HTTP endpoint
//  2. "watch" attaches a resilient room connection and prints every pushed event
//  3. "mcp" runs an MCP stdio server against a lobby, starting an internal
//     one when none answers
//
// Flags control the listen address, where rooms are stored (JSON files,
// PostgreSQL or Redis), the mini-game catalog directory, logging, and an
// optional ngrok tunnel for reaching the lobby from phones.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/festival-lobby/api"
	"github.com/wricardo/festival-lobby/game/config"
	"github.com/wricardo/festival-lobby/game/service"
	"github.com/wricardo/festival-lobby/game/session"
	"github.com/wricardo/festival-lobby/transport/mcp"
	"github.com/wricardo/festival-lobby/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Festival Lobby"
)

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	app := newApp()
	app.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		setupLogging(os.Stderr, cmd.String("log-format"), cmd.Bool("debug"))
		if envErr == nil {
			log.Debug().Msg("Loaded environment variables from .env file")
		} else if !os.IsNotExist(envErr) {
			log.Warn().Err(envErr).Msg("Error loading .env file")
		}
		return ctx, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("festival failed")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "festival",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("FESTIVAL_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "console",
				Usage:   "Log output: console or json",
				Sources: cli.EnvVars("FESTIVAL_LOG_FORMAT"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			watchCommand(),
			mcpCommand(),
		},
	}
}

// setupLogging configures the global zerolog logger
func setupLogging(w io.Writer, format string, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server with REST API, WebSocket channels and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address", Sources: cli.EnvVars("FESTIVAL_ADDR")},
			&cli.StringFlag{Name: "data-dir", Value: "rooms", Usage: "Directory for room snapshots when no database is set", Sources: cli.EnvVars("FESTIVAL_DATA_DIR")},
			&cli.StringFlag{Name: "database-url", Usage: "PostgreSQL DSN for room storage", Sources: cli.EnvVars("DATABASE_URL")},
			&cli.StringFlag{Name: "redis-addr", Usage: "Redis address for room storage", Sources: cli.EnvVars("REDIS_ADDR")},
			&cli.StringFlag{Name: "catalog-dir", Usage: "Directory of mini-game JSON overrides", Sources: cli.EnvVars("FESTIVAL_CATALOG_DIR")},
			&cli.DurationFlag{Name: "room-ttl", Value: 2 * time.Hour, Usage: "Idle time before finished or abandoned rooms are dropped from memory"},
			&cli.DurationFlag{Name: "cleanup-interval", Value: 10 * time.Minute, Usage: "How often stale rooms are swept"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: runServe,
	}
}

// storageOptions selects where rooms are persisted
type storageOptions struct {
	DataDir     string
	DatabaseURL string
	RedisAddr   string
}

// lobbyStack is every long-lived piece a running lobby needs
type lobbyStack struct {
	rooms *session.Manager
	games *config.Manager
	hub   *websocket.Hub
	lobby service.LobbyService
	close func()
}

// openPersistence picks PostgreSQL, then Redis, then JSON files
func openPersistence(ctx context.Context, opts storageOptions) (session.Persistence, func(), error) {
	switch {
	case opts.DatabaseURL != "":
		p, err := session.NewPostgresPersistence(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}
		log.Info().Msg("Storing rooms in PostgreSQL")
		return p, p.Close, nil

	case opts.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		p, err := session.NewRedisPersistence(ctx, client, session.DefaultRedisPrefix)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to open redis persistence: %w", err)
		}
		log.Info().Str("addr", opts.RedisAddr).Msg("Storing rooms in Redis")
		return p, func() { client.Close() }, nil

	case opts.DataDir != "":
		p, err := session.NewFilePersistence(opts.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create room persistence: %w", err)
		}
		log.Info().Str("dir", opts.DataDir).Msg("Storing rooms as JSON files")
		return p, func() {}, nil
	}
	return nil, func() {}, nil
}

// buildLobby wires storage, catalog, hub and service. A zero storageOptions
// keeps rooms in memory only.
func buildLobby(ctx context.Context, catalogDir string, opts storageOptions) (*lobbyStack, error) {
	games, err := config.NewManager(catalogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load mini-game catalog: %w", err)
	}

	persistence, closePersistence, err := openPersistence(ctx, opts)
	if err != nil {
		return nil, err
	}

	var rooms *session.Manager
	if persistence != nil {
		rooms = session.NewManagerWithPersistence(persistence)
		if err := rooms.LoadPersisted(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to load persisted rooms")
		}
	} else {
		rooms = session.NewManager()
	}

	hub := websocket.NewHub()
	lobby := service.NewLobbyService(rooms, games, hub)
	hub.SetPresenceHooks(
		func(ctx context.Context, code, playerID string) {
			if err := lobby.ParticipantConnected(ctx, code, playerID); err != nil {
				log.Debug().Err(err).Str("room_code", code).Str("player_id", playerID).Msg("Ignoring presence for unknown participant")
			}
		},
		func(ctx context.Context, code, playerID string) {
			if err := lobby.ParticipantDisconnected(ctx, code, playerID); err != nil {
				log.Debug().Err(err).Str("room_code", code).Str("player_id", playerID).Msg("Ignoring presence for unknown participant")
			}
		},
	)

	return &lobbyStack{
		rooms: rooms,
		games: games,
		hub:   hub,
		lobby: lobby,
		close: func() {
			if persistence != nil {
				saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rooms.SaveAll(saveCtx); err != nil {
					log.Warn().Err(err).Msg("Failed to save rooms on shutdown")
				}
			}
			closePersistence()
		},
	}, nil
}

// newRouter mounts the REST API at the root and the MCP proxy at /mcp
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// localURL turns a listen address into a URL reachable from this host
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// runServe starts the HTTP server and blocks until ctx is cancelled.
// If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	stack, err := buildLobby(ctx, cmd.String("catalog-dir"), storageOptions{
		DataDir:     cmd.String("data-dir"),
		DatabaseURL: cmd.String("database-url"),
		RedisAddr:   cmd.String("redis-addr"),
	})
	if err != nil {
		return err
	}
	defer stack.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go stack.hub.Run(ctx)
	go cleanupRoutine(ctx, stack.rooms, cmd.Duration("cleanup-interval"), cmd.Duration("room-ttl"))

	addr := cmd.String("addr")
	baseURL := localURL(addr)
	mainRouter := newRouter(api.NewServer(stack.lobby, stack.hub), mcp.NewClient(baseURL))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().
			Str("addr", addr).
			Str("rest", baseURL+"/rooms").
			Str("websocket", strings.Replace(baseURL, "http", "ws", 1)+"/ws/{room_code}").
			Str("mcp", baseURL+"/mcp").
			Int("games", len(stack.games.Sequence())).
			Msgf("%s v%s listening", AppName, Version)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err := <-serveErr:
		cancel()
		wg.Wait()
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("Server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.Info().
		Str("url", ngrokURL).
		Str("websocket", strings.Replace(ngrokURL, "https", "wss", 1)+"/ws/{room_code}").
		Msg("Ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// cleanupRoutine periodically drops finished or abandoned rooms from memory
func cleanupRoutine(ctx context.Context, rooms *session.Manager, interval, ttl time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := rooms.CleanupFinished(ttl); removed > 0 {
				log.Info().Int("removed", removed).Int("remaining", rooms.Count()).Msg("Cleaned up stale rooms")
			}
		}
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run an MCP stdio server against a lobby",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "Lobby server URL", Sources: cli.EnvVars("FESTIVAL_SERVER")},
			&cli.StringFlag{Name: "catalog-dir", Usage: "Mini-game overrides for the internal server", Sources: cli.EnvVars("FESTIVAL_CATALOG_DIR")},
		},
		Action: runStdioMCP,
	}
}

// runStdioMCP serves MCP over stdio. It reuses the lobby at --server when it
// answers; otherwise it starts an in-memory lobby on a random loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := cmd.String("server")

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := api.NewClient(baseURL).Health(checkCtx)
	cancel()

	if err == nil {
		log.Info().Str("server", baseURL).Msg("Using external lobby for MCP")
	} else {
		log.Info().Err(err).Msg("No external lobby found, starting internal HTTP server")

		internalURL, stop, err := startInternalLobby(ctx, cmd.String("catalog-dir"))
		if err != nil {
			return err
		}
		defer stop()
		baseURL = internalURL
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Str("server", baseURL).Msg("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// startInternalLobby serves an in-memory lobby on 127.0.0.1 and returns its URL
func startInternalLobby(ctx context.Context, catalogDir string) (string, func(), error) {
	stack, err := buildLobby(ctx, catalogDir, storageOptions{})
	if err != nil {
		return "", nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	hubCtx, cancel := context.WithCancel(ctx)
	go stack.hub.Run(hubCtx)

	httpServer := &http.Server{Handler: api.NewServer(stack.lobby, stack.hub)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Internal HTTP server error")
		}
	}()

	stop := func() {
		cancel()
		httpServer.Close()
		stack.close()
	}
	return "http://" + listener.Addr().String(), stop, nil
}
