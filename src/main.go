package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plaid-mcp-server/src/api"
	"plaid-mcp-server/src/config"
	"plaid-mcp-server/src/db"
	sqlstore "plaid-mcp-server/src/db/sql"
	"plaid-mcp-server/src/handlers"
	"plaid-mcp-server/src/mcp"
	"plaid-mcp-server/src/plaid"
	"plaid-mcp-server/src/scheduler"
	"plaid-mcp-server/src/tools"
	"plaid-mcp-server/src/txsync"
	"plaid-mcp-server/src/webhook"
)

const (
	serverName    = "plaid-mcp-server"
	serverVersion = "1.0.0"
)

func main() {
	// stdout carries the protocol in stdio mode
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plaidAPI, err := plaid.NewPlaidClient(cfg.Plaid.ClientID, cfg.Plaid.Secret, cfg.Plaid.Env)
	if err != nil {
		log.Fatalf("Plaid client setup failed: %v", err)
	}
	client := plaid.NewClient(plaidAPI, plaid.LinkOptions{
		ClientName:   cfg.Plaid.ClientName,
		Language:     cfg.Plaid.Language,
		CountryCodes: cfg.Plaid.CountryCodes,
		WebhookURL:   cfg.Plaid.WebhookURL,
	})

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Store setup failed: %v", err)
	}
	defer closeStore()

	cache, err := db.NewAccountCache(cfg.Sync.AccountCacheTTL)
	if err != nil {
		log.Fatalf("Cache setup failed: %v", err)
	}
	defer cache.Close()

	engine := txsync.NewEngine(client, store, txsync.Config{
		PageSize:       cfg.Sync.PageSize,
		SettleInterval: cfg.Sync.SettleInterval,
	})

	runner := scheduler.NewCron()
	sched := scheduler.New(runner, engine, store, cfg.Sync.Timeout)
	if cfg.Plaid.EnableTransactions {
		restored, err := sched.RestoreSchedules(ctx)
		if err != nil {
			log.Printf("ERROR: Failed to restore refresh schedules: %v", err)
		} else if restored > 0 {
			log.Printf("INFO: Restored %d refresh schedules", restored)
		}
	}
	runner.Start()
	defer func() {
		select {
		case <-runner.Stop().Done():
		case <-time.After(cfg.Server.ShutdownTimeout):
			log.Println("WARN: Scheduled refreshes still running at shutdown")
		}
	}()

	dispatcher := webhook.NewDispatcher(store, engine)

	service, err := tools.NewService(tools.Deps{
		Provider:   client,
		Store:      store,
		Cache:      cache,
		Syncer:     engine,
		Scheduler:  sched,
		Dispatcher: dispatcher,
	}, tools.Options{EnableTransactions: cfg.Plaid.EnableTransactions})
	if err != nil {
		log.Fatalf("Tool setup failed: %v", err)
	}
	server := mcp.NewServer(service, serverName, serverVersion)

	if cfg.Server.Transport == "http" {
		err = serveHTTP(ctx, cfg, server, dispatcher, client)
	} else {
		err = serveStdio(ctx, server)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("ERROR: Server stopped: %v", err)
	}
	log.Println("INFO: Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (db.Store, func(), error) {
	if cfg.Storage.Backend != "postgres" {
		log.Println("INFO: Using in-memory store")
		return db.NewMemoryStore(cfg.Sync.WebhookLogLimit), func() {}, nil
	}

	pool, err := db.Connect(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := sqlstore.NewPostgresStore(pool, cfg.Sync.WebhookLogLimit)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Println("INFO: Using PostgreSQL store")
	return store, pool.Close, nil
}

// serveStdio returns on EOF or on shutdown; a read blocked on stdin does
// not hold the process open.
func serveStdio(ctx context.Context, server *mcp.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Println("INFO: MCP server running on stdio")
		errCh <- server.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, server *mcp.Server, dispatcher *webhook.Dispatcher, keys webhook.KeyFetcher) error {
	routerCfg := api.Config{
		Server:         server,
		Sessions:       handlers.NewSessions(),
		Dispatcher:     dispatcher,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WebhookTimeout: cfg.Sync.Timeout,
	}
	if cfg.Plaid.VerifyWebhooks {
		routerCfg.Verifier = webhook.NewVerifier(keys)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("INFO: MCP server running on port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("INFO: Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
