/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the subscription tracker server. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire the fx client, rate resolver, and subscription factory
  4. Configure HTTP router and start the rate refresh scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port             HTTP server port (default: 8080)
  -db               SQLite database path (default: subtrack.db)
                    Use ":memory:" for an in-memory database
  -fx-url           Exchange-rate service base URL (empty disables live
                    lookups; everything resolves via the fallback table)
  -fx-timeout       Per-lookup HTTP timeout
  -refresh-interval Background rate refresh interval (0 disables)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the rate refresh scheduler
  2. Stop accepting new connections, drain active requests (30s timeout)
  3. Close database connection

EXAMPLES:
  # Run with live rates
  ./server -db=./data/subtrack.db -fx-url=https://open.er-api.com

  # Run offline; fallback rates only
  ./server -db=:memory: -fx-url=

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Rate refresh scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/subtrack/api"
	"github.com/warp/subtrack/billing"
	"github.com/warp/subtrack/billing/fx"
	"github.com/warp/subtrack/store/sqlite"
	"github.com/warp/subtrack/subscription"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "subtrack.db", "SQLite database path")
	fxURL := flag.String("fx-url", fx.DefaultBaseURL, "exchange-rate service base URL (empty disables live lookups)")
	fxTimeout := flag.Duration("fx-timeout", 5*time.Second, "exchange-rate lookup timeout")
	refreshInterval := flag.Duration("refresh-interval", time.Hour, "background rate refresh interval (0 disables)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the rate resolver. With no fx URL every resolution degrades to
	// the fallback table, which is still a fully working server.
	var lookup billing.Lookup
	if *fxURL != "" {
		client := fx.New(*fxURL)
		client.HTTPClient = &http.Client{Timeout: *fxTimeout}
		lookup = client
	}
	resolver := billing.NewResolver(lookup)

	// Initialize handler and router
	handler := api.NewHandler(store, subscription.NewFactory(resolver))
	router := api.NewRouter(handler)

	// Background rate refresh
	scheduler := api.NewRateRefreshScheduler(store, resolver)
	if *refreshInterval > 0 && lookup != nil {
		scheduler.CheckInterval = *refreshInterval
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
