/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the HidroSur billing engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store (optionally seeding development data)
  3. Wire the billing services (generator, machine, manager, settler)
  4. Configure HTTP router and background scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: billing.db)
           Use ":memory:" for in-memory database
  -seed    Install the default tariff, config and demo customers

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database, seeded
  ./server -db="./data/billing.db" -seed

  # Run with in-memory database
  ./server -db=":memory:" -seed

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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

	"github.com/hidrosur/billing-engine/api"
	"github.com/hidrosur/billing-engine/collections"
	"github.com/hidrosur/billing-engine/invoicing"
	"github.com/hidrosur/billing-engine/payments"
	"github.com/hidrosur/billing-engine/reconnection"
	"github.com/hidrosur/billing-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "billing.db", "SQLite database path")
	seed := flag.Bool("seed", false, "install default tariff, config and demo customers")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if *seed {
		if err := store.Seed(context.Background()); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
		log.Println("Seeded default tariff, configuration and demo customers")
	}

	// Wire services. The store doubles as the audit log.
	machine := collections.NewMachine(store, store)
	manager := reconnection.NewManager(store, machine, store)
	generator := invoicing.NewGenerator(store, manager, store)
	settler := payments.NewSettler(store, manager, machine, store)

	handler := api.NewHandler(store, generator, machine, manager, settler)
	router := api.NewRouter(handler)

	scheduler := api.NewBillingScheduler(handler)
	scheduler.Start()

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
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
