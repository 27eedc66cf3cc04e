/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loan engine server: configuration, dependency
  wiring, penalty sweep scheduling, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Build the loan book and API handler
  4. Start the penalty sweeper
  5. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: loans.db)
            Use ":memory:" for an in-memory database
  -sweep    Cron spec for the penalty sweep (default: @hourly)

ENVIRONMENT:
  LOG_LEVEL  logrus level (debug, info, warn, error); default info

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections (30s drain)
  2. Stop the penalty sweeper
  3. Close the database
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "loans.db", "SQLite database path")
	sweepSpec := flag.String("sweep", "@hourly", "cron spec for the penalty sweep")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	book := bank.NewBook(store, logger)
	handler := api.NewHandler(book, logger)
	router := api.NewRouter(handler)

	sweeper := api.NewPenaltySweeper(book, logger, *sweepSpec)
	if err := sweeper.Start(); err != nil {
		logger.Fatalf("Failed to start penalty sweeper: %v", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	sweeper.Stop()

	logger.Info("Server stopped")
}
