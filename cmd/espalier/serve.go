package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/espalier"
	"github.com/aretw0/espalier/internal/logging"
	fileAdapter "github.com/aretw0/espalier/pkg/adapters/file"
	httpAdapter "github.com/aretw0/espalier/pkg/adapters/http"
	"github.com/aretw0/espalier/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/espalier/pkg/adapters/redis"
	"github.com/aretw0/espalier/pkg/library"
	"github.com/aretw0/espalier/pkg/persistence/middleware"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stateless HTTP server",
	Long:  `Starts the Espalier engine in server mode, exposing the draft/publish workflow as a JSON API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		backend, _ := cmd.Flags().GetString("backend")
		templates, _ := cmd.Flags().GetString("templates")
		retries, _ := cmd.Flags().GetInt("conflict-retries")

		logger := buildLogger(cmd)

		persister, err := buildPersister(cmd, backend)
		if err != nil {
			fmt.Printf("Error initializing storage: %v\n", err)
			os.Exit(1)
		}

		registry := prometheus.NewRegistry()
		persister = middleware.Chain(persister,
			middleware.NewMetrics(registry).Instrument(),
			middleware.NewLogging(logger),
		)

		engineOpts := []espalier.Option{
			espalier.WithPersister(persister),
			espalier.WithLogger(logger),
			espalier.WithConflictRetries(retries),
		}

		var lib *library.Library
		if templates != "" {
			lib = library.New()
			if err := lib.LoadFile(templates); err != nil {
				fmt.Printf("Error loading template library: %v\n", err)
				os.Exit(1)
			}
			engineOpts = append(engineOpts, espalier.WithLibrary(lib))
		}

		engine := espalier.New(engineOpts...)

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		}
		if lib != nil {
			handlerOpts = append(handlerOpts, httpAdapter.WithLibrary(lib))
		}
		handler := httpAdapter.NewHandler(engine.Workflow(), handlerOpts...)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Espalier Server on %s\n", srv.Addr)
			fmt.Printf("Storage backend: %s\n", backend)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			// Error when starting HTTP server.
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Espalier Server stopped gracefully")
		}
	},
}

// buildPersister selects the storage backend from flags. The memory
// backend is ephemeral and only useful for demos and tests.
func buildPersister(cmd *cobra.Command, backend string) (ports.Persister, error) {
	switch backend {
	case "memory":
		return memory.New(), nil
	case "file":
		dataDir, _ := cmd.Flags().GetString("data-dir")
		return fileAdapter.New(dataDir), nil
	case "redis":
		addr, _ := cmd.Flags().GetString("redis-addr")
		password, _ := cmd.Flags().GetString("redis-password")
		db, _ := cmd.Flags().GetInt("redis-db")
		prefix, _ := cmd.Flags().GetString("redis-prefix")
		return redisAdapter.New(addr, password, db, redisAdapter.WithPrefix(prefix)), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want memory, file or redis)", backend)
	}
}

func buildLogger(cmd *cobra.Command) *slog.Logger {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = slog.LevelInfo
	}

	if format == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("backend", "memory", "Storage backend (memory, file, redis)")
	serveCmd.Flags().String("data-dir", "./data", "Snapshot directory for the file backend")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address for the redis backend")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Int("redis-db", 0, "Redis database number")
	serveCmd.Flags().String("redis-prefix", "espalier:", "Key prefix for the redis backend")
	serveCmd.Flags().String("templates", "", "YAML template library to load (enables publish validation)")
	serveCmd.Flags().Int("conflict-retries", 1, "Times a lost save race is retried before surfacing the conflict")
}
