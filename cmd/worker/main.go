package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/linkflow/engine/internal/observability/metrics"
	"github.com/linkflow/engine/internal/observability/tracing"
	"github.com/linkflow/engine/internal/version"
	"github.com/linkflow/engine/internal/worker"
	"github.com/linkflow/engine/internal/worker/adapter"
	"github.com/linkflow/engine/internal/worker/executor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		httpPort  = flag.Int("http-port", 8080, "HTTP server port")
		taskQueue = flag.String("task-queue", getEnv("TASK_QUEUE", "default"), "Task queue name")

		matchingAddr = flag.String("matching-addr", getEnv("MATCHING_ADDR", "localhost:7235"), "Matching service address")
		historyAddr  = flag.String("history-addr", getEnv("HISTORY_ADDR", "localhost:7234"), "History service address")
		numWorkers   = flag.Int("num-workers", 4, "Number of worker goroutines")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	printBanner("Worker", logger)

	_, shutdownTracing, err := tracing.NewProvider(context.Background(), tracing.ProviderConfig{
		ServiceName:       "linkflow-worker",
		ServiceVersion:    version.Version,
		CollectorEndpoint: getEnv("OTEL_COLLECTOR_ADDR", ""),
		SampleRatio:       1.0,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer provider shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if getEnv("CALLBACK_SECRET", "") == "" {
		logger.Warn("CALLBACK_SECRET is not set; API callbacks will fail when signature verification is enabled")
	}

	// Connect to History Service
	historyConn, err := grpc.NewClient(*historyAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Error("failed to connect to history service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer historyConn.Close()
	historyClient := adapter.NewHistoryClient(historyConn)

	svc, err := worker.NewService(worker.Config{
		TaskQueues:      strings.Split(*taskQueue, ","),
		NumPollers:      *numWorkers,
		Identity:        fmt.Sprintf("worker-%d", os.Getpid()),
		MatchingAddr:    *matchingAddr,
		PollInterval:    time.Second,
		Logger:          logger,
		CallbackKey:     getEnv("CALLBACK_SECRET", ""),
		CallbackTimeout: 10 * time.Second,
		HistoryClient:   historyClient,
	})
	if err != nil {
		return fmt.Errorf("failed to create worker service: %w", err)
	}

	// nodeRegistry holds every node type the engine schedules: engine-native
	// control-flow executors run in-process, while node types whose real
	// behavior lives outside the engine boundary (HTTP, email, AI, webhook,
	// Slack/Discord/Twilio, database, storage — spec.md §1 Non-goals) get a
	// ConnectorExecutor forwarding to a dispatcher the deployment wires up.
	nodeRegistry := executor.DefaultRegistryInit()

	connectorAddr := getEnv("CONNECTOR_ADDR", "")
	if connectorAddr == "" {
		logger.Warn("CONNECTOR_ADDR not set; HTTP/email/AI/webhook/Slack/Discord/Twilio/database/storage nodes will fail with a non-retryable error until a connector dispatcher is bound")
	} else {
		dispatcher := executor.NewHTTPDispatcher(connectorAddr, 30*time.Second)
		for _, nodeType := range executor.ConnectorNodeTypes() {
			nodeRegistry.BindConnector(nodeType, dispatcher)
		}
		logger.Info("bound connector dispatcher", slog.String("connector_addr", connectorAddr))
	}

	workflowExecutor := executor.NewWorkflowExecutor(historyClient, logger)
	workflowExecutor.SetRegistry(nodeRegistry)
	svc.RegisterExecutor(workflowExecutor)

	for _, exec := range nodeRegistry.All() {
		svc.RegisterExecutor(exec)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker service: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
		if err := svc.Stop(); err != nil {
			logger.Error("failed to stop worker service", slog.String("error", err.Error()))
		}
	}()

	// Start HTTP Server for Health Checks
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", metrics.DefaultRegistry.Handler())

		httpServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", *httpPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		logger.Info("starting HTTP server", slog.Int("port", *httpPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	logger.Info("worker pool started",
		slog.String("task_queue", *taskQueue),
		slog.String("matching_addr", *matchingAddr),
		slog.Int("num_workers", *numWorkers),
	)

	<-ctx.Done()
	logger.Info("worker service stopped")
	return nil
}

func printBanner(service string, logger *slog.Logger) {
	logger.Info(fmt.Sprintf("LinkFlow %s Service", service),
		slog.String("version", version.Version),
		slog.String("commit", version.GitCommit),
		slog.String("build_time", version.BuildTime),
	)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
