package main

import (
	"errors"
	"expvar" // For publishing metrics
	"io"
	stlog "log" // Renamed standard log
	"log/slog"
	"net/http"         // For pprof/expvar server
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"path/filepath"
	"runtime"

	snapcraftls "github.com/nooreldeensalah/snapcraft-ls"
)

// App version (set via linker flags -ldflags="-X main.appVersion=...")
var appVersion = "dev"

func main() {
	// --- Basic Setup ---
	// Setup logging destination *before* initializing slog. Logging to stdout
	// would corrupt the JSON-RPC stream, so the log goes to a file and stderr.
	logPath := "snapcraft-ls.log"
	if cacheDir, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(cacheDir, "snapcraft-ls")
		if mkErr := os.MkdirAll(dir, 0750); mkErr == nil {
			logPath = filepath.Join(dir, "snapcraft-ls.log")
		}
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		stlog.Fatalf("Failed to open log file: %v", err) // Use standard log for initial fatal error
	}
	defer logFile.Close()

	// --- Setup Temporary Logger for Initialization ---
	// Use a basic stderr logger initially until the final level is determined.
	tempLogger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{Level: slog.LevelInfo}))

	// --- Initialize Core Service ---
	// This loads configuration internally
	service, initErr := snapcraftls.NewService(tempLogger)
	if initErr != nil {
		tempLogger.Error("Failed to initialize snapcraft-ls service", "error", initErr)
		// Exit on fatal init errors, but allow config warnings to proceed
		if !errors.Is(initErr, snapcraftls.ErrConfig) {
			os.Exit(1)
		}
		if service == nil { // Ensure service is non-nil even with config errors
			tempLogger.Error("Service initialization returned nil unexpectedly, exiting.")
			os.Exit(1)
		}
	}
	defer func() {
		// Use the final configured logger for shutdown messages
		slog.Info("Closing snapcraft-ls service...")
		if err := service.Close(); err != nil {
			slog.Error("Error closing service", "error", err)
		}
	}()

	// --- Setup Global Logger ---
	initialConfig := service.GetCurrentConfig()
	logLevel, parseLevelErr := snapcraftls.ParseLogLevel(initialConfig.LogLevel)
	if parseLevelErr != nil {
		logLevel = slog.LevelInfo // Default to Info
		tempLogger.Warn("Invalid log level in config, using default 'info'", "config_level", initialConfig.LogLevel, "error", parseLevelErr)
	}
	logWriter := io.MultiWriter(os.Stderr, logFile)
	handlerOpts := slog.HandlerOptions{Level: logLevel, AddSource: true} // Add source for better debugging
	handler := slog.NewTextHandler(logWriter, &handlerOpts)
	logger := slog.New(handler)
	slog.SetDefault(logger) // Set the configured logger as default

	// Log startup messages using the final logger
	slog.Info("snapcraft-ls server starting...", "version", appVersion, "log_level", logLevel.String())
	if initErr != nil && errors.Is(initErr, snapcraftls.ErrConfig) {
		slog.Warn("Service initialized with configuration warnings", "error", initErr)
	}
	interfaces, plugins, bases := service.Schema().Counts()
	slog.Info("Service initialized successfully.", "interfaces", interfaces, "plugins", plugins, "bases", bases)

	// --- Setup Profiling & Metrics ---
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
	slog.Info("Enabled block and mutex profiling")
	startDebugServer() // Start pprof/expvar HTTP server

	// --- Initialize and Run LSP Server ---
	// NewServer handles publishing expvar metrics internally.
	lspServer := snapcraftls.NewServer(service, logger, appVersion)

	// Run the server (blocks until shutdown)
	lspServer.Run(os.Stdin, os.Stdout)

	slog.Info("LSP server has shut down gracefully.")
}

// startDebugServer starts the HTTP server for pprof and expvar.
func startDebugServer() {
	debugListenAddr := "localhost:6062" // Consider making configurable
	go func() {
		slog.Info("Starting debug server for pprof/expvar", "addr", debugListenAddr)
		debugMux := http.NewServeMux()
		// Register pprof handlers
		debugMux.HandleFunc("/debug/pprof/", http.DefaultServeMux.ServeHTTP)
		debugMux.HandleFunc("/debug/pprof/cmdline", http.DefaultServeMux.ServeHTTP)
		debugMux.HandleFunc("/debug/pprof/profile", http.DefaultServeMux.ServeHTTP)
		debugMux.HandleFunc("/debug/pprof/symbol", http.DefaultServeMux.ServeHTTP)
		debugMux.HandleFunc("/debug/pprof/trace", http.DefaultServeMux.ServeHTTP)
		// Register expvar handler
		debugMux.HandleFunc("/debug/vars", expvar.Handler().ServeHTTP)
		if err := http.ListenAndServe(debugListenAddr, debugMux); err != nil {
			// Use the default slog logger as this runs in a separate goroutine
			slog.Error("Debug server failed", "error", err)
		}
	}()
}
