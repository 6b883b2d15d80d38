package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/always-cache/httpsim"
	"github.com/always-cache/httpsim/cache"
	"github.com/always-cache/httpsim/cookiejar"
	"github.com/always-cache/httpsim/transport"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	modeFlag           string
	protocolFlag       string
	cacheFlag          string
	realtimeFlag       bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&modeFlag, "mode", "mock", "Transport mode: mock or live")
	flag.StringVar(&protocolFlag, "protocol", "http1", "Protocol for live requests: http1 or http2")
	flag.StringVar(&cacheFlag, "cache", "memory", "Cache backend: memory or sqlite (in-memory database)")
	flag.BoolVar(&realtimeFlag, "realtime", false, "Mock mode: wait for the simulated duration")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config := defaultConfig()
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not read config")
		}
	}
	applyFlags(&config)
	if err := config.validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	protocol, err := transport.ParseProtocol(config.Protocol)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	// set up cache provider
	var provider cache.CacheProvider = cache.NewMemCache()
	if config.Cache == "sqlite" {
		sqliteCache, err := cache.NewSQLiteCache(cache.MemoryDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not open cache database")
		}
		defer sqliteCache.Close()
		provider = sqliteCache
	}

	var tr transport.Transport
	if config.Mode == "live" {
		if tr, err = transport.NewLive(transport.LiveConfig{
			Logger:   &log.Logger,
			Protocol: protocol,
			Timeout:  config.Timeout,
		}); err != nil {
			log.Fatal().Err(err).Msg("Could not create transport")
		}
	} else {
		tr = transport.NewMock(transport.MockConfig{
			Logger:   &log.Logger,
			Protocol: protocol,
			Realtime: config.Realtime,
		})
	}

	sim := httpsim.CreateSimulator(httpsim.Config{
		Cache: cache.New(cache.Config{
			Provider:      provider,
			Logger:        &log.Logger,
			DefaultMaxAge: config.DefaultMaxAge,
		}),
		Cookies: cookiejar.New(cookiejar.Config{
			Logger:          &log.Logger,
			SessionLifetime: config.SessionLifetime,
		}),
		Transport:       tr,
		Rules:           config.Rules,
		Logger:          &log.Logger,
		HistoryTTL:      config.HistoryTTL,
		HistorySize:     config.HistorySize,
		CleanupInterval: config.CleanupInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sim.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           sim,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Could not shut down server")
		}
	}()

	log.Info().Msgf("Simulating %s requests (%s) on port %d", config.Mode, protocol, config.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(config *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Port = portFlag
		case "mode":
			config.Mode = modeFlag
		case "protocol":
			config.Protocol = protocolFlag
		case "cache":
			config.Cache = cacheFlag
		case "realtime":
			config.Realtime = realtimeFlag
		}
	})
}
