package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	router "github.com/dkeye/Chat/internal/adapters/http"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/app/broker"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/metrics"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:           "chat-server",
		Short:         "Real-time group chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file (default config/config.<CONFIG_ENV>.yaml)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("chat-server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Initialize zerolog global logger early so config loading can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	closeLog := configureLogging(cfg)
	defer closeLog()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	seed := make([]domain.RoomName, 0, len(cfg.Room.Seed))
	for _, name := range cfg.Room.Seed {
		seed = append(seed, domain.RoomName(name))
	}
	b := broker.New(broker.Options{
		RequestBuffer: cfg.Broker.RequestBuffer,
		MaxClients:    cfg.Room.DefaultMaxClients,
		Seed:          seed,
		Policy: app.SimplePolicy{
			DropSlow:        cfg.Backpressure == "drop",
			EnforceCapacity: cfg.Room.EnforceCapacity,
			DeleteEmpty:     cfg.Room.DeleteEmpty,
		},
		Metrics: m,
	})
	brokerDone := make(chan struct{})
	go func() {
		defer close(brokerDone)
		b.Run(ctx)
	}()

	r := router.SetupRouter(ctx, cfg, b, m)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("Chat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-brokerDone

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	default:
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

// configureLogging keeps the console writer for debug mode and switches to
// JSON lines otherwise. With log_file.path set, lines are also written to a
// rotated file. The returned func closes that file.
func configureLogging(cfg *config.Config) func() {
	var out io.Writer = os.Stderr
	if cfg.Mode == "debug" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	closeFn := func() {}
	if cfg.LogFile.Path != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSize,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAge,
			LocalTime:  true,
			Compress:   cfg.LogFile.Compress,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closeFn = func() { _ = file.Close() }
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return closeFn
}
