// Command bulkd is the demo executable of spec.md §6: it wires up the
// facade, reads stdin into a single context, and emits bulks to stdout and
// to files in the configured directory, optionally also publishing them to
// Kafka and serving Prometheus metrics.
package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bulkd/internal/config"
	"bulkd/internal/facade"
	"bulkd/internal/httpapi"
	"bulkd/internal/logger"
	"bulkd/internal/registry"
	"bulkd/internal/sink/kafkasink"
)

var configPath string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bulkd",
		Short: "bulkd batches a newline-delimited command stream into bulks",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newHTTPCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var bulkSize int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "read stdin into one context, writing bulks to stdout and to files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if bulkSize > 0 {
				cfg.BulkSize = bulkSize
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().IntVar(&bulkSize, "bulk-size", 0, "override the configured bulk size")
	return cmd
}

func newHTTPCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "serve the embedding API over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runHTTP(cfg, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to serve the HTTP API and /metrics on")
	return cmd
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.FromEnv(), nil
}

func runServe(cfg *config.Config) error {
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("cmd/bulkd")

	if err := facade.Init(registryOptions(cfg)); err != nil {
		return fmt.Errorf("bulkd: init registry: %w", err)
	}
	defer facade.Shutdown()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	handle := facade.Connect(cfg.BulkSize)
	if !handle.Valid() {
		return fmt.Errorf("bulkd: connect failed")
	}
	defer facade.Disconnect(handle)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		facade.Receive(handle, append(scanner.Bytes(), '\n'))
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("reading stdin")
	}

	log.Info().Msg("stdin closed, shutting down")
	return nil
}

func runHTTP(cfg *config.Config, addr string) error {
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("cmd/bulkd")

	opts := registryOptions(cfg)
	if err := facade.Init(opts); err != nil {
		return fmt.Errorf("bulkd: init registry: %w", err)
	}
	defer facade.Shutdown()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpapi.NewHandler())

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("serving embedding API over HTTP")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("bulkd: http server: %w", err)
	}
	return server.Close()
}

func registryOptions(cfg *config.Config) registry.Options {
	opts := registry.Options{
		DefaultOutput:  os.Stdout,
		ConsoleWorkers: cfg.ConsoleWorkers,
		ConsoleRate:    cfg.ConsoleRateLimit,
		FileDir:        cfg.FileDir,
		FileWorkers:    cfg.FileWorkers,
	}
	if cfg.Kafka.Enabled() {
		opts.Kafka = &kafkasink.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}
	}
	return opts
}

func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
