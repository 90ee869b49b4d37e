package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/earshot/internal/app"
	"github.com/petems/earshot/internal/audio"
	"github.com/petems/earshot/internal/config"
	"github.com/petems/earshot/internal/logging"
	"github.com/petems/earshot/internal/metrics"
	"github.com/petems/earshot/internal/permissions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	configPath := flag.String("config", config.Path(), "Path to configuration file")
	filePath := flag.String("file", "", "Transcribe a WAV file instead of the microphone")
	listDevices := flag.Bool("devices", false, "List audio input devices and exit")
	flag.Parse()

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *filePath != "" {
		cfg.Audio.Source = config.SourceFile
		cfg.Audio.FilePath = *filePath
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	// macOS requires explicit microphone approval before capture works
	if cfg.Audio.Source == config.SourceMicrophone {
		if err := permissions.EnsureMicrophone(log); err != nil {
			log.Fatal().Err(err).Msg("Required permissions not granted")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	application, err := app.Build(cfg, log, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline")
	}
	defer application.Close()

	log.Info().Str("version", Version).Str("commit", Commit).Msg("Earshot starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, application, cfg.Metrics.ListenAddr, reg, log); err != nil {
		log.Error().Err(err).Msg("Earshot stopped with error")
		application.Close()
		os.Exit(1)
	}
	log.Info().Msg("Earshot stopped")
}

// run drives the app and, when addr is set, the metrics endpoint. Either one
// finishing brings the other down.
func run(ctx context.Context, application *app.App, addr string, reg *prometheus.Registry, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return application.Run(gctx)
	})

	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func printDevices() error {
	devices, err := audio.Devices()
	if err != nil {
		return err
	}
	for _, d := range audio.InputDevices(devices) {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %d: %s (%d channels, %.0f Hz)\n", marker, d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}
