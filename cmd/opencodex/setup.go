package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/ce-data-e/opencodex/pkg/config"
	"github.com/ce-data-e/opencodex/pkg/debug"
	"github.com/ce-data-e/opencodex/pkg/observability"
)

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "path to the config file (YAML or JSONC)")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: ERROR, WARN, INFO, DEBUG or TRACE")
}

// load reads the configuration and installs the default logger.
func (c *commonFlags) load() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	debug.Init(debug.Options{
		Categories: cfg.Log.Debug,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
	})
	if cats := debug.Categories(); len(cats) > 0 {
		slog.Debug("debug categories enabled", "categories", cats)
	}
	return cfg, nil
}

// startObservability starts tracing and the metrics listener as configured.
// The returned function flushes and stops both.
func startObservability(ctx context.Context, cfg *config.Config, stderr io.Writer) (func(), error) {
	var stops []func(context.Context) error

	if tc := cfg.Observability.Tracing; tc.Enabled {
		exp, err := observability.NewExporter(ctx, observability.ExporterConfig{
			Kind:     tc.Exporter,
			Endpoint: tc.Endpoint,
			Writer:   stderr,
		})
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		tp := observability.InitTracing(observability.TracingConfig{
			ServiceName: tc.ServiceName,
			Exporter:    exp,
		})
		stops = append(stops, tp.Shutdown)
	}

	if cfg.Observability.Metrics.Enabled {
		ln, err := net.Listen("tcp", cfg.Observability.Metrics.Addr)
		if err != nil {
			for _, stop := range stops {
				_ = stop(ctx)
			}
			return nil, err
		}
		mux := http.NewServeMux()
		mux.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("metrics listener stopped", "error", err)
			}
		}()
		slog.Info("metrics listener started", "addr", ln.Addr().String(), "path", cfg.Observability.Metrics.Path)
		stops = append(stops, srv.Shutdown)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, stop := range stops {
			if err := stop(ctx); err != nil {
				slog.Warn("observability shutdown", "error", err)
			}
		}
	}, nil
}
