package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/penguins/internal/config"
	"github.com/vango-dev/penguins/internal/errors"
	"github.com/vango-dev/penguins/internal/server"
	"github.com/vango-dev/penguins/internal/store"
	"github.com/vango-dev/penguins/pkg/dataset"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		data       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		Long: `Start the dashboard server.

Configuration is read from --config, or from penguins.json or
penguins.yaml in the working directory when present. PENGUINS_ADDR,
PENGUINS_DATA and PENGUINS_LOG_LEVEL override the file, and flags
override both.

Examples:
  penguins serve
  penguins serve --addr=:9000
  penguins serve --data=s3://my-bucket/penguins.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			if data != "" {
				cfg.Data.Source = data
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to penguins.json or penguins.yaml")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Dataset: a CSV path, s3://bucket/key, or empty for the bundled sample")

	return cmd
}

// loadConfig reads path, or the working directory's config file when path
// is empty. A missing file in the working directory means defaults.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(".")
		if errors.HasCode(err, errors.CodeConfigNotFound) {
			cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func loadTable(ctx context.Context, cfg *config.Config) (*dataset.Table, error) {
	src, err := dataset.SourceFor(cfg.Data.Source, dataset.S3Options{
		Region:   cfg.Data.Region,
		Endpoint: cfg.Data.Endpoint,
	})
	if err != nil {
		return nil, errors.New(errors.CodeDataUnavailable).Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	table, err := src.Load(ctx)
	if err != nil {
		if stderrors.Is(err, dataset.ErrMalformedCSV) {
			return nil, errors.New(errors.CodeDataMalformed).Wrap(err)
		}
		return nil, errors.New(errors.CodeDataUnavailable).Wrap(err)
	}
	return table, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Session.Store == config.StoreBolt {
		st, err := store.OpenBolt(cfg.Session.StorePath)
		if err != nil {
			return nil, errors.New(errors.CodeStoreFailed).Wrap(err)
		}
		return st, nil
	}
	return store.NewMemoryStore(), nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Logger(os.Stderr)

	table, err := loadTable(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "rows", table.Len(), "source", sourceName(cfg.Data.Source))

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	srv := server.New(cfg, table,
		server.WithLogger(logger),
		server.WithStore(st),
	)

	info("Dashboard: http://%s", displayAddr(cfg.Server.Address))
	return srv.Run(ctx)
}

func sourceName(uri string) string {
	if uri == "" {
		return "embedded"
	}
	return uri
}

// displayAddr turns ":8080" into "localhost:8080".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
