package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/aretw0/companion"
	"github.com/aretw0/companion/internal/config"
	"github.com/aretw0/companion/pkg/adapters/file"
	"github.com/aretw0/companion/pkg/adapters/memory"
	"github.com/aretw0/companion/pkg/adapters/redis"
	"github.com/aretw0/companion/pkg/adapters/sqlite"
	"github.com/aretw0/companion/pkg/adapters/transport"
	"github.com/aretw0/companion/pkg/effects"
	"github.com/aretw0/companion/pkg/observability"
	"github.com/aretw0/companion/pkg/persistence/middleware"
	"github.com/aretw0/companion/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runtime is a started App plus what the commands need around it.
type Runtime struct {
	App            *companion.App
	MetricsHandler http.Handler
}

// OpenBlobStore builds the blob store (and locker, when the backend has one)
// selected by cfg.
func OpenBlobStore(cfg config.Config) (ports.BlobStore, ports.DistributedLocker, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil

	case config.BackendFile:
		return file.New(cfg.Storage.Path), nil, nil

	case config.BackendSQLite:
		path := cfg.Storage.Path
		if !strings.HasSuffix(path, ".db") {
			path = filepath.Join(path, "companion.db")
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case config.BackendRedis:
		s := redis.New(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		return s, redis.NewLocker(s.Client(), "companion:"), nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalid, cfg.Storage.Backend)
	}
}

// NewTransport returns the resty transport, or a canned one when cfg asks for fakes.
func NewTransport(cfg config.Config) ports.Transport {
	if cfg.OpenAI.Fake {
		return effects.NewFakeTransport(cfg.OpenAI.BaseURL, true)
	}
	return transport.New(
		transport.WithTimeout(cfg.Transport.Timeout),
		transport.WithUserAgent("companion/"+strings.TrimSpace(companion.Version)),
	)
}

// BuildApp starts an App configured by cfg.
func BuildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	blobs, locker, err := OpenBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	opts := []companion.Option{
		companion.WithLogger(logger),
		companion.WithBlobStore(blobs),
		companion.WithTransport(NewTransport(cfg)),
		companion.WithMetrics(metrics),
		companion.WithStorageKey(cfg.Storage.Key),
		companion.WithAPIKey(cfg.OpenAI.APIKey),
		companion.WithModels(cfg.OpenAI.ChatModel, cfg.OpenAI.ImageModel),
		companion.WithImageDimension(cfg.OpenAI.ImageDimension),
		companion.WithExecutorOptions(
			effects.WithBaseURL(cfg.OpenAI.BaseURL),
			effects.WithMaxTokens(cfg.OpenAI.MaxTokens),
			effects.WithDownloadConcurrency(cfg.Effects.DownloadConcurrency),
		),
		companion.WithOnPersistError(func(err error) {
			logger.Error("State is no longer being saved", "err", err)
		}),
	}
	if locker != nil {
		opts = append(opts, companion.WithLocker(locker))
	}

	// Scrubbing must see plaintext, so it runs before encryption.
	if cfg.Storage.ScrubAPIKey {
		opts = append(opts, companion.WithMiddleware(middleware.NewScrubMiddleware([]string{`^apiKey$`})))
	}

	key, err := cfg.EncryptionKey()
	if err != nil {
		closeBlobStore(blobs, logger)
		return nil, err
	}
	if key != nil {
		opts = append(opts, companion.WithEncryptionKey(key))
	}

	app, err := companion.New(ctx, opts...)
	if err != nil {
		closeBlobStore(blobs, logger)
		return nil, err
	}
	return &Runtime{
		App:            app,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// closeBlobStore releases a store that never made it into an App.
func closeBlobStore(blobs ports.BlobStore, logger *slog.Logger) {
	c, ok := blobs.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close storage", "err", err)
	}
}
