package di

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"epistolary-lite/internal/alerts"
	"epistolary-lite/internal/app"
	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/cache"
	"epistolary-lite/internal/client"
	"epistolary-lite/internal/config"
	"epistolary-lite/internal/live"
	"epistolary-lite/internal/storage"
)

// StorageHandle closes the storage area on shutdown.
type StorageHandle struct {
	storage.Storage
}

// Shutdown implements do.Shutdownable.
func (h *StorageHandle) Shutdown() error {
	return h.Close()
}

// AlertsHandle stops pending alert timers on shutdown.
type AlertsHandle struct {
	*alerts.Queue
}

// Shutdown implements do.Shutdownable.
func (h *AlertsHandle) Shutdown() error {
	h.Close()
	return nil
}

func ProvideStorage(i do.Injector) (*StorageHandle, error) {
	cfg := do.MustInvoke[*config.ClientConfig](i)

	area, err := storage.Open(cfg.StorageURL)
	if err != nil {
		return nil, fmt.Errorf("could not open storage %q: %w", cfg.StorageURL, err)
	}

	log.Debug().Str("url", cfg.StorageURL).Msg("storage opened")
	return &StorageHandle{Storage: area}, nil
}

func ProvideSession(i do.Injector) (*auth.Manager, error) {
	area := do.MustInvoke[*StorageHandle](i)
	return auth.NewManager(auth.NewTokenStore(area)), nil
}

func ProvideClient(i do.Injector) (*client.Client, error) {
	cfg := do.MustInvoke[*config.ClientConfig](i)
	area := do.MustInvoke[*StorageHandle](i)

	opts := []client.Option{
		client.WithStorage(area),
		client.WithUserAgent(cfg.UserAgent()),
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.RequestTimeout))
	}
	if cfg.RequestRate > 0 {
		opts = append(opts, client.WithRateLimit(cfg.RequestRate, 1))
	}
	return client.New(cfg.APIBaseURL, opts...)
}

func ProvideCache(i do.Injector) (*cache.Cache, error) {
	cfg := do.MustInvoke[*config.ClientConfig](i)
	return cache.New(cache.WithStaleTime(cfg.CacheStaleTime)), nil
}

func ProvideAlerts(i do.Injector) (*AlertsHandle, error) {
	cfg := do.MustInvoke[*config.ClientConfig](i)
	return &AlertsHandle{Queue: alerts.New(cfg.AlertTimeout)}, nil
}

func ProvideApp(i do.Injector) (*app.App, error) {
	session := do.MustInvoke[*auth.Manager](i)
	api := do.MustInvoke[*client.Client](i)
	qc := do.MustInvoke[*cache.Cache](i)
	queue := do.MustInvoke[*AlertsHandle](i)
	return app.New(session, api, qc, queue.Queue), nil
}

func ProvideListener(i do.Injector) (*live.Listener, error) {
	cfg := do.MustInvoke[*config.ClientConfig](i)
	api := do.MustInvoke[*client.Client](i)
	qc := do.MustInvoke[*cache.Cache](i)
	return live.New(api, qc, cfg.UserAgent()), nil
}
