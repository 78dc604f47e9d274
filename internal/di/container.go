// Package di wires the client object graph.
package di

import (
	"github.com/samber/do/v2"

	"epistolary-lite/internal/app"
	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/cache"
	"epistolary-lite/internal/client"
	"epistolary-lite/internal/config"
)

// NewContainer creates the container for cfg. Services are built lazily on first
// invocation.
func NewContainer(cfg config.ClientConfig) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, &cfg)

	// Persistence
	do.Provide(injector, ProvideStorage)
	do.Provide(injector, ProvideSession)

	// Transport
	do.Provide(injector, ProvideClient)
	do.Provide(injector, ProvideListener)

	// Application state
	do.Provide(injector, ProvideCache)
	do.Provide(injector, ProvideAlerts)
	do.Provide(injector, ProvideApp)

	return injector
}

// Bootstrap builds the core services so configuration errors surface up front.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*StorageHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.Manager](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*client.Client](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*cache.Cache](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*app.App](injector); err != nil {
		return err
	}
	return nil
}
