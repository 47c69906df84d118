// Package app wires together configuration, the API client, and the local
// history store into a single Deps struct that commands receive at runtime.
package app

import (
	"fmt"

	"github.com/derickschaefer/carprice/internal/config"
	"github.com/derickschaefer/carprice/internal/pricing"
	"github.com/derickschaefer/carprice/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is opened lazily because most commands never touch history.
type Deps struct {
	Config *config.Config
	Client *pricing.Client
	Store  *store.Store
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) *Deps {
	client := pricing.NewClient(
		cfg.APIURL,
		cfg.Timeout,
		cfg.Rate,
		cfg.Debug,
	)
	return &Deps{
		Config: cfg,
		Client: client,
	}
}

// RequireStore opens the history database on first use.
func (d *Deps) RequireStore() (*store.Store, error) {
	if d.Store != nil {
		return d.Store, nil
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	d.Store = s
	return s, nil
}

// Close releases the store, if it was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
