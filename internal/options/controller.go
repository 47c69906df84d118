// Package options owns the reference-data lifecycle of the vehicle form:
// the option catalog loaded once per page mount, and the dependent model and
// series lists refreshed as the user changes brand and model.
//
// Each dependent fetch family carries a monotonic request token. A result
// that arrives after a newer request of the same family has started (or
// after its parent selection changed) is discarded, so the lists on display
// always belong to the latest selection.
package options

import (
	"context"
	"log/slog"
	"sync"

	"github.com/derickschaefer/carprice/internal/model"
)

// Source is the subset of the prediction service client the controller needs.
type Source interface {
	GetOptions(ctx context.Context) (*model.OptionCatalog, error)
	GetModelsByBrand(ctx context.Context, brand string) ([]string, error)
	GetSeriesByModel(ctx context.Context, modelName string) ([]string, error)
}

// CatalogState is the top-level catalog state machine.
type CatalogState int

const (
	Idle CatalogState = iota
	LoadingCatalog
	CatalogReady
	CatalogError
)

func (s CatalogState) String() string {
	switch s {
	case LoadingCatalog:
		return "loadingCatalog"
	case CatalogReady:
		return "catalogReady"
	case CatalogError:
		return "catalogError"
	default:
		return "idle"
	}
}

// Snapshot is an immutable copy of the controller state, safe to render.
type Snapshot struct {
	State   CatalogState
	Catalog model.OptionCatalog
	Error   string

	Brand  string
	Model  string
	Models []string
	Series []string

	LoadingModels bool
	LoadingSeries bool
}

// Controller is safe for concurrent use. Network calls run without holding
// the lock; state transitions happen under it.
type Controller struct {
	src Source
	log *slog.Logger

	mu        sync.Mutex
	state     CatalogState
	catalog   model.OptionCatalog
	errMsg    string
	brand     string
	model     string
	models    []string
	series    []string
	modelTok  uint64
	seriesTok uint64
	// in-flight markers: the token of the pending request, 0 when none
	pendingModels uint64
	pendingSeries uint64
}

// New returns an idle controller. A nil logger falls back to slog.Default.
func New(src Source, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{src: src, log: log}
}

// Activate loads the option catalog. On failure the catalog stays empty and
// the error message is kept for the page banner; the error is also returned.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	c.state = LoadingCatalog
	c.errMsg = ""
	c.mu.Unlock()

	catalog, err := c.src.GetOptions(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = CatalogError
		c.catalog = model.OptionCatalog{}
		c.errMsg = err.Error()
		c.log.Error("catalog load failed", "err", err)
		return err
	}
	c.state = CatalogReady
	c.catalog = *catalog
	return nil
}

// SelectBrand records brand as the current brand. The selected model, the
// model list and the series list are cleared immediately. For a non-empty
// brand the model list is then fetched; a fetch failure is logged and leaves
// the model list empty.
func (c *Controller) SelectBrand(ctx context.Context, brand string) {
	c.mu.Lock()
	c.brand = brand
	c.model = ""
	c.models = nil
	c.series = nil
	c.modelTok++
	c.seriesTok++ // any series fetch belongs to the old brand now
	c.pendingSeries = 0
	tok := c.modelTok
	if brand == "" {
		c.pendingModels = 0
		c.mu.Unlock()
		return
	}
	c.pendingModels = tok
	c.mu.Unlock()

	models, err := c.src.GetModelsByBrand(ctx, brand)

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok != c.modelTok {
		c.log.Debug("discarding superseded model list", "brand", brand)
		return
	}
	c.pendingModels = 0
	if err != nil {
		c.log.Warn("model list load failed", "brand", brand, "err", err)
		c.models = nil
		return
	}
	c.models = models
	c.series = nil
}

// SelectModel records modelName as the current model and clears the series
// list immediately. For a non-empty model the series list is then fetched;
// a fetch failure is logged and leaves the series list empty.
func (c *Controller) SelectModel(ctx context.Context, modelName string) {
	c.mu.Lock()
	c.model = modelName
	c.series = nil
	c.seriesTok++
	tok := c.seriesTok
	if modelName == "" {
		c.pendingSeries = 0
		c.mu.Unlock()
		return
	}
	c.pendingSeries = tok
	c.mu.Unlock()

	series, err := c.src.GetSeriesByModel(ctx, modelName)

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok != c.seriesTok {
		c.log.Debug("discarding superseded series list", "model", modelName)
		return
	}
	c.pendingSeries = 0
	if err != nil {
		c.log.Warn("series list load failed", "model", modelName, "err", err)
		c.series = nil
		return
	}
	c.series = series
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:         c.state,
		Catalog:       c.catalog,
		Error:         c.errMsg,
		Brand:         c.brand,
		Model:         c.model,
		Models:        append([]string(nil), c.models...),
		Series:        append([]string(nil), c.series...),
		LoadingModels: c.pendingModels != 0,
		LoadingSeries: c.pendingSeries != 0,
	}
}
