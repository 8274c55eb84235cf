package quotakit

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/scribeworks/quotakit/modules/quota"
	"github.com/scribeworks/quotakit/pkg/gate"
	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/override"
	"github.com/scribeworks/quotakit/pkg/plan"
	"github.com/scribeworks/quotakit/pkg/recommend"
	"github.com/scribeworks/quotakit/pkg/requestid"
)

// Engine bundles the enforcement pipeline: plan catalog, override
// resolution, usage ledger, admission gate, and recommendation store.
type Engine struct {
	Catalog  *plan.Catalog
	Resolver *override.Resolver
	Ledger   ledger.Ledger
	Gate     *gate.Service
	Recs     recommend.Store
	Analyzer *recommend.Engine
}

// Config assembles an Engine from its collaborators. PlanSource is
// required; the storage-backed collaborators default to in-memory
// implementations suitable for tests and single-process deployments.
type Config struct {
	PlanSource    plan.Source
	OverrideStore override.Store
	Ledger        ledger.Ledger
	RecStore      recommend.Store
	Logger        *slog.Logger
}

// New wires the full pipeline. The returned Engine owns no goroutines;
// close the ledger and stop any scheduler separately.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	catalog, err := plan.NewCatalog(ctx, cfg.PlanSource)
	if err != nil {
		return nil, err
	}

	if cfg.OverrideStore == nil {
		cfg.OverrideStore = override.NewMemoryStore()
	}
	if cfg.Ledger == nil {
		cfg.Ledger = ledger.NewMemoryLedger()
	}
	if cfg.RecStore == nil {
		cfg.RecStore = recommend.NewMemoryStore()
	}

	resolver := override.NewResolver(catalog, cfg.OverrideStore, override.WithLogger(log))
	gateSvc := gate.New(resolver, cfg.Ledger, catalog, gate.WithLogger(log))
	analyzer := recommend.NewEngine(catalog, resolver, cfg.Ledger, cfg.RecStore, recommend.WithLogger(log))

	return &Engine{
		Catalog:  catalog,
		Resolver: resolver,
		Ledger:   cfg.Ledger,
		Gate:     gateSvc,
		Recs:     cfg.RecStore,
		Analyzer: analyzer,
	}, nil
}

// Handler returns the HTTP surface for the engine, ready to mount on
// any chi router or serve directly. Every request is tagged with a
// correlation ID before it reaches the quota endpoints.
func (e *Engine) Handler(opts ...quota.Option) http.Handler {
	return requestid.Middleware(quota.Router(quota.NewHandler(e.Gate, e.Recs, opts...)))
}
