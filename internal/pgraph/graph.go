// Package pgraph implements the proximity graph: the hierarchical
// navigable small-world structure that ties the vector store, node store,
// and thread-local scratch together into insertion and search.
package pgraph

import (
	"fmt"
	"math"
	"sync"

	"github.com/xDarkicex/proxigraph/internal/dist"
	"github.com/xDarkicex/proxigraph/internal/nstore"
	"github.com/xDarkicex/proxigraph/internal/tls"
	"github.com/xDarkicex/proxigraph/internal/vstore"
)

// Logger is the minimal diagnostic sink pgraph needs; the façade satisfies
// it with a *zap.SugaredLogger so this package stays free of a direct zap
// dependency.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}

// Config holds the connectivity and search-quality parameters the façade
// exposes through its functional options.
type Config struct {
	Dim            int
	Elem           dist.ElementType
	Metric         dist.Metric
	DistFunc       dist.Func // resolved built-in, or the caller's own callback for UserMetric
	M              int
	M0             int
	EfConstruction int
	EfSearch       int
	Seed           int64
}

// levelLambda is the decay parameter for random layer assignment:
// level_lambda = 1/ln(M).
func (c Config) levelLambda() float64 {
	return 1.0 / math.Log(float64(c.M))
}

// Graph is the proximity graph: the HNSW structure over a Node Store and
// Vector Store, with a pool of per-worker scratch state for concurrent
// insertion and search.
type Graph struct {
	cfg Config
	vs  *vstore.Store
	ns  *nstore.Store
	tp  *tls.Pool
	log Logger

	rngMu sync.Mutex
	rngs  map[int]*levelRNG
}

// New builds a Graph over freshly allocated vector and node stores sized to
// capacity.
func New(cfg Config, capacity uint32, log Logger) (*Graph, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("pgraph: dimensions must be positive, got %d", cfg.Dim)
	}
	if cfg.M < 2 {
		return nil, fmt.Errorf("pgraph: connectivity M must be >= 2, got %d", cfg.M)
	}
	if cfg.DistFunc == nil {
		return nil, fmt.Errorf("pgraph: no distance function resolved for metric %s", cfg.Metric)
	}
	if log == nil {
		log = nopLogger{}
	}

	vs, err := vstore.New(cfg.Elem, cfg.Dim, capacity)
	if err != nil {
		return nil, fmt.Errorf("pgraph: %w", err)
	}
	ns := nstore.New(cfg.M, cfg.M0, capacity)

	return &Graph{
		cfg:  cfg,
		vs:   vs,
		ns:   ns,
		tp:   tls.NewPool(capacity, cfg.EfSearch, cfg.M0+1),
		log:  log,
		rngs: make(map[int]*levelRNG),
	}, nil
}

// FromStores wires a Graph over already-constructed vector/node stores,
// used by the façade once internal/persist has reconstructed a loaded or
// memory-mapped index (the stores already hold the persisted state; the
// graph just needs to sit on top of them).
func FromStores(cfg Config, vs *vstore.Store, ns *nstore.Store, log Logger) *Graph {
	if log == nil {
		log = nopLogger{}
	}
	return &Graph{
		cfg:  cfg,
		vs:   vs,
		ns:   ns,
		tp:   tls.NewPool(ns.Capacity(), cfg.EfSearch, cfg.M0+1),
		log:  log,
		rngs: make(map[int]*levelRNG),
	}
}

func (g *Graph) VectorStore() *vstore.Store { return g.vs }
func (g *Graph) NodeStore() *nstore.Store   { return g.ns }
func (g *Graph) Config() Config             { return g.cfg }

// LevelLambda exposes the decay constant for the persistence writer
// without requiring callers to duplicate the 1/ln(M) formula.
func (g *Graph) LevelLambda() float64 { return g.cfg.levelLambda() }

// Size returns the number of live nodes.
func (g *Graph) Size() uint32 { return g.ns.Size() }

// Capacity returns the current reserved node capacity.
func (g *Graph) Capacity() uint32 { return g.ns.Capacity() }

// Reserve grows both stores to capacity. Not safe to call concurrently with
// Insert/Search; callers must hold exclusive access.
func (g *Graph) Reserve(capacity uint32) error {
	if err := g.vs.Reserve(capacity); err != nil {
		return fmt.Errorf("pgraph: %w", err)
	}
	if err := g.ns.Reserve(capacity); err != nil {
		return fmt.Errorf("pgraph: %w", err)
	}
	g.tp.Grow(capacity)
	return nil
}

// Clear resets both stores to empty, keeping capacity and connectivity
// settings intact. The vector store is replaced by a fresh owning arena of
// the same capacity, releasing any read-only mapping it was backed by.
func (g *Graph) Clear() {
	g.ns.Clear()
	if vs, err := vstore.New(g.cfg.Elem, g.cfg.Dim, g.ns.Capacity()); err == nil {
		g.vs.Close()
		g.vs = vs
	}
	g.rngMu.Lock()
	g.rngs = make(map[int]*levelRNG)
	g.rngMu.Unlock()
}

func (g *Graph) vectorAt(id uint32) []byte { return g.vs.At(id) }

func (g *Graph) distance(a, b []byte) float32 { return g.cfg.DistFunc(a, b, g.cfg.Dim) }
