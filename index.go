// Package proxigraph is an in-memory approximate nearest-neighbor index
// over a hierarchical navigable small-world graph: reserve capacity, add
// vectors under opaque int64 labels, and search by distance under a
// pluggable metric. An index can be saved to and loaded or memory-mapped
// from a single self-describing file.
package proxigraph

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xDarkicex/proxigraph/internal/dist"
	"github.com/xDarkicex/proxigraph/internal/nstore"
	"github.com/xDarkicex/proxigraph/internal/obs"
	"github.com/xDarkicex/proxigraph/internal/persist"
	"github.com/xDarkicex/proxigraph/internal/pgraph"
)

// Index is the public façade over the proximity graph: functional options
// configure it once at construction, after which Reserve/Add/Search/Save/
// Load/View/Clear are the whole surface.
type Index struct {
	// mu separates the exclusive operations (reserve/save/load/view/clear),
	// which take the write lock, from the concurrent ones (add/search),
	// which take the read lock, so any number of adds and searches run
	// together but never alongside a reserve/save/load/view/clear.
	mu sync.RWMutex

	cfg   config
	graph *pgraph.Graph
	log   *zap.SugaredLogger
	mtx   *obs.Metrics

	path string // the file View mapped; Load does not set it
}

// New constructs an Index from the given options. WithDimensions is
// required; every other option has a default.
func New(opts ...Option) (*Index, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, newError("New", InvalidArgument, err)
		}
	}
	if cfg.dim <= 0 {
		return nil, newError("New", InvalidArgument, errDimensionsRequired)
	}

	distFunc := cfg.userDist
	if cfg.metric != dist.UserMetric {
		f, err := dist.ByName(cfg.metric, cfg.elem)
		if err != nil {
			return nil, newError("New", InvalidArgument, err)
		}
		distFunc = f
	}

	sugar := cfg.logger.Sugar()
	pcfg := pgraph.Config{
		Dim:            cfg.dim,
		Elem:           cfg.elem,
		Metric:         cfg.metric,
		DistFunc:       distFunc,
		M:              cfg.m,
		M0:             2 * cfg.m,
		EfConstruction: cfg.efAdd,
		EfSearch:       cfg.efSearch,
		Seed:           cfg.seed,
	}
	g, err := pgraph.New(pcfg, cfg.capacity, sugar)
	if err != nil {
		return nil, newError("New", InvalidArgument, err)
	}

	return &Index{cfg: cfg, graph: g, log: sugar, mtx: cfg.metrics}, nil
}

// Reserve grows the index to hold at least n vectors. Idempotent when
// n <= Capacity(). Requires exclusive access: fails with Locked if called
// while an Add/Search or another exclusive operation is in progress.
func (ix *Index) Reserve(n uint32) error {
	if !ix.mu.TryLock() {
		ix.log.Warnf("reserve(%d) attempted while another operation holds the lock", n)
		return newError("Reserve", Locked, ErrLocked)
	}
	defer ix.mu.Unlock()
	if err := ix.graph.Reserve(n); err != nil {
		return newError("Reserve", InvalidArgument, err)
	}
	return nil
}

// Add inserts (label, vec) under workerID, returning the new internal id.
// vec must be len(dim)*element-size bytes. copyVec controls whether the
// bytes are copied into the vector arena (safe default) or merely
// retained by reference (the caller must then keep vec alive and
// unmodified for as long as the index exists).
func (ix *Index) Add(workerID int, label int64, vec []byte, copyVec bool) (uint32, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	start := time.Now()
	id, err := ix.graph.Insert(workerID, label, vec, copyVec)
	if err != nil {
		kind := InvalidArgument
		if errors.Is(err, nstore.ErrOutOfCapacity) {
			kind = OutOfCapacity
			err = fmt.Errorf("%w: %w", ErrOutOfCapacity, err)
		}
		return 0, newError("Add", kind, err)
	}

	if ix.mtx != nil {
		ix.mtx.InsertTotal.Inc()
		ix.mtx.InsertDuration.Observe(time.Since(start).Seconds())
		ix.mtx.Size.Set(float64(ix.graph.Size()))
	}
	return id, nil
}

// SearchResult is one hit: the label it was inserted under and its
// distance to the query.
type SearchResult struct {
	Label int64
	Dist  float32
}

// Search returns the k nearest vectors to q by the configured metric,
// ascending by distance, ties broken by lower internal id.
func (ix *Index) Search(workerID int, q []byte, k int) ([]SearchResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 {
		return nil, newError("Search", InvalidArgument, errKMustBePositive)
	}

	start := time.Now()
	cands, err := ix.graph.Search(workerID, q, k)
	if err != nil {
		return nil, newError("Search", InvalidArgument, err)
	}

	if ix.mtx != nil {
		ix.mtx.SearchTotal.Inc()
		ix.mtx.SearchDuration.Observe(time.Since(start).Seconds())
		ef := ix.cfg.efSearch
		if k > ef {
			ef = k
		}
		ix.mtx.SearchEfEffective.Observe(float64(ef))
	}

	ns := ix.graph.NodeStore()
	out := make([]SearchResult, len(cands))
	for i, c := range cands {
		node := ns.Get(c.ID)
		out[i] = SearchResult{Label: node.Label, Dist: c.Dist}
	}
	return out, nil
}

// Save writes the index to path as a single self-describing file,
// atomically. Requires exclusive access: fails with Locked if called while
// an Add/Search or another exclusive operation is in progress.
func (ix *Index) Save(path string) error {
	if !ix.mu.TryLock() {
		ix.log.Warnf("save %s attempted while another operation holds the lock", path)
		return newError("Save", Locked, ErrLocked)
	}
	defer ix.mu.Unlock()

	p := persist.WriteParams{
		ElementType:    uint32(ix.cfg.elem),
		MetricID:       uint32(ix.cfg.metric),
		EfConstruction: ix.cfg.efAdd,
		EfSearch:       ix.cfg.efSearch,
		LevelLambda:    ix.graph.LevelLambda(),
	}
	if err := persist.Save(path, ix.graph.NodeStore(), ix.graph.VectorStore(), p); err != nil {
		ix.log.Warnf("save %s failed: %v", path, err)
		return newError("Save", Io, err)
	}
	return nil
}

// Load replaces the index's contents by reading path fully into memory.
// The file's dimension, element type, and (unless the index uses a user
// callback metric) metric must match this index's configuration, or the
// load fails with IncompatibleFile. Requires exclusive access: fails with
// Locked if called while an Add/Search or another exclusive operation is
// in progress.
func (ix *Index) Load(path string) error {
	if !ix.mu.TryLock() {
		ix.log.Warnf("load %s attempted while another operation holds the lock", path)
		return newError("Load", Locked, ErrLocked)
	}
	defer ix.mu.Unlock()

	res, err := persist.Load(path, ix.expect(), ix.log)
	if err != nil {
		return ix.wrapLoadErr("Load", err)
	}
	ix.adopt(res)
	return nil
}

// View replaces the index's contents with a read-only memory mapping of
// path: the vector arena is mapped directly rather than copied, so Add,
// Reserve, and any mutation fail until the index is Load'ed or cleared.
// Requires exclusive access: fails with Locked if called while an
// Add/Search or another exclusive operation is in progress.
func (ix *Index) View(path string) error {
	if !ix.mu.TryLock() {
		ix.log.Warnf("view %s attempted while another operation holds the lock", path)
		return newError("View", Locked, ErrLocked)
	}
	defer ix.mu.Unlock()

	res, err := persist.View(path, ix.expect(), ix.log)
	if err != nil {
		return ix.wrapLoadErr("View", err)
	}
	ix.adopt(res)
	ix.path = path
	return nil
}

func (ix *Index) expect() persist.Expect {
	return persist.Expect{Dim: ix.cfg.dim, ElementType: ix.cfg.elem, MetricID: uint32(ix.cfg.metric)}
}

func (ix *Index) adopt(res *persist.Result) {
	pcfg := ix.graph.Config()
	pcfg.EfConstruction = int(res.Header.EfConstruction)
	pcfg.EfSearch = int(res.Header.EfSearch)
	ix.graph = pgraph.FromStores(pcfg, res.VS, res.NS, ix.log)
	ix.cfg.efAdd = pcfg.EfConstruction
	ix.cfg.efSearch = pcfg.EfSearch
}

func (ix *Index) wrapLoadErr(op string, err error) error {
	if _, ok := err.(*persist.IncompatibleError); ok {
		return newError(op, IncompatibleFile, err)
	}
	return newError(op, Io, err)
}

// Clear empties the index, keeping its capacity and connectivity settings.
// Requires exclusive access: fails with Locked if called while an
// Add/Search or another exclusive operation is in progress.
func (ix *Index) Clear() error {
	if !ix.mu.TryLock() {
		ix.log.Warnf("clear attempted while another operation holds the lock")
		return newError("Clear", Locked, ErrLocked)
	}
	defer ix.mu.Unlock()
	ix.graph.Clear()
	if ix.mtx != nil {
		ix.mtx.Size.Set(0)
	}
	return nil
}

// Close releases any backing memory mapping opened by View. Safe to call
// on an index that was never View'ed.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.graph.VectorStore().Close()
}

func (ix *Index) Size() uint32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.graph.Size()
}

func (ix *Index) Capacity() uint32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.graph.Capacity()
}

func (ix *Index) Dimensions() int               { return ix.cfg.dim }
func (ix *Index) Connectivity() int             { return ix.cfg.m }
func (ix *Index) ElementType() dist.ElementType { return ix.cfg.elem }
func (ix *Index) Metric() dist.Metric           { return ix.cfg.metric }
