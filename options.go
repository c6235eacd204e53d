package proxigraph

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xDarkicex/proxigraph/internal/dist"
	"github.com/xDarkicex/proxigraph/internal/obs"
)

// config collects everything an Option can set, validated once in New
// after every option has run.
type config struct {
	dim      int
	capacity uint32
	elem     dist.ElementType
	metric   dist.Metric
	userDist dist.Func
	m        int
	efAdd    int
	efSearch int
	seed     int64

	logger  *zap.Logger
	metrics *obs.Metrics
}

func defaultConfig() config {
	return config{
		elem:     dist.F32,
		metric:   dist.InnerProduct,
		m:        16,
		efAdd:    128,
		efSearch: 64,
		seed:     1,
		logger:   zap.NewNop(),
	}
}

// Option is a functional configuration option, applied in New.
type Option func(*config) error

// WithDimensions sets D, the vector length. Required — New fails without it.
func WithDimensions(d int) Option {
	return func(c *config) error {
		if d <= 0 {
			return fmt.Errorf("dimensions must be positive, got %d", d)
		}
		c.dim = d
		return nil
	}
}

// WithCapacity reserves room for n vectors at construction time, beyond
// which Add fails with OutOfCapacity until Reserve grows the index.
func WithCapacity(n uint32) Option {
	return func(c *config) error {
		c.capacity = n
		return nil
	}
}

// WithElementType sets the scalar width vectors are stored as.
func WithElementType(e dist.ElementType) Option {
	return func(c *config) error {
		if e.Size() == 0 {
			return fmt.Errorf("unsupported element type %s", e)
		}
		c.elem = e
		return nil
	}
}

// WithMetric selects a built-in distance metric.
func WithMetric(m dist.Metric) Option {
	return func(c *config) error {
		if m == dist.UserMetric {
			return fmt.Errorf("use WithUserMetric to install a callback metric")
		}
		c.metric = m
		return nil
	}
}

// WithUserMetric installs a caller-supplied distance callback. Indexes
// built this way are not portable across processes via Save/Load — the
// callback itself cannot be serialized, so saved files record metric_id 0
// and a reload must supply an equivalent callback itself.
func WithUserMetric(f dist.Func) Option {
	return func(c *config) error {
		if f == nil {
			return fmt.Errorf("user metric function cannot be nil")
		}
		c.metric = dist.UserMetric
		c.userDist = f
		return nil
	}
}

// WithConnectivity sets M, the target degree at layers above 0 (M0 = 2*M
// at layer 0).
func WithConnectivity(m int) Option {
	return func(c *config) error {
		if m < 2 {
			return fmt.Errorf("connectivity must be >= 2, got %d", m)
		}
		c.m = m
		return nil
	}
}

// WithExpansionAdd sets ef_construction, the candidate beam width used
// while inserting.
func WithExpansionAdd(ef int) Option {
	return func(c *config) error {
		if ef < 1 {
			return fmt.Errorf("expansion_add must be >= 1, got %d", ef)
		}
		c.efAdd = ef
		return nil
	}
}

// WithExpansionSearch sets ef_search, the default candidate beam width
// used while querying (per-call overridable via k).
func WithExpansionSearch(ef int) Option {
	return func(c *config) error {
		if ef < 1 {
			return fmt.Errorf("expansion_search must be >= 1, got %d", ef)
		}
		c.efSearch = ef
		return nil
	}
}

// WithSeed fixes the construction-time seed the per-worker level-assignment
// RNGs are derived from, making random layer draws reproducible across runs
// of the same single-threaded insert sequence.
func WithSeed(seed int64) Option {
	return func(c *config) error {
		c.seed = seed
		return nil
	}
}

// WithLogger wires a structured logger through to the graph and
// persistence layers for warn-level diagnostics. Default is zap.NewNop(),
// matching edirooss-zmux-server's pattern of injecting *zap.Logger rather
// than using a package-global one.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = l
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation using m's collectors.
func WithMetrics(m *obs.Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}
