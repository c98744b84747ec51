package engine

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/koloss/internal/term"
	"github.com/roach88/koloss/internal/unify"
)

// Default limits.
const (
	// DefaultMaxDepth bounds the resolution depth of a single proof branch.
	DefaultMaxDepth = 256

	// DefaultMaxSteps bounds the goals executed by one query.
	DefaultMaxSteps = 1_000_000

	// DefaultMaxIterations bounds forward-chaining iterations.
	DefaultMaxIterations = 100
)

// UnknownMode selects what happens when a goal has no clauses.
type UnknownMode int

const (
	// UnknownFail treats an unknown predicate as false (closed world).
	UnknownFail UnknownMode = iota

	// UnknownError returns UNKNOWN_PREDICATE, or ARITY_MISMATCH when the
	// name is known at another arity.
	UnknownError
)

// ArithMode selects how arithmetic errors surface.
type ArithMode int

const (
	// ArithFail makes the offending goal fail.
	ArithFail ArithMode = iota

	// ArithError aborts the query with ARITHMETIC_ERROR or TYPE_MISMATCH.
	ArithError
)

// Engine owns a clause database, its tables and its options.
//
// Thread-safety: all methods are safe for concurrent use. Each query runs
// on its own machine; the database is guarded by an RWMutex and clause
// lists are copy-on-write.
type Engine struct {
	syms    *term.SymbolTable
	renamer *unify.Renamer
	unifier unify.Unifier

	mu       sync.RWMutex
	preds    map[PredKey]*predicate
	order    []PredKey // Predicates in first-assertion order
	byName   map[term.Symbol][]int
	seq      uint64 // Clause sequence for global assertion order
	gen      atomic.Uint64
	tables   *tableStore
	inflight singleflight.Group // Top-level table evaluations by variant
	queries  atomic.Int64

	maxDepth int
	maxSteps int64
	unknown  UnknownMode
	arith    ArithMode
	out      io.Writer
	outMu    sync.Mutex
	logger   *slog.Logger
	metrics  *Metrics
	idGen    IDGenerator
	builtins map[PredKey]*builtin
	ctl      controlSyms
	stats    counters
}

// Option configures an Engine.
type Option func(*Engine)

// WithOccursCheck enables or disables the occurs check. Default: enabled.
func WithOccursCheck(on bool) Option {
	return func(e *Engine) { e.unifier = unify.Unifier{OccursCheck: on} }
}

// WithMaxDepth sets the maximum resolution depth per proof branch.
//
// Default: 256 (DefaultMaxDepth). 0 disables the bound.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithMaxSteps sets the maximum number of goals executed per query,
// including sub-proofs. Default: DefaultMaxSteps. 0 disables the bound.
func WithMaxSteps(n int64) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithUnknown sets the unknown-predicate policy. Default: UnknownFail.
func WithUnknown(mode UnknownMode) Option {
	return func(e *Engine) { e.unknown = mode }
}

// WithArithmetic sets the arithmetic error policy. Default: ArithFail.
func WithArithmetic(mode ArithMode) Option {
	return func(e *Engine) { e.arith = mode }
}

// WithOutput sets the sink for write/1 and nl/0. Default: io.Discard.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDGenerator sets the generator for derive run ids.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// New creates an engine that interns names in syms.
// Several engines may share one symbol table.
func New(syms *term.SymbolTable, opts ...Option) *Engine {
	e := &Engine{
		syms:     syms,
		renamer:  unify.NewRenamer(),
		unifier:  unify.Default,
		preds:    make(map[PredKey]*predicate),
		byName:   make(map[term.Symbol][]int),
		tables:   newTableStore(),
		maxDepth: DefaultMaxDepth,
		maxSteps: DefaultMaxSteps,
		out:      io.Discard,
		logger:   slog.Default(),
		idGen:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctl = newControlSyms(syms)
	e.builtins = builtinTable(syms)
	return e
}

// Symbols returns the engine's symbol table.
func (e *Engine) Symbols() *term.SymbolTable {
	return e.syms
}

// Renamer returns the engine's fresh-variable allocator.
func (e *Engine) Renamer() *unify.Renamer {
	return e.renamer
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Queries            int64
	Resolutions        int64
	TableHits          int64
	TableMisses        int64
	TableInvalidations int64
	DeriveIterations   int64
}

type counters struct {
	resolutions        atomic.Int64
	tableHits          atomic.Int64
	tableMisses        atomic.Int64
	tableInvalidations atomic.Int64
	deriveIterations   atomic.Int64
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Queries:            e.queries.Load(),
		Resolutions:        e.stats.resolutions.Load(),
		TableHits:          e.stats.tableHits.Load(),
		TableMisses:        e.stats.tableMisses.Load(),
		TableInvalidations: e.stats.tableInvalidations.Load(),
		DeriveIterations:   e.stats.deriveIterations.Load(),
	}
}

func (e *Engine) write(s string) {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	io.WriteString(e.out, s)
}
