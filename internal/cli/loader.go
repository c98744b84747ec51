package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/roach88/koloss/internal/engine"
	"github.com/roach88/koloss/internal/program"
	"github.com/roach88/koloss/internal/term"
)

// Settings is the --config file.
//
//	engine:
//	  max_depth: 512
//	  unknown: error
//	database: ./facts.db
type Settings struct {
	Engine   engine.Config `yaml:"engine"`
	Database string        `yaml:"database"`
}

// LoadSettings reads a YAML config file. Unknown fields are rejected.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if _, err := s.Engine.Options(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &s, nil
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// loadProgram decodes a program file, or a directory of CUE files.
func loadProgram(path string, syms *term.SymbolTable) (*program.Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return program.LoadCUEDir(path, syms)
	}
	return program.LoadFile(path, syms)
}

// session is a loaded program bound to a fresh engine.
type session struct {
	syms     *term.SymbolTable
	engine   *engine.Engine
	program  *program.Program
	config   engine.Config
	registry *prometheus.Registry
}

// openSession builds an engine from the merged config and loads the
// program into it. Extra options are applied last.
func openSession(o *RootOptions, path string, flags engine.Config, extra ...engine.Option) (*session, error) {
	cfg := o.engineConfig(flags)
	opts, err := cfg.Options()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid engine config", err)
	}

	syms := term.NewSymbolTable()
	p, err := loadProgram(path, syms)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	opts = append(opts, engine.WithLogger(o.logger()), engine.WithMetrics(engine.NewMetrics(reg)))
	opts = append(opts, extra...)
	e := engine.New(syms, opts...)
	if err := p.Load(e); err != nil {
		return nil, err
	}
	o.logger().Debug("program loaded", "path", path, "name", p.Name, "clauses", len(p.Clauses), "queries", len(p.Queries))
	return &session{syms: syms, engine: e, program: p, config: cfg, registry: reg}, nil
}

// logMetrics writes the engine counters at debug level.
func (s *session) logMetrics(log *slog.Logger) {
	families, err := s.registry.Gather()
	if err != nil {
		log.Warn("gathering metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				log.Debug("metric", "name", mf.GetName(), "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				log.Debug("metric", "name", mf.GetName(), "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
		}
	}
	st := s.engine.Stats()
	log.Debug("engine stats",
		"queries", st.Queries,
		"resolutions", st.Resolutions,
		"table_hits", st.TableHits,
		"table_misses", st.TableMisses,
		"derive_iterations", st.DeriveIterations)
}
