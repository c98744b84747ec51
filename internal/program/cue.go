package program

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/koloss/internal/term"
)

// schema constrains CUE program documents. Terms stay open (_) and are
// checked by the term decoder.
const schema = `
#Program: {
	name?:    string
	tabled?:  [...string]
	dynamic?: [...string]
	clauses?: [..._]
	queries?: [...#Query]
}

#Query: {
	name?:   string
	goal?:   _
	goals?:  [..._]
	limit?:  int & >=0
	expect?: [...string]
}
`

// CUEError is a CUE evaluation or schema error with its source position.
type CUEError struct {
	Message string
	Pos     token.Pos
}

func (e *CUEError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Unwrap exposes the taxonomy code, so term.CodeOf reports PARSE_ERROR.
func (e *CUEError) Unwrap() error {
	return term.Errorf(term.CodeParse, "%s", e.Message)
}

// CompileCUE evaluates CUE source as a program document.
func CompileCUE(src []byte, filename string, syms *term.SymbolTable) (*Program, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return decodeCUE(ctx, v, syms)
}

// LoadCUEDir loads the CUE package in dir as one program document. All
// .cue files in the directory unify into a single value.
func LoadCUEDir(dir string, syms *term.SymbolTable) (*Program, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("program directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("program directory: %s is not a directory", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	ctx := cuecontext.New()
	p, err := decodeCUE(ctx, ctx.BuildInstance(inst), syms)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = filepath.Base(dir)
	}
	return p, nil
}

func decodeCUE(ctx *cue.Context, v cue.Value, syms *term.SymbolTable) (*Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Program"))
	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	doc := document{}
	if f := v.LookupPath(cue.ParsePath("name")); f.Exists() {
		name, err := f.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc.Name = name
	}
	var err error
	if doc.Tabled, err = stringList(v, "tabled"); err != nil {
		return nil, err
	}
	if doc.Dynamic, err = stringList(v, "dynamic"); err != nil {
		return nil, err
	}
	if f := v.LookupPath(cue.ParsePath("clauses")); f.Exists() {
		raw, err := plain(f)
		if err != nil {
			return nil, err
		}
		doc.Clauses, _ = raw.([]any)
	}

	if f := v.LookupPath(cue.ParsePath("queries")); f.Exists() {
		iter, err := f.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			qd, err := cueQuery(iter.Value())
			if err != nil {
				return nil, err
			}
			doc.Queries = append(doc.Queries, qd)
		}
	}
	return doc.build(syms)
}

func cueQuery(v cue.Value) (queryDoc, error) {
	var qd queryDoc
	if f := v.LookupPath(cue.ParsePath("name")); f.Exists() {
		s, err := f.String()
		if err != nil {
			return qd, formatCUEError(err)
		}
		qd.Name = s
	}
	if f := v.LookupPath(cue.ParsePath("goal")); f.Exists() {
		g, err := plain(f)
		if err != nil {
			return qd, err
		}
		qd.Goal = g
	}
	if f := v.LookupPath(cue.ParsePath("goals")); f.Exists() {
		g, err := plain(f)
		if err != nil {
			return qd, err
		}
		qd.Goals, _ = g.([]any)
	}
	if f := v.LookupPath(cue.ParsePath("limit")); f.Exists() {
		n, err := f.Int64()
		if err != nil {
			return qd, formatCUEError(err)
		}
		qd.Limit = int(n)
	}
	expect, err := stringList(v, "expect")
	if err != nil {
		return qd, err
	}
	qd.Expect = expect
	return qd, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// plain converts a concrete CUE value into the Go values term.FromValue
// accepts. Struct fields keep their declaration order.
func plain(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			item, err := plain(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := make(map[string]any)
		for iter.Next() {
			item, err := plain(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = item
		}
		return out, nil
	case cue.NullKind:
		return nil, &CUEError{Message: "null is not a term", Pos: v.Pos()}
	default:
		return nil, &CUEError{Message: fmt.Sprintf("unsupported CUE value of kind %v", v.Kind()), Pos: v.Pos()}
	}
}

// formatCUEError keeps the first error's position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &CUEError{Message: err.Error()}
	}
	first := errs[0]
	var pos token.Pos
	if ps := cueerrors.Positions(first); len(ps) > 0 {
		pos = ps[0]
	}
	return &CUEError{Message: first.Error(), Pos: pos}
}
