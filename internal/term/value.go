package term

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// VarScope maps variable names in a structured document to variables.
// The same name always yields the same variable within one scope; the
// anonymous name "_" yields a fresh variable every time.
type VarScope struct {
	next  Var
	names map[string]Var
	order []string
}

// NewVarScope creates a scope whose variables start at id base.
func NewVarScope(base Var) *VarScope {
	return &VarScope{next: base, names: make(map[string]Var)}
}

// Var returns the variable bound to name, allocating it on first use.
func (s *VarScope) Var(name string) Var {
	if name == "_" || name == "" {
		return s.Fresh()
	}
	if v, ok := s.names[name]; ok {
		return v
	}
	v := s.Fresh()
	s.names[name] = v
	s.order = append(s.order, name)
	return v
}

// Fresh allocates an unnamed variable.
func (s *VarScope) Fresh() Var {
	v := s.next
	s.next++
	return v
}

// Lookup returns the variable for name if it was used.
func (s *VarScope) Lookup(name string) (Var, bool) {
	v, ok := s.names[name]
	return v, ok
}

// Names returns the named variables in first-use order.
func (s *VarScope) Names() []string {
	return append([]string(nil), s.order...)
}

// NameMap returns the inverse mapping, for FormatNamed and ToValue.
func (s *VarScope) NameMap() map[Var]string {
	out := make(map[Var]string, len(s.names))
	for name, v := range s.names {
		out[v] = name
	}
	return out
}

// Next returns the id the next fresh variable would get.
func (s *VarScope) Next() Var { return s.next }

// ToValue converts t to plain Go values, the inverse of FromValue.
//
// Encoding:
//   - Var: "?Name" (name from names, else "?_G<id>")
//   - Atom: bare string, or {"atom": name} when the name starts with '?'
//   - Int: int64, Float: float64, Bool: bool
//   - Str: {"str": text}
//   - proper list: []any
//   - partial list: {"list": [...], "tail": value}
//   - Compound: {"f": functor, "args": [...]}
func ToValue(t Term, syms *SymbolTable, names map[Var]string) any {
	switch x := t.(type) {
	case Var:
		if name, ok := names[x]; ok {
			return "?" + name
		}
		return "?_G" + itoa(int64(x))
	case Atom:
		name := syms.MustName(Symbol(x))
		if strings.HasPrefix(name, "?") {
			return map[string]any{"atom": name}
		}
		return name
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case Str:
		return map[string]any{"str": string(x)}
	case Bool:
		return bool(x)
	case Nil:
		return []any{}
	case *Cons:
		items, tail := ListItems(x)
		vals := make([]any, len(items))
		for i, it := range items {
			vals[i] = ToValue(it, syms, names)
		}
		if _, ok := tail.(Nil); ok {
			return vals
		}
		return map[string]any{"list": vals, "tail": ToValue(tail, syms, names)}
	case *Compound:
		args := make([]any, len(x.Args))
		for i, a := range x.Args {
			args[i] = ToValue(a, syms, names)
		}
		return map[string]any{"f": syms.MustName(x.Functor), "args": args}
	default:
		return nil
	}
}

// FromValue converts a decoded structured value into a term.
// Variables are resolved through scope. Malformed input yields a
// CodeParse error.
func FromValue(v any, syms *SymbolTable, scope *VarScope) (Term, error) {
	switch x := v.(type) {
	case string:
		if strings.HasPrefix(x, "?") {
			return scope.Var(x[1:]), nil
		}
		return syms.Atom(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, Errorf(CodeParse, "integer %d out of range", x)
		}
		return Int(x), nil
	case float32:
		return Float(x), nil
	case float64:
		return Float(x), nil
	case []any:
		items := make([]Term, len(x))
		for i, it := range x {
			t, err := FromValue(it, syms, scope)
			if err != nil {
				return nil, err
			}
			items[i] = t
		}
		return MakeList(items...), nil
	case map[string]any:
		return fromMap(x, syms, scope)
	case nil:
		return nil, Errorf(CodeParse, "null is not a term")
	default:
		return nil, Errorf(CodeParse, "unsupported value of type %T", v)
	}
}

func fromMap(m map[string]any, syms *SymbolTable, scope *VarScope) (Term, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	shape := strings.Join(keys, ",")

	switch shape {
	case "str":
		s, ok := m["str"].(string)
		if !ok {
			return nil, Errorf(CodeParse, "str must be a string, got %T", m["str"])
		}
		return NewStr(s), nil
	case "atom":
		s, ok := m["atom"].(string)
		if !ok {
			return nil, Errorf(CodeParse, "atom must be a string, got %T", m["atom"])
		}
		return syms.Atom(s), nil
	case "args,f", "f":
		name, ok := m["f"].(string)
		if !ok || name == "" {
			return nil, Errorf(CodeParse, "compound functor must be a non-empty string")
		}
		var raw []any
		if a, present := m["args"]; present {
			list, ok := a.([]any)
			if !ok {
				return nil, Errorf(CodeParse, "args of %s must be a list", name)
			}
			raw = list
		}
		if len(raw) == 0 {
			return syms.Atom(name), nil
		}
		args := make([]Term, len(raw))
		for i, a := range raw {
			t, err := FromValue(a, syms, scope)
			if err != nil {
				return nil, fmt.Errorf("%s arg %d: %w", name, i+1, err)
			}
			args[i] = t
		}
		return syms.Compound(name, args...), nil
	case "list,tail":
		raw, ok := m["list"].([]any)
		if !ok {
			return nil, Errorf(CodeParse, "list must be a list, got %T", m["list"])
		}
		items := make([]Term, len(raw))
		for i, it := range raw {
			t, err := FromValue(it, syms, scope)
			if err != nil {
				return nil, err
			}
			items[i] = t
		}
		tail, err := FromValue(m["tail"], syms, scope)
		if err != nil {
			return nil, err
		}
		return MakePartialList(tail, items...), nil
	default:
		return nil, Errorf(CodeParse, "unrecognized term object with keys [%s]", shape)
	}
}
