package term

import (
	"sync"

	"golang.org/x/text/unicode/norm"
)

// SymbolTable interns atom and functor names.
//
// Ids are dense, start at 0 and are stable for the lifetime of the table.
// Names are NFC-normalized first, so canonically equivalent spellings share
// one symbol. A SymbolTable is safe for concurrent use.
type SymbolTable struct {
	mu    sync.RWMutex
	ids   map[string]Symbol
	names []string
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{ids: make(map[string]Symbol)}
}

// Intern returns the symbol for name, allocating one on first use.
func (t *SymbolTable) Intern(name string) Symbol {
	name = norm.NFC.String(name)

	t.mu.RLock()
	id, ok := t.ids[name]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[name]; ok {
		return id
	}
	id = Symbol(len(t.names))
	t.ids[name] = id
	t.names = append(t.names, name)
	return id
}

// Lookup returns the symbol for name without allocating.
func (t *SymbolTable) Lookup(name string) (Symbol, bool) {
	name = norm.NFC.String(name)
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[name]
	return id, ok
}

// Name returns the text of sym.
func (t *SymbolTable) Name(sym Symbol) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(sym) >= len(t.names) {
		return "", false
	}
	return t.names[sym], true
}

// MustName returns the text of sym or a placeholder for unknown symbols.
func (t *SymbolTable) MustName(sym Symbol) string {
	if name, ok := t.Name(sym); ok {
		return name
	}
	return "$sym" + itoa(int64(sym))
}

// Len returns the number of interned symbols.
func (t *SymbolTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}

// Atom interns name and returns it as an atom.
func (t *SymbolTable) Atom(name string) Atom {
	return Atom(t.Intern(name))
}

// Compound interns the functor and builds a compound term.
func (t *SymbolTable) Compound(functor string, args ...Term) *Compound {
	return &Compound{Functor: t.Intern(functor), Args: args}
}

// Callable builds an atom when args is empty, otherwise a compound.
func (t *SymbolTable) Callable(functor string, args ...Term) Term {
	if len(args) == 0 {
		return t.Atom(functor)
	}
	return t.Compound(functor, args...)
}
