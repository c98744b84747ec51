package term

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// Format renders t in Prolog-like surface syntax. Variables print as _G<id>.
func Format(t Term, syms *SymbolTable) string {
	return FormatNamed(t, syms, nil)
}

// FormatNamed renders t using names for variables found in the map.
func FormatNamed(t Term, syms *SymbolTable, names map[Var]string) string {
	var b strings.Builder
	f := formatter{syms: syms, names: names, b: &b}
	f.write(t)
	return b.String()
}

type formatter struct {
	syms  *SymbolTable
	names map[Var]string
	b     *strings.Builder
}

func (f *formatter) write(t Term) {
	switch x := t.(type) {
	case Var:
		if name, ok := f.names[x]; ok {
			f.b.WriteString(name)
			return
		}
		f.b.WriteString("_G")
		f.b.WriteString(itoa(int64(x)))
	case Atom:
		f.atom(Symbol(x))
	case Int:
		f.b.WriteString(itoa(int64(x)))
	case Float:
		f.b.WriteString(FormatFloat(float64(x)))
	case Str:
		f.b.WriteString(strconv.Quote(string(x)))
	case Bool:
		f.b.WriteString(strconv.FormatBool(bool(x)))
	case Nil:
		f.b.WriteString("[]")
	case *Cons:
		f.b.WriteByte('[')
		f.write(x.Head)
		tail := x.Tail
		for {
			if c, ok := tail.(*Cons); ok {
				f.b.WriteByte(',')
				f.write(c.Head)
				tail = c.Tail
				continue
			}
			if _, ok := tail.(Nil); !ok {
				f.b.WriteByte('|')
				f.write(tail)
			}
			break
		}
		f.b.WriteByte(']')
	case *Compound:
		f.atom(x.Functor)
		f.b.WriteByte('(')
		for i, a := range x.Args {
			if i > 0 {
				f.b.WriteByte(',')
			}
			f.write(a)
		}
		f.b.WriteByte(')')
	}
}

func (f *formatter) atom(sym Symbol) {
	name := "$sym" + itoa(int64(sym))
	if f.syms != nil {
		name = f.syms.MustName(sym)
	}
	if needsQuote(name) {
		f.b.WriteByte('\'')
		f.b.WriteString(strings.ReplaceAll(name, "'", "\\'"))
		f.b.WriteByte('\'')
		return
	}
	f.b.WriteString(name)
}

// needsQuote reports whether an atom name would not read back as an atom.
// Lower-case identifiers and runs of symbol characters print bare.
func needsQuote(name string) bool {
	if name == "" {
		return true
	}
	switch name {
	case "[]", "!", ";", "{}":
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	if unicode.IsLower(first) {
		for _, r := range name {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
				return true
			}
		}
		return false
	}
	for _, r := range name {
		if !strings.ContainsRune(`+-*/\^<>=~:.?@#&$`, r) {
			return true
		}
	}
	return false
}

// FormatFloat renders a float so it never reads back as an integer.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
