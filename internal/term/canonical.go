package term

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Domain prefixes for hashed term identity.
// Version suffix enables future encoding migration.
const (
	DomainVariant = "koloss/variant/v1"
	DomainState   = "koloss/state/v1"
)

// Canonical encoding tags.
const (
	tagVar      = 'V'
	tagInt      = 'I'
	tagFloat    = 'F'
	tagAtom     = 'A'
	tagStr      = 'S'
	tagBool     = 'B'
	tagNil      = 'N'
	tagCons     = 'L'
	tagCompound = 'C'
)

// canonicalNaN is the single bit pattern every NaN encodes to.
const canonicalNaN = 0x7ff8000000000001

// AppendCanonical appends the canonical encoding of t to dst.
//
// Terms that are Equal encode to identical bytes. When renumber is true,
// variables are numbered by first occurrence instead of by id, so two terms
// that are variants of each other encode identically.
func AppendCanonical(dst []byte, t Term, renumber bool) []byte {
	e := encoder{buf: dst}
	if renumber {
		e.vars = make(map[Var]uint64)
	}
	e.encode(t)
	return e.buf
}

type encoder struct {
	buf  []byte
	vars map[Var]uint64
}

func (e *encoder) encode(t Term) {
	for {
		switch x := t.(type) {
		case Var:
			e.buf = append(e.buf, tagVar)
			if e.vars == nil {
				e.buf = binary.AppendVarint(e.buf, int64(x))
				return
			}
			n, ok := e.vars[x]
			if !ok {
				n = uint64(len(e.vars))
				e.vars[x] = n
			}
			e.buf = binary.AppendUvarint(e.buf, n)
			return
		case Int:
			e.buf = append(e.buf, tagInt)
			e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(x))
			return
		case Float:
			e.buf = append(e.buf, tagFloat)
			e.buf = binary.BigEndian.AppendUint64(e.buf, floatBits(float64(x)))
			return
		case Atom:
			e.buf = append(e.buf, tagAtom)
			e.buf = binary.AppendUvarint(e.buf, uint64(x))
			return
		case Str:
			e.buf = append(e.buf, tagStr)
			e.buf = binary.AppendUvarint(e.buf, uint64(len(x)))
			e.buf = append(e.buf, x...)
			return
		case Bool:
			e.buf = append(e.buf, tagBool)
			if x {
				e.buf = append(e.buf, 1)
			} else {
				e.buf = append(e.buf, 0)
			}
			return
		case Nil:
			e.buf = append(e.buf, tagNil)
			return
		case *Cons:
			e.buf = append(e.buf, tagCons)
			e.encode(x.Head)
			t = x.Tail
		case *Compound:
			e.buf = append(e.buf, tagCompound)
			e.buf = binary.AppendUvarint(e.buf, uint64(x.Functor))
			e.buf = binary.AppendUvarint(e.buf, uint64(len(x.Args)))
			for _, a := range x.Args {
				e.encode(a)
			}
			return
		default:
			return
		}
	}
}

// floatBits maps equal floats to equal bits: every NaN to one pattern and
// -0 to +0.
func floatBits(f float64) uint64 {
	switch {
	case math.IsNaN(f):
		return canonicalNaN
	case f == 0:
		return 0
	default:
		return math.Float64bits(f)
	}
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// VariantKey returns a hash that is equal for two terms iff they are
// variants: equal up to a consistent renaming of variables.
// Callers deep-walk the term under its substitution first.
func VariantKey(t Term) string {
	return hashWithDomain(DomainVariant, AppendCanonical(nil, t, true))
}

// Key returns a hash that is equal for two terms iff they are Equal.
// Variables keep their identity.
func Key(t Term) string {
	return hashWithDomain(DomainState, AppendCanonical(nil, t, false))
}
