package engine

import (
	"github.com/roach88/koloss/internal/term"
)

// Error constructors used by the machine and built-ins. Every error the
// engine returns is a *term.Error so callers match on term.ErrorCode.

func (e *Engine) indicator(key PredKey) string {
	return key.String(e.syms)
}

func unknownPredicateError(e *Engine, key PredKey) error {
	err := term.Errorf(term.CodeUnknownPredicate, "no clauses for %s", e.indicator(key))
	err.Predicate = e.indicator(key)
	return err
}

func arityMismatchError(e *Engine, key PredKey, known []int) error {
	err := term.Errorf(term.CodeArityMismatch, "%s called with arity %d, known arities %v",
		e.syms.MustName(key.Name), key.Arity, known)
	err.Predicate = e.indicator(key)
	return err
}

// instantiationError reports an unbound argument where a value is needed.
func instantiationError(pred string) error {
	return term.Errorf(term.CodeTypeMismatch, "%s: argument is not sufficiently instantiated", pred)
}

func typeError(pred, want string, got term.Term, syms *term.SymbolTable) error {
	return term.Errorf(term.CodeTypeMismatch, "%s: expected %s, got %s", pred, want, term.Format(got, syms))
}

func internalError(format string, args ...any) error {
	return term.Errorf(term.CodeInternal, format, args...)
}

// IsUnknownPredicate reports whether err is an unknown predicate error.
func IsUnknownPredicate(err error) bool {
	return term.IsCode(err, term.CodeUnknownPredicate)
}

// IsArityMismatch reports whether err is an arity mismatch error.
func IsArityMismatch(err error) bool {
	return term.IsCode(err, term.CodeArityMismatch)
}
