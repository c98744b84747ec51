package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValue(t *testing.T) {
	syms := NewSymbolTable()
	scope := NewVarScope(0)

	got, err := FromValue(map[string]any{
		"f":    "edge",
		"args": []any{"a", "?X", 3, 1.5, map[string]any{"str": "s"}, []any{"?X", true}},
	}, syms, scope)
	require.NoError(t, err)

	x, ok := scope.Lookup("X")
	require.True(t, ok)
	want := syms.Compound("edge",
		syms.Atom("a"), x, Int(3), Float(1.5), Str("s"), MakeList(x, Bool(true)))
	assert.True(t, Equal(want, got), "got %s", Format(got, syms))
}

func TestFromValueAnonymousVariables(t *testing.T) {
	syms := NewSymbolTable()
	scope := NewVarScope(0)

	got, err := FromValue([]any{"?_", "?_"}, syms, scope)
	require.NoError(t, err)

	items, _ := ListItems(got)
	require.Len(t, items, 2)
	assert.NotEqual(t, items[0], items[1], "each anonymous variable is fresh")
	assert.Empty(t, scope.Names())
}

func TestFromValueNormalizesStrings(t *testing.T) {
	syms := NewSymbolTable()

	composed, err := FromValue(map[string]any{"str": "caf\u00e9"}, syms, NewVarScope(0))
	require.NoError(t, err)
	decomposed, err := FromValue(map[string]any{"str": "cafe\u0301"}, syms, NewVarScope(0))
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
	assert.Equal(t, Key(composed), Key(decomposed))
}

func TestFromValueErrors(t *testing.T) {
	syms := NewSymbolTable()

	tests := []struct {
		name  string
		value any
	}{
		{"null", nil},
		{"unknown object", map[string]any{"x": 1}},
		{"bad functor", map[string]any{"f": 3, "args": []any{}}},
		{"bad args", map[string]any{"f": "p", "args": "a"}},
		{"bad str", map[string]any{"str": 1}},
		{"unsupported type", struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromValue(tt.value, syms, NewVarScope(0))
			require.Error(t, err)
			assert.True(t, IsCode(err, CodeParse), "got %v", err)
		})
	}
}

func TestToValueRoundTrip(t *testing.T) {
	syms := NewSymbolTable()
	scope := NewVarScope(0)
	orig := syms.Compound("f",
		syms.Atom("?odd"),
		scope.Var("T"),
		MakePartialList(scope.Var("T"), Int(1)),
		Str("txt"),
	)

	v := ToValue(orig, syms, scope.NameMap())
	back, err := FromValue(v, syms, scope)
	require.NoError(t, err)
	assert.True(t, Equal(orig, back), "got %s", Format(back, syms))
}

func TestErrorHelpers(t *testing.T) {
	err := NewResourceExhausted("depth", 64).WithPredicate("loop", 1)

	assert.True(t, IsResourceExhausted(err))
	assert.False(t, IsInternal(err))
	assert.Contains(t, err.Error(), "loop/1")
	assert.Equal(t, "depth", err.Details["limit"])

	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodeResourceExhausted, code)
}
