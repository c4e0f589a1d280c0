package fracdex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstKey(t *testing.T) {
	k := First()
	require.NoError(t, Validate(k))
	require.Equal(t, "i", k)
}

func TestMidpointBetween(t *testing.T) {
	cases := []struct{ a, b string }{
		{"a", "b"},
		{"a", "a1"},
		{"m", "t"},
		{"z", "z1"},
		{"0i", "1"},
		{"abc", "abd"},
		{"1", "z"},
	}
	for _, c := range cases {
		m, err := Midpoint(c.a, c.b, 0)
		require.NoError(t, err, "midpoint(%q, %q)", c.a, c.b)
		require.NoError(t, Validate(m))
		require.Negative(t, Compare(c.a, m), "%q < %q", c.a, m)
		require.Negative(t, Compare(m, c.b), "%q < %q", m, c.b)
	}
}

func TestMidpointRejectsBadBounds(t *testing.T) {
	if _, err := Midpoint("b", "a", 0); err == nil {
		t.Fatal("expected error for inverted bounds")
	}
	if _, err := Midpoint("a", "a", 0); err == nil {
		t.Fatal("expected error for equal bounds")
	}
	if _, err := Midpoint("a0", "b", 0); err == nil {
		t.Fatal("expected error for trailing-zero bound")
	}
}

func TestBeforeAfter(t *testing.T) {
	b, err := Before("m", 0)
	require.NoError(t, err)
	require.Negative(t, Compare(b, "m"))

	a, err := After("m", 0)
	require.NoError(t, err)
	require.Positive(t, Compare(a, "m"))

	// appending after the top digit extends rather than overflows
	a, err = After("z", 0)
	require.NoError(t, err)
	require.Positive(t, Compare(a, "z"))
}

// Repeatedly bisecting the same gap must hit the depth cap instead of
// growing keys without bound.
func TestMidpointHitsDepthCap(t *testing.T) {
	const depth = 4
	lo, hi := "a", "b"
	var err error
	for i := 0; i < 64; i++ {
		var m string
		m, err = Midpoint(lo, hi, depth)
		if err != nil {
			break
		}
		require.LessOrEqual(t, len(m), depth)
		hi = m
	}
	require.ErrorIs(t, err, ErrExhaustedKeyspace)
}

func TestSpreadStrictlyIncreasing(t *testing.T) {
	keys, err := Spread("a", "b", 16, 0)
	require.NoError(t, err)
	require.Len(t, keys, 16)
	prev := "a"
	for _, k := range keys {
		require.NoError(t, Validate(k))
		require.Negative(t, Compare(prev, k))
		require.Negative(t, Compare(k, "b"))
		prev = k
	}
}

func TestSpreadWholeKeyspace(t *testing.T) {
	keys, err := Spread("", "", 100, 0)
	require.NoError(t, err)
	prev := ""
	for _, k := range keys {
		require.Positive(t, Compare(k, prev))
		// bisection over the whole keyspace keeps keys short
		require.LessOrEqual(t, len(k), 8)
		prev = k
	}
}

func TestSpreadReclaimsRoomAfterExhaustion(t *testing.T) {
	// a and a1 are too tight under a shallow cap once their gap has been
	// bisected; spreading the surrounding neighborhood produces short keys.
	const depth = 4
	keys, err := Spread("8", "x", 4, depth)
	require.NoError(t, err)
	prev := "8"
	for _, k := range keys {
		require.LessOrEqual(t, len(k), depth)
		require.Negative(t, Compare(prev, k))
		prev = k
	}
	require.Negative(t, Compare(prev, "x"))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("a1"))
	require.Error(t, Validate(""))
	require.Error(t, Validate("a0"))
	require.Error(t, Validate("A"))
	require.Error(t, Validate("a-b"))
}
