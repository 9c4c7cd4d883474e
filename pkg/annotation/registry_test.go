package annotation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.Register("person", "adult")
	b := r.Register("furniture", "sofa")
	require.Equal(t, 0, a)
	require.Equal(t, 1, b)
	require.Equal(t, a, r.Register("person", "adult"))
	require.Equal(t, b, r.Register("furniture", "sofa"))
	require.Equal(t, 2, r.Len())

	id, ok := r.Lookup("furniture", "sofa")
	require.True(t, ok)
	require.Equal(t, 1, id)
	_, ok = r.Lookup("furniture", "chair")
	require.False(t, ok)
}

func TestRegistrySequentialIds(t *testing.T) {
	r := NewRegistry()
	n := 25
	for i := 0; i < n; i++ {
		require.Equal(t, i, r.Register("object", fmt.Sprintf("thing%v", i)))
	}
	// Second pass, in reverse, changes nothing
	for i := n - 1; i >= 0; i-- {
		require.Equal(t, i, r.Register("object", fmt.Sprintf("thing%v", i)))
	}
	names := r.Names()
	require.Len(t, names, n)
	for i, name := range names {
		require.Equal(t, fmt.Sprintf("object/thing%v", i), name)
		require.Equal(t, name, r.NameOf(i))
	}
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, UnknownCategory, r.NameOf(0))
	r.Register("person", "")
	require.Equal(t, "person/", r.NameOf(0))
	require.Equal(t, UnknownCategory, r.NameOf(1))
	require.Equal(t, UnknownCategory, r.NameOf(-1))
}
