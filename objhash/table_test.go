package objhash

import (
	"testing"

	"github.com/rcache/engine/config"
	"github.com/rcache/engine/digest"
	"github.com/stretchr/testify/require"
)

func digestFor(b byte) digest.Digest {
	var d digest.Digest
	d[0] = b
	d[31] = b ^ 0xff
	return d
}

func TestTableStrategies(t *testing.T) {
	for _, algo := range []config.HashAlgorithm{config.HashSimple, config.HashClassic, config.HashCritbit} {
		algo := algo
		t.Run(string(algo), func(t *testing.T) {
			table := New(algo)

			d1, d2 := digestFor(1), digestFor(2)

			h1, created := table.Lookup(d1)
			require.True(t, created)
			require.Equal(t, d1, h1.Digest)

			h1again, created := table.Lookup(d1)
			require.False(t, created)
			require.Same(t, h1, h1again)
			require.Equal(t, int64(2), h1.RefCount()) // initial index ref + the repeat Lookup's pin

			h2, created := table.Lookup(d2)
			require.True(t, created)
			require.NotSame(t, h1, h2)
			require.Equal(t, 2, table.Len())

			// First deref just drops the repeat-lookup pin; the head's own
			// index reference keeps it alive.
			require.False(t, table.Deref(h1))
			require.Equal(t, 2, table.Len())

			// Second deref drops the index reference itself; with an empty
			// objcore list the head is destroyed and removed.
			require.True(t, table.Deref(h1again))
			require.Equal(t, 1, table.Len())

			require.True(t, table.Deref(h2))
			require.Equal(t, 0, table.Len())
		})
	}
}

func TestCritbitManyDigests(t *testing.T) {
	table := newCritbitTable()
	var ds []digest.Digest
	for i := 0; i < 200; i++ {
		d := digestFor(byte(i))
		d[5] = byte(i * 7)
		d[17] = byte(i * 13)
		ds = append(ds, d)
		h, created := table.Lookup(d)
		require.True(t, created)
		require.Equal(t, d, h.Digest)
	}
	require.Equal(t, len(ds), table.Len())

	for _, d := range ds {
		h, created := table.Lookup(d)
		require.False(t, created)
		require.Equal(t, d, h.Digest)
	}
}
