package bloom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterAddTest(t *testing.T) {
	f := NewForElements(100, 0.01, 12345)
	f.Add([]byte("hello"))
	require.True(t, f.Test([]byte("hello")))
}

func TestFilterClear(t *testing.T) {
	f := NewForElements(10, 0.01, 1)
	f.Add([]byte("x"))
	require.True(t, f.Test([]byte("x")))
	f.Clear()
	require.False(t, f.Test([]byte("x")))
}

func TestFilterLoadReconstructsBits(t *testing.T) {
	orig := NewForElements(10, 0.01, 42)
	orig.Add([]byte("z"))

	loaded := Load(orig.bits, orig.k, orig.tweak)
	require.True(t, loaded.Test([]byte("z")))
	require.False(t, loaded.Test([]byte("not-there")))
}

func TestFilterNoFalseNegatives(t *testing.T) {
	f := NewForElements(50, 0.001, 777)
	items := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	for _, it := range items {
		f.Add(it)
	}
	for _, it := range items {
		require.True(t, f.Test(it))
	}
}
