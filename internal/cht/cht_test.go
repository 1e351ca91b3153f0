package cht

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func strHash(s string) uint64 { return HashBytes([]byte(s)) }
func strEq(a, b string) bool  { return a == b }

func TestPutGetDelete(t *testing.T) {
	tr := New[string, int](strHash, strEq)

	_, ok := tr.Get("missing")
	require.False(t, ok)

	tr.Put("a", 1)
	tr.Put("b", 2)
	tr.Put("c", 3)

	v, ok := tr.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = tr.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, v)

	require.Equal(t, 3, tr.Len())

	removed, ok := tr.Delete("b")
	require.True(t, ok)
	require.Equal(t, 2, removed)
	require.Equal(t, 2, tr.Len())

	_, ok = tr.Get("b")
	require.False(t, ok)

	// deleting an absent key is a no-op
	_, ok = tr.Delete("nope")
	require.False(t, ok)
	require.Equal(t, 2, tr.Len())
}

func TestPutOverwritesExisting(t *testing.T) {
	tr := New[string, int](strHash, strEq)
	tr.Put("k", 1)
	tr.Put("k", 2)
	v, ok := tr.Get("k")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, tr.Len())
}

func TestDeleteCompressesBranchToSoleChild(t *testing.T) {
	tr := New[string, int](strHash, strEq)
	// Force a large enough population to guarantee at least one branch
	// split, then delete everything but one key and confirm lookups and
	// count still behave as if no branching ever happened.
	keys := make([]string, 200)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		tr.Put(keys[i], i)
	}
	require.Equal(t, 200, tr.Len())

	for i := 1; i < len(keys); i++ {
		tr.Delete(keys[i])
	}
	require.Equal(t, 1, tr.Len())

	v, ok := tr.Get(keys[0])
	require.True(t, ok)
	require.Equal(t, 0, v)

	// fully drain: the root must collapse all the way back to nil and
	// behave as a fresh empty trie.
	tr.Delete(keys[0])
	require.Equal(t, 0, tr.Len())
	_, ok = tr.Get(keys[0])
	require.False(t, ok)
}

// collidingHash forces every key to the same address, exercising the
// true collision-leaf path at maxDepth instead of a branch split.
func collidingHash(string) uint64 { return 42 }

func TestCollisionLeafAtMaxDepth(t *testing.T) {
	tr := New[string, int](collidingHash, strEq)
	tr.Put("one", 1)
	tr.Put("two", 2)
	tr.Put("three", 3)
	require.Equal(t, 3, tr.Len())

	v, ok := tr.Get("two")
	require.True(t, ok)
	require.Equal(t, 2, v)

	tr.Delete("two")
	require.Equal(t, 2, tr.Len())
	_, ok = tr.Get("two")
	require.False(t, ok)

	v, ok = tr.Get("one")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestPatchCanCancelInsert(t *testing.T) {
	tr := New[string, int](strHash, strEq)
	tr.Patch("x", func(existing int, found bool) (int, bool) {
		require.False(t, found)
		return 0, false // decline to insert
	})
	_, ok := tr.Get("x")
	require.False(t, ok)
	require.Equal(t, 0, tr.Len())
}

func TestConcurrentPutsAllVisible(t *testing.T) {
	tr := New[string, int](strHash, strEq)
	const n = 500
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			tr.Put(fmt.Sprintf("k-%d", i), i)
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, tr.Len())
	for i := 0; i < n; i++ {
		v, ok := tr.Get(fmt.Sprintf("k-%d", i))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestConcurrentReadDuringWriteNeverObservesTornState(t *testing.T) {
	tr := New[string, int](strHash, strEq)
	for i := 0; i < 50; i++ {
		tr.Put(fmt.Sprintf("k-%d", i), i)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				tr.Put(fmt.Sprintf("k-%d", i%50), i)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		g := Pin()
		_, _ = tr.Get(fmt.Sprintf("k-%d", i%50))
		g.Release()
	}
	close(stop)
	wg.Wait()
}
