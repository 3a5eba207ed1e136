package btree

import (
	"path/filepath"
	"testing"

	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Create(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intKey(v int32) []byte {
	b := make([]byte, 4)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	return b
}

func newIntTree(t *testing.T, s *store.Store) *Tree {
	t.Helper()
	root := CreateRoot(s, ValueSize(pagefmt.ColTy{Ty: pagefmt.TyInt}))
	return Open(s, root, ComparatorFor(pagefmt.TyInt), func(uint32) {})
}

func TestInsertLookupRoundTrip(t *testing.T) {
	s := newStore(t)
	tr := newIntTree(t, s)

	tr.Insert(intKey(10), pagefmt.NewRID(1, 0))
	tr.Insert(intKey(20), pagefmt.NewRID(1, 1))
	tr.Insert(intKey(5), pagefmt.NewRID(1, 2))

	require.True(t, tr.Contains(intKey(10)))
	require.True(t, tr.Contains(intKey(20)))
	require.False(t, tr.Contains(intKey(99)))

	it := tr.Iter()
	var got []int32
	for {
		v, _, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, int32(v[0])|int32(v[1])<<8|int32(v[2])<<16|int32(v[3])<<24)
	}
	require.Equal(t, []int32{5, 10, 20}, got)
}

func TestInsertForcesSplitAndStaysSorted(t *testing.T) {
	s := newStore(t)
	tr := newIntTree(t, s)
	originalRoot := tr.Root()

	rootCap := int(pagefmt.NewIndexPage(s.GetPage(tr.Root())).Cap())
	n := rootCap*3 + 7 // force several leaf splits under a new inner root

	for i := n - 1; i >= 0; i-- { // insert in reverse to exercise every split position
		tr.Insert(intKey(int32(i)), pagefmt.NewRID(1, uint32(i%512)))
	}

	require.NotEqual(t, originalRoot, tr.Root(), "root should have split at least once")
	require.False(t, pagefmt.NewIndexPage(s.GetPage(tr.Root())).Leaf())

	it := tr.Iter()
	count := 0
	var prev int32
	for {
		v, _, ok := it.Next()
		if !ok {
			break
		}
		cur := int32(v[0]) | int32(v[1])<<8 | int32(v[2])<<16 | int32(v[3])<<24
		if count > 0 {
			require.Less(t, prev, cur)
		}
		prev, count = cur, count+1
	}
	require.Equal(t, n, count)
}

func TestDeleteMergesAndKeepsRemainderIterable(t *testing.T) {
	s := newStore(t)
	tr := newIntTree(t, s)

	rootCap := int(pagefmt.NewIndexPage(s.GetPage(tr.Root())).Cap())
	n := rootCap*2 + 3
	for i := 0; i < n; i++ {
		tr.Insert(intKey(int32(i)), pagefmt.NewRID(1, uint32(i%512)))
	}

	// delete every other key, forcing merges/redistributions on the way down.
	for i := 0; i < n; i += 2 {
		tr.Delete(intKey(int32(i)), pagefmt.NewRID(1, uint32(i%512)))
	}

	it := tr.Iter()
	count := 0
	for {
		v, _, ok := it.Next()
		if !ok {
			break
		}
		cur := int32(v[0]) | int32(v[1])<<8 | int32(v[2])<<16 | int32(v[3])<<24
		require.Equal(t, int32(1), cur%2)
		count++
	}
	require.Equal(t, n/2, count)
}

func TestDuplicateValuesOrderByRID(t *testing.T) {
	s := newStore(t)
	tr := newIntTree(t, s)

	tr.Insert(intKey(7), pagefmt.NewRID(2, 3))
	tr.Insert(intKey(7), pagefmt.NewRID(1, 0))
	tr.Insert(intKey(7), pagefmt.NewRID(1, 5))

	it := tr.LowerBound(intKey(7))
	end := tr.UpperBound(intKey(7))
	var rids []pagefmt.RID
	for {
		if it.page == end.page && it.slot == end.slot {
			break
		}
		_, rid, ok := it.Next()
		require.True(t, ok)
		rids = append(rids, rid)
	}
	require.Equal(t, []pagefmt.RID{pagefmt.NewRID(1, 0), pagefmt.NewRID(1, 5), pagefmt.NewRID(2, 3)}, rids)
}
