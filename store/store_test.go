package store

import (
	"path/filepath"
	"testing"

	"github.com/nullbound/reldb/pagefmt"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rt.db")
	s, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	require.Equal(t, Magic[:], s2.Schema().Magic())
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.db")
	s, err := Create(path)
	require.NoError(t, err)
	s.Schema().SetMagic([]byte("not-a-valid-magic!"))
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
}

func TestAllocDeallocPageReusesFreeList(t *testing.T) {
	s := newStore(t)
	id1, _ := s.AllocPage()
	id2, _ := s.AllocPage()
	require.NotEqual(t, id1, id2)

	s.DeallocPage(id2)
	s.DeallocPage(id1)

	// LIFO free-list stack: id1 popped first.
	got1, _ := s.AllocPage()
	require.Equal(t, id1, got1)
	got2, _ := s.AllocPage()
	require.Equal(t, id2, got2)
}

func TestHeapAllocFillsAndGrowsPage(t *testing.T) {
	s := newStore(t)
	id, raw := s.AllocPage()
	tp := pagefmt.NewTablePage(raw)
	tp.Init(16, 1, "t")

	cap := int(tp.Cap())
	seen := map[pagefmt.RID]bool{}
	for i := 0; i < cap; i++ {
		rid := s.AllocDataSlot(id)
		require.False(t, seen[rid])
		seen[rid] = true
	}
	// table should now be full on its first page; next alloc grows a new page.
	before := tp.First()
	rid := s.AllocDataSlot(id)
	require.NotEqual(t, before, pagefmt.NewTablePage(s.GetPage(id)).First())
	require.Equal(t, pagefmt.NewTablePage(s.GetPage(id)).First(), rid.Page())
}

func TestHeapDeallocAndIterate(t *testing.T) {
	s := newStore(t)
	id, raw := s.AllocPage()
	tp := pagefmt.NewTablePage(raw)
	tp.Init(16, 1, "t")

	var rids []pagefmt.RID
	for i := 0; i < 5; i++ {
		rids = append(rids, s.AllocDataSlot(id))
	}
	s.DeallocDataSlot(id, rids[2])

	count := 0
	it := NewRecordIter(s, pagefmt.NewTablePage(s.GetPage(id)))
	for {
		_, rid, ok := it.Next()
		if !ok {
			break
		}
		require.NotEqual(t, rids[2], rid)
		count++
	}
	require.Equal(t, 4, count)
	require.Equal(t, uint32(4), pagefmt.NewTablePage(s.GetPage(id)).Count())
}
