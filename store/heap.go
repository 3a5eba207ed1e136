package store

import "github.com/nullbound/reldb/pagefmt"

// AllocDataSlot returns a fresh, exclusive slot in the given table's heap.
// If the table's free-page chain is empty, a new heap page is allocated and
// linked at the head of both the table's page chain and its free chain.
func (s *Store) AllocDataSlot(tpID uint32) pagefmt.RID {
	tp := pagefmt.NewTablePage(s.GetPage(tpID))
	if tp.FirstFree() == pagefmt.NoPage {
		id, raw := s.AllocPage()
		dp := pagefmt.NewDataPage(raw)
		dp.Init(tp.First())
		tp.SetFirst(id)
		tp.SetFirstFree(id)
	}
	free := tp.FirstFree()
	dp := pagefmt.NewDataPage(s.GetPage(free))
	cap := int(tp.Cap())
	slot := -1
	for i := 0; i < cap; i++ {
		if !dp.IsUsed(i) {
			dp.SetUsed(i, true)
			slot = i
			break
		}
	}
	if slot < 0 {
		panic("store: free heap page reported no free slot")
	}
	dp.SetLiveCount(dp.LiveCount() + 1)
	if int(dp.LiveCount()) == cap {
		tp.SetFirstFree(dp.NextFree())
	}
	tp.SetCount(tp.Count() + 1)
	return pagefmt.NewRID(free, uint32(slot))
}

// DeallocDataSlot clears the slot's used bit and decrements both the page's
// and table's live counts. The page itself is never returned to the global
// free-page list, trading permanent occupancy for safety during iteration.
func (s *Store) DeallocDataSlot(tpID uint32, rid pagefmt.RID) {
	tp := pagefmt.NewTablePage(s.GetPage(tpID))
	page, slot := rid.Page(), rid.Slot()
	dp := pagefmt.NewDataPage(s.GetPage(page))
	wasFull := int(dp.LiveCount()) == int(tp.Cap())
	dp.SetUsed(int(slot), false)
	dp.SetLiveCount(dp.LiveCount() - 1)
	if wasFull {
		dp.SetNextFree(tp.FirstFree())
		tp.SetFirstFree(page)
	}
	tp.SetCount(tp.Count() - 1)
}

// GetDataSlot returns the raw record bytes for rid, addressed in constant
// time from the table's declared slot size.
func (s *Store) GetDataSlot(tp pagefmt.TablePage, rid pagefmt.RID) []byte {
	dp := pagefmt.NewDataPage(s.GetPage(rid.Page()))
	return dp.Slot(int(rid.Slot()), int(tp.SlotSize()))
}

// RecordIter is a lazy, finite, non-restartable walk over a table's page
// chain, skipping slots whose used-bit is clear. It is safe to call
// DeallocDataSlot on the current element mid-iteration: DeallocDataSlot
// never unlinks a heap page or changes its next-page link, which the
// iterator reads once it has passed the page's last slot.
type RecordIter struct {
	s       *Store
	tp      pagefmt.TablePage
	page    uint32
	cap     int
	slotIdx int
}

// NewRecordIter starts an iterator over tp's heap chain.
func NewRecordIter(s *Store, tp pagefmt.TablePage) *RecordIter {
	return &RecordIter{s: s, tp: tp, page: tp.First(), cap: int(tp.Cap()), slotIdx: 0}
}

// Next returns the next live record's bytes and RID, or ok=false when the
// chain is exhausted.
func (it *RecordIter) Next() (rec []byte, rid pagefmt.RID, ok bool) {
	for it.page != pagefmt.NoPage {
		dp := pagefmt.NewDataPage(it.s.GetPage(it.page))
		for it.slotIdx < it.cap {
			slot := it.slotIdx
			it.slotIdx++
			if dp.IsUsed(slot) {
				r := pagefmt.NewRID(it.page, uint32(slot))
				return dp.Slot(slot, int(it.tp.SlotSize())), r, true
			}
		}
		it.page = dp.Next()
		it.slotIdx = 0
	}
	return nil, 0, false
}
