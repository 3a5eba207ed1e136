package btree

import "github.com/nullbound/reldb/pagefmt"

// Iterator walks a leaf chain left to right, yielding (value, RID) pairs in
// key order. It is a snapshot over live pages: structural changes to the
// tree after the iterator is created (split, merge, further insert/delete)
// are not guaranteed to be reflected consistently.
type Iterator struct {
	t    *Tree
	page uint32
	slot int
}

// Iter starts at the very first entry of the tree's leftmost leaf.
func (t *Tree) Iter() *Iterator {
	page := t.root
	for {
		ip := pagefmt.NewIndexPage(t.s.GetPage(page))
		if ip.Leaf() {
			return &Iterator{t: t, page: page, slot: 0}
		}
		page = childAt(ip, 0)
	}
}

// LowerBound starts at the first entry whose value is not less than value.
func (t *Tree) LowerBound(value []byte) *Iterator {
	return t.boundIter(value, pagefmt.NilRID)
}

// UpperBound starts at the first entry whose value is strictly greater
// than value.
func (t *Tree) UpperBound(value []byte) *Iterator {
	return t.boundIter(value, pagefmt.MaxRID)
}

// boundIter anchors the composite key with rid at one extreme (0 or
// all-ones) so a single lower-bound descent serves both LowerBound and
// UpperBound: appending the smallest possible RID finds the first entry
// equal-or-greater in value, appending the largest finds the first entry
// strictly greater.
func (t *Tree) boundIter(value []byte, rid pagefmt.RID) *Iterator {
	ridOff := t.ridOffAt(t.root)
	key := makeKey(value, rid, ridOff)
	page, slot := t.doLowerBound(t.root, key)
	return &Iterator{t: t, page: page, slot: slot}
}

func (t *Tree) doLowerBound(page uint32, x []byte) (uint32, int) {
	for {
		ip := pagefmt.NewIndexPage(t.s.GetPage(page))
		ridOff := ip.RidOff()
		if ip.Leaf() {
			return page, lowerBound(ip, x, ridOff, t.vc)
		}
		pos := upperBound(ip, x, ridOff, t.vc)
		if pos < 1 {
			pos = 1
		}
		page = childAt(ip, pos-1)
	}
}

// Equal reports whether it and other refer to the same (page, slot)
// position, the idiom a caller walking a [LowerBound, UpperBound) range
// uses to detect it has reached the end.
func (it *Iterator) Equal(other *Iterator) bool {
	return it.page == other.page && it.slot == other.slot
}

// Contains reports whether value appears under any RID in the tree.
func (t *Tree) Contains(value []byte) bool {
	lo := t.LowerBound(value)
	hi := t.UpperBound(value)
	return lo.page != hi.page || lo.slot != hi.slot
}

// Next returns the next (value, RID) pair, or ok=false once the rightmost
// leaf is exhausted.
func (it *Iterator) Next() (value []byte, rid pagefmt.RID, ok bool) {
	ip := pagefmt.NewIndexPage(it.t.s.GetPage(it.page))
	if it.slot == int(ip.Count()) {
		if ip.Next() == pagefmt.NoPage {
			return nil, 0, false
		}
		it.page = ip.Next()
		it.slot = 0
		ip = pagefmt.NewIndexPage(it.t.s.GetPage(it.page))
		if ip.Count() == 0 {
			return nil, 0, false
		}
	}
	e := ip.Entry(it.slot)
	ridOff := ip.RidOff()
	value = append([]byte(nil), e[:ridOff]...)
	rid = pagefmt.GetRID(e[ridOff:])
	it.slot++
	return value, rid, true
}
