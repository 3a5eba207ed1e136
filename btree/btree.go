// Package btree implements the on-disk B+-tree index: composite keys of a
// column value plus the owning record's RID, split-at-capacity insertion
// and merge-or-redistribute-at-half-capacity deletion, with leaf-level
// next-page chaining for range scans.
package btree

import (
	"encoding/binary"

	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
)

// Tree is a handle onto one column's index: its root page plus the
// comparator for its declared type. Tree caches the root id and updates
// it only through its own root splits and collapses, so a root change made
// through one Tree is not seen by another Tree opened over the same column
// before that change.
type Tree struct {
	s      *store.Store
	root   uint32
	vc     Comparator
	onRoot func(newRoot uint32)
}

// Open wraps an existing index root page. onRoot is invoked whenever a root
// split or collapse changes which page is the root; the caller (catalog)
// persists it into the owning column's descriptor.
func Open(s *store.Store, root uint32, vc Comparator, onRoot func(uint32)) *Tree {
	return &Tree{s: s, root: root, vc: vc, onRoot: onRoot}
}

// CreateRoot allocates and initializes a fresh, empty leaf root for a
// column of the given index value width, returning its page id.
func CreateRoot(s *store.Store, valueSize uint16) uint32 {
	id, raw := s.AllocPage()
	pagefmt.NewIndexPage(raw).Init(true, valueSize)
	return id
}

// Drop frees every page in the tree rooted at root, depth first.
func Drop(s *store.Store, root uint32) {
	ip := pagefmt.NewIndexPage(s.GetPage(root))
	if !ip.Leaf() {
		count := int(ip.Count())
		children := make([]uint32, count)
		for i := 0; i < count; i++ {
			children[i] = childAt(ip, i)
		}
		for _, c := range children {
			Drop(s, c)
		}
	}
	s.DeallocPage(root)
}

func (t *Tree) Root() uint32 { return t.root }

func (t *Tree) ridOffAt(page uint32) uint16 {
	return pagefmt.NewIndexPage(t.s.GetPage(page)).RidOff()
}

// makeKey builds the composite (value, RID) key every operation searches
// and stores by, copying value's first ridOff bytes and appending rid.
func makeKey(value []byte, rid pagefmt.RID, ridOff uint16) []byte {
	key := make([]byte, int(ridOff)+4)
	copy(key, value[:ridOff])
	pagefmt.PutRID(key[ridOff:], rid)
	return key
}

func childAt(ip pagefmt.IndexPage, pos int) uint32 {
	e := ip.Entry(pos)
	return binary.LittleEndian.Uint32(e[ip.KeySize():])
}

func setChildAt(ip pagefmt.IndexPage, pos int, id uint32) {
	e := ip.Entry(pos)
	binary.LittleEndian.PutUint32(e[ip.KeySize():], id)
}

func insertAt(ip pagefmt.IndexPage, pos int, key []byte) {
	count := int(ip.Count())
	copy(ip.Entries(pos+1, count+1), ip.Entries(pos, count))
	copy(ip.Entry(pos)[:len(key)], key)
	ip.SetCount(uint16(count + 1))
}

func removeAt(ip pagefmt.IndexPage, pos int) {
	count := int(ip.Count())
	copy(ip.Entries(pos, count-1), ip.Entries(pos+1, count))
	ip.SetCount(uint16(count - 1))
}

// Insert adds (value, rid) to the tree. The caller guarantees this exact
// composite key is not already present.
func (t *Tree) Insert(value []byte, rid pagefmt.RID) {
	ridOff := t.ridOffAt(t.root)
	key := makeKey(value, rid, ridOff)
	if overflow, splitPage, did := t.doInsert(t.root, key); did {
		t.growRoot(overflow, splitPage)
	}
}

// doInsert recursively descends to the right leaf, inserts, and propagates
// a split back up. It returns the new sibling's first key and page id when
// this page itself had to split.
func (t *Tree) doInsert(page uint32, x []byte) (overflow []byte, splitPage uint32, did bool) {
	ip := pagefmt.NewIndexPage(t.s.GetPage(page))
	ridOff := ip.RidOff()
	keySize := int(ip.KeySize())

	if ip.Leaf() {
		pos := upperBound(ip, x, ridOff, t.vc)
		insertAt(ip, pos, x)
	} else {
		ub := upperBound(ip, x, ridOff, t.vc)
		pos := ub - 1
		if ub == 0 {
			copy(ip.Entry(0)[:keySize], x[:keySize]) // x becomes the new min key
			pos = 0
		}
		child := childAt(ip, pos)
		if childOverflow, childSplit, childDid := t.doInsert(child, x); childDid {
			// the split always lands immediately after the child that split
			insertAt(ip, pos+1, childOverflow)
			setChildAt(ip, pos+1, childSplit)
		}
	}

	if int(ip.Count()) != int(ip.Cap()) {
		return nil, 0, false
	}
	spID, spRaw := t.s.AllocPage()
	spIP := pagefmt.NewIndexPage(spRaw)
	spIP.Init(ip.Leaf(), ridOff)
	if ip.Leaf() { // only leaves are chained
		spIP.SetNext(ip.Next())
		ip.SetNext(spID)
	}
	count := int(ip.Count())
	newCount := count / 2
	spCount := count - newCount
	copy(spIP.Entries(0, spCount), ip.Entries(newCount, count))
	spIP.SetCount(uint16(spCount))
	ip.SetCount(uint16(newCount))
	overflow = append([]byte(nil), spIP.Entry(0)[:keySize]...)
	return overflow, spID, true
}

// growRoot builds a new two-entry inner root over the just-split old root.
func (t *Tree) growRoot(overflow []byte, splitPage uint32) {
	oldIP := pagefmt.NewIndexPage(t.s.GetPage(t.root))
	newID, newRaw := t.s.AllocPage()
	newIP := pagefmt.NewIndexPage(newRaw)
	newIP.Init(false, oldIP.RidOff())

	keySize := int(newIP.KeySize())
	e0 := newIP.Entry(0)
	copy(e0[:keySize], oldIP.Entry(0)[:keySize])
	binary.LittleEndian.PutUint32(e0[keySize:], t.root)
	e1 := newIP.Entry(1)
	copy(e1[:keySize], overflow)
	binary.LittleEndian.PutUint32(e1[keySize:], splitPage)
	newIP.SetCount(2)

	t.makeRoot(newID)
}

func (t *Tree) makeRoot(newRoot uint32) {
	t.root = newRoot
	if t.onRoot != nil {
		t.onRoot(newRoot)
	}
}

// Delete removes the (value, rid) composite key. The caller guarantees it
// is present in the tree.
func (t *Tree) Delete(value []byte, rid pagefmt.RID) {
	ridOff := t.ridOffAt(t.root)
	key := makeKey(value, rid, ridOff)
	t.doDelete(t.root, key)
}

// doDelete recursively descends to and removes the leaf entry, then merges
// or redistributes with a sibling whenever a child falls under half
// capacity. It returns this page's (possibly just-updated) min key and
// whether the caller's slot for this page now needs the same treatment.
func (t *Tree) doDelete(page uint32, x []byte) (minKey []byte, needMerge bool) {
	ip := pagefmt.NewIndexPage(t.s.GetPage(page))
	ridOff := ip.RidOff()
	keySize := int(ip.KeySize())

	if ip.Leaf() {
		pos := upperBound(ip, x, ridOff, t.vc) - 1
		removeAt(ip, pos)
	} else {
		pos := upperBound(ip, x, ridOff, t.vc)
		if pos < 1 {
			pos = 1
		}
		pos--
		child := childAt(ip, pos)
		newMin, childNeedsMerge := t.doDelete(child, x)
		copy(ip.Entry(pos)[:keySize], newMin) // keep the duplicated key in sync

		if childNeedsMerge {
			if int(ip.Count()) == 1 {
				onlyChild := childAt(ip, 0)
				t.s.DeallocPage(page)
				t.makeRoot(onlyChild)
				return nil, false // the caller never looks at this for the root
			}
			t.mergeOrRedistribute(ip, pos, keySize)
		}
	}

	min := append([]byte(nil), ip.Entry(0)[:keySize]...)
	return min, int(ip.Count()) < int(ip.Cap())/2
}

// mergeOrRedistribute fixes up the child at pos (now under half capacity)
// against its right sibling, or its left sibling when it is the rightmost
// entry: merging the two if they jointly fit in one page, otherwise
// splitting their combined entries evenly.
func (t *Tree) mergeOrRedistribute(ip pagefmt.IndexPage, pos, keySize int) {
	l := pos
	if pos+1 >= int(ip.Count()) {
		l = pos - 1
	}
	lID, rID := childAt(ip, l), childAt(ip, l+1)
	lp := pagefmt.NewIndexPage(t.s.GetPage(lID))
	rp := pagefmt.NewIndexPage(t.s.GetPage(rID))

	if int(lp.Count())+int(rp.Count()) < int(lp.Cap()) {
		if lp.Leaf() {
			lp.SetNext(rp.Next())
		}
		lCount, rCount := int(lp.Count()), int(rp.Count())
		copy(lp.Entries(lCount, lCount+rCount), rp.Entries(0, rCount))
		lp.SetCount(uint16(lCount + rCount))
		removeAt(ip, l+1)
		t.s.DeallocPage(rID)
		return
	}

	tot := int(lp.Count()) + int(rp.Count())
	half := tot / 2
	lCount := int(lp.Count())
	rCount := int(rp.Count())
	if lCount < half {
		diff := half - lCount
		copy(lp.Entries(lCount, lCount+diff), rp.Entries(0, diff))
		copy(rp.Entries(0, rCount-diff), rp.Entries(diff, rCount))
	} else {
		diff := lCount - half
		copy(rp.Entries(diff, diff+rCount), rp.Entries(0, rCount))
		copy(rp.Entries(0, diff), lp.Entries(half, half+diff))
	}
	lp.SetCount(uint16(half))
	rp.SetCount(uint16(tot - half))
	copy(ip.Entry(l+1)[:keySize], rp.Entry(0)[:keySize])
}
