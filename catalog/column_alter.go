package catalog

import (
	"github.com/nullbound/reldb/btree"
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
	"github.com/nullbound/reldb/value"
)

const pkHashSeed uint64 = 19260817

// hashPrimaryCols folds every candidate primary-key column's raw bytes
// into a 64-bit polynomial hash, used only to detect a duplicate
// composite key in already-stored data before AddPrimary commits. Same
// algorithm the query package uses at insert/update time to track live
// primary keys, kept as a separate copy since catalog cannot import
// query (query depends on catalog, not the other way around).
func hashPrimaryCols(rec []byte, tp pagefmt.TablePage, cols []int) uint64 {
	var hash uint64
	for _, col := range cols {
		ci := tp.Col(col)
		off := ci.Offset()
		switch ci.Ty().Ty {
		case pagefmt.TyBool:
			hash = hash*pkHashSeed + uint64(rec[off])
		case pagefmt.TyInt, pagefmt.TyFloat, pagefmt.TyDate:
			for i := 0; i < 4; i++ {
				hash = hash*pkHashSeed + uint64(rec[int(off)+i])
			}
		case pagefmt.TyChar:
			n := int(rec[off])
			for i := 0; i < n; i++ {
				hash = hash*pkHashSeed + uint64(rec[int(off)+1+i])
			}
		}
	}
	return hash
}

// savedCol is everything about an existing column that a layout rebuild
// (AddColumn/DropColumn) must carry across to the recomputed offsets: the
// attributes ColInfo.Init would otherwise reset to their zero value.
type savedCol struct {
	name    string
	ty      pagefmt.ColTy
	notnull bool
	flags   pagefmt.ColFlags
	index   uint32
	idxName string
	check   uint32
	fTable  uint32
	fCol    uint8
}

func snapshotCol(ci pagefmt.ColInfo) savedCol {
	return savedCol{
		name:    ci.Name(),
		ty:      ci.Ty(),
		notnull: ci.Flags()&pagefmt.FlagNotNull != 0,
		flags:   ci.Flags(),
		index:   ci.IndexRoot(),
		idxName: ci.IdxName(),
		check:   ci.Check(),
		fTable:  ci.ForeignTable(),
		fCol:    ci.ForeignCol(),
	}
}

func (s savedCol) restore(ci pagefmt.ColInfo, off uint16) {
	ci.Init(s.ty, off, s.name, s.notnull)
	ci.SetFlags(s.flags)
	ci.SetIndexRoot(s.index)
	if s.idxName != "" {
		ci.SetIdxName(s.idxName)
	}
	ci.SetCheck(s.check)
	ci.SetForeignTable(s.fTable)
	ci.SetForeignCol(s.fCol)
}

// layOut assigns offsets to cols in order exactly as CreateTable does,
// returning the per-column offset and the final slot size.
func layOut(cols []pagefmt.ColTy) ([]uint16, uint16) {
	nullWords := pagefmt.NullBitsetWords(len(cols))
	offs := make([]uint16, len(cols))
	off := uint16(nullWords * 4)
	for i, ty := range cols {
		if ty.Align4() {
			off = pagefmt.Align4(off)
		}
		offs[i] = off
		off += ty.Size()
	}
	slotSize := pagefmt.Align4(off)
	if slotSize < pagefmt.MinSlotSize {
		slotSize = pagefmt.MinSlotSize
	}
	return offs, slotSize
}

// rebuildHeap frees every existing data page of tp and copies each of rows
// (already laid out at the table's current, already-updated column layout)
// into a freshly allocated slot. Returns the RID assigned to each input
// row, in order.
func (c *Catalog) rebuildHeap(tpID uint32, tp pagefmt.TablePage, rows [][]byte) []pagefmt.RID {
	first := tp.First()
	for first != pagefmt.NoPage {
		dp := pagefmt.NewDataPage(c.S.GetPage(first))
		next := dp.Next()
		c.S.DeallocPage(first)
		first = next
	}
	tp.SetFirst(pagefmt.NoPage)
	tp.SetFirstFree(pagefmt.NoPage)
	tp.SetCount(0)

	rids := make([]pagefmt.RID, len(rows))
	for i, row := range rows {
		rid := c.S.AllocDataSlot(tpID)
		slot := c.S.GetDataSlot(tp, rid)
		copy(slot, row)
		rids[i] = rid
	}
	return rids
}

// rebuildIndexes drops and recreates the index (if any) backing each
// surviving column, back-filling from the table's current rows. Used
// after a layout rebuild, since every row's RID just changed.
func (c *Catalog) rebuildIndexes(tpID uint32, tp pagefmt.TablePage, hadIndex []bool) {
	n := int(tp.ColNum())
	for i := 0; i < n; i++ {
		if i >= len(hadIndex) || !hadIndex[i] {
			continue
		}
		ci := tp.Col(i)
		root := btree.CreateRoot(c.S, btree.ValueSize(ci.Ty()))
		ci.SetIndexRoot(root)
	}
	it := store.NewRecordIter(c.S, tp)
	for {
		rec, rid, ok := it.Next()
		if !ok {
			break
		}
		for i := 0; i < n; i++ {
			if i >= len(hadIndex) || !hadIndex[i] || pagefmt.IsNull(rec, i) {
				continue
			}
			ci := tp.Col(i)
			tr := openIndexAlter(c.S, ci)
			tr.Insert(c.IndexKeyBytes(rec, ci), rid)
		}
	}
}

func openIndexAlter(s *store.Store, ci pagefmt.ColInfo) *btree.Tree {
	return btree.Open(s, ci.IndexRoot(), btree.ComparatorFor(ci.Ty().Ty), func(newRoot uint32) {
		ci.SetIndexRoot(newRoot)
	})
}

// AddColumn appends a new column to table, migrating every existing row
// to the wider layout and rebuilding every index the table already had
// (every row's RID changes when its slot is recreated at the new size).
// A NOT NULL column with no default is rejected outright when the table
// already holds rows, since there is no value to backfill them with.
func (c *Catalog) AddColumn(table string, cd ColumnDef) error {
	tpID, tp, err := c.GetTable(table)
	if err != nil {
		return err
	}
	oldN := int(tp.ColNum())
	if oldN+1 > pagefmt.MaxColumns {
		return dberr.ColTooMany(table)
	}
	if len(cd.Name) > pagefmt.MaxColName {
		return dberr.ColNameTooLong(table, cd.Name)
	}
	for i := 0; i < oldN; i++ {
		if tp.Col(i).Name() == cd.Name {
			return dberr.DupCol(table, cd.Name)
		}
	}
	if cd.Ty.Ty == pagefmt.TyVarChar && cd.Default != nil {
		return dberr.UnsupportedVarcharOp(table, cd.Name)
	}
	if cd.Default != nil && !cd.Default.IsNull() {
		if err := value.CheckAssignable(cd.Ty, *cd.Default); err != nil {
			return dberr.ColLitMismatch(table, cd.Name, cd.Default.String())
		}
	}
	if cd.NotNull && cd.Default == nil && tp.Count() > 0 {
		return dberr.PutNullOnNotNull(table, cd.Name)
	}

	saved := make([]savedCol, oldN)
	oldTys := make([]pagefmt.ColTy, oldN)
	hadIndex := make([]bool, oldN+1)
	for i := 0; i < oldN; i++ {
		ci := tp.Col(i)
		saved[i] = snapshotCol(ci)
		oldTys[i] = ci.Ty()
		hadIndex[i] = ci.IndexRoot() != pagefmt.NoIndex
	}
	oldOffs, _ := layOut(oldTys)

	newTys := append(append([]pagefmt.ColTy(nil), oldTys...), cd.Ty)
	newOffs, slotSize := layOut(newTys)
	if int(slotSize) > pagefmt.MaxDataByte {
		return dberr.ColSizeTooBig(table, cd.Name)
	}

	// Nothing from here on can fail: snapshot every row at the old
	// layout, then lay the page out fresh and migrate.
	oldSlotSize := int(tp.SlotSize())
	oldRows := make([][]byte, 0, tp.Count())
	it := store.NewRecordIter(c.S, tp)
	for {
		rec, _, ok := it.Next()
		if !ok {
			break
		}
		cp := make([]byte, oldSlotSize)
		copy(cp, rec)
		oldRows = append(oldRows, cp)
	}

	for i := 0; i < oldN; i++ {
		saved[i].restore(tp.Col(i), newOffs[i])
	}
	tp.Col(oldN).Init(cd.Ty, newOffs[oldN], cd.Name, cd.NotNull)
	if cd.Default != nil && !cd.Default.IsNull() {
		cpID, cpRaw := c.S.AllocPage()
		cp := pagefmt.NewCheckPage(cpRaw)
		cp.SetCount(0)
		sz := int(cd.Ty.Size())
		_ = value.EncodeFixed(cp.Entry(0, sz), cd.Ty, *cd.Default)
		tp.Col(oldN).SetCheck(cpID<<1 | 1)
	}
	tp.SetColNum(uint8(oldN + 1))
	tp.SetSlotSize(slotSize)
	tp.SetCap(pagefmt.MaxDataByte / slotSize)

	newRows := make([][]byte, len(oldRows))
	for r, old := range oldRows {
		row := make([]byte, slotSize)
		pagefmt.ClearNullBitset(row, oldN+1)
		for i := 0; i < oldN; i++ {
			if pagefmt.IsNull(old, i) {
				pagefmt.SetNull(row, i, true)
				continue
			}
			sz := int(oldTys[i].Size())
			copy(row[newOffs[i]:newOffs[i]+uint16(sz)], old[oldOffs[i]:oldOffs[i]+uint16(sz)])
		}
		if cd.Default == nil || cd.Default.IsNull() {
			pagefmt.SetNull(row, oldN, true)
		} else if cd.Ty.Ty != pagefmt.TyVarChar {
			_ = value.EncodeFixed(row[newOffs[oldN]:], cd.Ty, *cd.Default)
		}
		newRows[r] = row
	}

	c.rebuildHeap(tpID, tp, newRows)
	c.rebuildIndexes(tpID, tp, hadIndex)
	return nil
}

// DropColumn removes a column, migrating every existing row to the
// narrower layout and rebuilding every index the table still has
// afterward. Rejected when the column is a primary key, carries a
// foreign key of its own, or is referenced by another table's foreign
// key, or the table currently has no way to represent "drop the only
// column": a table's column list cannot become empty.
func (c *Catalog) DropColumn(table, col string) error {
	tpID, tp, err := c.GetTable(table)
	if err != nil {
		return err
	}
	oldN := int(tp.ColNum())
	if oldN <= 1 {
		return dberr.ColTooFew(table)
	}
	dropIdx, dropCi, err := c.GetColumn(table, tp, col)
	if err != nil {
		return err
	}
	if dropCi.Flags()&pagefmt.FlagPrimary != 0 {
		return dberr.DropConstrainedCol(table, col)
	}
	if dropCi.HasForeign() {
		return dberr.DropConstrainedCol(table, col)
	}
	for _, link := range c.ForeignLinksTo(tpID) {
		if link.RefColIdx == dropIdx {
			return dberr.ModifyTableWithForeignLink(table)
		}
	}

	saved := make([]savedCol, 0, oldN-1)
	oldTys := make([]pagefmt.ColTy, 0, oldN-1)
	oldOffsFull := make([]uint16, oldN)
	hadIndex := make([]bool, 0, oldN-1)
	allOldTys := make([]pagefmt.ColTy, oldN)
	for i := 0; i < oldN; i++ {
		allOldTys[i] = tp.Col(i).Ty()
	}
	oldOffsAll, _ := layOut(allOldTys)
	copy(oldOffsFull, oldOffsAll)

	for i := 0; i < oldN; i++ {
		if i == dropIdx {
			continue
		}
		ci := tp.Col(i)
		saved = append(saved, snapshotCol(ci))
		oldTys = append(oldTys, ci.Ty())
		hadIndex = append(hadIndex, ci.IndexRoot() != pagefmt.NoIndex)
	}
	newOffs, slotSize := layOut(oldTys)

	if dropCi.IndexRoot() != pagefmt.NoIndex {
		btree.Drop(c.S, dropCi.IndexRoot())
	}
	if id, _, ok := dropCi.CheckPage(); ok {
		c.S.DeallocPage(id)
	}

	oldSlotSize := int(tp.SlotSize())
	oldRows := make([][]byte, 0, tp.Count())
	it := store.NewRecordIter(c.S, tp)
	for {
		rec, _, ok := it.Next()
		if !ok {
			break
		}
		if tp.Col(dropIdx).Ty().Ty == pagefmt.TyVarChar && !pagefmt.IsNull(rec, dropIdx) {
			lobID, _, capSlots := pagefmt.GetVarcharSlot(rec[tp.Col(dropIdx).Offset():])
			c.Lob.Dealloc(lobID, capSlots)
		}
		cp := make([]byte, oldSlotSize)
		copy(cp, rec)
		oldRows = append(oldRows, cp)
	}

	newN := oldN - 1
	for i, s := range saved {
		s.restore(tp.Col(i), newOffs[i])
	}
	tp.SetColNum(uint8(newN))
	tp.SetSlotSize(slotSize)
	tp.SetCap(pagefmt.MaxDataByte / slotSize)

	newRows := make([][]byte, len(oldRows))
	for r, old := range oldRows {
		row := make([]byte, slotSize)
		pagefmt.ClearNullBitset(row, newN)
		dst := 0
		for i := 0; i < oldN; i++ {
			if i == dropIdx {
				continue
			}
			if pagefmt.IsNull(old, i) {
				pagefmt.SetNull(row, dst, true)
			} else {
				sz := int(oldTys[dst].Size())
				copy(row[newOffs[dst]:newOffs[dst]+uint16(sz)], old[oldOffsFull[i]:oldOffsFull[i]+uint16(sz)])
			}
			dst++
		}
		newRows[r] = row
	}

	c.rebuildHeap(tpID, tp, newRows)
	c.rebuildIndexes(tpID, tp, hadIndex)
	return nil
}

// AddPrimary promotes cols to a composite PRIMARY KEY, rejecting any
// table that already has one or whose existing data would collide under
// the new key.
func (c *Catalog) AddPrimary(table string, cols []string) error {
	_, tp, err := c.GetTable(table)
	if err != nil {
		return err
	}
	if c.primaryCount(tp) > 0 {
		return dberr.DupConstraint(table, "")
	}
	idxs := make([]int, len(cols))
	for i, name := range cols {
		idx, ci, err := c.GetColumn(table, tp, name)
		if err != nil {
			return err
		}
		if ci.Ty().Ty == pagefmt.TyVarChar {
			return dberr.UnsupportedVarcharOp(table, name)
		}
		idxs[i] = idx
	}

	seen := map[uint64]bool{}
	it := store.NewRecordIter(c.S, tp)
	for {
		rec, _, ok := it.Next()
		if !ok {
			break
		}
		h := hashPrimaryCols(rec, tp, idxs)
		if seen[h] {
			return dberr.PutDupOnPrimary(table)
		}
		seen[h] = true
	}

	for _, idx := range idxs {
		ci := tp.Col(idx)
		ci.SetFlags(ci.Flags() | pagefmt.FlagPrimary)
	}
	if len(idxs) == 1 {
		ci := tp.Col(idxs[0])
		if ci.IndexRoot() == pagefmt.NoIndex {
			root := btree.CreateRoot(c.S, btree.ValueSize(ci.Ty()))
			ci.SetIndexRoot(root)
			tr := openIndexAlter(c.S, ci)
			it := store.NewRecordIter(c.S, tp)
			for {
				rec, rid, ok := it.Next()
				if !ok {
					break
				}
				if !pagefmt.IsNull(rec, idxs[0]) {
					tr.Insert(c.IndexKeyBytes(rec, ci), rid)
				}
			}
		}
	}
	return nil
}

// DropPrimary removes the table's composite PRIMARY KEY designation from
// cols (membership checking happens per table, not per call). Rejected
// when a dropped column is still the target of a foreign key elsewhere
// and has no FlagUnique of its own — losing FlagPrimary would otherwise
// silently break the uniqueness guarantee that foreign key depends on.
func (c *Catalog) DropPrimary(table string, cols []string) error {
	tpID, tp, err := c.GetTable(table)
	if err != nil {
		return err
	}
	if c.primaryCount(tp) == 0 {
		return dberr.NoSuchPrimary(table)
	}
	dropping := make(map[int]bool, len(cols))
	for _, name := range cols {
		idx, ci, err := c.GetColumn(table, tp, name)
		if err != nil {
			return err
		}
		if ci.Flags()&pagefmt.FlagPrimary == 0 {
			return dberr.NoSuchPrimary(table)
		}
		dropping[idx] = true
	}
	for _, link := range c.ForeignLinksTo(tpID) {
		if !dropping[link.RefColIdx] {
			continue
		}
		if tp.Col(link.RefColIdx).Flags()&pagefmt.FlagUnique == 0 {
			return dberr.ModifyTableWithForeignLink(table)
		}
	}
	for _, name := range cols {
		_, ci, _ := c.GetColumn(table, tp, name)
		ci.SetFlags(ci.Flags() &^ pagefmt.FlagPrimary)
	}
	return nil
}

// AddForeign attaches a FOREIGN KEY constraint to an existing column,
// validating every already-stored non-null value against the referenced
// table's unique index before committing (mirrors the corresponding
// CREATE TABLE-time check, run here against live data instead of an
// empty table).
func (c *Catalog) AddForeign(table, col, refTable, refCol string) error {
	_, tp, err := c.GetTable(table)
	if err != nil {
		return err
	}
	idx, ci, err := c.GetColumn(table, tp, col)
	if err != nil {
		return err
	}
	if ci.HasForeign() {
		return dberr.DupConstraint(table, col)
	}
	fTpID, fTp, err := c.GetTable(refTable)
	if err != nil {
		return err
	}
	fIdx, fCi, err := c.GetColumn(refTable, fTp, refCol)
	if err != nil {
		return err
	}
	if !fCi.Unique(c.primaryCount(fTp)) {
		return dberr.ForeignOnNotUnique(refTable, refCol)
	}
	if fCi.Ty() != ci.Ty() {
		return dberr.IncompatibleForeignTy(table, col)
	}

	fTr := openIndexAlter(c.S, fCi)
	it := store.NewRecordIter(c.S, tp)
	for {
		rec, _, ok := it.Next()
		if !ok {
			break
		}
		if pagefmt.IsNull(rec, idx) {
			continue
		}
		key := c.IndexKeyBytes(rec, ci)
		if !fTr.Contains(key) {
			return dberr.PutNonexistentForeign(table, col, nil)
		}
	}

	// Nothing from here on can fail.
	ci.SetForeignTable(fTpID)
	ci.SetForeignCol(uint8(fIdx))
	if ci.IndexRoot() == pagefmt.NoIndex {
		root := btree.CreateRoot(c.S, btree.ValueSize(ci.Ty()))
		ci.SetIndexRoot(root)
		tr := openIndexAlter(c.S, ci)
		it := store.NewRecordIter(c.S, tp)
		for {
			rec, rid, ok := it.Next()
			if !ok {
				break
			}
			if !pagefmt.IsNull(rec, idx) {
				tr.Insert(c.IndexKeyBytes(rec, ci), rid)
			}
		}
	}
	return nil
}
