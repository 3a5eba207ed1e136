package catalog

import (
	"github.com/nullbound/reldb/btree"
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
)

// DropTable removes a table's schema entry and frees its heap, indexes,
// check pages and live varchar LOBs. The table metadata page itself is
// left allocated; nothing else ever references it by id again.
func (c *Catalog) DropTable(name string) error {
	tpID, tp, err := c.GetTable(name)
	if err != nil {
		return err
	}
	if links := c.ForeignLinksTo(tpID); len(links) > 0 {
		return dberr.ModifyTableWithForeignLink(name)
	}

	schema := c.S.Schema()
	n := int(schema.TableNum())
	idx := -1
	for i := 0; i < n; i++ {
		if schema.TableMeta(i) == tpID {
			idx = i
			break
		}
	}
	last := n - 1
	if idx != last {
		schema.SetTableMeta(idx, schema.TableMeta(last))
		schema.SetTableName(idx, schema.TableName(last))
	}
	schema.SetTableNum(uint8(last))

	colNum := int(tp.ColNum())
	hasVarchar := false
	for i := 0; i < colNum; i++ {
		ci := tp.Col(i)
		if ci.IndexRoot() != pagefmt.NoIndex {
			btree.Drop(c.S, ci.IndexRoot())
		}
		if id, _, ok := ci.CheckPage(); ok {
			c.S.DeallocPage(id)
		}
		if ci.Ty().Ty == pagefmt.TyVarChar {
			hasVarchar = true
		}
	}
	if hasVarchar {
		it := store.NewRecordIter(c.S, tp)
		for {
			rec, _, ok := it.Next()
			if !ok {
				break
			}
			for i := 0; i < colNum; i++ {
				ci := tp.Col(i)
				if ci.Ty().Ty != pagefmt.TyVarChar || pagefmt.IsNull(rec, i) {
					continue
				}
				lobID, _, capSlots := pagefmt.GetVarcharSlot(rec[ci.Offset():])
				c.Lob.Dealloc(lobID, capSlots)
			}
		}
	}

	first := tp.First()
	for first != pagefmt.NoPage {
		dp := pagefmt.NewDataPage(c.S.GetPage(first))
		next := dp.Next()
		c.S.DeallocPage(first)
		first = next
	}
	return nil
}

// RenameTable changes a table's name, both on its metadata page and in
// the schema page's table list.
func (c *Catalog) RenameTable(oldName, newName string) error {
	tpID, tp, err := c.GetTable(oldName)
	if err != nil {
		return err
	}
	if len(newName) > pagefmt.MaxTableName {
		return dberr.TableNameTooLong(newName)
	}
	if _, _, err := c.GetTable(newName); err == nil {
		return dberr.DupTable(newName)
	}
	tp.SetName(newName)
	schema := c.S.Schema()
	n := int(schema.TableNum())
	for i := 0; i < n; i++ {
		if schema.TableMeta(i) == tpID {
			schema.SetTableName(i, newName)
			break
		}
	}
	return nil
}

// IndexKeyBytes extracts the comparator-ready byte form of a record's
// column value for index insertion/lookup: raw fixed-width bytes for
// every scalar type, and a length-prefixed copy of the actual string
// content (not the in-record LOB descriptor) for varchar columns.
func (c *Catalog) IndexKeyBytes(rec []byte, ci pagefmt.ColInfo) []byte {
	ty := ci.Ty()
	off := ci.Offset()
	switch ty.Ty {
	case pagefmt.TyChar:
		return rec[off : off+ty.Size()]
	case pagefmt.TyVarChar:
		lobID, length, capSlots := pagefmt.GetVarcharSlot(rec[off:])
		s := string(c.Lob.Read(lobID, length, capSlots))
		return btree.EncodeStr(s, ty.Size)
	default:
		return rec[off : off+ty.Size()]
	}
}

// CreateIndex allocates a fresh index root for col and back-fills it with
// every existing non-null value already stored in the table.
func (c *Catalog) CreateIndex(table, col, idxName string) error {
	_, tp, err := c.GetTable(table)
	if err != nil {
		return err
	}
	i, ci, err := c.GetColumn(table, tp, col)
	if err != nil {
		return err
	}
	if ci.IndexRoot() != pagefmt.NoIndex {
		return dberr.DupIndex(table, idxName)
	}
	if len(idxName) > pagefmt.MaxIdxName {
		return dberr.IndexNameTooLong(idxName)
	}
	root := btree.CreateRoot(c.S, btree.ValueSize(ci.Ty()))
	ci.SetIndexRoot(root)
	ci.SetIdxName(idxName)

	tr := btree.Open(c.S, root, btree.ComparatorFor(ci.Ty().Ty), func(newRoot uint32) {
		ci.SetIndexRoot(newRoot)
	})
	it := store.NewRecordIter(c.S, tp)
	for {
		rec, rid, ok := it.Next()
		if !ok {
			break
		}
		if pagefmt.IsNull(rec, i) {
			continue
		}
		tr.Insert(c.IndexKeyBytes(rec, ci), rid)
	}
	return nil
}

// DropIndex removes the named index; it must belong to table.
func (c *Catalog) DropIndex(table, idxName string) error {
	_, tp, err := c.GetTable(table)
	if err != nil {
		return err
	}
	n := int(tp.ColNum())
	for i := 0; i < n; i++ {
		ci := tp.Col(i)
		if ci.IndexRoot() == pagefmt.NoIndex || ci.IdxNameLen() == 0 || ci.IdxName() != idxName {
			continue
		}
		btree.Drop(c.S, ci.IndexRoot())
		ci.SetIndexRoot(pagefmt.NoIndex)
		return nil
	}
	return dberr.NoSuchIndex(table, idxName)
}

// DropForeign removes a column's FOREIGN KEY constraint.
func (c *Catalog) DropForeign(table, col string) error {
	_, tp, err := c.GetTable(table)
	if err != nil {
		return err
	}
	_, ci, err := c.GetColumn(table, tp, col)
	if err != nil {
		return err
	}
	if !ci.HasForeign() {
		return dberr.NoSuchForeign(table, col)
	}
	ci.SetForeignTable(pagefmt.NoTable)
	return nil
}
