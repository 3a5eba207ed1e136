package query

import (
	"github.com/nullbound/reldb/catalog"
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/expr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
)

// Delete removes every row of table matching where, checking each matching
// row, before deleting it, for a foreign key elsewhere that still
// references it. A failure mid-scan leaves earlier deletions in place;
// the returned error carries the partial count.
func Delete(c *Ctx, where []expr.Cond) (int, error) {
	cache := expr.NewCache()
	if err := expr.CheckWhere(where, newRowEnv(c.TableName, c.Tp, nil, c.Cat.Lob), cache); err != nil {
		return 0, err
	}
	links := c.Cat.ForeignLinksTo(c.TpID)

	deleted := 0
	it := store.NewRecordIter(c.Cat.S, c.Tp)
	for {
		rec, rid, ok := it.Next()
		if !ok {
			break
		}
		env := newRowEnv(c.TableName, c.Tp, rec, c.Cat.Lob)
		match, err := expr.EvalWhere(where, env, cache)
		if err != nil {
			return deleted, dberr.Affected(deleted, err)
		}
		if !match {
			continue
		}
		if err := c.rejectIfReferenced(rec, links); err != nil {
			return deleted, dberr.Affected(deleted, err)
		}
		c.deleteRow(rec, rid)
		deleted++
	}
	return deleted, nil
}

func (c *Ctx) rejectIfReferenced(rec []byte, links []catalog.ForeignLink) error {
	for _, link := range links {
		key := c.Cat.IndexKeyBytes(rec, c.Tp.Col(link.RefColIdx))
		otp := pagefmt.NewTablePage(c.Cat.S.GetPage(link.TableID))
		oci := otp.Col(link.ColIdx)
		if oci.IndexRoot() == pagefmt.NoIndex {
			continue
		}
		tr := openIndex(c.Cat.S, oci)
		if tr.Contains(key) {
			return dberr.ModifyTableWithForeignLink(c.TableName)
		}
	}
	return nil
}

func (c *Ctx) deleteRow(rec []byte, rid pagefmt.RID) {
	n := int(c.Tp.ColNum())
	for i := 0; i < n; i++ {
		ci := c.Tp.Col(i)
		if pagefmt.IsNull(rec, i) {
			continue
		}
		if ci.IndexRoot() != pagefmt.NoIndex {
			tr := openIndex(c.Cat.S, ci)
			tr.Delete(c.Cat.IndexKeyBytes(rec, ci), rid)
		}
		if ci.Ty().Ty == pagefmt.TyVarChar {
			lobID, _, capSlots := pagefmt.GetVarcharSlot(rec[ci.Offset():])
			c.Cat.Lob.Dealloc(lobID, capSlots)
		}
	}
	c.Cat.S.DeallocDataSlot(c.TpID, rid)
	if len(c.Pks) > 1 {
		delete(c.PkSet, hashPKs(rec, c.Tp, c.Pks))
	}
}
