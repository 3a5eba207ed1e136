package query

import (
	"github.com/nullbound/reldb/btree"
	"github.com/nullbound/reldb/catalog"
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
	"github.com/nullbound/reldb/value"
)

// Ctx is the shared per-statement state for INSERT and UPDATE: the
// target table, its primary-key columns, an in-memory set of every
// existing composite primary-key hash (only populated when there is more
// than one primary column — a single-column primary key is already
// enforced by its own unique index), and every column's default literal.
type Ctx struct {
	Cat      *catalog.Catalog
	TableName string
	TpID     uint32
	Tp       pagefmt.TablePage
	Pks      []int
	PkSet    map[uint64]bool
	Defaults []value.Lit
}

func NewCtx(cat *catalog.Catalog, table string) (*Ctx, error) {
	tpID, tp, err := cat.GetTable(table)
	if err != nil {
		return nil, err
	}
	pks := cat.PrimaryCols(tp)

	var pkSet map[uint64]bool
	if len(pks) > 1 {
		pkSet = make(map[uint64]bool)
		it := store.NewRecordIter(cat.S, tp)
		for {
			rec, _, ok := it.Next()
			if !ok {
				break
			}
			pkSet[hashPKs(rec, tp, pks)] = true
		}
	}

	n := int(tp.ColNum())
	defaults := make([]value.Lit, n)
	for i := 0; i < n; i++ {
		defaults[i] = value.Null()
		ci := tp.Col(i)
		id, hasDefault, ok := ci.CheckPage()
		if ok && hasDefault {
			cp := pagefmt.NewCheckPage(cat.S.GetPage(id))
			sz := int(ci.Ty().Size())
			defaults[i] = value.DecodeFixed(cp.Entry(int(cp.Count()), sz), ci.Ty())
		}
	}

	return &Ctx{Cat: cat, TableName: table, TpID: tpID, Tp: tp, Pks: pks, PkSet: pkSet, Defaults: defaults}, nil
}

// CheckCol enforces the unique/foreign/check constraints on one non-null
// column value already written into rec; a VarChar value is keyed from
// val itself, since its LOB payload is only written once every check has
// passed. excludeRID lets an UPDATE re-validate a row's own unmodified
// value against its unique index without it being reported as a
// duplicate of itself.
func (c *Ctx) CheckCol(rec []byte, colIdx int, val value.Lit, excludeRID *pagefmt.RID) error {
	if val.IsNull() {
		return nil
	}
	ci := c.Tp.Col(colIdx)
	var keyBytes []byte
	if ci.Ty().Ty == pagefmt.TyVarChar {
		keyBytes = btree.EncodeStr(val.Str, ci.Ty().Size)
	} else {
		keyBytes = c.Cat.IndexKeyBytes(rec, ci)
	}

	if ci.Unique(len(c.Pks)) {
		tr := openIndex(c.Cat.S, ci)
		lo, hi := tr.LowerBound(keyBytes), tr.UpperBound(keyBytes)
		for !lo.Equal(hi) {
			_, rid, ok := lo.Next()
			if !ok {
				break
			}
			if excludeRID == nil || rid != *excludeRID {
				return dberr.PutDupOnUnique(c.TableName, ci.Name(), val.String())
			}
		}
	}
	if ci.HasForeign() {
		fTp := pagefmt.NewTablePage(c.Cat.S.GetPage(ci.ForeignTable()))
		fCi := fTp.Col(int(ci.ForeignCol()))
		tr := openIndex(c.Cat.S, fCi)
		if !tr.Contains(keyBytes) {
			return dberr.PutNonexistentForeign(c.TableName, ci.Name(), val.String())
		}
	}
	if id, _, ok := ci.CheckPage(); ok {
		cp := pagefmt.NewCheckPage(c.Cat.S.GetPage(id))
		count := int(cp.Count())
		if count == 0 {
			return nil // only a default is recorded, no actual check list
		}
		sz := int(ci.Ty().Size())
		cmp := btree.ComparatorFor(ci.Ty().Ty)
		for i := 0; i < count; i++ {
			if cmp(keyBytes, cp.Entry(i, sz)) == 0 {
				return nil
			}
		}
		return dberr.PutNotInCheck(c.TableName, ci.Name(), val.String())
	}
	return nil
}

// openIndex opens the B+-tree rooted at ci's index root, writing any new
// root id a split/collapse produces straight back to the column's field.
func openIndex(s *store.Store, ci pagefmt.ColInfo) *btree.Tree {
	return btree.Open(s, ci.IndexRoot(), btree.ComparatorFor(ci.Ty().Ty), func(newRoot uint32) {
		ci.SetIndexRoot(newRoot)
	})
}
