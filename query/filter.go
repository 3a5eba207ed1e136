package query

import (
	"github.com/nullbound/reldb/btree"
	"github.com/nullbound/reldb/expr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
	"github.com/nullbound/reldb/value"
)

// RowFunc is called with every candidate row's raw bytes and RID; it
// returns false to stop the scan early.
type RowFunc func(rec []byte, rid pagefmt.RID) bool

// Scan walks every row of table that satisfies where, calling f on each.
// It tries a single-column index-assisted range scan first (see
// scanWithIndex); failing that, it falls back to a full table scan,
// applying the full predicate to every row.
func Scan(c *Ctx, where []expr.Cond, f RowFunc) error {
	cache := expr.NewCache()
	if err := expr.CheckWhere(where, newRowEnv(c.TableName, c.Tp, nil, c.Cat.Lob), cache); err != nil {
		return err
	}
	if scanWithIndex(c, where, cache, f) {
		return nil
	}
	it := store.NewRecordIter(c.Cat.S, c.Tp)
	for {
		rec, rid, ok := it.Next()
		if !ok {
			return nil
		}
		env := newRowEnv(c.TableName, c.Tp, rec, c.Cat.Lob)
		match, err := expr.EvalWhere(where, env, cache)
		if err != nil {
			return err
		}
		if match && !f(rec, rid) {
			return nil
		}
	}
}

// scanWithIndex looks for the first WHERE clause that is a direct
// comparison between an indexed column and a literal, and if found,
// walks only the matching index range instead of the whole table,
// re-checking the full predicate against every candidate it yields.
// Returns false if no clause is eligible, meaning the caller must fall
// back to a full scan.
func scanWithIndex(c *Ctx, where []expr.Cond, cache *expr.Cache, f RowFunc) bool {
	for _, cond := range where {
		if cond.Kind != expr.CondCmp || !cond.Rhs.IsLit {
			continue
		}
		idx, _, err := c.Cat.GetColumn(c.TableName, c.Tp, cond.Col.Col)
		if err != nil {
			continue
		}
		ci := c.Tp.Col(idx)
		if ci.IndexRoot() == pagefmt.NoIndex {
			continue
		}
		if cond.Op == expr.Ne {
			continue // an inequality excludes one value, not a contiguous range
		}
		key := litIndexKey(ci.Ty(), cond.Rhs.Lit)
		if key == nil {
			continue
		}
		tr := openIndex(c.Cat.S, ci)

		var lo, hi *btree.Iterator
		switch cond.Op {
		case expr.Lt:
			lo, hi = tr.Iter(), tr.LowerBound(key)
		case expr.Le:
			lo, hi = tr.Iter(), tr.UpperBound(key)
		case expr.Ge:
			lo, hi = tr.LowerBound(key), nil
		case expr.Gt:
			lo, hi = tr.UpperBound(key), nil
		case expr.Eq:
			lo, hi = tr.LowerBound(key), tr.UpperBound(key)
		default:
			continue
		}

		for hi == nil || !lo.Equal(hi) {
			_, rid, ok := lo.Next()
			if !ok {
				break
			}
			rec := c.Cat.S.GetDataSlot(c.Tp, rid)
			env := newRowEnv(c.TableName, c.Tp, rec, c.Cat.Lob)
			match, err := expr.EvalWhere(where, env, cache)
			if err != nil || !match {
				continue
			}
			if !f(rec, rid) {
				break
			}
		}
		return true
	}
	return false
}

// litIndexKey encodes a WHERE-clause literal into the same byte layout
// the column's index stores, or nil if the literal can't be compared
// against this column (a type mismatch CheckWhere would already have
// rejected, so this should not occur in practice).
func litIndexKey(ty pagefmt.ColTy, lit value.Lit) []byte {
	if lit.IsNull() {
		return nil
	}
	if ty.Ty == pagefmt.TyVarChar {
		return btree.EncodeStr(lit.Str, ty.Size)
	}
	b := make([]byte, ty.Size())
	if err := value.EncodeFixed(b, ty, lit); err != nil {
		return nil
	}
	return b
}
