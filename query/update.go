package query

import (
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/expr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
	"github.com/nullbound/reldb/value"
)

// Assign is one SET-list entry of an UPDATE statement.
type Assign struct {
	Col  string
	Expr expr.Expr
}

// Update mutates every row of table matching where according to assigns,
// in place. A failure mid-scan leaves earlier rows updated; the returned
// error carries the partial count.
func Update(c *Ctx, assigns []Assign, where []expr.Cond) (int, error) {
	cache := expr.NewCache()
	schemaEnv := newRowEnv(c.TableName, c.Tp, nil, c.Cat.Lob)
	if err := expr.CheckWhere(where, schemaEnv, cache); err != nil {
		return 0, err
	}
	colIdx := make([]int, len(assigns))
	for i, a := range assigns {
		idx, _, err := c.Cat.GetColumn(c.TableName, c.Tp, a.Col)
		if err != nil {
			return 0, err
		}
		colIdx[i] = idx
	}
	links := c.Cat.ForeignLinksTo(c.TpID)

	updated := 0
	it := store.NewRecordIter(c.Cat.S, c.Tp)
	for {
		slot, rid, ok := it.Next()
		if !ok {
			break
		}
		env := newRowEnv(c.TableName, c.Tp, slot, c.Cat.Lob)
		match, err := expr.EvalWhere(where, env, cache)
		if err != nil {
			return updated, dberr.Affected(updated, err)
		}
		if !match {
			continue
		}
		if err := c.rejectIfReferenced(slot, links); err != nil {
			return updated, dberr.Affected(updated, err)
		}
		if err := c.updateRow(slot, rid, colIdx, assigns, env, cache); err != nil {
			return updated, dberr.Affected(updated, err)
		}
		updated++
	}
	return updated, nil
}

func (c *Ctx) updateRow(slot []byte, rid pagefmt.RID, colIdx []int, assigns []Assign, env *rowEnv, cache *expr.Cache) error {
	old := append([]byte(nil), slot...)
	newVals := make(map[int]value.Lit, len(assigns))
	for i, a := range assigns {
		newVals[colIdx[i]] = expr.Eval(a.Expr, env, cache)
	}
	touchesPk := len(c.Pks) > 1 && c.touchesAnyPk(newVals)

	// probe carries every non-null fixed-size SET-list value applied at
	// once (CheckCol keys a VarChar value from the value itself), the buffer
	// CheckCol and the pk-hash probe read the would-be new row from —
	// old itself must stay untouched since it is restored on failure.
	probe := append([]byte(nil), old...)
	c.applyValues(probe, newVals)

	if touchesPk {
		delete(c.PkSet, hashPKs(old, c.Tp, c.Pks))
		if c.PkSet[hashPKs(probe, c.Tp, c.Pks)] {
			c.PkSet[hashPKs(old, c.Tp, c.Pks)] = true // restore, statement failed
			return dberr.PutDupOnPrimary(c.TableName)
		}
	}

	for idx, v := range newVals {
		if err := c.CheckCol(probe, idx, v, &rid); err != nil {
			if touchesPk {
				c.PkSet[hashPKs(old, c.Tp, c.Pks)] = true
			}
			return err
		}
	}

	for idx, v := range newVals {
		ci := c.Tp.Col(idx)
		wasNull := pagefmt.IsNull(slot, idx)
		if !wasNull && ci.IndexRoot() != pagefmt.NoIndex {
			tr := openIndex(c.Cat.S, ci)
			tr.Delete(c.Cat.IndexKeyBytes(slot, ci), rid)
		}
		if !wasNull && ci.Ty().Ty == pagefmt.TyVarChar {
			lobID, _, capSlots := pagefmt.GetVarcharSlot(slot[ci.Offset():])
			c.Cat.Lob.Dealloc(lobID, capSlots)
		}
		if v.IsNull() {
			pagefmt.SetNull(slot, idx, true)
			continue
		}
		pagefmt.SetNull(slot, idx, false)
		if ci.Ty().Ty == pagefmt.TyVarChar {
			lobID, capSlots, length := c.Cat.Lob.Alloc([]byte(v.Str))
			pagefmt.PutVarcharSlot(slot[ci.Offset():], lobID, length, capSlots)
		} else if err := value.EncodeFixed(slot[ci.Offset():], ci.Ty(), v); err != nil {
			return dberr.ColLitMismatch(c.TableName, ci.Name(), v.String())
		}
		if ci.IndexRoot() != pagefmt.NoIndex {
			tr := openIndex(c.Cat.S, ci)
			tr.Insert(c.Cat.IndexKeyBytes(slot, ci), rid)
		}
	}

	if touchesPk {
		c.PkSet[hashPKs(slot, c.Tp, c.Pks)] = true
	}
	return nil
}

// touchesAnyPk reports whether any assigned column is part of the
// composite primary key.
func (c *Ctx) touchesAnyPk(newVals map[int]value.Lit) bool {
	for idx := range newVals {
		for _, p := range c.Pks {
			if p == idx {
				return true
			}
		}
	}
	return false
}

// applyValues writes vals into buf without touching indexes or LOBs, used
// only to probe a would-be composite primary-key hash before committing.
func (c *Ctx) applyValues(buf []byte, vals map[int]value.Lit) {
	for idx, v := range vals {
		ci := c.Tp.Col(idx)
		if v.IsNull() || ci.Ty().Ty == pagefmt.TyVarChar {
			continue // varchar columns never participate in a primary key
		}
		value.EncodeFixed(buf[ci.Offset():], ci.Ty(), v)
	}
}
