package query

import (
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/value"
)

// Insert appends one row per entry of rows to table, in cols order (cols
// nil means every column, in declaration order); any column omitted from
// cols takes its declared default (null if none). It stops and reports a
// partial-success count on the first row that fails a constraint.
func Insert(c *Ctx, cols []string, rows [][]value.Lit) (int, error) {
	var colIdx []int
	if cols != nil {
		colIdx = make([]int, 0, len(cols))
		for _, name := range cols {
			i, _, err := c.Cat.GetColumn(c.TableName, c.Tp, name)
			if err != nil {
				return 0, err
			}
			colIdx = append(colIdx, i)
		}
	}

	for n, vals := range rows {
		if err := c.insertOne(colIdx, vals); err != nil {
			return n, dberr.Affected(n, err)
		}
	}
	return len(rows), nil
}

func (c *Ctx) insertOne(colIdx []int, vals []value.Lit) error {
	n := int(c.Tp.ColNum())
	row := make([]value.Lit, n)
	copy(row, c.Defaults)

	if colIdx != nil {
		if len(colIdx) < len(vals) {
			return dberr.InsertTooLong(c.TableName)
		}
		for i, v := range vals {
			row[colIdx[i]] = v
		}
	} else {
		if len(vals) > n {
			return dberr.InsertTooLong(c.TableName)
		}
		copy(row, vals)
	}

	recSize := int(c.Tp.SlotSize())
	rec := make([]byte, recSize)
	pagefmt.ClearNullBitset(rec, n)

	type pendingVarchar struct {
		idx int
		s   string
	}
	var pending []pendingVarchar

	for i := 0; i < n; i++ {
		ci := c.Tp.Col(i)
		v := row[i]
		if v.IsNull() {
			if ci.Flags()&pagefmt.FlagNotNull != 0 {
				return dberr.PutNullOnNotNull(c.TableName, ci.Name())
			}
			pagefmt.SetNull(rec, i, true)
			continue
		}
		if ci.Ty().Ty == pagefmt.TyVarChar {
			if len(v.Str) > int(ci.Ty().Size) {
				return dberr.ColLitMismatch(c.TableName, ci.Name(), v.String())
			}
			pending = append(pending, pendingVarchar{i, v.Str})
			continue
		}
		if err := value.EncodeFixed(rec[ci.Offset():], ci.Ty(), v); err != nil {
			return dberr.ColLitMismatch(c.TableName, ci.Name(), v.String())
		}
	}

	for i := 0; i < n; i++ {
		if err := c.CheckCol(rec, i, row[i], nil); err != nil {
			return err
		}
	}

	if len(c.Pks) > 1 {
		h := hashPKs(rec, c.Tp, c.Pks)
		if c.PkSet[h] {
			return dberr.PutDupOnPrimary(c.TableName)
		}
	}

	// Nothing from here on can fail: write the varchar payloads, insert
	// the record, grow the pk set, and feed every index.
	for _, pv := range pending {
		ci := c.Tp.Col(pv.idx)
		lobID, capSlots, length := c.Cat.Lob.Alloc([]byte(pv.s))
		pagefmt.PutVarcharSlot(rec[ci.Offset():], lobID, length, capSlots)
	}

	if len(c.Pks) > 1 {
		c.PkSet[hashPKs(rec, c.Tp, c.Pks)] = true
	}

	rid := c.Cat.S.AllocDataSlot(c.TpID)
	slot := c.Cat.S.GetDataSlot(c.Tp, rid)
	copy(slot, rec)

	for i := 0; i < n; i++ {
		ci := c.Tp.Col(i)
		if ci.IndexRoot() == pagefmt.NoIndex || pagefmt.IsNull(slot, i) {
			continue
		}
		tr := openIndex(c.Cat.S, ci)
		tr.Insert(c.Cat.IndexKeyBytes(slot, ci), rid)
	}
	return nil
}
