package catalog

import (
	"github.com/nullbound/reldb/btree"
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/value"
)

type consFlags struct{ primary, foreign, unique, check bool }

// CreateTable validates a full CREATE TABLE body and, only once every
// check has passed, allocates the table's metadata page, its check pages,
// and an index root for every column a PRIMARY KEY/UNIQUE/FOREIGN KEY
// constraint requires.
func (c *Catalog) CreateTable(spec TableSpec) error {
	schema := c.S.Schema()
	if int(schema.TableNum()) == pagefmt.MaxTable {
		return dberr.TableExhausted(spec.Name)
	}
	if len(spec.Name) > pagefmt.MaxTableName {
		return dberr.TableNameTooLong(spec.Name)
	}
	if _, _, err := c.GetTable(spec.Name); err == nil {
		return dberr.DupTable(spec.Name)
	}
	if len(spec.Cols) > pagefmt.MaxColumns {
		return dberr.ColTooMany(spec.Name)
	}
	if len(spec.Cols) == 0 {
		return dberr.ColTooFew(spec.Name)
	}

	colIdx := make(map[string]int, len(spec.Cols))
	for i, cd := range spec.Cols {
		if _, dup := colIdx[cd.Name]; dup {
			return dberr.DupCol(spec.Name, cd.Name)
		}
		if len(cd.Name) > pagefmt.MaxColName {
			return dberr.ColNameTooLong(spec.Name, cd.Name)
		}
		colIdx[cd.Name] = i
	}
	flags := make([]consFlags, len(spec.Cols))

	primaryCnt := 0
	for _, col := range spec.Primary {
		i, ok := colIdx[col]
		if !ok {
			return dberr.NoSuchCol(spec.Name, col)
		}
		if flags[i].primary {
			return dberr.DupConstraint(spec.Name, col)
		}
		flags[i].primary = true
		if spec.Cols[i].Ty.Ty == pagefmt.TyVarChar {
			return dberr.UnsupportedVarcharOp(spec.Name, col)
		}
		primaryCnt++
	}
	for _, fd := range spec.Foreign {
		i, ok := colIdx[fd.Col]
		if !ok {
			return dberr.NoSuchCol(spec.Name, fd.Col)
		}
		if flags[i].foreign {
			return dberr.DupConstraint(spec.Name, fd.Col)
		}
		flags[i].foreign = true
		_, fTp, err := c.GetTable(fd.RefTable)
		if err != nil {
			return err
		}
		_, fCi, err := c.GetColumn(fd.RefTable, fTp, fd.RefCol)
		if err != nil {
			return err
		}
		if !fCi.Unique(c.primaryCount(fTp)) {
			return dberr.ForeignOnNotUnique(fd.RefTable, fd.RefCol)
		}
		if fCi.Ty() != spec.Cols[i].Ty {
			return dberr.IncompatibleForeignTy(spec.Name, fd.Col)
		}
	}
	for _, u := range spec.Unique {
		i, ok := colIdx[u]
		if !ok {
			return dberr.NoSuchCol(spec.Name, u)
		}
		if flags[i].unique {
			return dberr.DupConstraint(spec.Name, u)
		}
		flags[i].unique = true
		if spec.Cols[i].Ty.Ty == pagefmt.TyVarChar {
			return dberr.UnsupportedVarcharOp(spec.Name, u)
		}
	}
	for _, chk := range spec.Check {
		i, ok := colIdx[chk.Col]
		if !ok {
			return dberr.NoSuchCol(spec.Name, chk.Col)
		}
		if flags[i].check {
			return dberr.DupConstraint(spec.Name, chk.Col)
		}
		flags[i].check = true
		cd := spec.Cols[i]
		if cd.Ty.Ty == pagefmt.TyVarChar {
			return dberr.UnsupportedVarcharOp(spec.Name, chk.Col)
		}
		sz := int(cd.Ty.Size())
		dftSlots := 0
		if cd.Default != nil {
			dftSlots = 1
		}
		if sz*(len(chk.Values)+dftSlots) > pagefmt.MaxCheckBytes {
			return dberr.CheckTooLong(spec.Name, chk.Col)
		}
		for _, v := range chk.Values {
			if v.IsNull() {
				return dberr.CheckNull(spec.Name, chk.Col)
			}
			if err := value.CheckAssignable(cd.Ty, v); err != nil {
				return dberr.ColLitMismatch(spec.Name, chk.Col, v.String())
			}
		}
	}
	for _, cd := range spec.Cols {
		if cd.Default == nil {
			continue
		}
		if cd.Ty.Ty == pagefmt.TyVarChar {
			return dberr.UnsupportedVarcharOp(spec.Name, cd.Name)
		}
		if !cd.Default.IsNull() {
			if err := value.CheckAssignable(cd.Ty, *cd.Default); err != nil {
				return dberr.ColLitMismatch(spec.Name, cd.Name, cd.Default.String())
			}
		}
	}

	nullWords := pagefmt.NullBitsetWords(len(spec.Cols))
	size := uint16(nullWords * 4)
	for _, cd := range spec.Cols {
		if cd.Ty.Align4() {
			size = pagefmt.Align4(size)
		}
		size += cd.Ty.Size()
	}
	size = pagefmt.Align4(size)
	if int(size) > pagefmt.MaxDataByte {
		return dberr.ColSizeTooBig(spec.Name, "")
	}

	// Every check above passed: nothing from here on can fail.
	tpID, tpRaw := c.S.AllocPage()
	tp := pagefmt.NewTablePage(tpRaw)
	off := uint16(nullWords * 4)
	for i, cd := range spec.Cols {
		if cd.Ty.Align4() {
			off = pagefmt.Align4(off)
		}
		tp.Col(i).Init(cd.Ty, off, cd.Name, cd.NotNull)
		off += cd.Ty.Size()
	}
	slotSize := pagefmt.Align4(off)
	if slotSize < pagefmt.MinSlotSize {
		slotSize = pagefmt.MinSlotSize
	}
	tp.Init(slotSize, uint8(len(spec.Cols)), spec.Name)

	for _, col := range spec.Primary {
		ci := tp.Col(colIdx[col])
		ci.SetFlags(ci.Flags() | pagefmt.FlagPrimary)
	}
	for _, fd := range spec.Foreign {
		fTpID, fTp, _ := c.GetTable(fd.RefTable)
		fIdx, _, _ := c.GetColumn(fd.RefTable, fTp, fd.RefCol)
		ci := tp.Col(colIdx[fd.Col])
		ci.SetForeignTable(fTpID)
		ci.SetForeignCol(uint8(fIdx))
	}
	for _, u := range spec.Unique {
		ci := tp.Col(colIdx[u])
		ci.SetFlags(ci.Flags() | pagefmt.FlagUnique)
	}
	for _, chk := range spec.Check {
		i := colIdx[chk.Col]
		ci := tp.Col(i)
		cpID, cpRaw := c.S.AllocPage()
		cp := pagefmt.NewCheckPage(cpRaw)
		cp.SetCount(uint16(len(chk.Values)))
		sz := int(spec.Cols[i].Ty.Size())
		for idx, v := range chk.Values {
			_ = value.EncodeFixed(cp.Entry(idx, sz), spec.Cols[i].Ty, v)
		}
		ci.SetCheck(cpID << 1)
	}
	for i, cd := range spec.Cols {
		if cd.Default == nil || cd.Default.IsNull() {
			continue
		}
		ci := tp.Col(i)
		id, _, ok := ci.CheckPage()
		var cp pagefmt.CheckPage
		if !ok {
			cpID, cpRaw := c.S.AllocPage()
			cp = pagefmt.NewCheckPage(cpRaw)
			cp.SetCount(0)
			id = cpID
		} else {
			cp = pagefmt.NewCheckPage(c.S.GetPage(id))
		}
		sz := int(cd.Ty.Size())
		_ = value.EncodeFixed(cp.Entry(int(cp.Count()), sz), cd.Ty, *cd.Default)
		ci.SetCheck(id<<1 | 1)
	}

	idx := int(schema.TableNum())
	schema.SetTableMeta(idx, tpID)
	schema.SetTableName(idx, spec.Name)
	schema.SetTableNum(schema.TableNum() + 1)

	n := int(tp.ColNum())
	for i := 0; i < n; i++ {
		ci := tp.Col(i)
		if ci.Unique(primaryCnt) || ci.HasForeign() {
			root := btree.CreateRoot(c.S, btree.ValueSize(ci.Ty()))
			ci.SetIndexRoot(root)
		}
	}
	return nil
}
