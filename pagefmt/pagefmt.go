// Package pagefmt defines the fixed on-disk layouts the engine reads and
// writes directly against mapped memory: the schema page, table metadata
// page, heap data page, B+-tree index page, check-list page and LOB slot.
//
// Every layout is accessed through a thin wrapper over a page-sized []byte
// using encoding/binary, rather than an unsafe struct overlay: it keeps the
// field offsets explicit and auditable against this file's constants, and it
// is the same style the rest of this codebase's mmap-backed stores use.
package pagefmt

import "encoding/binary"

const (
	PageSize = 8192

	MagicLen = 18

	LogMaxSlot = 9
	MaxSlot    = 1 << LogMaxSlot // 512
	MaxSlotBS  = MaxSlot / 32    // words in the used-bitset

	MinSlotSize = PageSize / MaxSlot

	MaxTable     = 127
	MaxTableName = 59
	MaxColumns   = 127
	MaxColName   = 25
	MaxIdxName   = 15

	// schema page header: magic[18] + reserved[2] + first_free(4) + table_num(2) + reserved[38]
	schemaHeaderSize = MagicLen + 2 + 4 + 2 + 38
	tableInfoSize    = 4 + 1 + MaxTableName // meta(u32) + name_len(u8) + name[59] = 64

	// table metadata page header, before the column array
	tableHeaderSize = 4 + 4 + 4 + 2 + 2 + 1 + MaxTableName + 1 // first, first_free, count, size, cap, name_len, name, col_num
	ColInfoSize     = 64

	// heap data page header, before the data area
	dataHeaderSize = 4 + 4 + 2 + 2 + MaxSlotBS*4
	MaxDataByte    = PageSize - dataHeaderSize // 8116

	indexHeaderSize = 4 + 2 + 1 + 1 + 2 + 2
	MaxIndexBytes   = PageSize - indexHeaderSize // 8180

	checkHeaderSize = 2 + 2
	MaxCheckBytes   = PageSize - checkHeaderSize // 8188

	LobSlotSize = 32

	VarcharSlotSize = 8 // lob_id(u32) + len(u16) + cap(u16)
)

// Sentinel values matching Rust's `!0`/`!0u32` "none" convention.
const (
	NoPage  uint32 = 1<<32 - 1
	NoIndex uint32 = 1<<32 - 1
	NoCheck uint32 = 1<<32 - 1
	NoTable uint32 = 1<<32 - 1
)

func init() {
	if tableInfoSize != 64 {
		panic("pagefmt: TableInfo layout drifted from 64 bytes")
	}
}

// BareTy is the fixed-width column type tag.
type BareTy uint8

const (
	TyInt BareTy = iota
	TyBool
	TyFloat
	TyChar
	TyVarChar
	TyDate
)

func (t BareTy) String() string {
	switch t {
	case TyInt:
		return "int"
	case TyBool:
		return "bool"
	case TyFloat:
		return "float"
	case TyChar:
		return "char"
	case TyVarChar:
		return "varchar"
	case TyDate:
		return "date"
	default:
		return "unknown"
	}
}

// ColTy is a column's declared type plus its declared size (used by Char/VarChar).
type ColTy struct {
	Ty   BareTy
	Size uint8
}

// Size returns the fixed byte footprint of one value of this type within a
// record slot (for VarChar, this is the 8-byte descriptor triple's footprint,
// not the variable payload length).
func (t ColTy) Size() uint16 {
	switch t.Ty {
	case TyInt, TyFloat, TyDate:
		return 4
	case TyBool:
		return 1
	case TyChar:
		return uint16(t.Size) + 1
	case TyVarChar:
		return VarcharSlotSize
	default:
		return 0
	}
}

// Align4 reports whether values of this type must sit on a 4-byte boundary.
func (t ColTy) Align4() bool {
	switch t.Ty {
	case TyInt, TyFloat, TyDate, TyVarChar:
		return true
	default:
		return false
	}
}

// ColFlags are the bit flags stored in a column descriptor.
type ColFlags uint8

const (
	FlagPrimary ColFlags = 1 << 0
	FlagNotNull ColFlags = 1 << 1
	FlagUnique  ColFlags = 1 << 2
)

func align4(n uint16) uint16 { return (n + 3) &^ 3 }

// Align4 rounds n up to the next multiple of 4, exported for callers outside
// this package computing record layouts.
func Align4(n uint16) uint16 { return align4(n) }

// --- Schema page (page 0) -------------------------------------------------

// SchemaPage is a typed view over page 0.
type SchemaPage struct{ b []byte }

func NewSchemaPage(b []byte) SchemaPage { return SchemaPage{b[:PageSize]} }

func (p SchemaPage) Magic() []byte          { return p.b[0:MagicLen] }
func (p SchemaPage) SetMagic(magic []byte)  { copy(p.b[0:MagicLen], magic) }
func (p SchemaPage) FirstFree() uint32      { return binary.LittleEndian.Uint32(p.b[MagicLen+2:]) }
func (p SchemaPage) SetFirstFree(v uint32)  { binary.LittleEndian.PutUint32(p.b[MagicLen+2:], v) }
func (p SchemaPage) TableNum() uint8 {
	return uint8(binary.LittleEndian.Uint16(p.b[MagicLen+2+4:]))
}
func (p SchemaPage) SetTableNum(v uint8) {
	binary.LittleEndian.PutUint16(p.b[MagicLen+2+4:], uint16(v))
}

func (p SchemaPage) tableInfoOff(i int) int { return schemaHeaderSize + i*tableInfoSize }

func (p SchemaPage) TableMeta(i int) uint32 {
	off := p.tableInfoOff(i)
	return binary.LittleEndian.Uint32(p.b[off:])
}

func (p SchemaPage) SetTableMeta(i int, pageID uint32) {
	off := p.tableInfoOff(i)
	binary.LittleEndian.PutUint32(p.b[off:], pageID)
}

func (p SchemaPage) TableName(i int) string {
	off := p.tableInfoOff(i)
	nameLen := p.b[off+4]
	return string(p.b[off+5 : off+5+int(nameLen)])
}

func (p SchemaPage) SetTableName(i int, name string) {
	off := p.tableInfoOff(i)
	p.b[off+4] = byte(len(name))
	copy(p.b[off+5:off+5+len(name)], name)
}

func (p SchemaPage) Init(magic []byte) {
	p.SetMagic(magic)
	p.SetFirstFree(NoPage)
	p.SetTableNum(0)
}

// --- Column descriptor (64 bytes) ----------------------------------------

// ColInfo is a typed view over one 64-byte column descriptor slice.
type ColInfo struct{ b []byte }

func NewColInfo(b []byte) ColInfo { return ColInfo{b[:ColInfoSize]} }

// Raw exposes the column descriptor's backing bytes, for callers (e.g. a
// multi-table join environment) that need to tell two ColInfo values
// referring to the same descriptor apart by identity rather than content.
func (c ColInfo) Raw() []byte { return c.b }

func (c ColInfo) Ty() ColTy {
	return ColTy{Ty: BareTy(c.b[0]), Size: c.b[1]}
}
func (c ColInfo) SetTy(t ColTy) { c.b[0] = byte(t.Ty); c.b[1] = t.Size }

func (c ColInfo) IndexRoot() uint32     { return binary.LittleEndian.Uint32(c.b[4:]) }
func (c ColInfo) SetIndexRoot(v uint32) { binary.LittleEndian.PutUint32(c.b[4:], v) }

// Check encodes `check_page<<1 | default_present`; NoCheck ("all ones") means absent.
func (c ColInfo) Check() uint32     { return binary.LittleEndian.Uint32(c.b[8:]) }
func (c ColInfo) SetCheck(v uint32) { binary.LittleEndian.PutUint32(c.b[8:], v) }
func (c ColInfo) CheckPage() (id uint32, hasDefault bool, ok bool) {
	v := c.Check()
	if v == NoCheck {
		return 0, false, false
	}
	return v >> 1, v&1 == 1, true
}

func (c ColInfo) ForeignTable() uint32     { return binary.LittleEndian.Uint32(c.b[12:]) }
func (c ColInfo) SetForeignTable(v uint32) { binary.LittleEndian.PutUint32(c.b[12:], v) }
func (c ColInfo) ForeignCol() uint8        { return c.b[16] }
func (c ColInfo) SetForeignCol(v uint8)    { c.b[16] = v }
func (c ColInfo) HasForeign() bool         { return c.ForeignTable() != NoTable }

func (c ColInfo) Flags() ColFlags     { return ColFlags(c.b[17]) }
func (c ColInfo) SetFlags(f ColFlags) { c.b[17] = byte(f) }

func (c ColInfo) Offset() uint16     { return binary.LittleEndian.Uint16(c.b[18:]) }
func (c ColInfo) SetOffset(v uint16) { binary.LittleEndian.PutUint16(c.b[18:], v) }

func (c ColInfo) IdxNameLen() uint8 { return c.b[20] }
func (c ColInfo) IdxName() string {
	n := c.IdxNameLen()
	return string(c.b[21 : 21+int(n)])
}
func (c ColInfo) SetIdxName(name string) {
	c.b[20] = byte(len(name))
	copy(c.b[21:21+len(name)], name)
}

const nameFieldOff = 21 + MaxIdxName // 36

func (c ColInfo) NameLen() uint8 { return c.b[nameFieldOff] }
func (c ColInfo) Name() string {
	n := c.NameLen()
	return string(c.b[nameFieldOff+1 : nameFieldOff+1+int(n)])
}
func (c ColInfo) SetName(name string) {
	c.b[nameFieldOff] = byte(len(name))
	copy(c.b[nameFieldOff+1:nameFieldOff+1+len(name)], name)
}

func (c ColInfo) Init(ty ColTy, off uint16, name string, notnull bool) {
	c.SetTy(ty)
	c.SetOffset(off)
	c.SetIndexRoot(NoIndex)
	c.SetCheck(NoCheck)
	c.SetForeignTable(NoTable)
	c.SetForeignCol(0)
	flags := ColFlags(0)
	if notnull {
		flags |= FlagNotNull
	}
	c.SetFlags(flags)
	c.SetName(name)
}

func (c ColInfo) Unique(primaryCount int) bool {
	f := c.Flags()
	return f&FlagUnique != 0 || (f&FlagPrimary != 0 && primaryCount == 1)
}

// --- Table metadata page ---------------------------------------------------

// TablePage is a typed view over a table's metadata page.
type TablePage struct{ b []byte }

func NewTablePage(b []byte) TablePage { return TablePage{b[:PageSize]} }

func (t TablePage) First() uint32      { return binary.LittleEndian.Uint32(t.b[0:]) }
func (t TablePage) SetFirst(v uint32)  { binary.LittleEndian.PutUint32(t.b[0:], v) }
func (t TablePage) FirstFree() uint32  { return binary.LittleEndian.Uint32(t.b[4:]) }
func (t TablePage) SetFirstFree(v uint32) { binary.LittleEndian.PutUint32(t.b[4:], v) }
func (t TablePage) Count() uint32      { return binary.LittleEndian.Uint32(t.b[8:]) }
func (t TablePage) SetCount(v uint32)  { binary.LittleEndian.PutUint32(t.b[8:], v) }
func (t TablePage) SlotSize() uint16   { return binary.LittleEndian.Uint16(t.b[12:]) }
func (t TablePage) SetSlotSize(v uint16) { binary.LittleEndian.PutUint16(t.b[12:], v) }
func (t TablePage) Cap() uint16        { return binary.LittleEndian.Uint16(t.b[14:]) }
func (t TablePage) SetCap(v uint16)    { binary.LittleEndian.PutUint16(t.b[14:], v) }

func (t TablePage) NameLen() uint8 { return t.b[16] }
func (t TablePage) Name() string {
	n := t.NameLen()
	return string(t.b[17 : 17+int(n)])
}
func (t TablePage) SetName(name string) {
	t.b[16] = byte(len(name))
	copy(t.b[17:17+len(name)], name)
}

const colNumOff = 17 + MaxTableName // 76

func (t TablePage) ColNum() uint8     { return t.b[colNumOff] }
func (t TablePage) SetColNum(v uint8) { t.b[colNumOff] = v }

const colArrayOff = colNumOff + 1

func (t TablePage) Col(i int) ColInfo {
	off := colArrayOff + i*ColInfoSize
	return NewColInfo(t.b[off : off+ColInfoSize])
}

func (t TablePage) Init(slotSize uint16, colNum uint8, name string) {
	t.SetFirst(NoPage)
	t.SetFirstFree(NoPage)
	t.SetCount(0)
	t.SetSlotSize(slotSize)
	t.SetCap(MaxDataByte / slotSize)
	t.SetName(name)
	t.SetColNum(colNum)
}

// --- Heap data page ----------------------------------------------------

// DataPage is a typed view over a heap data page.
type DataPage struct{ b []byte }

func NewDataPage(b []byte) DataPage { return DataPage{b[:PageSize]} }

func (d DataPage) Next() uint32         { return binary.LittleEndian.Uint32(d.b[0:]) }
func (d DataPage) SetNext(v uint32)     { binary.LittleEndian.PutUint32(d.b[0:], v) }
func (d DataPage) NextFree() uint32     { return binary.LittleEndian.Uint32(d.b[4:]) }
func (d DataPage) SetNextFree(v uint32) { binary.LittleEndian.PutUint32(d.b[4:], v) }
func (d DataPage) LiveCount() uint16    { return binary.LittleEndian.Uint16(d.b[8:]) }
func (d DataPage) SetLiveCount(v uint16) { binary.LittleEndian.PutUint16(d.b[8:], v) }

const usedBitsetOff = 12

func (d DataPage) usedWord(i int) uint32 {
	return binary.LittleEndian.Uint32(d.b[usedBitsetOff+i*4:])
}
func (d DataPage) setUsedWord(i int, v uint32) {
	binary.LittleEndian.PutUint32(d.b[usedBitsetOff+i*4:], v)
}

func (d DataPage) IsUsed(slot int) bool {
	return d.usedWord(slot/32)&(1<<uint(slot%32)) != 0
}
func (d DataPage) SetUsed(slot int, used bool) {
	w := d.usedWord(slot / 32)
	bit := uint32(1) << uint(slot%32)
	if used {
		w |= bit
	} else {
		w &^= bit
	}
	d.setUsedWord(slot/32, w)
}

// Popcount returns the number of set bits across the used bitset.
func (d DataPage) Popcount() int {
	n := 0
	for i := 0; i < MaxSlotBS; i++ {
		n += popcount32(d.usedWord(i))
	}
	return n
}

func popcount32(v uint32) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}

const dataAreaOff = usedBitsetOff + MaxSlotBS*4

func (d DataPage) Slot(slot int, slotSize int) []byte {
	off := dataAreaOff + slot*slotSize
	return d.b[off : off+slotSize]
}

func (d DataPage) Init(next uint32) {
	d.SetNext(next)
	d.SetNextFree(NoPage)
	d.SetLiveCount(0)
	for i := 0; i < MaxSlotBS; i++ {
		d.setUsedWord(i, 0)
	}
}

// --- Check page ----------------------------------------------------------

// CheckPage is a typed view over a packed array of fixed-width literals used
// for an IN-list constraint, with an optional trailing default-value slot.
type CheckPage struct{ b []byte }

func NewCheckPage(b []byte) CheckPage { return CheckPage{b[:PageSize]} }

func (c CheckPage) Count() uint16     { return binary.LittleEndian.Uint16(c.b[0:]) }
func (c CheckPage) SetCount(v uint16) { binary.LittleEndian.PutUint16(c.b[0:], v) }

func (c CheckPage) Entry(i int, width int) []byte {
	off := checkHeaderSize + i*width
	return c.b[off : off+width]
}

// --- Index page ------------------------------------------------------------

// IndexPage is a typed view over a B+-tree node.
type IndexPage struct{ b []byte }

func NewIndexPage(b []byte) IndexPage { return IndexPage{b[:PageSize]} }

func (ix IndexPage) Next() uint32     { return binary.LittleEndian.Uint32(ix.b[0:]) }
func (ix IndexPage) SetNext(v uint32) { binary.LittleEndian.PutUint32(ix.b[0:], v) }
func (ix IndexPage) Count() uint16    { return binary.LittleEndian.Uint16(ix.b[4:]) }
func (ix IndexPage) SetCount(v uint16) { binary.LittleEndian.PutUint16(ix.b[4:], v) }
func (ix IndexPage) Leaf() bool       { return ix.b[6] != 0 }
func (ix IndexPage) SetLeaf(v bool) {
	if v {
		ix.b[6] = 1
	} else {
		ix.b[6] = 0
	}
}
func (ix IndexPage) RidOff() uint16     { return binary.LittleEndian.Uint16(ix.b[8:]) }
func (ix IndexPage) setRidOff(v uint16) { binary.LittleEndian.PutUint16(ix.b[8:], v) }
func (ix IndexPage) Cap() uint16        { return binary.LittleEndian.Uint16(ix.b[10:]) }
func (ix IndexPage) setCap(v uint16)    { binary.LittleEndian.PutUint16(ix.b[10:], v) }

func (ix IndexPage) KeySize() uint16  { return ix.RidOff() + 4 }
func (ix IndexPage) SlotSize() uint16 {
	if ix.Leaf() {
		return ix.KeySize()
	}
	return ix.KeySize() + 4
}

func (ix IndexPage) Init(leaf bool, valueSize uint16) {
	ix.SetNext(NoPage)
	ix.SetCount(0)
	ix.SetLeaf(leaf)
	ix.setRidOff(align4(valueSize))
	ix.setCap(MaxIndexBytes / ix.slotSizeFor(leaf, align4(valueSize)))
}

func (ix IndexPage) slotSizeFor(leaf bool, ridOff uint16) uint16 {
	keySize := ridOff + 4
	if leaf {
		return keySize
	}
	return keySize + 4
}

func (ix IndexPage) entryOff(i int) int {
	return indexHeaderSize + i*int(ix.SlotSize())
}

func (ix IndexPage) Entry(i int) []byte {
	off := ix.entryOff(i)
	return ix.b[off : off+int(ix.SlotSize())]
}

// Entries returns the contiguous byte range spanning entries [from, to),
// for bulk shift/copy during insert, delete, split and merge.
func (ix IndexPage) Entries(from, to int) []byte {
	return ix.b[ix.entryOff(from):ix.entryOff(to)]
}
