package pagefmt

import "testing"

func TestSchemaPageRoundTrip(t *testing.T) {
	buf := make([]byte, PageSize)
	p := NewSchemaPage(buf)
	magic := []byte("reldb-pagefile-01\x00")[:MagicLen]
	p.Init(magic)
	if string(p.Magic()) != string(magic) {
		t.Fatalf("magic mismatch")
	}
	if p.FirstFree() != NoPage {
		t.Fatalf("expected NoPage sentinel")
	}
	p.SetTableNum(3)
	p.SetTableMeta(0, 7)
	p.SetTableName(0, "widgets")
	if p.TableNum() != 3 || p.TableMeta(0) != 7 || p.TableName(0) != "widgets" {
		t.Fatalf("table slot round trip failed")
	}
}

func TestColInfoRoundTrip(t *testing.T) {
	buf := make([]byte, ColInfoSize)
	c := NewColInfo(buf)
	c.Init(ColTy{Ty: TyInt}, 4, "id", true)
	if c.Ty().Ty != TyInt || c.Offset() != 4 || c.Name() != "id" {
		t.Fatalf("col info init failed")
	}
	if c.Flags()&FlagNotNull == 0 {
		t.Fatalf("expected notnull flag set")
	}
	if c.IndexRoot() != NoIndex {
		t.Fatalf("expected no index sentinel")
	}
}

func TestDataPageUsedBitset(t *testing.T) {
	buf := make([]byte, PageSize)
	d := NewDataPage(buf)
	d.Init(NoPage)
	d.SetUsed(5, true)
	d.SetUsed(200, true)
	if !d.IsUsed(5) || !d.IsUsed(200) || d.IsUsed(6) {
		t.Fatalf("used bitset mismatch")
	}
	if d.Popcount() != 2 {
		t.Fatalf("popcount = %d, want 2", d.Popcount())
	}
}

func TestRIDOrdering(t *testing.T) {
	a := NewRID(1, 0)
	b := NewRID(1, 1)
	c := NewRID(2, 0)
	if !(a < b && b < c) {
		t.Fatalf("RID ordering violated: %d %d %d", a, b, c)
	}
	if a.Page() != 1 || b.Slot() != 1 {
		t.Fatalf("RID accessor mismatch")
	}
}

func TestIndexPageSlotSize(t *testing.T) {
	buf := make([]byte, PageSize)
	ix := NewIndexPage(buf)
	ix.Init(true, 4)
	if ix.RidOff() != 4 {
		t.Fatalf("rid_off = %d, want 4", ix.RidOff())
	}
	if ix.KeySize() != 8 || ix.SlotSize() != 8 {
		t.Fatalf("leaf slot size mismatch: key=%d slot=%d", ix.KeySize(), ix.SlotSize())
	}
	ix.Init(false, 4)
	if ix.SlotSize() != 12 {
		t.Fatalf("inner slot size mismatch: %d", ix.SlotSize())
	}
}
