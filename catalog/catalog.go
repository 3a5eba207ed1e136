package catalog

import (
	"fmt"
	"strings"

	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/lob"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
)

// Catalog is the DDL-level handle onto one open database: the paged
// store plus the LOB store its varchar columns spill into (needed only
// when a table is dropped and its live varchar payloads must be freed).
type Catalog struct {
	S   *store.Store
	Lob *lob.Store
}

func Open(s *store.Store, l *lob.Store) *Catalog { return &Catalog{S: s, Lob: l} }

// GetTable resolves a table by name.
func (c *Catalog) GetTable(name string) (uint32, pagefmt.TablePage, error) {
	return c.S.GetTablePage(name)
}

// GetColumn finds a column by name within an already-resolved table.
func (c *Catalog) GetColumn(table string, tp pagefmt.TablePage, name string) (int, pagefmt.ColInfo, error) {
	n := int(tp.ColNum())
	for i := 0; i < n; i++ {
		ci := tp.Col(i)
		if ci.Name() == name {
			return i, ci, nil
		}
	}
	return 0, pagefmt.ColInfo{}, dberr.NoSuchCol(table, name)
}

func (c *Catalog) primaryCount(tp pagefmt.TablePage) int {
	n, count := int(tp.ColNum()), 0
	for i := 0; i < n; i++ {
		if tp.Col(i).Flags()&pagefmt.FlagPrimary != 0 {
			count++
		}
	}
	return count
}

// PrimaryCols returns the indices of every PRIMARY KEY column, in
// declaration order, for composite-key fingerprinting during insert/update.
func (c *Catalog) PrimaryCols(tp pagefmt.TablePage) []int {
	n := int(tp.ColNum())
	var out []int
	for i := 0; i < n; i++ {
		if tp.Col(i).Flags()&pagefmt.FlagPrimary != 0 {
			out = append(out, i)
		}
	}
	return out
}

// ForeignLinksTo returns every (table id, referencing column index,
// referenced column index) triple whose foreign key targets tpID, across
// every live table. Used both to reject DROP TABLE/ALTER on a table with
// incoming links, and to reject deleting an individual row a foreign key
// still points to (SPEC_FULL.md's per-row amendment to §4.6).
func (c *Catalog) ForeignLinksTo(tpID uint32) []ForeignLink {
	var out []ForeignLink
	for _, otherID := range c.S.AllTableIDs() {
		otp := pagefmt.NewTablePage(c.S.GetPage(otherID))
		n := int(otp.ColNum())
		for i := 0; i < n; i++ {
			ci := otp.Col(i)
			if ci.HasForeign() && ci.ForeignTable() == tpID {
				out = append(out, ForeignLink{TableID: otherID, ColIdx: i, RefColIdx: int(ci.ForeignCol())})
			}
		}
	}
	return out
}

// ForeignLink names one column elsewhere in the schema whose FOREIGN KEY
// constraint references a particular table.
type ForeignLink struct {
	TableID   uint32
	ColIdx    int
	RefColIdx int
}

// ShowTables renders every table's layout, in schema order.
func (c *Catalog) ShowTables() string {
	var b strings.Builder
	for _, id := range c.S.AllTableIDs() {
		c.showTableInfo(pagefmt.NewTablePage(c.S.GetPage(id)), &b)
	}
	return b.String()
}

// ShowTable renders a single table's layout.
func (c *Catalog) ShowTable(name string) (string, error) {
	_, tp, err := c.GetTable(name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	c.showTableInfo(tp, &b)
	return b.String(), nil
}

func (c *Catalog) showTableInfo(tp pagefmt.TablePage, b *strings.Builder) {
	fmt.Fprintf(b, "table `%s`: record count = %d, record size = %d\n", tp.Name(), tp.Count(), tp.SlotSize())
	n := int(tp.ColNum())
	for i := 0; i < n; i++ {
		ci := tp.Col(i)
		fmt.Fprintf(b, "  - col %d: `%s`: %s @ offset +%d; ", i, ci.Name(), ci.Ty().Ty, ci.Offset())
		flags := ci.Flags()
		if flags&pagefmt.FlagPrimary != 0 {
			b.WriteString("primary ")
		}
		if flags&pagefmt.FlagNotNull != 0 {
			b.WriteString("notnull ")
		}
		if flags&pagefmt.FlagUnique != 0 {
			b.WriteString("unique ")
		}
		b.WriteByte('\n')
	}
}
