package catalog

import (
	"path/filepath"
	"testing"

	"github.com/nullbound/reldb/lob"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
	"github.com/nullbound/reldb/value"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	s, err := store.Create(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	l, err := lob.Create(filepath.Join(t.TempDir(), "t.lob"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return Open(s, l)
}

func intCol(name string) ColumnDef {
	return ColumnDef{Name: name, Ty: pagefmt.ColTy{Ty: pagefmt.TyInt}}
}

func varcharCol(name string, size uint8) ColumnDef {
	return ColumnDef{Name: name, Ty: pagefmt.ColTy{Ty: pagefmt.TyVarChar, Size: size}}
}

func TestCreateTableThenGetTableRoundTrip(t *testing.T) {
	c := newCatalog(t)
	err := c.CreateTable(TableSpec{
		Name:    "users",
		Cols:    []ColumnDef{intCol("id"), varcharCol("name", 40)},
		Primary: []string{"id"},
	})
	require.NoError(t, err)

	_, tp, err := c.GetTable("users")
	require.NoError(t, err)
	require.Equal(t, uint8(2), tp.ColNum())

	idx, ci, err := c.GetColumn("users", tp, "id")
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.NotEqual(t, pagefmt.NoIndex, ci.IndexRoot(), "single-column primary key gets an index root")

	_, nameCi, err := c.GetColumn("users", tp, "name")
	require.NoError(t, err)
	require.Equal(t, pagefmt.NoIndex, nameCi.IndexRoot())
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	c := newCatalog(t)
	spec := TableSpec{Name: "t", Cols: []ColumnDef{intCol("a")}}
	require.NoError(t, c.CreateTable(spec))
	err := c.CreateTable(spec)
	require.Error(t, err)
}

func TestCreateTableRejectsDuplicateColumn(t *testing.T) {
	c := newCatalog(t)
	err := c.CreateTable(TableSpec{Name: "t", Cols: []ColumnDef{intCol("a"), intCol("a")}})
	require.Error(t, err)
}

func TestCreateTableRejectsPrimaryOnVarchar(t *testing.T) {
	c := newCatalog(t)
	err := c.CreateTable(TableSpec{
		Name:    "t",
		Cols:    []ColumnDef{varcharCol("a", 10)},
		Primary: []string{"a"},
	})
	require.Error(t, err)
}

func TestCreateTableRejectsForeignToNonUniqueColumn(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "parent", Cols: []ColumnDef{intCol("id")}}))
	err := c.CreateTable(TableSpec{
		Name:    "child",
		Cols:    []ColumnDef{intCol("parent_id")},
		Foreign: []ForeignDef{{Col: "parent_id", RefTable: "parent", RefCol: "id"}},
	})
	require.Error(t, err)
}

func TestCreateTableAcceptsForeignToPrimaryColumn(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{
		Name: "parent", Cols: []ColumnDef{intCol("id")}, Primary: []string{"id"},
	}))
	err := c.CreateTable(TableSpec{
		Name:    "child",
		Cols:    []ColumnDef{intCol("parent_id")},
		Foreign: []ForeignDef{{Col: "parent_id", RefTable: "parent", RefCol: "id"}},
	})
	require.NoError(t, err)

	_, ctp, err := c.GetTable("child")
	require.NoError(t, err)
	_, ci, err := c.GetColumn("child", ctp, "parent_id")
	require.NoError(t, err)
	require.True(t, ci.HasForeign())
}

func TestCreateTableRejectsCheckContainingNull(t *testing.T) {
	c := newCatalog(t)
	err := c.CreateTable(TableSpec{
		Name: "t",
		Cols: []ColumnDef{intCol("a")},
		Check: []CheckDef{{
			Col:    "a",
			Values: []value.Lit{value.OfNumber(1), value.Null()},
		}},
	})
	require.Error(t, err)
}

func TestDropTableRejectsWhenForeignLinkExists(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "parent", Cols: []ColumnDef{intCol("id")}, Primary: []string{"id"}}))
	require.NoError(t, c.CreateTable(TableSpec{
		Name:    "child",
		Cols:    []ColumnDef{intCol("parent_id")},
		Foreign: []ForeignDef{{Col: "parent_id", RefTable: "parent", RefCol: "id"}},
	}))

	err := c.DropTable("parent")
	require.Error(t, err)

	require.NoError(t, c.DropTable("child"))
	require.NoError(t, c.DropTable("parent"))

	_, _, err = c.GetTable("parent")
	require.Error(t, err)
}

func TestRenameTableUpdatesSchemaAndLookup(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "old", Cols: []ColumnDef{intCol("a")}}))
	require.NoError(t, c.RenameTable("old", "new"))

	_, _, err := c.GetTable("old")
	require.Error(t, err)
	_, tp, err := c.GetTable("new")
	require.NoError(t, err)
	require.Equal(t, "new", tp.Name())
}

func TestRenameTableRejectsCollisionWithExistingName(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "a", Cols: []ColumnDef{intCol("x")}}))
	require.NoError(t, c.CreateTable(TableSpec{Name: "b", Cols: []ColumnDef{intCol("x")}}))
	require.Error(t, c.RenameTable("a", "b"))
}

func TestCreateIndexThenDropIndexRoundTrip(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "t", Cols: []ColumnDef{intCol("a")}}))

	require.NoError(t, c.CreateIndex("t", "a", "idx_a"))
	_, tp, err := c.GetTable("t")
	require.NoError(t, err)
	_, ci, err := c.GetColumn("t", tp, "a")
	require.NoError(t, err)
	require.NotEqual(t, pagefmt.NoIndex, ci.IndexRoot())
	require.Equal(t, "idx_a", ci.IdxName())

	require.NoError(t, c.DropIndex("t", "idx_a"))
	_, ci, err = c.GetColumn("t", tp, "a")
	require.NoError(t, err)
	require.Equal(t, pagefmt.NoIndex, ci.IndexRoot())
}

func TestDropIndexRejectsUnknownName(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "t", Cols: []ColumnDef{intCol("a")}}))
	err := c.DropIndex("t", "no_such_idx")
	require.Error(t, err)
}

func TestDropIndexRejectsWrongTable(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "t1", Cols: []ColumnDef{intCol("a")}}))
	require.NoError(t, c.CreateTable(TableSpec{Name: "t2", Cols: []ColumnDef{intCol("b")}}))
	require.NoError(t, c.CreateIndex("t1", "a", "idx_a"))
	err := c.DropIndex("t2", "idx_a")
	require.Error(t, err)
}

func TestDropPrimarySucceedsWhenUnreferenced(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "t", Cols: []ColumnDef{intCol("id")}, Primary: []string{"id"}}))

	require.NoError(t, c.DropPrimary("t", []string{"id"}))
	_, tp, err := c.GetTable("t")
	require.NoError(t, err)
	_, ci, err := c.GetColumn("t", tp, "id")
	require.NoError(t, err)
	require.Equal(t, pagefmt.ColFlags(0), ci.Flags()&pagefmt.FlagPrimary)
}

func TestDropPrimaryRejectsWhenForeignKeyDependsOnIt(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "parent", Cols: []ColumnDef{intCol("id")}, Primary: []string{"id"}}))
	require.NoError(t, c.CreateTable(TableSpec{
		Name:    "child",
		Cols:    []ColumnDef{intCol("parent_id")},
		Foreign: []ForeignDef{{Col: "parent_id", RefTable: "parent", RefCol: "id"}},
	}))

	err := c.DropPrimary("parent", []string{"id"})
	require.Error(t, err)

	_, tp, err := c.GetTable("parent")
	require.NoError(t, err)
	_, ci, err := c.GetColumn("parent", tp, "id")
	require.NoError(t, err)
	require.NotEqual(t, pagefmt.ColFlags(0), ci.Flags()&pagefmt.FlagPrimary, "rejected drop must leave the flag untouched")
}

func TestDropForeignClearsConstraint(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{Name: "parent", Cols: []ColumnDef{intCol("id")}, Primary: []string{"id"}}))
	require.NoError(t, c.CreateTable(TableSpec{
		Name:    "child",
		Cols:    []ColumnDef{intCol("parent_id")},
		Foreign: []ForeignDef{{Col: "parent_id", RefTable: "parent", RefCol: "id"}},
	}))

	require.NoError(t, c.DropForeign("child", "parent_id"))
	_, tp, err := c.GetTable("child")
	require.NoError(t, err)
	_, ci, err := c.GetColumn("child", tp, "parent_id")
	require.NoError(t, err)
	require.False(t, ci.HasForeign())

	require.NoError(t, c.DropTable("child"))
	require.NoError(t, c.DropTable("parent"))
}

func TestShowTableRendersColumns(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.CreateTable(TableSpec{
		Name:    "t",
		Cols:    []ColumnDef{intCol("id"), varcharCol("name", 40)},
		Primary: []string{"id"},
	}))
	out, err := c.ShowTable("t")
	require.NoError(t, err)
	require.Contains(t, out, "table `t`")
	require.Contains(t, out, "`id`")
	require.Contains(t, out, "`name`")
}
