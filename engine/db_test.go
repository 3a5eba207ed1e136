package engine

import (
	"path/filepath"
	"testing"

	"github.com/nullbound/reldb/catalog"
	"github.com/nullbound/reldb/expr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/query"
	"github.com/nullbound/reldb/stmt"
	"github.com/nullbound/reldb/value"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(Options{
		DataPath: filepath.Join(dir, "t.db"),
		LobPath:  filepath.Join(dir, "t.lob"),
		New:      true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func intCol(name string) catalog.ColumnDef {
	return catalog.ColumnDef{Name: name, Ty: pagefmt.ColTy{Ty: pagefmt.TyInt}}
}

func varcharCol(name string, size uint8) catalog.ColumnDef {
	return catalog.ColumnDef{Name: name, Ty: pagefmt.ColTy{Ty: pagefmt.TyVarChar, Size: size}}
}

func TestExecCreateTableThenInsertThenQuerySelect(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(stmt.CreateTable{Spec: catalog.TableSpec{
		Name:    "users",
		Cols:    []catalog.ColumnDef{intCol("id"), varcharCol("name", 40)},
		Primary: []string{"id"},
	}})
	require.NoError(t, err)

	n, err := db.Exec(stmt.Insert{
		Table: "users",
		Rows: [][]value.Lit{
			{value.OfNumber(1), value.OfStr("alice")},
			{value.OfNumber(2), value.OfStr("bob")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	res, err := db.Query(stmt.Select{
		Tables: []string{"users"},
		Items:  []query.SelectItem{{Col: expr.ColRef{Col: "name"}}},
		Where: []expr.Cond{{
			Kind: expr.CondCmp, Col: expr.ColRef{Col: "id"}, Op: expr.Eq,
			Rhs: expr.LitAtom(value.OfNumber(2)),
		}},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "bob", res.Rows[0][0].Str)
	require.Equal(t, "name", res.Cols[0].Name)
	require.Equal(t, pagefmt.TyVarChar, res.Cols[0].Ty.Ty)
}

func TestQueryAggregateItemHasZeroColumnType(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(stmt.CreateTable{Spec: catalog.TableSpec{
		Name: "users",
		Cols: []catalog.ColumnDef{intCol("id")},
	}})
	require.NoError(t, err)
	_, err = db.Exec(stmt.Insert{Table: "users", Rows: [][]value.Lit{{value.OfNumber(1)}}})
	require.NoError(t, err)

	res, err := db.Query(stmt.Select{
		Tables: []string{"users"},
		Items:  []query.SelectItem{{Agg: query.CountStar}},
	})
	require.NoError(t, err)
	require.Equal(t, float64(1), res.Rows[0][0].Number)
	require.Equal(t, pagefmt.TyInt, res.Cols[0].Ty.Ty) // zero ColTy defaults to TyInt
}

func TestExecUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(stmt.CreateTable{Spec: catalog.TableSpec{
		Name:    "users",
		Cols:    []catalog.ColumnDef{intCol("id"), intCol("age")},
		Primary: []string{"id"},
	}})
	require.NoError(t, err)
	_, err = db.Exec(stmt.Insert{Table: "users", Rows: [][]value.Lit{
		{value.OfNumber(1), value.OfNumber(30)},
		{value.OfNumber(2), value.OfNumber(25)},
	}})
	require.NoError(t, err)

	where := []expr.Cond{{Kind: expr.CondCmp, Col: expr.ColRef{Col: "id"}, Op: expr.Eq, Rhs: expr.LitAtom(value.OfNumber(1))}}
	n, err := db.Exec(stmt.Update{
		Table:   "users",
		Assigns: []query.Assign{{Col: "age", Expr: expr.AtomExpr{Atom: expr.LitAtom(value.OfNumber(31))}}},
		Where:   where,
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = db.Exec(stmt.Delete{Table: "users", Where: where})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	res, err := db.Query(stmt.Select{Tables: []string{"users"}, Items: []query.SelectItem{{Agg: query.CountStar}}})
	require.NoError(t, err)
	require.Equal(t, float64(1), res.Rows[0][0].Number)
}

func TestExecAlterSurfaceAddAndDropColumn(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(stmt.CreateTable{Spec: catalog.TableSpec{
		Name: "t",
		Cols: []catalog.ColumnDef{intCol("a")},
	}})
	require.NoError(t, err)
	_, err = db.Exec(stmt.Insert{Table: "t", Rows: [][]value.Lit{{value.OfNumber(1)}}})
	require.NoError(t, err)

	def := value.OfNumber(0)
	_, err = db.Exec(stmt.AddColumn{Table: "t", Col: catalog.ColumnDef{Name: "b", Ty: pagefmt.ColTy{Ty: pagefmt.TyInt}, Default: &def}})
	require.NoError(t, err)

	_, err = db.Exec(stmt.DropColumn{Table: "t", Col: "a"})
	require.NoError(t, err)

	desc, err := db.Describe(stmt.DescTable{Table: "t"})
	require.NoError(t, err)
	require.Contains(t, desc, "`b`")
}

func TestExecRejectsUnknownStatementKind(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(stmt.ShowTables{})
	require.Error(t, err)
}

func TestDescribeShowTablesAndShowDatabase(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(stmt.CreateTable{Spec: catalog.TableSpec{Name: "t", Cols: []catalog.ColumnDef{intCol("a")}}})
	require.NoError(t, err)

	out, err := db.Describe(stmt.ShowTables{})
	require.NoError(t, err)
	require.Contains(t, out, "table `t`")

	out, err = db.Describe(stmt.ShowDatabase{})
	require.NoError(t, err)
	require.Contains(t, out, "table count = 1")
}

func TestOpenExistingDatabaseReopensSchema(t *testing.T) {
	dir := t.TempDir()
	opts := Options{DataPath: filepath.Join(dir, "t.db"), LobPath: filepath.Join(dir, "t.lob")}
	db, err := Open(Options{DataPath: opts.DataPath, LobPath: opts.LobPath, New: true})
	require.NoError(t, err)
	_, err = db.Exec(stmt.CreateTable{Spec: catalog.TableSpec{Name: "t", Cols: []catalog.ColumnDef{intCol("a")}}})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })
	out, err := db2.Describe(stmt.DescTable{Table: "t"})
	require.NoError(t, err)
	require.Contains(t, out, "table `t`")
}
