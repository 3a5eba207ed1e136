package query

import (
	"path/filepath"
	"testing"

	"github.com/nullbound/reldb/catalog"
	"github.com/nullbound/reldb/expr"
	"github.com/nullbound/reldb/lob"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/store"
	"github.com/nullbound/reldb/value"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	s, err := store.Create(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	l, err := lob.Create(filepath.Join(t.TempDir(), "t.lob"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return catalog.Open(s, l)
}

func intCol(name string) catalog.ColumnDef {
	return catalog.ColumnDef{Name: name, Ty: pagefmt.ColTy{Ty: pagefmt.TyInt}}
}

func varcharCol(name string, size uint8) catalog.ColumnDef {
	return catalog.ColumnDef{Name: name, Ty: pagefmt.ColTy{Ty: pagefmt.TyVarChar, Size: size}}
}

func mustCtx(t *testing.T, c *catalog.Catalog, table string) *Ctx {
	t.Helper()
	ctx, err := NewCtx(c, table)
	require.NoError(t, err)
	return ctx
}

func setupUsers(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable(catalog.TableSpec{
		Name:    "users",
		Cols:    []catalog.ColumnDef{intCol("id"), varcharCol("name", 40), intCol("age")},
		Primary: []string{"id"},
	}))
	return c
}

func TestInsertThenSelectRoundTrip(t *testing.T) {
	c := setupUsers(t)
	ctx := mustCtx(t, c, "users")

	n, err := Insert(ctx, nil, [][]value.Lit{
		{value.OfNumber(1), value.OfStr("alice"), value.OfNumber(30)},
		{value.OfNumber(2), value.OfStr("bob"), value.OfNumber(25)},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ctx2 := mustCtx(t, c, "users")
	res, err := Select([]*Ctx{ctx2}, nil, []SelectItem{{Col: expr.ColRef{Col: "name"}}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	names := map[string]bool{}
	for _, row := range res.Rows {
		names[row[0].Str] = true
	}
	require.True(t, names["alice"])
	require.True(t, names["bob"])
}

func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	c := setupUsers(t)
	ctx := mustCtx(t, c, "users")
	_, err := Insert(ctx, nil, [][]value.Lit{{value.OfNumber(1), value.OfStr("alice"), value.OfNumber(30)}})
	require.NoError(t, err)
	_, err = Insert(ctx, nil, [][]value.Lit{{value.OfNumber(1), value.OfStr("alice2"), value.OfNumber(31)}})
	require.Error(t, err)
}

func TestInsertRejectsNullOnNotNull(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable(catalog.TableSpec{
		Name: "t",
		Cols: []catalog.ColumnDef{{Name: "a", Ty: pagefmt.ColTy{Ty: pagefmt.TyInt}, NotNull: true}},
	}))
	ctx := mustCtx(t, c, "t")
	_, err := Insert(ctx, nil, [][]value.Lit{{value.Null()}})
	require.Error(t, err)
}

func TestSelectWithWhereUsesIndexedEquality(t *testing.T) {
	c := setupUsers(t)
	ctx := mustCtx(t, c, "users")
	_, err := Insert(ctx, nil, [][]value.Lit{
		{value.OfNumber(1), value.OfStr("alice"), value.OfNumber(30)},
		{value.OfNumber(2), value.OfStr("bob"), value.OfNumber(25)},
		{value.OfNumber(3), value.OfStr("carol"), value.OfNumber(40)},
	})
	require.NoError(t, err)

	ctx2 := mustCtx(t, c, "users")
	where := []expr.Cond{{Kind: expr.CondCmp, Col: expr.ColRef{Col: "id"}, Op: expr.Eq, Rhs: expr.LitAtom(value.OfNumber(2))}}
	res, err := Select([]*Ctx{ctx2}, where, []SelectItem{{Col: expr.ColRef{Col: "name"}}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "bob", res.Rows[0][0].Str)
}

func TestUpdateMutatesMatchingRows(t *testing.T) {
	c := setupUsers(t)
	ctx := mustCtx(t, c, "users")
	_, err := Insert(ctx, nil, [][]value.Lit{
		{value.OfNumber(1), value.OfStr("alice"), value.OfNumber(30)},
		{value.OfNumber(2), value.OfStr("bob"), value.OfNumber(25)},
	})
	require.NoError(t, err)

	ctx2 := mustCtx(t, c, "users")
	where := []expr.Cond{{Kind: expr.CondCmp, Col: expr.ColRef{Col: "id"}, Op: expr.Eq, Rhs: expr.LitAtom(value.OfNumber(1))}}
	assigns := []Assign{{Col: "age", Expr: expr.AtomExpr{Atom: expr.LitAtom(value.OfNumber(31))}}}
	n, err := Update(ctx2, assigns, where)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ctx3 := mustCtx(t, c, "users")
	res, err := Select([]*Ctx{ctx3}, where, []SelectItem{{Col: expr.ColRef{Col: "age"}}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, float64(31), res.Rows[0][0].Number)
}

func TestUpdateRejectsTypeMismatchedAssignment(t *testing.T) {
	c := setupUsers(t)
	ctx := mustCtx(t, c, "users")
	_, err := Insert(ctx, nil, [][]value.Lit{
		{value.OfNumber(1), value.OfStr("alice"), value.OfNumber(30)},
	})
	require.NoError(t, err)

	ctx2 := mustCtx(t, c, "users")
	where := []expr.Cond{{Kind: expr.CondCmp, Col: expr.ColRef{Col: "id"}, Op: expr.Eq, Rhs: expr.LitAtom(value.OfNumber(1))}}
	assigns := []Assign{{Col: "age", Expr: expr.AtomExpr{Atom: expr.LitAtom(value.OfStr("not-a-number"))}}}
	_, err = Update(ctx2, assigns, where)
	require.Error(t, err)

	ctx3 := mustCtx(t, c, "users")
	res, err := Select([]*Ctx{ctx3}, where, []SelectItem{{Col: expr.ColRef{Col: "age"}}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, float64(30), res.Rows[0][0].Number, "rejected assignment must leave the old value in place")
}

func TestDeleteRemovesMatchingRows(t *testing.T) {
	c := setupUsers(t)
	ctx := mustCtx(t, c, "users")
	_, err := Insert(ctx, nil, [][]value.Lit{
		{value.OfNumber(1), value.OfStr("alice"), value.OfNumber(30)},
		{value.OfNumber(2), value.OfStr("bob"), value.OfNumber(25)},
	})
	require.NoError(t, err)

	ctx2 := mustCtx(t, c, "users")
	where := []expr.Cond{{Kind: expr.CondCmp, Col: expr.ColRef{Col: "id"}, Op: expr.Eq, Rhs: expr.LitAtom(value.OfNumber(1))}}
	n, err := Delete(ctx2, where)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ctx3 := mustCtx(t, c, "users")
	res, err := Select([]*Ctx{ctx3}, nil, []SelectItem{{Col: expr.ColRef{Col: "id"}}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, float64(2), res.Rows[0][0].Number)
}

func TestDeleteRejectsRowReferencedByForeignKey(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateTable(catalog.TableSpec{
		Name:    "p",
		Cols:    []catalog.ColumnDef{intCol("id")},
		Primary: []string{"id"},
	}))
	require.NoError(t, c.CreateTable(catalog.TableSpec{
		Name: "ch",
		Cols: []catalog.ColumnDef{intCol("fk")},
		Foreign: []catalog.ForeignDef{{Col: "fk", RefTable: "p", RefCol: "id"}},
	}))

	pCtx := mustCtx(t, c, "p")
	_, err := Insert(pCtx, nil, [][]value.Lit{{value.OfNumber(10)}})
	require.NoError(t, err)

	chCtx := mustCtx(t, c, "ch")
	_, err = Insert(chCtx, nil, [][]value.Lit{{value.OfNumber(10)}})
	require.NoError(t, err)

	pCtx2 := mustCtx(t, c, "p")
	_, err = Delete(pCtx2, []expr.Cond{{Kind: expr.CondCmp, Col: expr.ColRef{Col: "id"}, Op: expr.Eq, Rhs: expr.LitAtom(value.OfNumber(10))}})
	require.Error(t, err)
}

func TestSelectCountAggregate(t *testing.T) {
	c := setupUsers(t)
	ctx := mustCtx(t, c, "users")
	_, err := Insert(ctx, nil, [][]value.Lit{
		{value.OfNumber(1), value.OfStr("alice"), value.OfNumber(30)},
		{value.OfNumber(2), value.OfStr("bob"), value.OfNumber(25)},
	})
	require.NoError(t, err)

	ctx2 := mustCtx(t, c, "users")
	res, err := Select([]*Ctx{ctx2}, nil, []SelectItem{{Agg: CountStar}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, float64(2), res.Rows[0][0].Number)
}

func TestSelectRejectsMixedAggregateAndPlainColumns(t *testing.T) {
	c := setupUsers(t)
	ctx := mustCtx(t, c, "users")
	_, err := Select([]*Ctx{ctx}, nil, []SelectItem{
		{Col: expr.ColRef{Col: "name"}},
		{Agg: CountStar},
	})
	require.Error(t, err)
}
