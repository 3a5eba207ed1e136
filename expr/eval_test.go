package expr

import (
	"testing"

	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/value"
)

// fakeEnv resolves column names against a fixed in-memory row, with no
// backing store — enough to exercise Check/Eval/EvalCond in isolation.
type fakeEnv struct {
	cols map[string]pagefmt.ColTy
	vals map[string]value.Lit
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{cols: map[string]pagefmt.ColTy{}, vals: map[string]value.Lit{}}
}

func (e *fakeEnv) set(name string, ty pagefmt.BareTy, v value.Lit) {
	e.cols[name] = pagefmt.ColTy{Ty: ty}
	e.vals[name] = v
}

func (e *fakeEnv) Resolve(ref ColRef) (pagefmt.ColInfo, error) {
	ty, ok := e.cols[ref.Col]
	if !ok {
		panic("no such column: " + ref.Col)
	}
	b := make([]byte, pagefmt.ColInfoSize)
	ci := pagefmt.NewColInfo(b)
	ci.SetTy(ty)
	ci.SetName(ref.Col)
	return ci, nil
}

func (e *fakeEnv) Value(ci pagefmt.ColInfo) value.Lit { return e.vals[ci.Name()] }

func TestEvalArithmeticAndComparison(t *testing.T) {
	env := newFakeEnv()
	env.set("a", pagefmt.TyInt, value.OfNumber(3))
	env.set("b", pagefmt.TyInt, value.OfNumber(4))
	cache := NewCache()

	sum := BinExpr{Op: Add, L: AtomExpr{ColAtom(ColRef{Col: "a"})}, R: AtomExpr{ColAtom(ColRef{Col: "b"})}}
	if _, err := Check(sum, env, cache); err != nil {
		t.Fatal(err)
	}
	got := Eval(sum, env, cache)
	if got.Number != 7 {
		t.Errorf("3+4 = %v, want 7", got.Number)
	}

	cmp := CmpExpr{Op: Gt, L: sum, R: AtomExpr{LitAtom(value.OfNumber(5))}}
	res := Eval(cmp, env, cache)
	if !res.Bool {
		t.Errorf("7 > 5 should be true")
	}
}

func TestEvalNullPropagatesThroughArithmeticAndLogic(t *testing.T) {
	env := newFakeEnv()
	env.set("a", pagefmt.TyInt, value.Null())
	cache := NewCache()

	sum := BinExpr{Op: Add, L: AtomExpr{ColAtom(ColRef{Col: "a"})}, R: AtomExpr{LitAtom(value.OfNumber(1))}}
	if got := Eval(sum, env, cache); !got.IsNull() {
		t.Errorf("null + 1 should be null, got %v", got)
	}

	and := AndExpr{L: AtomExpr{LitAtom(value.OfBool(true))}, R: AtomExpr{ColAtom(ColRef{Col: "a"})}}
	if got := Eval(and, env, cache); !got.IsNull() {
		t.Errorf("true and null should be null, got %v", got)
	}
}

func TestEvalDivByZeroIsNullNotNaN(t *testing.T) {
	env := newFakeEnv()
	cache := NewCache()
	div := BinExpr{Op: Div, L: AtomExpr{LitAtom(value.OfNumber(0))}, R: AtomExpr{LitAtom(value.OfNumber(0))}}
	got := Eval(div, env, cache)
	if !got.IsNull() {
		t.Errorf("0/0 should be null (NaN rejected), got %v", got)
	}
}

func TestEvalCondNullDefaultsFalseExceptNe(t *testing.T) {
	env := newFakeEnv()
	env.set("a", pagefmt.TyInt, value.Null())
	cache := NewCache()

	for _, op := range []CmpOp{Lt, Le, Ge, Gt, Eq} {
		c := Cond{Kind: CondCmp, Col: ColRef{Col: "a"}, Op: op, Rhs: LitAtom(value.OfNumber(1))}
		ok, err := EvalCond(c, env, cache)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Errorf("null %v 1 should be false, was true", op)
		}
	}
	c := Cond{Kind: CondCmp, Col: ColRef{Col: "a"}, Op: Ne, Rhs: LitAtom(value.OfNumber(1))}
	ok, err := EvalCond(c, env, cache)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Errorf("null <> 1 should be true")
	}
}

func TestEvalCondLike(t *testing.T) {
	env := newFakeEnv()
	env.set("name", pagefmt.TyVarChar, value.OfStr("hello world"))
	cache := NewCache()
	if err := cache.Compile("hello%"); err != nil {
		t.Fatal(err)
	}
	c := Cond{Kind: CondLike, Col: ColRef{Col: "name"}, Like: "hello%"}
	ok, err := EvalCond(c, env, cache)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Errorf("expected LIKE match")
	}
}
