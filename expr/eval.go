package expr

import (
	"math"

	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/value"
)

// Env resolves column references against one (or, for a join, several)
// open tables and decodes a column's value out of a raw record. The query
// package supplies the concrete implementation so this package never needs
// to import the storage layer.
type Env interface {
	// Resolve finds the column named by ref, defaulting to the statement's
	// own table when ref.Table is empty; table mismatches are reported.
	Resolve(ref ColRef) (pagefmt.ColInfo, error)
	// Value reads a column's current value for the row under evaluation.
	Value(ci pagefmt.ColInfo) value.Lit
}

func kindOf(ty pagefmt.BareTy) value.Kind {
	switch ty {
	case pagefmt.TyBool:
		return value.KindBool
	case pagefmt.TyInt, pagefmt.TyFloat:
		return value.KindNumber
	case pagefmt.TyDate:
		return value.KindDate
	default: // Char, VarChar
		return value.KindStr
	}
}

// Check type-checks e against env's table, and compiles every LIKE
// pattern it contains into cache. It reports the expression's resulting
// kind (KindBool for every boolean-producing node).
func Check(e Expr, env Env, cache *Cache) (value.Kind, error) {
	switch x := e.(type) {
	case AtomExpr:
		if x.Atom.IsLit {
			return x.Atom.Lit.Kind, nil
		}
		ci, err := env.Resolve(x.Atom.Col)
		if err != nil {
			return 0, err
		}
		return kindOf(ci.Ty().Ty), nil
	case NullCheck:
		if _, err := Check(x.X, env, cache); err != nil {
			return 0, err
		}
		return value.KindBool, nil
	case LikeExpr:
		k, err := Check(x.X, env, cache)
		if err != nil {
			return 0, err
		}
		if k != value.KindStr {
			return 0, dberr.InvalidLikeTy("", "")
		}
		if err := cache.Compile(x.Pattern); err != nil {
			return 0, err
		}
		return value.KindBool, nil
	case NegExpr:
		k, err := Check(x.X, env, cache)
		if err != nil {
			return 0, err
		}
		if k != value.KindNumber {
			return 0, dberr.IncompatibleBin()
		}
		return value.KindNumber, nil
	case AndExpr:
		return checkBoolBoth(x.L, x.R, env, cache)
	case OrExpr:
		return checkBoolBoth(x.L, x.R, env, cache)
	case CmpExpr:
		l, err := Check(x.L, env, cache)
		if err != nil {
			return 0, err
		}
		r, err := Check(x.R, env, cache)
		if err != nil {
			return 0, err
		}
		if l != r {
			return 0, dberr.IncompatibleCmp()
		}
		return value.KindBool, nil
	case BinExpr:
		l, err := Check(x.L, env, cache)
		if err != nil {
			return 0, err
		}
		if l != value.KindNumber {
			return 0, dberr.IncompatibleBin()
		}
		r, err := Check(x.R, env, cache)
		if err != nil {
			return 0, err
		}
		if r != value.KindNumber {
			return 0, dberr.IncompatibleBin()
		}
		return value.KindNumber, nil
	default:
		return 0, dberr.IncompatibleLogic()
	}
}

func checkBoolBoth(l, r Expr, env Env, cache *Cache) (value.Kind, error) {
	lk, err := Check(l, env, cache)
	if err != nil {
		return 0, err
	}
	if lk != value.KindBool {
		return 0, dberr.IncompatibleLogic()
	}
	rk, err := Check(r, env, cache)
	if err != nil {
		return 0, err
	}
	if rk != value.KindBool {
		return 0, dberr.IncompatibleLogic()
	}
	return value.KindBool, nil
}

// Eval evaluates e against the row env currently points at. Three-valued
// semantics throughout: a null operand makes the whole (sub)expression
// null, except under IS [NOT] NULL and under an AND/OR whose left operand
// already decides the result; a division by zero or a NaN arithmetic
// result is null rather than a number (NaN is never allowed to escape
// into a comparison or an index).
func Eval(e Expr, env Env, cache *Cache) value.Lit {
	switch x := e.(type) {
	case AtomExpr:
		if x.Atom.IsLit {
			return x.Atom.Lit
		}
		ci, err := env.Resolve(x.Atom.Col)
		if err != nil {
			return value.Null()
		}
		return env.Value(ci)
	case NullCheck:
		return value.OfBool(Eval(x.X, env, cache).IsNull() == x.Null)
	case LikeExpr:
		v := Eval(x.X, env, cache)
		if v.Kind != value.KindStr {
			return value.Null()
		}
		re := cache.Get(x.Pattern)
		if re == nil {
			return value.Null()
		}
		return value.OfBool(re.MatchString(v.Str))
	case NegExpr:
		v := Eval(x.X, env, cache)
		if v.Kind != value.KindNumber {
			return value.Null()
		}
		return value.OfNumber(-v.Number)
	case AndExpr:
		return evalAndOr(x.L, x.R, false, env, cache)
	case OrExpr:
		return evalAndOr(x.L, x.R, true, env, cache)
	case CmpExpr:
		l, r := Eval(x.L, env, cache), Eval(x.R, env, cache)
		if l.IsNull() || r.IsNull() {
			return value.Null()
		}
		return value.OfBool(cmpLit(x.Op, l, r))
	case BinExpr:
		l, r := Eval(x.L, env, cache), Eval(x.R, env, cache)
		if l.Kind != value.KindNumber || r.Kind != value.KindNumber {
			return value.Null()
		}
		var res float64
		switch x.Op {
		case Add:
			res = l.Number + r.Number
		case Sub:
			res = l.Number - r.Number
		case Mul:
			res = l.Number * r.Number
		case Div:
			if r.Number == 0 {
				return value.Null()
			}
			res = l.Number / r.Number
		case Mod:
			res = math.Mod(l.Number, r.Number)
		}
		if math.IsNaN(res) {
			return value.Null()
		}
		return value.OfNumber(res)
	default:
		return value.Null()
	}
}

func evalAndOr(l, r Expr, or bool, env Env, cache *Cache) value.Lit {
	lv := Eval(l, env, cache)
	if lv.Kind != value.KindBool {
		return value.Null()
	}
	if lv.Bool == or { // short circuit: true or _ / false and _
		return value.OfBool(lv.Bool)
	}
	rv := Eval(r, env, cache)
	if rv.Kind != value.KindBool {
		return value.Null()
	}
	return value.OfBool(rv.Bool)
}

// cmpLit compares two non-null literals of the same kind (guaranteed by
// Check). Numbers compare as float64; dates as their day count; strings
// lexically; booleans false < true.
func cmpLit(op CmpOp, l, r value.Lit) bool {
	var cmp int
	switch l.Kind {
	case value.KindBool:
		cmp = boolCmp(l.Bool, r.Bool)
	case value.KindNumber:
		cmp = numCmp(l.Number, r.Number)
	case value.KindDate:
		cmp = numCmp(float64(l.Date), float64(r.Date))
	case value.KindStr:
		cmp = strCmp(l.Str, r.Str)
	}
	switch op {
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Ge:
		return cmp >= 0
	case Gt:
		return cmp > 0
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	default:
		return false
	}
}

func boolCmp(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func numCmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func strCmp(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
