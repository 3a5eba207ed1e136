package expr

import (
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/value"
)

// EvalCond evaluates a single WHERE-list predicate against the current
// row. Unlike Eval (used for UPDATE's SET list, where a null operand
// propagates to a null result), a predicate's null handling is two-valued:
// a null left-hand column makes every comparison false except <> , which
// is true on null — a row simply never matches a comparison against an
// absent value, while "is distinct from" trivially does.
func EvalCond(c Cond, env Env, cache *Cache) (bool, error) {
	ci, err := env.Resolve(c.Col)
	if err != nil {
		return false, err
	}
	lhs := env.Value(ci)

	switch c.Kind {
	case CondNull:
		return lhs.IsNull() == c.Null, nil
	case CondLike:
		if lhs.IsNull() {
			return false, nil
		}
		re := cache.Get(c.Like)
		return re != nil && re.MatchString(lhs.Str), nil
	case CondCmp:
		if lhs.IsNull() {
			return c.Op == Ne, nil
		}
		var rhs value.Lit
		if c.Rhs.IsLit {
			rhs = c.Rhs.Lit
		} else {
			rci, err := env.Resolve(c.Rhs.Col)
			if err != nil {
				return false, err
			}
			rhs = env.Value(rci)
			if rhs.IsNull() {
				return c.Op == Ne, nil
			}
		}
		return cmpLit(c.Op, lhs, rhs), nil
	default:
		return false, nil
	}
}

// EvalWhere ANDs every predicate in a WHERE list, short-circuiting on the
// first one that fails to match or errors.
func EvalWhere(conds []Cond, env Env, cache *Cache) (bool, error) {
	for _, c := range conds {
		ok, err := EvalCond(c, env, cache)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// CheckWhere type-checks every predicate in a WHERE list and compiles its
// LIKE patterns into cache.
func CheckWhere(conds []Cond, env Env, cache *Cache) error {
	for _, c := range conds {
		ci, err := env.Resolve(c.Col)
		if err != nil {
			return err
		}
		lk := kindOf(ci.Ty().Ty)
		switch c.Kind {
		case CondLike:
			if lk != value.KindStr {
				return dberr.InvalidLikeTy("", "")
			}
			if err := cache.Compile(c.Like); err != nil {
				return err
			}
		case CondCmp:
			if !c.Rhs.IsLit {
				rci, err := env.Resolve(c.Rhs.Col)
				if err != nil {
					return err
				}
				if kindOf(rci.Ty().Ty) != lk {
					return dberr.IncompatibleCmp()
				}
			} else if c.Rhs.Lit.Kind != value.KindNull && c.Rhs.Lit.Kind != lk {
				return dberr.IncompatibleCmp()
			}
		}
	}
	return nil
}
