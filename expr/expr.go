// Package expr implements the three-valued scalar expression language
// evaluated over a single record: column references, literals, boolean
// logic, comparison, arithmetic, IS [NOT] NULL and LIKE.
package expr

import "github.com/nullbound/reldb/value"

// CmpOp is a comparison operator.
type CmpOp uint8

const (
	Lt CmpOp = iota
	Le
	Ge
	Gt
	Eq
	Ne
)

func (op CmpOp) String() string {
	switch op {
	case Lt:
		return "<"
	case Le:
		return "<="
	case Ge:
		return ">="
	case Gt:
		return ">"
	case Eq:
		return "="
	case Ne:
		return "<>"
	default:
		return "?"
	}
}

// BinOp is an arithmetic operator, valid only between two numbers.
type BinOp uint8

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
)

func (op BinOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	default:
		return "?"
	}
}

// ColRef names a column, optionally table-qualified (for joins).
type ColRef struct {
	Table string // "" means unqualified
	Col   string
}

// Atom is either a literal or a column reference.
type Atom struct {
	IsLit bool
	Lit   value.Lit
	Col   ColRef
}

func LitAtom(l value.Lit) Atom  { return Atom{IsLit: true, Lit: l} }
func ColAtom(c ColRef) Atom     { return Atom{IsLit: false, Col: c} }

// Expr is the arithmetic/boolean expression tree used by UPDATE's SET list
// and (via Cond, below) SELECT/DELETE/UPDATE's WHERE list.
type Expr interface{ isExpr() }

type AtomExpr struct{ Atom Atom }
type NullCheck struct {
	X    Expr
	Null bool // true for IS NULL, false for IS NOT NULL
}
type LikeExpr struct {
	X       Expr
	Pattern string
}
type NegExpr struct{ X Expr }
type AndExpr struct{ L, R Expr }
type OrExpr struct{ L, R Expr }
type CmpExpr struct {
	Op   CmpOp
	L, R Expr
}
type BinExpr struct {
	Op   BinOp
	L, R Expr
}

func (AtomExpr) isExpr()  {}
func (NullCheck) isExpr() {}
func (LikeExpr) isExpr()  {}
func (NegExpr) isExpr()   {}
func (AndExpr) isExpr()   {}
func (OrExpr) isExpr()    {}
func (CmpExpr) isExpr()   {}
func (BinExpr) isExpr()   {}

// Cond is the restricted expression shape allowed in a WHERE list: a
// conjunction of simple per-column predicates, each eligible for an index
// scan. It is a proper subset of Expr, kept as its own type because the
// query planner inspects Cond.LhsCol to decide whether an index applies.
type Cond struct {
	Kind CondKind
	Col  ColRef
	Op   CmpOp     // valid when Kind == CondCmp
	Rhs  Atom      // valid when Kind == CondCmp
	Null bool      // valid when Kind == CondNull
	Like string    // valid when Kind == CondLike
}

type CondKind uint8

const (
	CondCmp CondKind = iota
	CondNull
	CondLike
)

func (c Cond) LhsCol() ColRef { return c.Col }

// RhsCol reports the right-hand column reference of a column-to-column
// comparison, if any.
func (c Cond) RhsCol() (ColRef, bool) {
	if c.Kind == CondCmp && !c.Rhs.IsLit {
		return c.Rhs.Col, true
	}
	return ColRef{}, false
}
