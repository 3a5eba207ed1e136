package query

import (
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/expr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/value"
)

// AggKind is the aggregate function applied to a SELECT item, or NoAgg for
// a plain projected column.
type AggKind uint8

const (
	NoAgg AggKind = iota
	CountStar
	CountCol
	Sum
	Avg
	Min
	Max
)

// SelectItem is one entry of a SELECT's column list.
type SelectItem struct {
	Col expr.ColRef // ignored when Agg == CountStar
	Agg AggKind
}

// Result is a select's output: either one row per matching (joined) record,
// or — when every item aggregates — a single summary row.
type Result struct {
	Cols []string
	Rows [][]value.Lit
}

// Select runs a query across one or more tables (a cartesian join
// restricted by where), projecting items. Joining more than one table
// uses a plain nested loop over every table's full row set rather than
// the sort-merge equi-join localization a cost-based planner would use;
// see the grounding notes for why that optimization is out of scope here.
func Select(tables []*Ctx, where []expr.Cond, items []SelectItem) (*Result, error) {
	if len(items) == 0 {
		return nil, dberr.MixedSelect()
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	cache := expr.NewCache()
	rows, err := joinRows(tables, where, cache)
	if err != nil {
		return nil, err
	}
	if items[0].Agg != NoAgg {
		return aggregate(tables, items, rows)
	}
	return project(tables, items, rows)
}

// validateItems rejects a SELECT list that mixes aggregated and plain
// columns, since their output shapes (one row per match vs. one summary
// row) are incompatible.
func validateItems(items []SelectItem) error {
	agg := items[0].Agg != NoAgg
	for _, it := range items[1:] {
		if (it.Agg != NoAgg) != agg {
			return dberr.MixedSelect()
		}
	}
	return nil
}

// row is one candidate combination: one decoded record per joined table,
// aligned with the tables slice passed to Select.
type row struct {
	recs []rec
}

type rec struct {
	data []byte
	rid  pagefmt.RID
}

func joinRows(tables []*Ctx, where []expr.Cond, cache *expr.Cache) ([]row, error) {
	env := newMultiEnv(tables)
	if err := expr.CheckWhere(where, env, cache); err != nil {
		return nil, err
	}

	// A single-table query is the common case: run it straight through
	// Scan so a leading indexable WHERE clause gets the index-assisted
	// range walk instead of a full table scan.
	if len(tables) == 1 {
		var out []row
		err := Scan(tables[0], where, func(data []byte, rid pagefmt.RID) bool {
			out = append(out, row{recs: []rec{{data, rid}}})
			return true
		})
		return out, err
	}

	// A join of two or more tables falls back to a plain nested loop over
	// every table's full row set, applying the complete WHERE list to
	// each combination — correct, but without the intra-table index
	// pushdown or sort-merge equi-join localization a cost-based planner
	// would apply to each stage.
	combos := []row{{recs: make([]rec, 0, len(tables))}}
	for _, t := range tables {
		var next []row
		if err := Scan(t, nil, func(data []byte, rid pagefmt.RID) bool {
			for _, c := range combos {
				next = append(next, row{recs: append(append([]rec(nil), c.recs...), rec{data, rid})})
			}
			return true
		}); err != nil {
			return nil, err
		}
		combos = next
	}

	var out []row
	for _, c := range combos {
		env := newMultiEnvWithRows(tables, c.recs)
		ok, err := expr.EvalWhere(where, env, cache)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func project(tables []*Ctx, items []SelectItem, rows []row) (*Result, error) {
	res := &Result{Cols: make([]string, len(items))}
	for i, it := range items {
		res.Cols[i] = it.Col.Col
	}
	for _, r := range rows {
		env := newMultiEnvWithRows(tables, r.recs)
		out := make([]value.Lit, len(items))
		for i, it := range items {
			ci, err := env.Resolve(it.Col)
			if err != nil {
				return nil, err
			}
			out[i] = env.Value(ci)
		}
		res.Rows = append(res.Rows, out)
	}
	return res, nil
}

func aggregate(tables []*Ctx, items []SelectItem, rows []row) (*Result, error) {
	res := &Result{Cols: make([]string, len(items)), Rows: [][]value.Lit{make([]value.Lit, len(items))}}
	for i, it := range items {
		res.Cols[i] = it.Col.Col
		v, err := aggOne(tables, it, rows)
		if err != nil {
			return nil, err
		}
		res.Rows[0][i] = v
	}
	return res, nil
}

func aggOne(tables []*Ctx, it SelectItem, rows []row) (value.Lit, error) {
	if it.Agg == CountStar {
		return value.OfNumber(float64(len(rows))), nil
	}

	var vals []value.Lit
	for _, r := range rows {
		env := newMultiEnvWithRows(tables, r.recs)
		ci, err := env.Resolve(it.Col)
		if err != nil {
			return value.Lit{}, err
		}
		v := env.Value(ci)
		if !v.IsNull() {
			vals = append(vals, v)
		}
	}

	switch it.Agg {
	case CountCol:
		return value.OfNumber(float64(len(vals))), nil
	case Sum, Avg:
		if len(vals) == 0 {
			return value.Null(), nil
		}
		var sum float64
		for _, v := range vals {
			sum += v.Number
		}
		if it.Agg == Avg {
			sum /= float64(len(vals))
		}
		return value.OfNumber(sum), nil
	case Min, Max:
		if len(vals) == 0 {
			return value.Null(), nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c := cmpLitOrdered(v, best)
			if (it.Agg == Min && c < 0) || (it.Agg == Max && c > 0) {
				best = v
			}
		}
		return best, nil
	}
	return value.Lit{}, nil
}

// cmpLitOrdered orders two same-kind, non-null literals for min/max.
func cmpLitOrdered(a, b value.Lit) int {
	switch a.Kind {
	case value.KindNumber, value.KindDate:
		an, bn := a.Number, b.Number
		if a.Kind == value.KindDate {
			an, bn = float64(a.Date), float64(b.Date)
		}
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case value.KindStr:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}
