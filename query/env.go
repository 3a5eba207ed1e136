package query

import (
	"fmt"

	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/expr"
	"github.com/nullbound/reldb/lob"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/value"
)

// rowEnv resolves column references against a single decoded row of a
// known table, satisfying expr.Env for WHERE/SET evaluation.
type rowEnv struct {
	table string
	tp    pagefmt.TablePage
	rec   []byte
	lob   *lob.Store
}

func newRowEnv(table string, tp pagefmt.TablePage, rec []byte, l *lob.Store) *rowEnv {
	return &rowEnv{table: table, tp: tp, rec: rec, lob: l}
}

func (e *rowEnv) Resolve(ref expr.ColRef) (pagefmt.ColInfo, error) {
	if ref.Table != "" && ref.Table != e.table {
		return pagefmt.ColInfo{}, dberr.NoSuchTable(ref.Table)
	}
	n := int(e.tp.ColNum())
	for i := 0; i < n; i++ {
		ci := e.tp.Col(i)
		if ci.Name() == ref.Col {
			return ci, nil
		}
	}
	return pagefmt.ColInfo{}, dberr.NoSuchCol(e.table, ref.Col)
}

func (e *rowEnv) Value(ci pagefmt.ColInfo) value.Lit {
	idx := colIndex(e.tp, ci)
	if idx < 0 || pagefmt.IsNull(e.rec, idx) {
		return value.Null()
	}
	if ci.Ty().Ty == pagefmt.TyVarChar {
		lobID, length, capSlots := pagefmt.GetVarcharSlot(e.rec[ci.Offset():])
		return value.OfStr(string(e.lob.Read(lobID, length, capSlots)))
	}
	return value.DecodeFixed(e.rec[ci.Offset():], ci.Ty())
}

// colIndex finds ci's column position within tp by matching its record
// offset, since ColInfo carries no index of its own.
func colIndex(tp pagefmt.TablePage, ci pagefmt.ColInfo) int {
	n := int(tp.ColNum())
	for i := 0; i < n; i++ {
		if tp.Col(i).Offset() == ci.Offset() {
			return i
		}
	}
	return -1
}

// multiEnv joins several single-table rowEnvs for cross-table predicate
// and projection evaluation. Resolve disambiguates by table qualifier
// when given, or by searching every table and rejecting a name that
// exists in more than one (an unqualified join column must be unique).
type multiEnv struct {
	envs  []*rowEnv
	owner map[string]*rowEnv // ptr-identity key of a resolved ColInfo's backing bytes
}

func newMultiEnv(tables []*Ctx) *multiEnv {
	envs := make([]*rowEnv, len(tables))
	for i, t := range tables {
		envs[i] = newRowEnv(t.TableName, t.Tp, nil, t.Cat.Lob)
	}
	return &multiEnv{envs: envs, owner: map[string]*rowEnv{}}
}

func newMultiEnvWithRows(tables []*Ctx, recs []rec) *multiEnv {
	envs := make([]*rowEnv, len(tables))
	for i, t := range tables {
		var data []byte
		if i < len(recs) {
			data = recs[i].data
		}
		envs[i] = newRowEnv(t.TableName, t.Tp, data, t.Cat.Lob)
	}
	return &multiEnv{envs: envs, owner: map[string]*rowEnv{}}
}

func (m *multiEnv) Resolve(ref expr.ColRef) (pagefmt.ColInfo, error) {
	if ref.Table != "" {
		for _, e := range m.envs {
			if e.table == ref.Table {
				ci, err := e.Resolve(ref)
				if err != nil {
					return ci, err
				}
				m.owner[ciKey(ci)] = e
				return ci, nil
			}
		}
		return pagefmt.ColInfo{}, dberr.NoSuchTable(ref.Table)
	}
	var found pagefmt.ColInfo
	var owner *rowEnv
	for _, e := range m.envs {
		ci, err := e.Resolve(ref)
		if err != nil {
			continue
		}
		if owner != nil {
			return pagefmt.ColInfo{}, dberr.AmbiguousCol(ref.Col)
		}
		found, owner = ci, e
	}
	if owner == nil {
		return pagefmt.ColInfo{}, dberr.NoSuchCol("", ref.Col)
	}
	m.owner[ciKey(found)] = owner
	return found, nil
}

func (m *multiEnv) Value(ci pagefmt.ColInfo) value.Lit {
	if e, ok := m.owner[ciKey(ci)]; ok {
		return e.Value(ci)
	}
	return value.Null()
}

func ciKey(ci pagefmt.ColInfo) string {
	b := ci.Raw()
	if len(b) == 0 {
		return ""
	}
	return fmt.Sprintf("%p", &b[0])
}
