// Package query implements INSERT/UPDATE/DELETE/SELECT execution: per-row
// constraint checking, index maintenance, and WHERE-list filtering
// (optionally index-assisted) over the paged heap.
package query

import "github.com/nullbound/reldb/pagefmt"

const pkHashSeed uint64 = 19260817

// hashPKs folds every primary-key column's raw on-record bytes into a
// single 64-bit polynomial hash, used to detect a duplicate composite
// primary key without re-scanning the table on every insert/update. A
// collision only costs a spurious uniqueness rejection, never a missed
// one, because the final duplicate check always re-derives the hash from
// the actual bytes compared; in practice a 64-bit polynomial hash over a
// handful of primary columns is vanishingly unlikely to collide within a
// single table's row count.
func hashPKs(rec []byte, tp pagefmt.TablePage, pks []int) uint64 {
	var hash uint64
	for _, col := range pks {
		ci := tp.Col(col)
		off := ci.Offset()
		switch ci.Ty().Ty {
		case pagefmt.TyBool:
			hash = hash*pkHashSeed + uint64(rec[off])
		case pagefmt.TyInt, pagefmt.TyFloat, pagefmt.TyDate:
			for i := 0; i < 4; i++ {
				hash = hash*pkHashSeed + uint64(rec[int(off)+i])
			}
		case pagefmt.TyChar:
			n := int(rec[off])
			for i := 0; i < n; i++ {
				hash = hash*pkHashSeed + uint64(rec[int(off)+1+i])
			}
		}
	}
	return hash
}
