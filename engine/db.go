// Package engine is the process's single coordinating entry point: it
// receives an already-parsed stmt.Stmt (lexing/parsing is out of scope)
// and dispatches it to the right catalog/query operation. DB owns the
// one paged store and one LOB store this process has open; there is no
// package-level global and no multi-database registry — opening a second
// database means constructing a second *DB.
package engine

import (
	"fmt"

	"github.com/nullbound/reldb/catalog"
	"github.com/nullbound/reldb/lob"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/query"
	"github.com/nullbound/reldb/stmt"
	"github.com/nullbound/reldb/store"
)

// Options configures Open. There is no file discovery or config-file
// parsing (out of scope); New selects between initializing brand-new
// store/LOB files and mapping existing ones.
type Options struct {
	DataPath string
	LobPath  string
	New      bool
}

// DB is the process's handle onto one open database: the paged store,
// the LOB store its varchar columns spill into, and the catalog built
// on top of both.
type DB struct {
	s   *store.Store
	lob *lob.Store
	cat *catalog.Catalog
}

// Open creates or maps the database named by opts, depending on opts.New.
func Open(opts Options) (*DB, error) {
	var s *store.Store
	var l *lob.Store
	var err error
	if opts.New {
		s, err = store.Create(opts.DataPath)
		if err != nil {
			return nil, err
		}
		l, err = lob.Create(opts.LobPath)
	} else {
		s, err = store.Open(opts.DataPath)
		if err != nil {
			return nil, err
		}
		l, err = lob.Open(opts.LobPath)
	}
	if err != nil {
		if s != nil {
			_ = s.Close()
		}
		return nil, err
	}
	return &DB{s: s, lob: l, cat: catalog.Open(s, l)}, nil
}

// Close unmaps both files. Since there is no WAL or sync policy, this
// relies on the host's normal mmap write-back, same as store.Store.Close.
func (db *DB) Close() error {
	errS := db.s.Close()
	errL := db.lob.Close()
	if errS != nil {
		return errS
	}
	return errL
}

// Exec runs any data-definition or data-manipulation statement, returning
// the number of rows affected (always 0 for DDL) or a partial count
// wrapped with the error that ended the statement early.
func (db *DB) Exec(s stmt.Stmt) (int, error) {
	switch v := s.(type) {
	case stmt.Insert:
		ctx, err := query.NewCtx(db.cat, v.Table)
		if err != nil {
			return 0, err
		}
		return query.Insert(ctx, v.Cols, v.Rows)
	case stmt.Update:
		ctx, err := query.NewCtx(db.cat, v.Table)
		if err != nil {
			return 0, err
		}
		return query.Update(ctx, v.Assigns, v.Where)
	case stmt.Delete:
		ctx, err := query.NewCtx(db.cat, v.Table)
		if err != nil {
			return 0, err
		}
		return query.Delete(ctx, v.Where)
	case stmt.CreateTable:
		return 0, db.cat.CreateTable(v.Spec)
	case stmt.DropTable:
		return 0, db.cat.DropTable(v.Table)
	case stmt.RenameTable:
		return 0, db.cat.RenameTable(v.Old, v.New)
	case stmt.CreateIndex:
		return 0, db.cat.CreateIndex(v.Table, v.Col, v.Index)
	case stmt.DropIndex:
		return 0, db.cat.DropIndex(v.Table, v.Index)
	case stmt.AddColumn:
		return 0, db.cat.AddColumn(v.Table, v.Col)
	case stmt.DropColumn:
		return 0, db.cat.DropColumn(v.Table, v.Col)
	case stmt.AddPrimary:
		return 0, db.cat.AddPrimary(v.Table, v.Cols)
	case stmt.DropPrimary:
		return 0, db.cat.DropPrimary(v.Table, v.Cols)
	case stmt.AddForeign:
		return 0, db.cat.AddForeign(v.Table, v.Col, v.RefTable, v.RefCol)
	case stmt.DropForeign:
		return 0, db.cat.DropForeign(v.Table, v.Col)
	default:
		return 0, fmt.Errorf("engine: %T is not an Exec statement", s)
	}
}

// Query runs a SELECT, projecting or aggregating s.Items across the
// cartesian join of s.Tables restricted by s.Where.
func (db *DB) Query(s stmt.Select) (*stmt.QueryResult, error) {
	ctxs := make([]*query.Ctx, len(s.Tables))
	for i, t := range s.Tables {
		ctx, err := query.NewCtx(db.cat, t)
		if err != nil {
			return nil, err
		}
		ctxs[i] = ctx
	}
	res, err := query.Select(ctxs, s.Where, s.Items)
	if err != nil {
		return nil, err
	}
	cols := make([]stmt.ColumnType, len(s.Items))
	for i, it := range s.Items {
		cols[i] = stmt.ColumnType{Name: res.Cols[i], Ty: itemType(ctxs, it)}
	}
	return &stmt.QueryResult{Cols: cols, Rows: res.Rows}, nil
}

// itemType resolves a plain (non-aggregate) SELECT item back to its
// source column's declared type; an aggregate item has no single source
// column, so it reports the zero ColTy.
func itemType(ctxs []*query.Ctx, it query.SelectItem) pagefmt.ColTy {
	if it.Agg != query.NoAgg {
		return pagefmt.ColTy{}
	}
	for _, ctx := range ctxs {
		if it.Col.Table != "" && it.Col.Table != ctx.TableName {
			continue
		}
		_, ci, err := ctx.Cat.GetColumn(ctx.TableName, ctx.Tp, it.Col.Col)
		if err == nil {
			return ci.Ty()
		}
	}
	return pagefmt.ColTy{}
}

// Describe runs an introspection statement (SHOW TABLES / DESC table /
// SHOW DATABASE), returning a rendered text summary rather than a row
// set — these report on schema shape, not table data.
func (db *DB) Describe(s stmt.Stmt) (string, error) {
	switch v := s.(type) {
	case stmt.ShowTables:
		return db.cat.ShowTables(), nil
	case stmt.DescTable:
		return db.cat.ShowTable(v.Table)
	case stmt.ShowDatabase:
		schema := db.s.Schema()
		return fmt.Sprintf("database: page count = %d, table count = %d\n", db.s.PageCount(), schema.TableNum()), nil
	default:
		return "", fmt.Errorf("engine: %T is not a Describe statement", s)
	}
}
