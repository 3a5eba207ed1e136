// Package stmt defines the Go-typed statement AST the engine compiles
// against. Lexing and parsing a textual statement into these shapes is out
// of scope; a caller (the external parser, or a test) constructs one of
// these directly. Stmt is a closed interface — every concrete statement
// lives in this file, and nothing outside the package may implement it.
package stmt

import (
	"github.com/nullbound/reldb/catalog"
	"github.com/nullbound/reldb/expr"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/query"
	"github.com/nullbound/reldb/value"
)

// Stmt is any parsed statement the engine can execute. The unexported
// marker method closes the set to this package.
type Stmt interface{ isStmt() }

// Insert is `INSERT INTO table [(cols...)] VALUES rows...`. Cols nil means
// every column, in declaration order.
type Insert struct {
	Table string
	Cols  []string
	Rows  [][]value.Lit
}

// Update is `UPDATE table SET assigns... [WHERE where]`.
type Update struct {
	Table   string
	Assigns []query.Assign
	Where   []expr.Cond
}

// Delete is `DELETE FROM table [WHERE where]`.
type Delete struct {
	Table string
	Where []expr.Cond
}

// Select is `SELECT items... FROM tables... [WHERE where]`. More than one
// table is a cartesian join restricted by where.
type Select struct {
	Tables []string
	Items  []query.SelectItem
	Where  []expr.Cond
}

// CreateTable is `CREATE TABLE ...`; Spec is already the fully parsed body
// a real parser would hand the engine.
type CreateTable struct{ Spec catalog.TableSpec }

// DropTable is `DROP TABLE table`.
type DropTable struct{ Table string }

// RenameTable is `ALTER TABLE old RENAME new`.
type RenameTable struct{ Old, New string }

// CreateIndex is `CREATE INDEX index ON table(col)`.
type CreateIndex struct{ Table, Col, Index string }

// DropIndex is `DROP INDEX index ON table`. Table is mandatory, matching
// SPEC_FULL.md's resolved Open Question on this point.
type DropIndex struct{ Table, Index string }

// AddColumn is `ALTER TABLE table ADD COLUMN col`.
type AddColumn struct {
	Table string
	Col   catalog.ColumnDef
}

// DropColumn is `ALTER TABLE table DROP COLUMN col`.
type DropColumn struct{ Table, Col string }

// AddPrimary is `ALTER TABLE table ADD PRIMARY KEY (cols...)`.
type AddPrimary struct {
	Table string
	Cols  []string
}

// DropPrimary is `ALTER TABLE table DROP PRIMARY KEY (cols...)`.
type DropPrimary struct {
	Table string
	Cols  []string
}

// AddForeign is `ALTER TABLE table ADD FOREIGN KEY (col) REFERENCES refTable(refCol)`.
type AddForeign struct{ Table, Col, RefTable, RefCol string }

// DropForeign is `ALTER TABLE table DROP FOREIGN KEY (col)`.
type DropForeign struct{ Table, Col string }

// ShowTables is `SHOW TABLES`: one summary line per table in the open
// database.
type ShowTables struct{}

// DescTable is `DESC table` / `SHOW TABLE table`: one summary line for a
// single table's columns.
type DescTable struct{ Table string }

// ShowDatabase is `SHOW DATABASE`: a one-line summary of the currently
// open database file (page count, table count). The engine opens exactly
// one database at a time (§6A); there is no multi-database registry to
// enumerate, so this reports on the database the caller already opened
// rather than naming one.
type ShowDatabase struct{}

func (Insert) isStmt()       {}
func (Update) isStmt()       {}
func (Delete) isStmt()       {}
func (Select) isStmt()       {}
func (CreateTable) isStmt()  {}
func (DropTable) isStmt()    {}
func (RenameTable) isStmt()  {}
func (CreateIndex) isStmt()  {}
func (DropIndex) isStmt()    {}
func (AddColumn) isStmt()    {}
func (DropColumn) isStmt()   {}
func (AddPrimary) isStmt()   {}
func (DropPrimary) isStmt()  {}
func (AddForeign) isStmt()   {}
func (DropForeign) isStmt()  {}
func (ShowTables) isStmt()   {}
func (DescTable) isStmt()    {}
func (ShowDatabase) isStmt() {}

// ColumnType names a result column's display name and declared SQL type —
// the part of QueryResult a plain []string of column names can't carry.
// Ty is the zero ColTy (TyInt) for an aggregate item, since COUNT/SUM/...
// have no single source column to borrow a type from.
type ColumnType struct {
	Name string
	Ty   pagefmt.ColTy
}

// QueryResult is a SELECT's tabular output: one ColumnType per projected
// item (name plus the column it was resolved from; a column type is the
// zero value for an aggregate item, since COUNT/SUM/... have no single
// source column) and one []value.Lit per row.
type QueryResult struct {
	Cols []ColumnType
	Rows [][]value.Lit
}
