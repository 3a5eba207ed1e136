// Package catalog implements the DDL surface: table creation and teardown,
// column and constraint bookkeeping on the schema and table metadata
// pages, and the index roots backing unique/primary/foreign columns.
package catalog

import (
	"github.com/nullbound/reldb/pagefmt"
	"github.com/nullbound/reldb/value"
)

// ColumnDef is one column of a CREATE TABLE statement, before any page is
// allocated.
type ColumnDef struct {
	Name    string
	Ty      pagefmt.ColTy
	NotNull bool
	Default *value.Lit // nil means "no default"
}

// ForeignDef names a column-level FOREIGN KEY constraint.
type ForeignDef struct {
	Col      string
	RefTable string
	RefCol   string
}

// CheckDef names a column-level CHECK (IN (...)) constraint.
type CheckDef struct {
	Col    string
	Values []value.Lit
}

// TableSpec is the fully parsed body of a CREATE TABLE statement.
type TableSpec struct {
	Name    string
	Cols    []ColumnDef
	Primary []string
	Foreign []ForeignDef
	Unique  []string
	Check   []CheckDef
}
