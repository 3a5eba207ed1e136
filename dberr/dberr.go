// Package dberr defines the closed set of error kinds the storage and
// execution engine can report, and a wrapper that carries a partial-success
// row count alongside a terminal error.
package dberr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error. The grouping mirrors the engine's error taxonomy:
// open-time, schema, constraint, type, resource, name-resolution and I/O.
type Kind int

const (
	KindUnknown Kind = iota

	// open-time
	KindInvalidSize
	KindInvalidMagic

	// schema
	KindDupTable
	KindDupCol
	KindDupIndex
	KindDupConstraint
	KindTableNameTooLong
	KindColNameTooLong
	KindIndexNameTooLong
	KindColTooMany
	KindColTooFew
	KindColSizeTooBig
	KindForeignOnNotUnique
	KindIncompatibleForeignTy
	KindCheckTooLong
	KindCheckNull
	KindUnsupportedVarcharOp

	// constraint
	KindPutNullOnNotNull
	KindPutDupOnUnique
	KindPutDupOnPrimary
	KindPutNonexistentForeign
	KindPutNotInCheck
	KindModifyTableWithForeignLink
	KindModifyColWithForeignLink
	KindDropConstrainedCol

	// type
	KindColLitMismatch
	KindColMismatch
	KindInsertTooLong
	KindIncompatibleBin
	KindIncompatibleCmp
	KindIncompatibleLogic
	KindInvalidDate
	KindInvalidLike
	KindInvalidLikeTy

	// resource
	KindTableExhausted

	// name resolution
	KindNoSuchTable
	KindNoSuchCol
	KindNoSuchIndex
	KindNoSuchForeign
	KindNoSuchPrimary
	KindAmbiguousCol
	KindMixedSelect

	// I/O
	KindIO
)

// Error is the concrete type every constructor below returns. Table/Column
// name fields are populated in whichever constructors have them available;
// Value carries the offending literal when one exists.
type Error struct {
	Kind   Kind
	Table  string
	Column string
	Value  interface{}
	detail string
	cause  error
}

func (e *Error) Error() string {
	msg := e.detail
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Table != "" && e.Column != "" {
		return fmt.Sprintf("%s: %s.%s", msg, e.Table, e.Column)
	}
	if e.Table != "" {
		return fmt.Sprintf("%s: %s", msg, e.Table)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func (k Kind) String() string {
	switch k {
	case KindInvalidSize:
		return "invalid file size"
	case KindInvalidMagic:
		return "invalid magic"
	case KindDupTable:
		return "duplicate table"
	case KindDupCol:
		return "duplicate column"
	case KindDupIndex:
		return "duplicate index"
	case KindDupConstraint:
		return "duplicate constraint"
	case KindTableNameTooLong:
		return "table name too long"
	case KindColNameTooLong:
		return "column name too long"
	case KindIndexNameTooLong:
		return "index name too long"
	case KindColTooMany:
		return "too many columns"
	case KindColTooFew:
		return "too few columns"
	case KindColSizeTooBig:
		return "column size too big"
	case KindForeignOnNotUnique:
		return "foreign target not unique"
	case KindIncompatibleForeignTy:
		return "incompatible foreign type"
	case KindCheckTooLong:
		return "check list too long"
	case KindCheckNull:
		return "check list may not contain null"
	case KindUnsupportedVarcharOp:
		return "operation not supported on a varchar column"
	case KindPutNullOnNotNull:
		return "null on not-null column"
	case KindPutDupOnUnique:
		return "duplicate value on unique column"
	case KindPutDupOnPrimary:
		return "duplicate composite primary key"
	case KindPutNonexistentForeign:
		return "nonexistent foreign value"
	case KindPutNotInCheck:
		return "value not in check list"
	case KindModifyTableWithForeignLink:
		return "table has an incoming foreign link"
	case KindModifyColWithForeignLink:
		return "column has an incoming foreign link"
	case KindDropConstrainedCol:
		return "column carries a primary or foreign key constraint"
	case KindColLitMismatch:
		return "literal does not match column type"
	case KindColMismatch:
		return "column type mismatch"
	case KindInsertTooLong:
		return "too many values in insert"
	case KindIncompatibleBin:
		return "incompatible types for arithmetic"
	case KindIncompatibleCmp:
		return "incompatible types for comparison"
	case KindIncompatibleLogic:
		return "incompatible type for boolean logic"
	case KindInvalidDate:
		return "invalid date literal"
	case KindInvalidLike:
		return "invalid like pattern"
	case KindInvalidLikeTy:
		return "like applied to non-string type"
	case KindTableExhausted:
		return "table exhausted"
	case KindNoSuchTable:
		return "no such table"
	case KindNoSuchCol:
		return "no such column"
	case KindNoSuchIndex:
		return "no such index"
	case KindNoSuchForeign:
		return "no such foreign key"
	case KindNoSuchPrimary:
		return "no such primary key"
	case KindAmbiguousCol:
		return "ambiguous column reference"
	case KindMixedSelect:
		return "mixing aggregate and plain columns"
	case KindIO:
		return "I/O error"
	default:
		return "unknown error"
	}
}

func newErr(kind Kind, table, col string, val interface{}) *Error {
	return &Error{Kind: kind, Table: table, Column: col, Value: val}
}

func NoSuchTable(table string) error          { return newErr(KindNoSuchTable, table, "", nil) }
func NoSuchCol(table, col string) error       { return newErr(KindNoSuchCol, table, col, nil) }
func NoSuchIndex(table, name string) error    { return newErr(KindNoSuchIndex, table, name, nil) }
func NoSuchForeign(table, col string) error   { return newErr(KindNoSuchForeign, table, col, nil) }
func NoSuchPrimary(table string) error        { return newErr(KindNoSuchPrimary, table, "", nil) }
func AmbiguousCol(col string) error           { return newErr(KindAmbiguousCol, "", col, nil) }
func MixedSelect() error                      { return newErr(KindMixedSelect, "", "", nil) }
func DupTable(table string) error             { return newErr(KindDupTable, table, "", nil) }
func DupCol(table, col string) error          { return newErr(KindDupCol, table, col, nil) }
func DupIndex(table, name string) error       { return newErr(KindDupIndex, table, name, nil) }
func DupConstraint(table, col string) error   { return newErr(KindDupConstraint, table, col, nil) }
func TableNameTooLong(table string) error     { return newErr(KindTableNameTooLong, table, "", nil) }
func ColNameTooLong(table, col string) error  { return newErr(KindColNameTooLong, table, col, nil) }
func IndexNameTooLong(name string) error      { return newErr(KindIndexNameTooLong, "", name, nil) }
func ColTooMany(table string) error           { return newErr(KindColTooMany, table, "", nil) }
func ColTooFew(table string) error            { return newErr(KindColTooFew, table, "", nil) }
func ColSizeTooBig(table, col string) error   { return newErr(KindColSizeTooBig, table, col, nil) }
func ForeignOnNotUnique(table, col string) error {
	return newErr(KindForeignOnNotUnique, table, col, nil)
}
func IncompatibleForeignTy(table, col string) error {
	return newErr(KindIncompatibleForeignTy, table, col, nil)
}
func CheckTooLong(table, col string) error { return newErr(KindCheckTooLong, table, col, nil) }
func CheckNull(table, col string) error    { return newErr(KindCheckNull, table, col, nil) }
func UnsupportedVarcharOp(table, col string) error {
	return newErr(KindUnsupportedVarcharOp, table, col, nil)
}

func PutNullOnNotNull(table, col string) error {
	return newErr(KindPutNullOnNotNull, table, col, nil)
}
func PutDupOnUnique(table, col string, val interface{}) error {
	return newErr(KindPutDupOnUnique, table, col, val)
}
func PutDupOnPrimary(table string) error { return newErr(KindPutDupOnPrimary, table, "", nil) }
func PutNonexistentForeign(table, col string, val interface{}) error {
	return newErr(KindPutNonexistentForeign, table, col, val)
}
func PutNotInCheck(table, col string, val interface{}) error {
	return newErr(KindPutNotInCheck, table, col, val)
}
func ModifyTableWithForeignLink(table string) error {
	return newErr(KindModifyTableWithForeignLink, table, "", nil)
}
func DropConstrainedCol(table, col string) error {
	return newErr(KindDropConstrainedCol, table, col, nil)
}
func ModifyColWithForeignLink(table, col string, val interface{}) error {
	return newErr(KindModifyColWithForeignLink, table, col, val)
}

func ColLitMismatch(table, col string, val interface{}) error {
	return newErr(KindColLitMismatch, table, col, val)
}
func ColMismatch(table, col string) error  { return newErr(KindColMismatch, table, col, nil) }
func InsertTooLong(table string) error     { return newErr(KindInsertTooLong, table, "", nil) }
func IncompatibleBin() error               { return newErr(KindIncompatibleBin, "", "", nil) }
func IncompatibleCmp() error               { return newErr(KindIncompatibleCmp, "", "", nil) }
func IncompatibleLogic() error             { return newErr(KindIncompatibleLogic, "", "", nil) }
func InvalidDate(s string) error           { return newErr(KindInvalidDate, "", "", s) }
func InvalidLike(pattern string) error     { return newErr(KindInvalidLike, "", "", pattern) }
func InvalidLikeTy(table, col string) error { return newErr(KindInvalidLikeTy, table, col, nil) }

func TableExhausted(table string) error { return newErr(KindTableExhausted, table, "", nil) }

func InvalidSize(size int) error  { return newErr(KindInvalidSize, "", "", size) }
func InvalidMagic(got []byte) error { return newErr(KindInvalidMagic, "", "", got) }

// IO wraps an I/O-boundary error with a stack trace via pkg/errors, and keeps
// it reachable through Unwrap for errors.Is/errors.As.
func IO(op string, cause error) error {
	return &Error{Kind: KindIO, detail: op, cause: errors.Wrap(cause, op)}
}

// RowsAffected wraps a terminal error with the count of rows already applied
// before it was hit, matching the "N rows affected; then error E" rule.
type RowsAffected struct {
	Count int
	Err   error
}

func (e *RowsAffected) Error() string {
	return fmt.Sprintf("%v; %d row(s) affected", e.Err, e.Count)
}

func (e *RowsAffected) Unwrap() error { return e.Err }

func Affected(count int, err error) error {
	if err == nil {
		return nil
	}
	return &RowsAffected{Count: count, Err: err}
}
