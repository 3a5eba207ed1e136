// Package value defines the three-valued literal representation shared by
// the catalog (defaults, check constraints), the expression evaluator and
// the query layer: every SQL value is one of null, bool, a float64-backed
// number, a string or a date, mirroring the engine's own dynamically typed
// literal.
package value

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nullbound/reldb/pagefmt"
)

// ErrMismatch is wrapped by every type-mismatch error EncodeFixed/
// CheckAssignable produce; callers with table/column context (catalog,
// query) translate it into dberr.ColLitMismatch(table, col, val).
var ErrMismatch = errors.New("value: literal does not match column type")

// ErrNaN is returned when a float literal is NaN, which this engine
// rejects unconditionally rather than propagate an unorderable value into
// an index or a comparison (§9).
var ErrNaN = errors.New("value: NaN is not a valid float literal")

// Kind tags which field of Lit is live.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindStr
	KindDate
)

// Lit is a dynamically typed SQL literal. Number is stored as float64
// regardless of the destination column's declared type (Int or Float);
// narrowing happens at encode time.
type Lit struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Date   int32 // days since the Unix epoch
}

func Null() Lit           { return Lit{Kind: KindNull} }
func OfBool(b bool) Lit    { return Lit{Kind: KindBool, Bool: b} }
func OfNumber(n float64) Lit { return Lit{Kind: KindNumber, Number: n} }
func OfStr(s string) Lit   { return Lit{Kind: KindStr, Str: s} }
func OfDate(d int32) Lit   { return Lit{Kind: KindDate, Date: d} }

func (l Lit) IsNull() bool { return l.Kind == KindNull }

func (l Lit) String() string {
	switch l.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", l.Bool)
	case KindNumber:
		return fmt.Sprintf("%v", l.Number)
	case KindStr:
		return l.Str
	case KindDate:
		return FormatDate(l.Date)
	default:
		return "?"
	}
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into days since the Unix epoch,
// matching the original engine's use of a plain Gregorian calendar date
// with no time-of-day or timezone component.
func ParseDate(s string) (int32, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("value: invalid date %q: %w", s, err)
	}
	days := t.Unix() / 86400
	return int32(days), nil
}

// FormatDate renders days since the Unix epoch back to YYYY-MM-DD.
func FormatDate(days int32) string {
	t := time.Unix(int64(days)*86400, 0).UTC()
	return t.Format(dateLayout)
}

// CheckAssignable reports whether l's dynamic kind can be narrowed into a
// column of type ty, without performing the narrowing (used to validate
// literals in DDL: column defaults and CHECK lists).
func CheckAssignable(ty pagefmt.ColTy, l Lit) error {
	if l.IsNull() {
		return nil // null-ness is checked separately against NOT NULL
	}
	switch ty.Ty {
	case pagefmt.TyBool:
		if l.Kind != KindBool {
			return ErrMismatch
		}
	case pagefmt.TyInt, pagefmt.TyFloat:
		if l.Kind != KindNumber {
			return ErrMismatch
		}
	case pagefmt.TyDate:
		if l.Kind != KindDate && l.Kind != KindStr {
			return ErrMismatch
		}
		if l.Kind == KindStr {
			if _, err := ParseDate(l.Str); err != nil {
				return err
			}
		}
	case pagefmt.TyChar:
		if l.Kind != KindStr || len(l.Str) > int(ty.Size) {
			return ErrMismatch
		}
	case pagefmt.TyVarChar:
		if l.Kind != KindStr || len(l.Str) > int(ty.Size) {
			return ErrMismatch
		}
	}
	return nil
}

// EncodeFixed narrows l into dst (sized exactly ty.Size()) for every type
// except VarChar, whose LOB-backed descriptor the caller fills separately
// via the lob allocator.
func EncodeFixed(dst []byte, ty pagefmt.ColTy, l Lit) error {
	if err := CheckAssignable(ty, l); err != nil {
		return err
	}
	switch ty.Ty {
	case pagefmt.TyBool:
		if l.Bool {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case pagefmt.TyInt:
		putI32(dst, int32(l.Number))
	case pagefmt.TyFloat:
		if math.IsNaN(l.Number) {
			return ErrNaN
		}
		putF32(dst, float32(l.Number))
	case pagefmt.TyDate:
		days := l.Date
		if l.Kind == KindStr {
			var err error
			days, err = ParseDate(l.Str)
			if err != nil {
				return err
			}
		}
		putI32(dst, days)
	case pagefmt.TyChar:
		dst[0] = byte(len(l.Str))
		copy(dst[1:], l.Str)
	default:
		return fmt.Errorf("value: EncodeFixed does not handle %s directly", ty.Ty)
	}
	return nil
}

// DecodeFixed is EncodeFixed's inverse for every non-VarChar type.
func DecodeFixed(src []byte, ty pagefmt.ColTy) Lit {
	switch ty.Ty {
	case pagefmt.TyBool:
		return OfBool(src[0] != 0)
	case pagefmt.TyInt:
		return OfNumber(float64(getI32(src)))
	case pagefmt.TyFloat:
		return OfNumber(float64(getF32(src)))
	case pagefmt.TyDate:
		return OfDate(getI32(src))
	case pagefmt.TyChar:
		n := int(src[0])
		return OfStr(string(src[1 : 1+n]))
	default:
		panic("value: DecodeFixed does not handle " + ty.Ty.String())
	}
}

func putI32(b []byte, v int32) {
	u := uint32(v)
	b[0], b[1], b[2], b[3] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
}
func getI32(b []byte) int32 {
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}
func putF32(b []byte, v float32) {
	putI32(b, int32(math.Float32bits(v)))
}
func getF32(b []byte) float32 {
	return math.Float32frombits(uint32(getI32(b)))
}
