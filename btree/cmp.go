package btree

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/nullbound/reldb/pagefmt"
)

// Comparator orders two value buffers of the same declared column type,
// ignoring the trailing RID that makeKey appends. It never sees the RID
// half of a key: cmpFull layers that comparison on top as a tiebreaker.
type Comparator func(a, b []byte) int

// ComparatorFor returns the ordering function for a column's bare type.
func ComparatorFor(ty pagefmt.BareTy) Comparator {
	switch ty {
	case pagefmt.TyInt:
		return cmpInt
	case pagefmt.TyBool:
		return cmpBool
	case pagefmt.TyFloat:
		return cmpFloat
	case pagefmt.TyChar, pagefmt.TyVarChar:
		return cmpStr
	case pagefmt.TyDate:
		return cmpDate
	default:
		panic("btree: no comparator for column type")
	}
}

func cmpInt(a, b []byte) int {
	x := int32(binary.LittleEndian.Uint32(a))
	y := int32(binary.LittleEndian.Uint32(b))
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b []byte) int {
	return int(a[0]) - int(b[0])
}

func cmpFloat(a, b []byte) int {
	// NaN is rejected at the expression-evaluation boundary (§9), so a plain
	// float comparison here never hits the unordered case.
	x := math.Float32frombits(binary.LittleEndian.Uint32(a))
	y := math.Float32frombits(binary.LittleEndian.Uint32(b))
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func cmpDate(a, b []byte) int {
	x := int32(binary.LittleEndian.Uint32(a))
	y := int32(binary.LittleEndian.Uint32(b))
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// cmpStr compares the length-prefixed string buffer built by valueBytes:
// one length byte followed by up to that many characters.
func cmpStr(a, b []byte) int {
	la, lb := int(a[0]), int(b[0])
	return bytes.Compare(a[1:1+la], b[1:1+lb])
}

// cmpFull orders two full (value, RID) keys: by value first, the record's
// RID as a tiebreaker so duplicate values still sort deterministically.
func cmpFull(a, b []byte, ridOff uint16, vc Comparator) int {
	if c := vc(a[:ridOff], b[:ridOff]); c != 0 {
		return c
	}
	ra, rb := pagefmt.GetRID(a[ridOff:]), pagefmt.GetRID(b[ridOff:])
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// lowerBound returns the first entry position whose key is not less than x.
func lowerBound(ip pagefmt.IndexPage, x []byte, ridOff uint16, vc Comparator) int {
	count := int(ip.Count())
	i := 0
	for i < count {
		if cmpFull(x, ip.Entry(i), ridOff, vc) <= 0 {
			break
		}
		i++
	}
	return i
}

// upperBound returns the first entry position whose key is strictly
// greater than x.
func upperBound(ip pagefmt.IndexPage, x []byte, ridOff uint16, vc Comparator) int {
	count := int(ip.Count())
	i := 0
	for i < count {
		if cmpFull(x, ip.Entry(i), ridOff, vc) < 0 {
			break
		}
		i++
	}
	return i
}

// ValueSize is the byte width of an index key's value half for a column of
// type ty. For Char/VarChar this is a length-prefixed copy of the string
// content (1 + the declared max length), not the record's in-place
// footprint: a record's varchar field is the fixed 8-byte LOB descriptor
// (pagefmt.VarcharSlotSize), which has no meaningful byte ordering, so the
// index stores and compares the actual characters instead.
func ValueSize(ty pagefmt.ColTy) uint16 {
	switch ty.Ty {
	case pagefmt.TyInt, pagefmt.TyFloat, pagefmt.TyDate:
		return 4
	case pagefmt.TyBool:
		return 1
	case pagefmt.TyChar, pagefmt.TyVarChar:
		return uint16(ty.Size) + 1
	default:
		return 0
	}
}

// EncodeStr packs s into the length-prefixed buffer cmpStr and the on-page
// value slots expect, truncating to maxLen if necessary.
func EncodeStr(s string, maxLen uint8) []byte {
	if len(s) > int(maxLen) {
		s = s[:maxLen]
	}
	buf := make([]byte, 1+maxLen)
	buf[0] = byte(len(s))
	copy(buf[1:], s)
	return buf
}
