package pagefmt

import "encoding/binary"

// NullBitsetWords is the number of 4-byte words the null bitset for colNum
// columns occupies at the front of every record.
func NullBitsetWords(colNum int) int { return (colNum + 31) / 32 }

// NullBitsetSize is NullBitsetWords in bytes.
func NullBitsetSize(colNum int) int { return NullBitsetWords(colNum) * 4 }

// IsNull reports whether column col of a record is null.
func IsNull(rec []byte, col int) bool {
	word := binary.LittleEndian.Uint32(rec[(col/32)*4:])
	return word&(1<<uint(col%32)) != 0
}

// SetNull sets or clears column col's null bit.
func SetNull(rec []byte, col int, null bool) {
	off := (col / 32) * 4
	word := binary.LittleEndian.Uint32(rec[off:])
	bit := uint32(1) << uint(col%32)
	if null {
		word |= bit
	} else {
		word &^= bit
	}
	binary.LittleEndian.PutUint32(rec[off:], word)
}

// ClearNullBitset zeroes every null bit ahead of filling in a fresh record.
func ClearNullBitset(rec []byte, colNum int) {
	n := NullBitsetSize(colNum)
	for i := 0; i < n; i++ {
		rec[i] = 0
	}
}

// GetVarcharSlot reads the fixed 8-byte {lob_id, length, capacity_slots}
// descriptor a varchar column stores in place of its value.
func GetVarcharSlot(b []byte) (lobID uint32, length uint16, capSlots uint16) {
	lobID = binary.LittleEndian.Uint32(b[0:])
	length = binary.LittleEndian.Uint16(b[4:])
	capSlots = binary.LittleEndian.Uint16(b[6:])
	return
}

// PutVarcharSlot writes the varchar descriptor.
func PutVarcharSlot(b []byte, lobID uint32, length, capSlots uint16) {
	binary.LittleEndian.PutUint32(b[0:], lobID)
	binary.LittleEndian.PutUint16(b[4:], length)
	binary.LittleEndian.PutUint16(b[6:], capSlots)
}
