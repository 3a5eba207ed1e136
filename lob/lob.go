// Package lob implements the variable-length object allocator: a second
// memory-mapped file addressed in 32-byte slots, with a circular doubly
// linked free list threaded through slot 0 (the sentinel).
package lob

import (
	"encoding/binary"
	"os"

	"github.com/golang/snappy"
	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/logger"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	SlotSize = 32
	// compressThreshold is the varchar payload size at or above which the
	// payload is snappy-compressed before being handed to the allocator (the
	// DOMAIN STACK addition in SPEC_FULL.md §1B/§4.4); small strings are
	// stored verbatim since snappy's framing overhead would net-lose.
	compressThreshold = 256
)

const reservation = SlotSize * (1 << 32 / SlotSize) // full 32-bit slot id space, lazily backed

// Store owns the memory-mapped LOB file.
type Store struct {
	file   *os.File
	mapped []byte
	slots  uint32
}

// Create initializes a brand-new LOB file with slot 0 as the nil sentinel.
func Create(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, dberr.IO("open lob file", err)
	}
	if err := f.Truncate(SlotSize); err != nil {
		f.Close()
		return nil, dberr.IO("truncate lob file", err)
	}
	mapped, err := unix.Mmap(int(f.Fd()), 0, reservation, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, dberr.IO("mmap lob file", err)
	}
	s := &Store{file: f, mapped: mapped, slots: 1}
	s.slot(0).initNil()
	return s, nil
}

// Open maps an existing LOB file.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, dberr.IO("open lob file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberr.IO("stat lob file", err)
	}
	size := info.Size()
	if size == 0 || size%SlotSize != 0 {
		f.Close()
		return nil, dberr.InvalidSize(int(size))
	}
	mapped, err := unix.Mmap(int(f.Fd()), 0, reservation, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, dberr.IO("mmap lob file", err)
	}
	return &Store{file: f, mapped: mapped, slots: uint32(size / SlotSize)}, nil
}

func (s *Store) Close() error {
	if err := unix.Munmap(s.mapped); err != nil {
		return errors.Wrap(err, "munmap lob file")
	}
	return s.file.Close()
}

// freeSlot overlays {prev, next, length_in_slots} on a free region's leading slot.
type freeSlot struct{ b []byte }

func (s *Store) slot(id uint32) freeSlot {
	off := uint64(id) * SlotSize
	return freeSlot{s.mapped[off : off+SlotSize]}
}

func (f freeSlot) prev() uint32     { return binary.LittleEndian.Uint32(f.b[0:]) }
func (f freeSlot) setPrev(v uint32) { binary.LittleEndian.PutUint32(f.b[0:], v) }
func (f freeSlot) next() uint32     { return binary.LittleEndian.Uint32(f.b[4:]) }
func (f freeSlot) setNext(v uint32) { binary.LittleEndian.PutUint32(f.b[4:], v) }
func (f freeSlot) count() uint32    { return binary.LittleEndian.Uint32(f.b[8:]) }
func (f freeSlot) setCount(v uint32) { binary.LittleEndian.PutUint32(f.b[8:], v) }

func (f freeSlot) initNil() { f.setPrev(0); f.setNext(0); f.setCount(0) }

func (s *Store) bytesAt(id uint32, n int) []byte {
	off := uint64(id) * SlotSize
	return s.mapped[off : off+uint64(n)]
}

func ceilSlots(nBytes uint32) uint32 {
	n := (nBytes + SlotSize - 1) / SlotSize
	if n < 1 {
		n = 1
	}
	return n
}

// allocRaw is the 32-byte-slot allocator described in §4.4: first-fit
// scan of the free list, shrink-in-place or unlink, else grow the file.
// Returns (id, capacityBytes).
func (s *Store) allocRaw(nBytes uint32) (uint32, uint32) {
	count := ceilSlots(nBytes)
	x, xID := s.slot(0), uint32(0)
	for x.count() < count {
		if x.next() == 0 {
			break
		}
		xID = x.next()
		x = s.slot(xID)
	}
	if x.count() >= count {
		if x.count() > count {
			// The free region at xID shrinks by moving its start forward by
			// `count` slots; the now-vacated leading `count` slots are handed
			// to the caller. shiftLobLink must be called before reusing xID's
			// bytes as the allocated region, since it reads x's current links.
			s.shiftLobLink(xID, x, count)
			return xID, count * SlotSize
		}
		prev, next := x.prev(), x.next()
		s.slot(prev).setNext(next)
		s.slot(next).setPrev(prev)
		return xID, count * SlotSize
	}
	id := s.slots
	s.slots += count
	if err := s.file.Truncate(int64(s.slots) * SlotSize); err != nil {
		logger.Errorf("fatal: failed to grow lob file: %v", err)
		panic(errors.Wrap(err, "failed to allocate lob slot; database may be in an invalid state"))
	}
	return id, count * SlotSize
}

// shiftLobLink moves free region x (currently at xID) forward by shift slots,
// shrinking its length by shift, re-linking its neighbors to the new address.
// shift may wrap (conceptually negative) when called from dealloc's backward-merge path.
func (s *Store) shiftLobLink(xID uint32, x freeSlot, shift uint32) {
	prev, next := x.prev(), x.next()
	newID := xID + shift // wrapping add, mirrors the Rust `wrapping_add`
	newX := s.slot(newID)
	s.slot(prev).setNext(newID)
	newX.setPrev(prev)
	s.slot(next).setPrev(newID)
	newX.setNext(next)
	newX.setCount(x.count() - shift) // wrapping sub
}

func (s *Store) deallocRaw(id, nBytes uint32) {
	count := nBytes / SlotSize
	xID, x := uint32(0), s.slot(0)
	for {
		if xID+x.count() == id {
			x.setCount(x.count() + count)
			return
		}
		if id+count == xID {
			s.shiftLobLink(xID, x, ^count+1) // two's-complement -count
			return
		}
		next := x.next()
		if next == 0 {
			break
		}
		xID, x = next, s.slot(next)
	}
	nil_ := s.slot(0)
	prev := nil_.prev()
	s.slot(prev).setNext(id)
	newNode := s.slot(id)
	newNode.setPrev(prev)
	newNode.setNext(0)
	nil_.setPrev(id)
	newNode.setCount(count)
}

// A one-byte tag precedes the payload inside the allocated region so Read can
// tell compressed regions from verbatim ones without touching the fixed
// 8-byte varchar descriptor format (§6).
const (
	tagRaw    byte = 0
	tagSnappy byte = 1
)

// Alloc stores payload (snappy-compressing it first when it is large enough
// to benefit) and returns (lobID, capacitySlots, decompressedLen).
func (s *Store) Alloc(payload []byte) (id uint32, capSlots uint16, length uint16) {
	tag := tagRaw
	stored := payload
	if len(payload) >= compressThreshold {
		if enc := snappy.Encode(nil, payload); len(enc) < len(payload) {
			tag, stored = tagSnappy, enc
		}
	}
	rawID, capBytes := s.allocRaw(uint32(1 + len(stored)))
	region := s.bytesAt(rawID, 1+len(stored))
	region[0] = tag
	copy(region[1:], stored)
	return rawID, uint16(capBytes / SlotSize), uint16(len(payload))
}

// Read returns the decompressed payload for a varchar field, given the LOB
// id, live (decompressed) length and allocated capacity in slots.
func (s *Store) Read(id uint32, length uint16, capSlots uint16) []byte {
	capBytes := int(capSlots) * SlotSize
	region := s.bytesAt(id, capBytes)
	tag, raw := region[0], region[1:]
	if tag == tagSnappy {
		out, err := snappy.Decode(nil, raw)
		if err != nil {
			panic(errors.Wrap(err, "corrupt snappy-compressed lob region"))
		}
		return out[:length]
	}
	return raw[:length]
}

// Dealloc frees a previously allocated region spanning capSlots*32 bytes.
func (s *Store) Dealloc(id uint32, capSlots uint16) {
	s.deallocRaw(id, uint32(capSlots)*SlotSize)
}
