// Package store implements the memory-mapped paged store: page
// allocation/deallocation over a growable file, and the per-table heap
// (slotted data pages) built on top of it.
package store

import (
	"os"

	"github.com/nullbound/reldb/dberr"
	"github.com/nullbound/reldb/logger"
	"github.com/nullbound/reldb/pagefmt"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Magic is the 18-byte sequence identifying a file as one of this engine's
// database files (the on-disk-format Open Question resolved in SPEC_FULL.md §9).
var Magic = [pagefmt.MagicLen]byte{'r', 'e', 'l', 'd', 'b', '-', 'p', 'a', 'g', 'e', 'f', 'i', 'l', 'e', '-', '0', '1', 0}

// reservation is the address space reserved up front so the mapping never
// needs to move as the file grows; only ftruncate on the backing file
// actually commits pages, matching the mmap-reservation idiom in §3.
const reservation = pagefmt.PageSize * (1 << 20) // 8 GiB of address space

// Store owns one memory-mapped paged file: the schema page at id 0 plus
// every table metadata / heap / index / check page that follows it.
type Store struct {
	file   *os.File
	mapped []byte
	pages  uint32
}

// Create initializes a brand-new database file at path, writing an
// initialized schema page and truncating the mapping reservation around it.
func Create(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, dberr.IO("open database file", err)
	}
	if err := f.Truncate(pagefmt.PageSize); err != nil {
		f.Close()
		return nil, dberr.IO("truncate database file", err)
	}
	mapped, err := unix.Mmap(int(f.Fd()), 0, reservation, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, dberr.IO("mmap database file", err)
	}
	s := &Store{file: f, mapped: mapped, pages: 1}
	pagefmt.NewSchemaPage(s.mapped[:pagefmt.PageSize]).Init(Magic[:])
	logger.Infof("created database file %s", path)
	return s, nil
}

// Open maps an existing database file, validating its size and magic.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, dberr.IO("open database file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberr.IO("stat database file", err)
	}
	size := info.Size()
	if size == 0 || size%pagefmt.PageSize != 0 {
		f.Close()
		return nil, dberr.InvalidSize(int(size))
	}
	mapped, err := unix.Mmap(int(f.Fd()), 0, reservation, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, dberr.IO("mmap database file", err)
	}
	s := &Store{file: f, mapped: mapped, pages: uint32(size / pagefmt.PageSize)}
	schema := pagefmt.NewSchemaPage(s.mapped[:pagefmt.PageSize])
	if string(schema.Magic()) != string(Magic[:]) {
		unix.Munmap(mapped)
		f.Close()
		return nil, dberr.InvalidMagic(schema.Magic())
	}
	return s, nil
}

// Close unmaps and closes the backing file. Since there is no WAL or sync
// policy (§5), Close relies on the host's normal mmap write-back.
func (s *Store) Close() error {
	if err := unix.Munmap(s.mapped); err != nil {
		return errors.Wrap(err, "munmap database file")
	}
	return s.file.Close()
}

// Schema returns a typed view over page 0.
func (s *Store) Schema() pagefmt.SchemaPage {
	return pagefmt.NewSchemaPage(s.mapped[:pagefmt.PageSize])
}

// PageCount returns the number of pages currently committed to the file,
// for introspection (show database).
func (s *Store) PageCount() uint32 { return s.pages }

// GetPage returns the raw bytes of page id. The caller wraps it in the
// appropriate pagefmt typed view.
func (s *Store) GetPage(id uint32) []byte {
	if id >= s.pages {
		panic("store: page id out of range")
	}
	off := uint64(id) * pagefmt.PageSize
	return s.mapped[off : off+pagefmt.PageSize]
}

// AllocPage returns the head of the free-page list if non-empty, otherwise
// grows the file by one page. Contents are undefined; the caller must
// initialize them. A growth failure is fatal, matching §4.1's rationale:
// the store may already be in a partially consistent state by the time the
// caller asked for a new page.
func (s *Store) AllocPage() (uint32, []byte) {
	schema := s.Schema()
	free := schema.FirstFree()
	if free != pagefmt.NoPage {
		nextFree := leUint32(s.GetPage(free)) // first 4 bytes of a free page double as the next-free link
		schema.SetFirstFree(nextFree)
		return free, s.GetPage(free)
	}
	id := s.pages
	if err := s.file.Truncate(int64(id+1) * pagefmt.PageSize); err != nil {
		logger.Errorf("fatal: failed to grow database file: %v", err)
		panic(errors.Wrap(err, "failed to allocate page; database may be in an invalid state"))
	}
	s.pages++
	return id, s.GetPage(id)
}

// DeallocPage pushes page id onto the head of the free-page list.
func (s *Store) DeallocPage(id uint32) {
	schema := s.Schema()
	leSet32(s.GetPage(id), schema.FirstFree())
	schema.SetFirstFree(id)
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leSet32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// GetTablePage resolves a table by name, scanning the schema page's table
// list (there is no by-name index over table names; the table count is
// small in practice, matching the source system's own linear scan).
func (s *Store) GetTablePage(name string) (uint32, pagefmt.TablePage, error) {
	schema := s.Schema()
	n := int(schema.TableNum())
	for i := 0; i < n; i++ {
		if schema.TableName(i) == name {
			id := schema.TableMeta(i)
			return id, pagefmt.NewTablePage(s.GetPage(id)), nil
		}
	}
	return 0, pagefmt.TablePage{}, dberr.NoSuchTable(name)
}

// AllTableIDs returns the page ids of every live table, for foreign-link
// scans and introspection.
func (s *Store) AllTableIDs() []uint32 {
	schema := s.Schema()
	n := int(schema.TableNum())
	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		ids[i] = schema.TableMeta(i)
	}
	return ids
}
