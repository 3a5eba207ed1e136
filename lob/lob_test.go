package lob

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.lob")
	s, err := Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAllocZeroByteStringSucceeds(t *testing.T) {
	s := newStore(t)
	id, capSlots, length := s.Alloc(nil)
	require.GreaterOrEqual(t, capSlots, uint16(1))
	require.Equal(t, uint16(0), length)
	got := s.Read(id, length, capSlots)
	require.Empty(t, got)
}

func TestAllocReadRoundTripSmall(t *testing.T) {
	s := newStore(t)
	id, capSlots, length := s.Alloc([]byte("hello"))
	got := s.Read(id, length, capSlots)
	require.Equal(t, "hello", string(got))
}

func TestAllocReadRoundTripCompressed(t *testing.T) {
	s := newStore(t)
	payload := []byte(strings.Repeat("abcdefgh", 64)) // 512 bytes, highly compressible
	id, capSlots, length := s.Alloc(payload)
	got := s.Read(id, length, capSlots)
	require.Equal(t, payload, got)
}

func TestDeallocCoalescesAdjacentRegions(t *testing.T) {
	s := newStore(t)
	id1, cap1, len1 := s.Alloc([]byte("aaaa"))
	id2, cap2, len2 := s.Alloc([]byte("bbbb"))
	id3, cap3, len3 := s.Alloc([]byte("cccc"))

	s.Dealloc(id1, cap1)
	s.Dealloc(id2, cap2)

	// a two-slot allocation fits only id1+id2's combined region, so it
	// reuses id1 only if the two freed one-slot regions were coalesced.
	id4, cap4, len4 := s.Alloc([]byte(strings.Repeat("d", 40)))
	require.Equal(t, id1, id4)

	got3 := s.Read(id3, len3, cap3)
	require.Equal(t, "cccc", string(got3))
	got4 := s.Read(id4, len4, cap4)
	require.Equal(t, strings.Repeat("d", 40), string(got4))
}
