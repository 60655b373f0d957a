package mem

import (
	"errors"
	"testing"
)

func TestAllocAlignedAndZeroed(t *testing.T) {
	arena := NewArena(64 * 1024)

	buf, err := arena.Alloc(100)
	if err != nil {
		t.Fatal(err)
	}

	if buf.Address%PageSize != 0 {
		t.Fatalf("allocation not page aligned: %#x", buf.Address)
	}
	if len(buf.Data) != PageSize {
		t.Fatalf("allocation not rounded to page size: %d", len(buf.Data))
	}

	buf.Data[0] = 0xFF
	arena.Free(buf)

	// The recycled page comes back zeroed.
	buf, err = arena.Alloc(PageSize)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range buf.Data {
		if b != 0 {
			t.Fatalf("recycled allocation not zeroed at byte %d", i)
		}
	}
}

func TestAllocExhaustion(t *testing.T) {
	arena := NewArena(2 * PageSize)

	a, err := arena.Alloc(PageSize)
	if err != nil {
		t.Fatal(err)
	}
	b, err := arena.Alloc(PageSize)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := arena.Alloc(1); !errors.Is(err, ErrArenaExhausted) {
		t.Fatalf("expected ErrArenaExhausted, got %v", err)
	}

	// Freeing both coalesces the space back into one usable region.
	arena.Free(a)
	arena.Free(b)

	if _, err := arena.Alloc(2 * PageSize); err != nil {
		t.Fatalf("coalescing failed: %v", err)
	}
}

func TestAddressOf(t *testing.T) {
	arena := NewArena(64 * 1024)

	buf, err := arena.Alloc(2 * PageSize)
	if err != nil {
		t.Fatal(err)
	}

	address, ok := arena.AddressOf(buf.Data)
	if !ok || address != buf.Address {
		t.Fatalf("address lookup incorrect: %#x, expected %#x", address, buf.Address)
	}

	// Interior slices translate too.
	address, ok = arena.AddressOf(buf.Data[PageSize:])
	if !ok || address != buf.Address+PageSize {
		t.Fatalf("interior address lookup incorrect: %#x", address)
	}

	if _, ok := arena.AddressOf(make([]byte, 16)); ok {
		t.Fatal("foreign buffer translated to a device address")
	}
}

func TestResolve(t *testing.T) {
	arena := NewArena(64 * 1024)

	buf, err := arena.Alloc(PageSize)
	if err != nil {
		t.Fatal(err)
	}
	buf.Data[10] = 0xAB

	view, err := arena.Resolve(buf.Address, PageSize)
	if err != nil {
		t.Fatal(err)
	}
	if view[10] != 0xAB {
		t.Fatal("resolved view does not alias the allocation")
	}

	if _, err := arena.Resolve(buf.Address-PageSize, 1); !errors.Is(err, ErrBadAddress) {
		t.Fatalf("expected ErrBadAddress below base, got %v", err)
	}
	if _, err := arena.Resolve(buf.Address, 128*1024); !errors.Is(err, ErrBadAddress) {
		t.Fatalf("expected ErrBadAddress beyond end, got %v", err)
	}
}
