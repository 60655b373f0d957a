/*
 * Copyright 2020, 2021, 2022 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mem

import (
	"errors"
	"unsafe"
)

const PageSize = 4096

var (
	ErrArenaExhausted = errors.New("arena exhausted")
	ErrBadAddress     = errors.New("address not within arena")
)

// Buffer is a page-aligned allocation from an Arena. Address is the value
// a device sees; when the arena is backed by a flat virtual=physical
// mapping the two are identical.
type Buffer struct {
	Address uint64
	Data    []byte
}

// Arena hands out page-aligned, zeroed buffers from a fixed contiguous
// region. Queue rings, identify pages and bounce buffers all come from
// here; nothing else in the driver allocates device-visible memory.
type Arena interface {
	Alloc(size int) (*Buffer, error)
	Free(b *Buffer)

	// AddressOf reports the device address of a caller-held slice when the
	// slice lies inside the arena. Slices outside the arena have no device
	// address and must be staged through an arena buffer.
	AddressOf(buf []byte) (uint64, bool)

	// Resolve maps a device address range back to arena memory.
	Resolve(address uint64, length int) ([]byte, error)
}

type region struct {
	offset int
	size   int
}

type slabArena struct {
	mem  []byte
	base uint64
	free []region
}

// NewArena returns an Arena over an anonymous in-memory slab with a
// synthetic device address base. It backs the mock register clients and
// unit tests; real hardware uses NewDeviceArena.
func NewArena(size int) Arena {
	size = roundUp(size, PageSize)
	return &slabArena{
		mem:  make([]byte, size),
		base: 0x1_0000_0000,
		free: []region{{offset: 0, size: size}},
	}
}

func roundUp(n, m int) int { return ((n + m - 1) / m) * m }

func (a *slabArena) Alloc(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, ErrArenaExhausted
	}
	size = roundUp(size, PageSize)

	for i, r := range a.free {
		if r.size < size {
			continue
		}

		if r.size == size {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = region{offset: r.offset + size, size: r.size - size}
		}

		data := a.mem[r.offset : r.offset+size : r.offset+size]
		for j := range data {
			data[j] = 0
		}

		return &Buffer{Address: a.base + uint64(r.offset), Data: data}, nil
	}

	return nil, ErrArenaExhausted
}

func (a *slabArena) Free(b *Buffer) {
	if b == nil || len(b.Data) == 0 {
		return
	}

	freed := region{offset: int(b.Address - a.base), size: len(b.Data)}
	b.Data = nil

	// Insert sorted by offset, then coalesce with the neighbors.
	idx := len(a.free)
	for i, r := range a.free {
		if r.offset > freed.offset {
			idx = i
			break
		}
	}

	a.free = append(a.free, region{})
	copy(a.free[idx+1:], a.free[idx:])
	a.free[idx] = freed

	coalesced := a.free[:0]
	for _, r := range a.free {
		if n := len(coalesced); n > 0 && coalesced[n-1].offset+coalesced[n-1].size == r.offset {
			coalesced[n-1].size += r.size
			continue
		}
		coalesced = append(coalesced, r)
	}
	a.free = coalesced
}

func (a *slabArena) AddressOf(buf []byte) (uint64, bool) {
	if len(buf) == 0 || len(a.mem) == 0 {
		return 0, false
	}

	start := uintptr(unsafe.Pointer(&a.mem[0]))
	p := uintptr(unsafe.Pointer(&buf[0]))
	if p < start || p+uintptr(len(buf)) > start+uintptr(len(a.mem)) {
		return 0, false
	}

	return a.base + uint64(p-start), true
}

func (a *slabArena) Resolve(address uint64, length int) ([]byte, error) {
	if address < a.base {
		return nil, ErrBadAddress
	}

	offset := int(address - a.base)
	if offset+length > len(a.mem) {
		return nil, ErrBadAddress
	}

	return a.mem[offset : offset+length], nil
}
