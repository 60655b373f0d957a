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

//go:build linux

package mem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewDeviceArena maps an anonymous, locked region for device-visible
// allocations. The device address base is the mapping's own virtual
// address; callers run with a flat virtual=physical mapping.
func NewDeviceArena(size int) (Arena, error) {
	size = roundUp(size, PageSize)

	m, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_LOCKED)
	if err != nil {
		return nil, err
	}

	return &slabArena{
		mem:  m,
		base: uint64(uintptr(unsafe.Pointer(&m[0]))),
		free: []region{{offset: 0, size: size}},
	}, nil
}
