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

package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// deviceRegisterClient maps a PCI BAR resource file and services register
// access with atomic loads and stores. Atomics keep the compiler from
// reordering a write-then-read pair to a dependent register.
type deviceRegisterClient struct {
	file *os.File
	mem  []byte
	base uintptr
}

// OpenDevice maps size bytes of a sysfs resource file (for example
// /sys/bus/pci/devices/0000:03:00.0/resource0) for register access.
func OpenDevice(path string, size uint64) (RegisterClient, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &deviceRegisterClient{
		file: f,
		mem:  mem,
		base: uintptr(unsafe.Pointer(&mem[0])),
	}, nil
}

func (c *deviceRegisterClient) Close() error {
	if c.mem != nil {
		if err := unix.Munmap(c.mem); err != nil {
			return err
		}
		c.mem = nil
	}
	return c.file.Close()
}

func (c *deviceRegisterClient) Read32(offset uint64) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(c.base + uintptr(offset))))
}

func (c *deviceRegisterClient) Read64(offset uint64) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(c.base + uintptr(offset))))
}

func (c *deviceRegisterClient) Write32(offset uint64, value uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(c.base+uintptr(offset))), value)
}

func (c *deviceRegisterClient) Write64(offset uint64, value uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(c.base+uintptr(offset))), value)
}
