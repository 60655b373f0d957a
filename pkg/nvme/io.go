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

package nvme

import (
	"encoding/binary"
	"fmt"

	"github.com/BareMetalStorage/bms-ec/pkg/mem"
)

// Read transfers count logical blocks starting at lba from the namespace
// into buf. A non-page-aligned buf is staged through a temporary aligned
// buffer; the caller never sees the difference.
func (c *Controller) Read(nsid uint32, lba uint64, count uint32, buf []byte) error {
	return c.transfer(uint8(ReadOpCode), nsid, lba, count, buf)
}

// Write transfers count logical blocks from buf to the namespace
// starting at lba.
func (c *Controller) Write(nsid uint32, lba uint64, count uint32, buf []byte) error {
	return c.transfer(uint8(WriteOpCode), nsid, lba, count, buf)
}

// transfer validates the request entirely before touching any ring or
// doorbell; a rejected request leaves the hardware untouched.
func (c *Controller) transfer(opcode uint8, nsid uint32, lba uint64, count uint32, buf []byte) error {
	if c.state != StateReady || len(c.io) == 0 {
		return ErrControllerNotReady
	}

	ns, ok := c.namespaces[nsid]
	if !ok || !ns.Active {
		return ErrInvalidNamespace
	}

	if count == 0 || lba >= ns.BlockCount || uint64(count) > ns.BlockCount-lba {
		return ErrOutOfRangeAccess
	}

	length := uint64(count) * uint64(ns.BlockSize)
	if length > c.maxTransferBytes {
		return ErrTransferTooLarge
	}
	if uint64(len(buf)) < length {
		return fmt.Errorf("buffer holds %d bytes, transfer needs %d", len(buf), length)
	}

	data := buf[:length]

	address, direct := c.arena.AddressOf(data)
	direct = direct && address%mem.PageSize == 0

	var bounce *mem.Buffer
	if !direct {
		var err error
		if bounce, err = c.arena.Alloc(int(length)); err != nil {
			return ErrAllocationFailure
		}
		defer c.arena.Free(bounce)

		if opcode == uint8(WriteOpCode) {
			copy(bounce.Data, data)
		}
		address = bounce.Address
	}

	// Data buffers are contiguous, so every page pointer is derived from
	// the base address. Up to two pages the entry's own pointers suffice;
	// beyond that the second pointer names a list page.
	prp1 := address
	prp2 := uint64(0)
	if length > mem.PageSize {
		if remainder := length - mem.PageSize; remainder <= mem.PageSize {
			prp2 = address + mem.PageSize
		} else {
			list, err := c.buildPrpList(address, remainder)
			if err != nil {
				return err
			}
			defer c.arena.Free(list)
			prp2 = list.Address
		}
	}

	qp := c.io[0]
	id, err := c.dispatch(qp, opcode, nsid, prp1, prp2,
		count-1, uint32(lba), uint32(lba>>32), 0, 0, 0)
	if err != nil {
		return err
	}

	if _, err := qp.Await(id, c.opts.CommandTimeout); err != nil {
		return err
	}

	if bounce != nil && opcode == uint8(ReadOpCode) {
		copy(data, bounce.Data[:length])
	}

	return nil
}

// buildPrpList allocates a list page holding one 8-byte pointer per data
// page after the first. remainder is the transfer length beyond the
// first page; the pages are contiguous from address.
func (c *Controller) buildPrpList(address, remainder uint64) (*mem.Buffer, error) {
	entries := int((remainder + mem.PageSize - 1) / mem.PageSize)

	list, err := c.arena.Alloc(entries * 8)
	if err != nil {
		return nil, ErrAllocationFailure
	}

	for i := 0; i < entries; i++ {
		binary.LittleEndian.PutUint64(list.Data[i*8:], address+uint64(i+1)*mem.PageSize)
	}

	return list, nil
}
