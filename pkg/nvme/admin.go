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
	"bytes"

	"github.com/HewlettPackard/structex"

	"github.com/BareMetalStorage/bms-ec/pkg/mem"
)

// Admin command sequencing. Each step is one submit-then-await on the
// admin queue pair; a failure aborts the remainder of the sequence.

func (c *Controller) identify(nsid uint32, cns IdentifyControllerOrNamespaceType, out interface{}) error {
	buf, err := c.arena.Alloc(IdentifyDataSize)
	if err != nil {
		return ErrAllocationFailure
	}
	defer c.arena.Free(buf)

	id, err := c.dispatch(c.admin, uint8(IdentifyOpCode), nsid, buf.Address, 0,
		uint32(cns), 0, 0, 0, 0, 0)
	if err != nil {
		return err
	}

	if _, err := c.admin.Await(id, c.opts.CommandTimeout); err != nil {
		return err
	}

	return structex.DecodeByteBuffer(bytes.NewBuffer(buf.Data[:IdentifyDataSize]), out)
}

func (c *Controller) identifyController() error {
	raw := new(IdentifyController)
	if err := c.identify(0, Controller_CNS, raw); err != nil {
		return err
	}

	c.identity = raw.decode()

	if raw.MaximumDataTransferSize > 0 {
		pageSize := uint64(1) << (12 + uint64(c.caps.MemoryPageSizeMinimum))
		c.maxTransferBytes = pageSize << raw.MaximumDataTransferSize
	} else {
		c.maxTransferBytes = defaultMaxTransferBytes
	}

	// A transfer is described by PRP1 plus at most one list page of
	// 8-byte pointers.
	if limit := uint64(mem.PageSize) * (1 + mem.PageSize/8); c.maxTransferBytes > limit {
		c.maxTransferBytes = limit
	}

	// A controller that can't hold our ring's worth of commands gets a
	// shallower ring, not a failure.
	if max := int(raw.MaximumOutstandingCommands); max > 0 && c.opts.QueueDepth > max {
		c.log.Debugf("Queue depth %d clamped to MAXCMD %d", c.opts.QueueDepth, max)
		c.opts.QueueDepth = max
	}

	return nil
}

func (c *Controller) identifyNamespaces() error {
	count := c.identity.NamespaceCount
	if count > maxNamespaceScan {
		count = maxNamespaceScan
	}

	for nsid := uint32(1); nsid <= count; nsid++ {
		raw := new(IdentifyNamespace)
		if err := c.identify(nsid, Namespace_CNS, raw); err != nil {
			return err
		}

		ns := raw.toNamespace(nsid)
		c.namespaces[nsid] = &ns

		if ns.Active {
			c.log.WithFields(map[string]interface{}{
				"NamespaceId": nsid,
				"Blocks":      ns.BlockCount,
				"BlockSize":   ns.BlockSize,
			}).Debug("Namespace discovered")
		}
	}

	return nil
}

// createIoQueues brings up I/O queue pairs 1..count. The completion queue
// of a pair is always created before the submission queue, because the
// create-SQ command references the CQ id. On failure the remaining pairs
// are abandoned and only rings the controller never acknowledged are
// released.
func (c *Controller) createIoQueues(count int) error {
	for i := 1; i <= count; i++ {
		qp, err := newQueuePair(c, uint16(i), uint16(c.opts.QueueDepth))
		if err != nil {
			return err
		}

		if err := c.createIoQueuePair(qp); err != nil {
			return err
		}

		c.io = append(c.io, qp)
	}

	return nil
}

func (c *Controller) createIoQueuePair(qp *QueuePair) error {
	size := uint32(qp.capacity-1) << 16 // zeroes based, CDW10 high half

	id, err := c.dispatch(c.admin, uint8(CreateIoCompletionQueueOpCode), 0,
		qp.cqBuffer.Address, 0,
		size|uint32(qp.id),
		1, // physically contiguous, no interrupts
		0, 0, 0, 0)
	if err != nil {
		qp.free()
		return err
	}

	if _, err := c.admin.Await(id, c.opts.CommandTimeout); err != nil {
		qp.free()
		return err
	}

	id, err = c.dispatch(c.admin, uint8(CreateIoSubmissionQueueOpCode), 0,
		qp.sqBuffer.Address, 0,
		size|uint32(qp.id),
		uint32(qp.id)<<16|1, // paired CQ id, physically contiguous
		0, 0, 0, 0)
	if err != nil {
		c.releaseSubmissionRing(qp)
		return err
	}

	if _, err := c.admin.Await(id, c.opts.CommandTimeout); err != nil {
		c.releaseSubmissionRing(qp)
		return err
	}

	return nil
}

// releaseSubmissionRing frees the submission ring of a pair whose CQ the
// controller acknowledged but whose SQ it did not. The acknowledged CQ
// ring stays allocated; the controller still owns it.
func (c *Controller) releaseSubmissionRing(qp *QueuePair) {
	if qp.sqBuffer != nil {
		c.arena.Free(qp.sqBuffer)
		qp.sqBuffer = nil
	}
}
