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
	"runtime"
	"time"

	"github.com/BareMetalStorage/bms-ec/pkg/mem"
)

// QueuePair owns one submission ring and one completion ring sharing a
// queue id. All index arithmetic happens here; the controller is told of
// progress only through the doorbell writes.
type QueuePair struct {
	id       uint16
	capacity uint16

	sqBuffer *mem.Buffer
	cqBuffer *mem.Buffer

	sqTail  uint16
	sqHead  uint16 // controller's view, from completion snapshots
	cqHead  uint16
	cqPhase uint8

	// Commands dispatched but not yet matched by a completion. The map is
	// keyed by wire command id; because at most capacity-1 commands fit in
	// the ring, a 16-bit id can never collide while in flight.
	inflight map[uint16]struct{}

	// Completions consumed from the ring while waiting for a different
	// command id. Commands may complete out of submission order.
	unclaimed map[uint16]*CompletionEntry

	ctrl *Controller
}

func newQueuePair(ctrl *Controller, id uint16, capacity uint16) (*QueuePair, error) {
	qp := &QueuePair{
		id:        id,
		capacity:  capacity,
		cqPhase:   1,
		inflight:  make(map[uint16]struct{}),
		unclaimed: make(map[uint16]*CompletionEntry),
		ctrl:      ctrl,
	}

	var err error
	if qp.cqBuffer, err = ctrl.arena.Alloc(int(capacity) * CompletionEntrySize); err != nil {
		return nil, ErrAllocationFailure
	}
	if qp.sqBuffer, err = ctrl.arena.Alloc(int(capacity) * SubmissionEntrySize); err != nil {
		ctrl.arena.Free(qp.cqBuffer)
		return nil, ErrAllocationFailure
	}

	return qp, nil
}

func (qp *QueuePair) free() {
	if qp.sqBuffer != nil {
		qp.ctrl.arena.Free(qp.sqBuffer)
		qp.sqBuffer = nil
	}
	if qp.cqBuffer != nil {
		qp.ctrl.arena.Free(qp.cqBuffer)
		qp.cqBuffer = nil
	}
}

func (qp *QueuePair) full() bool {
	return (qp.sqTail+1)%qp.capacity == qp.sqHead
}

// Submit writes the entry into the next free submission slot and advances
// the tail. The entry is assigned its command id here. The hardware is not
// told until the submission doorbell rings; a full ring mutates nothing.
func (qp *QueuePair) Submit(entry *SubmissionEntry) (uint16, error) {
	if qp.full() {
		return 0, ErrQueueFull
	}

	entry.CommandId = qp.ctrl.nextCommandId(qp)

	slot := qp.sqBuffer.Data[int(qp.sqTail)*SubmissionEntrySize:]
	if err := entry.encodeInto(slot[:SubmissionEntrySize]); err != nil {
		return 0, err
	}

	qp.sqTail = (qp.sqTail + 1) % qp.capacity
	qp.inflight[entry.CommandId] = struct{}{}

	return entry.CommandId, nil
}

// ringSubmissionDoorbell publishes the current tail. The ring memory write
// in Submit is complete before this store executes.
func (qp *QueuePair) ringSubmissionDoorbell() {
	qp.ctrl.regs.Write32(qp.ctrl.submissionDoorbell(qp.id), uint32(qp.sqTail))
}

// ringCompletionDoorbell acknowledges consumed completion slots.
func (qp *QueuePair) ringCompletionDoorbell() {
	qp.ctrl.regs.Write32(qp.ctrl.completionDoorbell(qp.id), uint32(qp.cqHead))
}

// pop consumes the entry at the completion head if the controller has
// written one. The phase bit is inspected before any other field of the
// slot; a stale entry must not be decoded.
func (qp *QueuePair) pop() (*CompletionEntry, error) {
	slot := qp.cqBuffer.Data[int(qp.cqHead)*CompletionEntrySize:]
	slot = slot[:CompletionEntrySize]

	status := binary.LittleEndian.Uint16(slot[14:16])
	if uint8(status&0x1) != qp.cqPhase {
		return nil, nil
	}

	entry, err := decodeCompletionEntry(slot)
	if err != nil {
		return nil, err
	}

	qp.cqHead = (qp.cqHead + 1) % qp.capacity
	if qp.cqHead == 0 {
		qp.cqPhase ^= 1
	}

	qp.sqHead = entry.SQHead

	// A completion that matches nothing in flight is a controller bug,
	// not something to set aside silently.
	if _, ok := qp.inflight[entry.CommandId]; !ok {
		return nil, fmt.Errorf("command id %#x: %w", entry.CommandId, ErrUnexpectedCompletion)
	}
	delete(qp.inflight, entry.CommandId)

	return entry, nil
}

// Await busy-polls the completion ring for the given command id until the
// deadline expires. Completions for other in-flight commands encountered
// along the way are set aside and claimed by their own Await calls. Each
// consumed entry is acknowledged through the completion doorbell.
func (qp *QueuePair) Await(commandId uint16, timeout time.Duration) (*CompletionEntry, error) {
	if entry, ok := qp.unclaimed[commandId]; ok {
		delete(qp.unclaimed, commandId)
		return entry, entry.Err()
	}

	deadline := time.Now().Add(timeout)
	for {
		entry, err := qp.pop()
		if err != nil {
			return nil, err
		}

		if entry != nil {
			qp.ringCompletionDoorbell()

			if entry.CommandId == commandId {
				return entry, entry.Err()
			}

			qp.unclaimed[entry.CommandId] = entry
			continue
		}

		if time.Now().After(deadline) {
			return nil, ErrCommandTimeout
		}

		runtime.Gosched()
	}
}
