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

	"github.com/HewlettPackard/structex"

	"github.com/BareMetalStorage/bms-ec/pkg/mem"
)

// Generic and command-specific status codes the mock hands back.
const (
	mockStatusInvalidOpcode    = 0x01
	mockStatusInvalidNamespace = 0x0B
	mockStatusLbaOutOfRange    = 0x80

	mockStatusTypeGeneric         = 0x0
	mockStatusTypeCommandSpecific = 0x1

	// command-specific set
	mockStatusInvalidQueueId = 0x01
)

// RegisterWrite is one recorded register store.
type RegisterWrite struct {
	Offset uint64
	Value  uint64
	Size   int
}

// MockController models an NVMe controller behind the register
// interface: it honors reset and enable, consumes submission rings when
// their doorbells ring, executes commands against in-memory namespaces
// and writes phase-tagged completions. It shares the driver's arena so
// region pointers resolve to real memory.
type MockController struct {
	arena mem.Arena

	// Presented capabilities and identity. Adjust before Bringup.
	Caps             Capabilities
	Serial           string
	Model            string
	Firmware         string
	MaxDataTransfer  uint8 // MDTS, 2^n pages
	MaxOutstanding   uint16

	// Fault hooks for lifecycle tests.
	HoldReset  bool // never confirms disable; forces a reset timeout
	HoldReady  bool // never confirms enable; forces an enable timeout
	RaiseFatal bool // sets CFS during enable

	failNextCode uint8
	failNextType uint8

	cc   uint32
	csts uint32
	aqa  uint32
	asq  uint64
	acq  uint64

	sqs map[uint16]*mockSubmissionQueue
	cqs map[uint16]*mockCompletionQueue

	namespaces map[uint32]*mockNamespace

	// Traces consumed by tests.
	Writes       []RegisterWrite
	AdminOpcodes []AdminCommandOpCode
}

type mockSubmissionQueue struct {
	base uint64
	size uint16
	head uint16
	cqid uint16
}

type mockCompletionQueue struct {
	base  uint64
	size  uint16
	tail  uint16
	phase uint8
}

type mockNamespace struct {
	blockSize uint32
	data      []byte
}

// NewMockController returns a mock with a small sensible identity. The
// arena must be the same one the driver allocates from.
func NewMockController(arena mem.Arena) *MockController {
	return &MockController{
		arena: arena,
		Caps: Capabilities{
			MaxQueueEntries: 255, // 256 entries, zeroes based
			Timeout:         1,
			DoorbellStride:  0,
		},
		Serial:          "MOCK00000001",
		Model:           "Mock NVMe Controller",
		Firmware:        "1.0",
		MaxDataTransfer: 5, // 128 KiB with 4 KiB pages
		MaxOutstanding:  0,

		sqs:        make(map[uint16]*mockSubmissionQueue),
		cqs:        make(map[uint16]*mockCompletionQueue),
		namespaces: make(map[uint32]*mockNamespace),
	}
}

// AddNamespace provisions an in-memory namespace.
func (m *MockController) AddNamespace(nsid uint32, blockSize uint32, blockCount uint64) {
	m.namespaces[nsid] = &mockNamespace{
		blockSize: blockSize,
		data:      make([]byte, blockSize*uint32(blockCount)),
	}
}

// NamespaceBytes exposes the raw backing store of a namespace for test
// verification.
func (m *MockController) NamespaceBytes(nsid uint32) []byte {
	if ns, ok := m.namespaces[nsid]; ok {
		return ns.data
	}
	return nil
}

// FailNextCommand makes the next executed command complete with the
// given status instead of succeeding.
func (m *MockController) FailNextCommand(statusType, code uint8) {
	m.failNextType, m.failNextCode = statusType, code
}

// DoorbellWrites filters the write trace down to doorbell stores.
func (m *MockController) DoorbellWrites() []RegisterWrite {
	writes := []RegisterWrite{}
	for _, w := range m.Writes {
		if w.Offset >= doorbellRegisterBase {
			writes = append(writes, w)
		}
	}
	return writes
}

func (m *MockController) Read32(offset uint64) uint32 {
	switch offset {
	case VersionRegister:
		return 0x00010400 // 1.4.0
	case ConfigurationRegister:
		return m.cc
	case StatusRegister:
		return m.csts
	case AdminQueueAttributesRegister:
		return m.aqa
	}
	return 0
}

func (m *MockController) Read64(offset uint64) uint64 {
	switch offset {
	case CapabilitiesRegister:
		return EncodeCapabilities(m.Caps)
	case AdminSQBaseRegister:
		return m.asq
	case AdminCQBaseRegister:
		return m.acq
	}
	return 0
}

func (m *MockController) Write32(offset uint64, value uint32) {
	m.Writes = append(m.Writes, RegisterWrite{Offset: offset, Value: uint64(value), Size: 4})

	switch {
	case offset == ConfigurationRegister:
		m.configWrite(value)
	case offset == AdminQueueAttributesRegister:
		m.aqa = value
	case offset >= doorbellRegisterBase:
		m.doorbellWrite(offset, value)
	}
}

func (m *MockController) Write64(offset uint64, value uint64) {
	m.Writes = append(m.Writes, RegisterWrite{Offset: offset, Value: value, Size: 8})

	switch offset {
	case AdminSQBaseRegister:
		m.asq = value
	case AdminCQBaseRegister:
		m.acq = value
	}
}

func (m *MockController) configWrite(value uint32) {
	enabling := value&ConfigEnable != 0 && m.cc&ConfigEnable == 0
	disabling := value&ConfigEnable == 0 && m.cc&ConfigEnable != 0
	m.cc = value

	if enabling {
		if m.RaiseFatal {
			m.csts |= StatusFatal
			return
		}
		if m.HoldReady {
			return
		}

		depth := uint16(m.aqa&0xFFFF) + 1
		m.sqs[0] = &mockSubmissionQueue{base: m.asq, size: depth, cqid: 0}
		m.cqs[0] = &mockCompletionQueue{base: m.acq, size: depth, phase: 1}
		m.csts |= StatusReady
	}

	if disabling && !m.HoldReset {
		m.csts &^= StatusReady
		m.sqs = make(map[uint16]*mockSubmissionQueue)
		m.cqs = make(map[uint16]*mockCompletionQueue)
	}
}

func (m *MockController) doorbellWrite(offset uint64, value uint32) {
	rel := offset - doorbellRegisterBase
	pair := 2 * m.Caps.DoorbellStrideBytes()

	if rel%pair == 0 {
		m.submissionDoorbellWrite(uint16(rel/pair), uint16(value))
	}
	// A completion head write only frees slots; with rings no deeper
	// than the submission ring the mock never overruns, so it is a no-op.
}

func (m *MockController) submissionDoorbellWrite(qid uint16, tail uint16) {
	sq, ok := m.sqs[qid]
	if !ok {
		return
	}

	for sq.head != tail {
		slot, err := m.arena.Resolve(sq.base+uint64(sq.head)*SubmissionEntrySize, SubmissionEntrySize)
		if err != nil {
			return
		}

		entry, err := decodeSubmissionEntry(slot)
		if err != nil {
			return
		}

		sq.head = (sq.head + 1) % sq.size

		statusType, code := m.execute(qid, entry)
		m.post(sq, entry, statusType, code, qid)
	}
}

func (m *MockController) post(sq *mockSubmissionQueue, cmd *SubmissionEntry, statusType, code uint8, qid uint16) {
	cq, ok := m.cqs[sq.cqid]
	if !ok {
		return
	}

	slot, err := m.arena.Resolve(cq.base+uint64(cq.tail)*CompletionEntrySize, CompletionEntrySize)
	if err != nil {
		return
	}

	entry := CompletionEntry{
		SQHead:    sq.head,
		SQId:      qid,
		CommandId: cmd.CommandId,
		Status:    encodeCompletionStatus(cq.phase, code, statusType),
	}

	// The status word carries the phase tag, so it lands last; a host
	// scanning the ring must not see a phase-matched status ahead of the
	// other fields.
	if err := entry.encodeInto(slot); err != nil {
		return
	}

	cq.tail = (cq.tail + 1) % cq.size
	if cq.tail == 0 {
		cq.phase ^= 1
	}
}

func (m *MockController) execute(qid uint16, cmd *SubmissionEntry) (uint8, uint8) {
	if m.failNextCode != 0 || m.failNextType != 0 {
		statusType, code := m.failNextType, m.failNextCode
		m.failNextType, m.failNextCode = 0, 0
		return statusType, code
	}

	if qid == 0 {
		return m.executeAdmin(cmd)
	}
	return m.executeIo(cmd)
}

func (m *MockController) executeAdmin(cmd *SubmissionEntry) (uint8, uint8) {
	opcode := AdminCommandOpCode(cmd.Opcode)
	m.AdminOpcodes = append(m.AdminOpcodes, opcode)

	switch opcode {
	case IdentifyOpCode:
		return m.executeIdentify(cmd)

	case CreateIoCompletionQueueOpCode:
		qid := uint16(cmd.CDW10)
		size := uint16(cmd.CDW10>>16) + 1
		m.cqs[qid] = &mockCompletionQueue{base: cmd.PRP1, size: size, phase: 1}
		return 0, 0

	case CreateIoSubmissionQueueOpCode:
		qid := uint16(cmd.CDW10)
		size := uint16(cmd.CDW10>>16) + 1
		cqid := uint16(cmd.CDW11 >> 16)
		if _, ok := m.cqs[cqid]; !ok {
			return mockStatusTypeCommandSpecific, mockStatusInvalidQueueId
		}
		m.sqs[qid] = &mockSubmissionQueue{base: cmd.PRP1, size: size, cqid: cqid}
		return 0, 0
	}

	return mockStatusTypeGeneric, mockStatusInvalidOpcode
}

func (m *MockController) executeIdentify(cmd *SubmissionEntry) (uint8, uint8) {
	page, err := m.arena.Resolve(cmd.PRP1, IdentifyDataSize)
	if err != nil {
		return mockStatusTypeGeneric, mockStatusInvalidOpcode
	}

	switch IdentifyControllerOrNamespaceType(cmd.CDW10 & 0xFF) {
	case Controller_CNS:
		id := IdentifyController{
			PCIVendorId:                0x1B4B,
			PCISubsystemVendorId:       0x1B4B,
			MaximumDataTransferSize:    m.MaxDataTransfer,
			SubmissionQueueEntrySize:   0x66,
			CompletionQueueEntrySize:   0x44,
			MaximumOutstandingCommands: m.MaxOutstanding,
			NumberOfNamespaces:         m.namespaceCount(),
		}
		padCopy(id.SerialNumber[:], m.Serial)
		padCopy(id.ModelNumber[:], m.Model)
		padCopy(id.FirmwareRevision[:], m.Firmware)

		return m.encodePage(page, id)

	case Namespace_CNS:
		ns, ok := m.namespaces[cmd.NamespaceId]
		if !ok {
			// Inactive namespace: all-zero page.
			for i := range page {
				page[i] = 0
			}
			return 0, 0
		}

		id := IdentifyNamespace{
			Size:               uint64(len(ns.data)) / uint64(ns.blockSize),
			Capacity:           uint64(len(ns.data)) / uint64(ns.blockSize),
			NumberOfLBAFormats: 1,
		}
		id.LBAFormats[0].LBADataSize = log2(ns.blockSize)

		return m.encodePage(page, id)
	}

	return mockStatusTypeGeneric, mockStatusInvalidOpcode
}

func (m *MockController) encodePage(page []byte, v interface{}) (uint8, uint8) {
	buf, err := structex.EncodeByteBuffer(v)
	if err != nil {
		return mockStatusTypeGeneric, mockStatusInvalidOpcode
	}

	copy(page, buf)
	return 0, 0
}

func (m *MockController) executeIo(cmd *SubmissionEntry) (uint8, uint8) {
	ns, ok := m.namespaces[cmd.NamespaceId]
	if !ok {
		return mockStatusTypeGeneric, mockStatusInvalidNamespace
	}

	count := uint64(cmd.CDW10) + 1
	lba := uint64(cmd.CDW11) | uint64(cmd.CDW12)<<32
	blockCount := uint64(len(ns.data)) / uint64(ns.blockSize)

	if lba >= blockCount || count > blockCount-lba {
		return mockStatusTypeGeneric, mockStatusLbaOutOfRange
	}

	var write bool
	switch IoCommandOpCode(cmd.Opcode) {
	case WriteOpCode:
		write = true
	case ReadOpCode:
	case FlushOpCode:
		// nothing buffered
		return 0, 0
	default:
		return mockStatusTypeGeneric, mockStatusInvalidOpcode
	}

	length := count * uint64(ns.blockSize)
	media := ns.data[lba*uint64(ns.blockSize) : lba*uint64(ns.blockSize)+length]

	segments, err := m.resolveDataPointers(cmd, length)
	if err != nil {
		return mockStatusTypeGeneric, mockStatusInvalidOpcode
	}

	offset := 0
	for _, seg := range segments {
		if write {
			copy(media[offset:], seg)
		} else {
			copy(seg, media[offset:])
		}
		offset += len(seg)
	}

	return 0, 0
}

// resolveDataPointers walks the command's region pointers into host
// memory segments covering length bytes. A transfer beyond two pages
// carries a list page in PRP2 with one 8-byte pointer per remaining
// page.
func (m *MockController) resolveDataPointers(cmd *SubmissionEntry, length uint64) ([][]byte, error) {
	first := length
	if first > mem.PageSize {
		first = mem.PageSize
	}

	host, err := m.arena.Resolve(cmd.PRP1, int(first))
	if err != nil {
		return nil, err
	}
	segments := [][]byte{host}

	remainder := length - first
	if remainder == 0 {
		return segments, nil
	}

	if remainder <= mem.PageSize {
		page, err := m.arena.Resolve(cmd.PRP2, int(remainder))
		if err != nil {
			return nil, err
		}
		return append(segments, page), nil
	}

	entries := int((remainder + mem.PageSize - 1) / mem.PageSize)
	list, err := m.arena.Resolve(cmd.PRP2, entries*8)
	if err != nil {
		return nil, err
	}

	for i := 0; i < entries; i++ {
		chunk := remainder
		if chunk > mem.PageSize {
			chunk = mem.PageSize
		}

		page, err := m.arena.Resolve(binary.LittleEndian.Uint64(list[i*8:]), int(chunk))
		if err != nil {
			return nil, err
		}

		segments = append(segments, page)
		remainder -= chunk
	}

	return segments, nil
}

func (m *MockController) namespaceCount() uint32 {
	max := uint32(0)
	for nsid := range m.namespaces {
		if nsid > max {
			max = nsid
		}
	}
	return max
}

func padCopy(dst []byte, s string) {
	for i := range dst {
		dst[i] = ' '
	}
	copy(dst, s)
}

func log2(v uint32) uint8 {
	n := uint8(0)
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
