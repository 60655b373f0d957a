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
)

const (
	SubmissionEntrySize = 64
	CompletionEntrySize = 16
)

type AdminCommandOpCode uint8

// Admin Command Op Codes. These are from the NVMe Specification
const (
	DeleteIoSubmissionQueueOpCode AdminCommandOpCode = 0x00
	CreateIoSubmissionQueueOpCode AdminCommandOpCode = 0x01
	DeleteIoCompletionQueueOpCode AdminCommandOpCode = 0x04
	CreateIoCompletionQueueOpCode AdminCommandOpCode = 0x05
	IdentifyOpCode                AdminCommandOpCode = 0x06
)

type IoCommandOpCode uint8

// NVM Command Set Op Codes
const (
	FlushOpCode IoCommandOpCode = 0x00
	WriteOpCode IoCommandOpCode = 0x01
	ReadOpCode  IoCommandOpCode = 0x02
)

// CNS values for the Identify command.
type IdentifyControllerOrNamespaceType uint32

const (
	Namespace_CNS  IdentifyControllerOrNamespaceType = 0x00
	Controller_CNS IdentifyControllerOrNamespaceType = 0x01
)

// SubmissionEntry is one 64-byte command slot in a submission ring.
// Little-endian, byte-exact per the common command format (NVM-Express
// 1.4, figure 105).
type SubmissionEntry struct {
	Opcode          uint8    // Byte 0
	Flags           uint8    // Byte 1: PSDT/FUSE, always zero here
	CommandId       uint16   // Bytes 2-3
	NamespaceId     uint32   // Bytes 4-7
	Reserved8       [8]byte  // Bytes 8-15
	MetadataPointer uint64   // Bytes 16-23
	PRP1            uint64   // Bytes 24-31
	PRP2            uint64   // Bytes 32-39
	CDW10           uint32   // Bytes 40-43
	CDW11           uint32   // Bytes 44-47
	CDW12           uint32   // Bytes 48-51
	CDW13           uint32   // Bytes 52-55
	CDW14           uint32   // Bytes 56-59
	CDW15           uint32   // Bytes 60-63
}

// CompletionEntry is one 16-byte result slot in a completion ring.
type CompletionEntry struct {
	Result    uint32 // Bytes 0-3, command specific
	Reserved4 uint32 // Bytes 4-7
	SQHead    uint16 // Bytes 8-9, submission head snapshot
	SQId      uint16 // Bytes 10-11
	CommandId uint16 // Bytes 12-13
	Status    uint16 // Bytes 14-15: bit 0 phase, bits 1-8 code, bits 9-11 type
}

// Phase is the phase tag the controller wrote with this entry.
func (e *CompletionEntry) Phase() uint8 {
	return uint8(e.Status & 0x1)
}

// StatusCode is zero on success.
func (e *CompletionEntry) StatusCode() uint8 {
	return uint8(e.Status >> 1 & 0xFF)
}

// StatusCodeType distinguishes generic, command-specific and media errors.
func (e *CompletionEntry) StatusCodeType() uint8 {
	return uint8(e.Status >> 9 & 0x7)
}

// Err returns nil for a successful completion, otherwise the decoded
// status as a CommandStatusError.
func (e *CompletionEntry) Err() error {
	if e.StatusCode() == 0 {
		return nil
	}
	return &CommandStatusError{Type: e.StatusCodeType(), Code: e.StatusCode()}
}

func encodeCompletionStatus(phase uint8, code uint8, statusType uint8) uint16 {
	return uint16(phase&0x1) | uint16(code)<<1 | uint16(statusType&0x7)<<9
}

func (e *SubmissionEntry) encodeInto(slot []byte) error {
	buf, err := structex.EncodeByteBuffer(*e)
	if err != nil {
		return err
	}

	copy(slot, buf)
	return nil
}

func decodeSubmissionEntry(slot []byte) (*SubmissionEntry, error) {
	entry := new(SubmissionEntry)
	if err := structex.DecodeByteBuffer(bytes.NewBuffer(slot), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (e *CompletionEntry) encodeInto(slot []byte) error {
	buf, err := structex.EncodeByteBuffer(*e)
	if err != nil {
		return err
	}

	copy(slot, buf)
	return nil
}

func decodeCompletionEntry(slot []byte) (*CompletionEntry, error) {
	entry := new(CompletionEntry)
	if err := structex.DecodeByteBuffer(bytes.NewBuffer(slot), entry); err != nil {
		return nil, err
	}
	return entry, nil
}
