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
	"time"
)

// Controller register offsets, in bytes from the start of BAR0.
const (
	CapabilitiesRegister         = 0x00 // CAP, 8 bytes
	VersionRegister              = 0x08 // VS, 4 bytes
	ConfigurationRegister        = 0x14 // CC, 4 bytes
	StatusRegister               = 0x1C // CSTS, 4 bytes
	AdminQueueAttributesRegister = 0x24 // AQA, 4 bytes
	AdminSQBaseRegister          = 0x28 // ASQ, 8 bytes
	AdminCQBaseRegister          = 0x30 // ACQ, 8 bytes

	doorbellRegisterBase = 0x1000
)

// CC fields
const (
	ConfigEnable                 = 1 << 0
	configCommandSetShift        = 4  // CSS
	configMemoryPageSizeShift    = 7  // MPS, 2^(12+n) bytes
	configArbitrationShift       = 11 // AMS
	configIOSubmissionEntryShift = 16 // IOSQES, log2 of entry size
	configIOCompletionEntryShift = 20 // IOCQES, log2 of entry size

	configIOSubmissionEntrySize = 6 // 64 byte entries
	configIOCompletionEntrySize = 4 // 16 byte entries
)

// CSTS fields
const (
	StatusReady = 1 << 0
	StatusFatal = 1 << 1 // CFS
)

// Capabilities is the decoded controller capabilities register (CAP).
// Section 3.1.1 of the NVM-Express 1.4 base specification.
type Capabilities struct {
	MaxQueueEntries          uint16 // MQES, zeroes based
	ContiguousQueuesRequired bool   // CQR
	ArbitrationMechanism     uint8  // AMS
	Timeout                  uint8  // TO, 500ms units
	DoorbellStride           uint8  // DSTRD, stride = 4 << n bytes
	SubsystemResetSupported  bool   // NSSRS
	CommandSetsSupported     uint8  // CSS
	MemoryPageSizeMinimum    uint8  // MPSMIN, 2^(12+n) bytes
	MemoryPageSizeMaximum    uint8  // MPSMAX
}

// DecodeCapabilities interprets the raw 64-bit CAP value. Garbage in,
// garbage out; a misread register shows up later as a bring-up timeout.
func DecodeCapabilities(raw uint64) Capabilities {
	return Capabilities{
		MaxQueueEntries:          uint16(raw & 0xFFFF),
		ContiguousQueuesRequired: raw&(1<<16) != 0,
		ArbitrationMechanism:     uint8(raw >> 17 & 0x3),
		Timeout:                  uint8(raw >> 24 & 0xFF),
		DoorbellStride:           uint8(raw >> 32 & 0xF),
		SubsystemResetSupported:  raw&(1<<36) != 0,
		CommandSetsSupported:     uint8(raw >> 37 & 0xFF),
		MemoryPageSizeMinimum:    uint8(raw >> 48 & 0xF),
		MemoryPageSizeMaximum:    uint8(raw >> 52 & 0xF),
	}
}

// EncodeCapabilities packs the capability fields back into register form.
// The mock controller presents its CAP register through this.
func EncodeCapabilities(caps Capabilities) uint64 {
	raw := uint64(caps.MaxQueueEntries)
	if caps.ContiguousQueuesRequired {
		raw |= 1 << 16
	}
	raw |= uint64(caps.ArbitrationMechanism&0x3) << 17
	raw |= uint64(caps.Timeout) << 24
	raw |= uint64(caps.DoorbellStride&0xF) << 32
	if caps.SubsystemResetSupported {
		raw |= 1 << 36
	}
	raw |= uint64(caps.CommandSetsSupported) << 37
	raw |= uint64(caps.MemoryPageSizeMinimum&0xF) << 48
	raw |= uint64(caps.MemoryPageSizeMaximum&0xF) << 52

	return raw
}

// DoorbellStrideBytes returns the byte distance between consecutive
// doorbell registers.
func (c *Capabilities) DoorbellStrideBytes() uint64 {
	return 4 << c.DoorbellStride
}

// MaxQueueEntriesSupported converts the zeroes-based MQES field. The
// legal maximum field value 0xFFFF means 65536 entries, so the result
// needs more than 16 bits.
func (c *Capabilities) MaxQueueEntriesSupported() uint32 {
	return uint32(c.MaxQueueEntries) + 1
}

// DefaultTimeout is the controller's worst-case enable/disable latency.
func (c *Capabilities) DefaultTimeout() time.Duration {
	return time.Duration(c.Timeout) * 500 * time.Millisecond
}
