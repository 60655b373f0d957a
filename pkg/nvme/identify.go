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
	"strings"
)

const IdentifyDataSize = 4096

// IdentifyController is the Identify Controller data structure, trimmed
// to the fields this driver consumes but offset-exact against figure 249
// of the NVM-Express 1.4 specification. ASCII fields are space padded.
type IdentifyController struct {
	PCIVendorId                uint16   // VID, byte 0
	PCISubsystemVendorId       uint16   // SSVID, byte 2
	SerialNumber               [20]byte // SN, byte 4
	ModelNumber                [40]byte // MN, byte 24
	FirmwareRevision           [8]byte  // FR, byte 64
	Reserved72                 [5]byte
	MaximumDataTransferSize    uint8  // MDTS, byte 77, 2^n pages
	ControllerId               uint16 // CNTLID, byte 78
	Reserved80                 [432]byte
	SubmissionQueueEntrySize   uint8  // SQES, byte 512
	CompletionQueueEntrySize   uint8  // CQES, byte 513
	MaximumOutstandingCommands uint16 // MAXCMD, byte 514
	NumberOfNamespaces         uint32 // NN, byte 516
	Reserved520                [3576]byte
}

// IdentifyNamespace is the Identify Namespace data structure, trimmed
// the same way (figure 247).
type IdentifyNamespace struct {
	Size               uint64           // NSZE, logical blocks
	Capacity           uint64           // NCAP
	Utilization        uint64           // NUSE
	Features           uint8            // NSFEAT
	NumberOfLBAFormats uint8            // NLBAF
	FormattedLBASize   FormattedLBASize // FLBAS, byte 26
	Reserved27         [101]byte
	LBAFormats         [16]LBAFormat // byte 128
	Reserved192        [3904]byte
}

// FormattedLBASize selects the namespace's active LBA format.
type FormattedLBASize struct {
	Format   uint8 `bitfield:"4"`
	Metadata uint8 `bitfield:"1"`
	Reserved uint8 `bitfield:"3"`
}

type LBAFormat struct {
	MetadataSize        uint16 // MS
	LBADataSize         uint8  // LBADS, block size = 2^n bytes
	RelativePerformance uint8  // RP
}

// ControllerIdentity is the decoded subset the rest of the suite reads.
type ControllerIdentity struct {
	VendorId          uint16
	SubsystemVendorId uint16
	SerialNumber      string
	ModelNumber       string
	FirmwareRevision  string

	MaxOutstandingCommands uint16
	NamespaceCount         uint32
}

func (id *IdentifyController) decode() ControllerIdentity {
	return ControllerIdentity{
		VendorId:          id.PCIVendorId,
		SubsystemVendorId: id.PCISubsystemVendorId,
		SerialNumber:      trimPadded(id.SerialNumber[:]),
		ModelNumber:       trimPadded(id.ModelNumber[:]),
		FirmwareRevision:  trimPadded(id.FirmwareRevision[:]),

		MaxOutstandingCommands: id.MaximumOutstandingCommands,
		NamespaceCount:         id.NumberOfNamespaces,
	}
}

func trimPadded(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

// Namespace is one addressable logical volume on the controller. A
// namespace never shrinks within a session.
type Namespace struct {
	Id         uint32
	BlockCount uint64
	BlockSize  uint32
	Active     bool
}

// Bytes is the namespace capacity in bytes.
func (ns *Namespace) Bytes() uint64 {
	return ns.BlockCount * uint64(ns.BlockSize)
}

func (id *IdentifyNamespace) toNamespace(nsid uint32) Namespace {
	format := id.LBAFormats[id.FormattedLBASize.Format]

	return Namespace{
		Id:         nsid,
		BlockCount: id.Size,
		BlockSize:  1 << format.LBADataSize,
		Active:     id.Size > 0,
	}
}
