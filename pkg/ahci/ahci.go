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

// Package ahci is the boundary to SATA devices behind an AHCI host
// adapter. The controller suite consumes the adapter as an existing
// service; the command engine for it lives elsewhere.
package ahci

import "errors"

var (
	ErrNoDevice   = errors.New("no device on port")
	ErrOutOfRange = errors.New("access beyond end of device")
)

// Identity describes an attached SATA device.
type Identity struct {
	Model      string
	Serial     string
	BlockCount uint64
	BlockSize  uint32
}

// Device is one SATA drive. Implementations issue the actual ATA
// commands; callers see only block semantics.
type Device interface {
	Identify() (Identity, error)
	Read(lba uint64, count uint32, buf []byte) error
	Write(lba uint64, count uint32, buf []byte) error
}

// HostAdapter exposes the populated ports of an AHCI controller.
type HostAdapter interface {
	Ports() []int
	Device(port int) (Device, error)
}
