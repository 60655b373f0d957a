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

package pcie

import (
	"errors"

	"github.com/BareMetalStorage/bms-ec/pkg/mmio"
)

// Class codes of interest, upper 16 bits of the 24-bit class register.
const (
	NvmeClassCode = 0x0108 // mass storage, NVM controller
	AhciClassCode = 0x0106 // mass storage, SATA AHCI
)

// Command register bits.
const (
	CommandMemorySpace = 1 << 1
	CommandBusMaster   = 1 << 2
)

var (
	ErrNoDevice = errors.New("no matching pcie device")
	ErrNoBar    = errors.New("base address register not present")
)

// Device is one PCIe function. Implementations exist for sysfs-backed
// hardware and for tests.
type Device interface {
	// Address is the bus location, e.g. 0000:03:00.0.
	Address() string

	VendorId() uint16
	DeviceId() uint16

	// EnableBusMasterAndMemory sets the command register bits the
	// function needs before it can decode BAR accesses or DMA.
	EnableBusMasterAndMemory() error

	// MapBar maps the given base address register into the process and
	// returns a register client over it.
	MapBar(index int) (mmio.RegisterClient, error)

	Close() error
}

// DeviceProvider finds devices by class code.
type DeviceProvider interface {
	FindDevices(classCode uint32) ([]Device, error)
}
