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
	"github.com/BareMetalStorage/bms-ec/pkg/mmio"
)

// MockDevice is a PCIe function whose BAR0 is served by an injected
// register client.
type MockDevice struct {
	MockAddress string
	Vendor      uint16
	Id          uint16
	Bar0        mmio.RegisterClient

	Enabled bool
}

type mockProvider struct {
	devices []Device
}

// NewMockProvider serves the given devices regardless of the requested
// class code.
func NewMockProvider(devices ...Device) DeviceProvider {
	return &mockProvider{devices: devices}
}

func (p *mockProvider) FindDevices(classCode uint32) ([]Device, error) {
	if len(p.devices) == 0 {
		return nil, ErrNoDevice
	}
	return p.devices, nil
}

func (d *MockDevice) Address() string  { return d.MockAddress }
func (d *MockDevice) VendorId() uint16 { return d.Vendor }
func (d *MockDevice) DeviceId() uint16 { return d.Id }

func (d *MockDevice) EnableBusMasterAndMemory() error {
	d.Enabled = true
	return nil
}

func (d *MockDevice) MapBar(index int) (mmio.RegisterClient, error) {
	if index != 0 || d.Bar0 == nil {
		return nil, ErrNoBar
	}
	return d.Bar0, nil
}

func (d *MockDevice) Close() error { return nil }
