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

package ahci

import "fmt"

// MockDevice is an in-memory SATA drive.
type MockDevice struct {
	identity Identity
	data     []byte
}

func NewMockDevice(model, serial string, blockSize uint32, blockCount uint64) *MockDevice {
	return &MockDevice{
		identity: Identity{
			Model:      model,
			Serial:     serial,
			BlockCount: blockCount,
			BlockSize:  blockSize,
		},
		data: make([]byte, uint64(blockSize)*blockCount),
	}
}

func (d *MockDevice) Identify() (Identity, error) {
	return d.identity, nil
}

func (d *MockDevice) Read(lba uint64, count uint32, buf []byte) error {
	span, err := d.span(lba, count, buf)
	if err != nil {
		return err
	}
	copy(buf, span)
	return nil
}

func (d *MockDevice) Write(lba uint64, count uint32, buf []byte) error {
	span, err := d.span(lba, count, buf)
	if err != nil {
		return err
	}
	copy(span, buf)
	return nil
}

func (d *MockDevice) span(lba uint64, count uint32, buf []byte) ([]byte, error) {
	if lba >= d.identity.BlockCount || uint64(count) > d.identity.BlockCount-lba {
		return nil, ErrOutOfRange
	}

	length := uint64(count) * uint64(d.identity.BlockSize)
	if uint64(len(buf)) < length {
		return nil, fmt.Errorf("buffer holds %d bytes, transfer needs %d", len(buf), length)
	}

	offset := lba * uint64(d.identity.BlockSize)
	return d.data[offset : offset+length], nil
}

// MockHostAdapter serves mock devices on consecutive ports.
type MockHostAdapter struct {
	devices map[int]Device
}

func NewMockHostAdapter(devices ...Device) *MockHostAdapter {
	adapter := &MockHostAdapter{devices: make(map[int]Device)}
	for port, d := range devices {
		adapter.devices[port] = d
	}
	return adapter
}

func (a *MockHostAdapter) Ports() []int {
	ports := make([]int, 0, len(a.devices))
	for port := range a.devices {
		ports = append(ports, port)
	}
	return ports
}

func (a *MockHostAdapter) Device(port int) (Device, error) {
	d, ok := a.devices[port]
	if !ok {
		return nil, ErrNoDevice
	}
	return d, nil
}
