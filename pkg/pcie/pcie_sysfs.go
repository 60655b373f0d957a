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

//go:build linux

package pcie

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/BareMetalStorage/bms-ec/pkg/mmio"
)

const sysfsDeviceRoot = "/sys/bus/pci/devices"

// Command register location in configuration space.
const commandRegisterOffset = 4

type sysfsProvider struct {
	root string
	log  *log.Entry
}

// NewSysfsProvider enumerates devices through /sys/bus/pci.
func NewSysfsProvider(logger *log.Entry) DeviceProvider {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &sysfsProvider{root: sysfsDeviceRoot, log: logger}
}

func (p *sysfsProvider) FindDevices(classCode uint32) ([]Device, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.root, err)
	}

	devices := []Device{}
	for _, entry := range entries {
		path := filepath.Join(p.root, entry.Name())

		class, err := readHexAttribute(filepath.Join(path, "class"))
		if err != nil {
			continue
		}

		// The class attribute holds the full 24-bit value; the sub-class
		// match ignores the programming interface byte.
		if uint32(class>>8) != classCode {
			continue
		}

		dev, err := newSysfsDevice(path, entry.Name())
		if err != nil {
			p.log.WithError(err).WithField("Device", entry.Name()).Warn("Device attributes unreadable")
			continue
		}

		p.log.WithFields(log.Fields{
			"Device": entry.Name(),
			"Vendor": fmt.Sprintf("%#04x", dev.VendorId()),
			"Id":     fmt.Sprintf("%#04x", dev.DeviceId()),
		}).Debug("Device discovered")

		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	return devices, nil
}

type sysfsDevice struct {
	path    string
	address string

	vendorId uint16
	deviceId uint16

	bars []mmio.RegisterClient
}

func newSysfsDevice(path, address string) (*sysfsDevice, error) {
	vendor, err := readHexAttribute(filepath.Join(path, "vendor"))
	if err != nil {
		return nil, err
	}

	device, err := readHexAttribute(filepath.Join(path, "device"))
	if err != nil {
		return nil, err
	}

	return &sysfsDevice{
		path:     path,
		address:  address,
		vendorId: uint16(vendor),
		deviceId: uint16(device),
	}, nil
}

func (d *sysfsDevice) Address() string  { return d.address }
func (d *sysfsDevice) VendorId() uint16 { return d.vendorId }
func (d *sysfsDevice) DeviceId() uint16 { return d.deviceId }

// EnableBusMasterAndMemory read-modify-writes the command register in
// configuration space.
func (d *sysfsDevice) EnableBusMasterAndMemory() error {
	f, err := os.OpenFile(filepath.Join(d.path, "config"), os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	command := make([]byte, 2)
	if _, err := f.ReadAt(command, commandRegisterOffset); err != nil {
		return err
	}

	value := binary.LittleEndian.Uint16(command)
	value |= CommandMemorySpace | CommandBusMaster
	binary.LittleEndian.PutUint16(command, value)

	_, err = f.WriteAt(command, commandRegisterOffset)
	return err
}

func (d *sysfsDevice) MapBar(index int) (mmio.RegisterClient, error) {
	resource := filepath.Join(d.path, fmt.Sprintf("resource%d", index))

	info, err := os.Stat(resource)
	if err != nil {
		return nil, ErrNoBar
	}

	client, err := mmio.OpenDevice(resource, uint64(info.Size()))
	if err != nil {
		return nil, err
	}

	d.bars = append(d.bars, client)
	return client, nil
}

func (d *sysfsDevice) Close() error {
	for _, bar := range d.bars {
		if closer, ok := bar.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				return err
			}
		}
	}
	d.bars = nil
	return nil
}

func readHexAttribute(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	text := strings.TrimSpace(string(data))
	text = strings.TrimPrefix(text, "0x")

	return strconv.ParseUint(text, 16, 64)
}
