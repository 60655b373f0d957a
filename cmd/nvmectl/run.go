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

package main

import (
	"github.com/BareMetalStorage/bms-ec/pkg/mem"
	"github.com/BareMetalStorage/bms-ec/pkg/nvme"
	"github.com/BareMetalStorage/bms-ec/pkg/pcie"
)

const arenaSize = 4 << 20

// run brings up the controller at address and hands it to fn. The
// address "mock" provisions a software controller with one namespace,
// useful for exercising commands without hardware.
func run(address string, fn func(ctrl *nvme.Controller) error) error {
	if address == "mock" {
		arena := mem.NewArena(arenaSize)
		mock := nvme.NewMockController(arena)
		mock.AddNamespace(1, 512, 1<<16)

		ctrl := nvme.New(mock, arena, nvme.Options{})
		if err := ctrl.Bringup(); err != nil {
			return err
		}

		return fn(ctrl)
	}

	device, err := findDevice(address)
	if err != nil {
		return err
	}
	defer device.Close()

	if err := device.EnableBusMasterAndMemory(); err != nil {
		return err
	}

	regs, err := device.MapBar(0)
	if err != nil {
		return err
	}

	arena, err := mem.NewDeviceArena(arenaSize)
	if err != nil {
		return err
	}

	ctrl := nvme.New(regs, arena, nvme.Options{})
	if err := ctrl.Bringup(); err != nil {
		return err
	}

	return fn(ctrl)
}

func findDevice(address string) (pcie.Device, error) {
	devices, err := pcie.NewSysfsProvider(nil).FindDevices(pcie.NvmeClassCode)
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		if device.Address() == address {
			return device, nil
		}
	}

	return nil, pcie.ErrNoDevice
}
