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
	"fmt"

	"github.com/BareMetalStorage/bms-ec/pkg/nvme"
)

// BringupCmd brings up the controller and reports the negotiated
// queue and transfer limits.
type BringupCmd struct {
	Device string `kong:"arg,required,help='PCIe address of the nvme device, or mock.'"`
}

// Run will run the Bringup Command.
func (cmd *BringupCmd) Run() error {
	return run(cmd.Device, func(ctrl *nvme.Controller) error {
		identity := ctrl.Identity()

		fmt.Printf("State:              %s\n", ctrl.State())
		fmt.Printf("Serial Number:      %s\n", identity.SerialNumber)
		fmt.Printf("Model Number:       %s\n", identity.ModelNumber)
		fmt.Printf("Max Transfer Bytes: %d\n", ctrl.MaxTransferBytes())

		return nil
	})
}

// IdCtrlCmd shows the controller identity.
type IdCtrlCmd struct {
	Device string `kong:"arg,required,help='PCIe address of the nvme device, or mock.'"`
}

// Run will run the Identify Controller Command.
func (cmd *IdCtrlCmd) Run() error {
	return run(cmd.Device, func(ctrl *nvme.Controller) error {
		fmt.Printf("Identify Controller:\n")
		fmt.Printf("%+v\n", ctrl.Identity())

		return nil
	})
}

// ListNsCmd shows the namespaces reported by the controller.
type ListNsCmd struct {
	Device string `kong:"arg,required,help='PCIe address of the nvme device, or mock.'"`
	All    bool   `kong:"optional,default='false',help='Show inactive namespaces as well.'"`
}

// Run will run the List Namespace Command.
func (cmd *ListNsCmd) Run() error {
	return run(cmd.Device, func(ctrl *nvme.Controller) error {
		for _, ns := range ctrl.Namespaces() {
			if !ns.Active && !cmd.All {
				continue
			}

			fmt.Printf("[%4d]: %d blocks of %d bytes (%d bytes)\n",
				ns.Id, ns.BlockCount, ns.BlockSize, ns.Bytes())
		}

		return nil
	})
}
