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
	"encoding/hex"
	"fmt"
	"os"

	"github.com/BareMetalStorage/bms-ec/pkg/nvme"
)

// ReadCmd reads blocks from a namespace and dumps them to stdout.
type ReadCmd struct {
	Device      string `kong:"arg,required,help='PCIe address of the nvme device, or mock.'"`
	NamespaceId uint32 `kong:"optional,default='1',short='n',help='Namespace to read from.'"`
	Lba         uint64 `kong:"optional,default='0',help='Starting logical block address.'"`
	Count       uint32 `kong:"optional,default='1',help='Number of blocks to read.'"`
}

// Run will run the Read Command.
func (cmd *ReadCmd) Run() error {
	return run(cmd.Device, func(ctrl *nvme.Controller) error {
		ns, err := ctrl.Namespace(cmd.NamespaceId)
		if err != nil {
			return err
		}

		data := make([]byte, uint64(cmd.Count)*uint64(ns.BlockSize))
		if err := ctrl.Read(cmd.NamespaceId, cmd.Lba, cmd.Count, data); err != nil {
			return err
		}

		fmt.Print(hex.Dump(data))
		return nil
	})
}

// WriteCmd writes the contents of a file to a namespace. The file must
// be a whole number of blocks.
type WriteCmd struct {
	Device      string `kong:"arg,required,help='PCIe address of the nvme device, or mock.'"`
	File        string `kong:"arg,required,type='existingFile',help='File providing the data to write.'"`
	NamespaceId uint32 `kong:"optional,default='1',short='n',help='Namespace to write to.'"`
	Lba         uint64 `kong:"optional,default='0',help='Starting logical block address.'"`
}

// Run will run the Write Command.
func (cmd *WriteCmd) Run() error {
	return run(cmd.Device, func(ctrl *nvme.Controller) error {
		ns, err := ctrl.Namespace(cmd.NamespaceId)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(cmd.File)
		if err != nil {
			return err
		}

		if uint64(len(data))%uint64(ns.BlockSize) != 0 {
			return fmt.Errorf("file size %d is not a multiple of the %d byte block size", len(data), ns.BlockSize)
		}

		count := uint32(uint64(len(data)) / uint64(ns.BlockSize))
		if err := ctrl.Write(cmd.NamespaceId, cmd.Lba, count, data); err != nil {
			return err
		}

		fmt.Printf("Wrote %d blocks at LBA %d\n", count, cmd.Lba)
		return nil
	})
}
