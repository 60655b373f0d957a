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

package tpm

import (
	"encoding/binary"
	"os"
)

const responseHeaderSize = 10

// deviceTransport talks to the kernel's TPM character device. A write
// submits one command; the following read returns the full response.
type deviceTransport struct {
	file *os.File
}

// OpenDevice opens a TPM character device, typically /dev/tpm0.
func OpenDevice(path string) (Transport, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &deviceTransport{file: f}, nil
}

func (t *deviceTransport) Transmit(command []byte) ([]byte, error) {
	if _, err := t.file.Write(command); err != nil {
		return nil, err
	}

	// Response size lives in the header; the device delivers the frame
	// in one read.
	response := make([]byte, 4096)
	n, err := t.file.Read(response)
	if err != nil {
		return nil, err
	}
	if n < responseHeaderSize {
		return nil, ErrResponseTruncated
	}

	size := binary.BigEndian.Uint32(response[2:6])
	if int(size) > n {
		return nil, ErrResponseTruncated
	}

	return response[:size], nil
}

func (t *deviceTransport) Close() error {
	return t.file.Close()
}
