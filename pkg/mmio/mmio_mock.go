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

package mmio

import "encoding/binary"

// MockClient serves registers from plain memory. Out of range accesses
// read as zero and write nowhere, like a device that ignores the cycle.
type MockClient struct {
	mem []byte
}

func NewMockClient(size int) *MockClient {
	return &MockClient{mem: make([]byte, size)}
}

func (m *MockClient) Read32(offset uint64) uint32 {
	if offset+4 > uint64(len(m.mem)) {
		return 0
	}
	return binary.LittleEndian.Uint32(m.mem[offset:])
}

func (m *MockClient) Read64(offset uint64) uint64 {
	if offset+8 > uint64(len(m.mem)) {
		return 0
	}
	return binary.LittleEndian.Uint64(m.mem[offset:])
}

func (m *MockClient) Write32(offset uint64, value uint32) {
	if offset+4 > uint64(len(m.mem)) {
		return
	}
	binary.LittleEndian.PutUint32(m.mem[offset:], value)
}

func (m *MockClient) Write64(offset uint64, value uint64) {
	if offset+8 > uint64(len(m.mem)) {
		return
	}
	binary.LittleEndian.PutUint64(m.mem[offset:], value)
}
