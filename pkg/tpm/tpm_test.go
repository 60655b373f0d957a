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

package tpm

import (
	"bytes"
	"errors"
	"testing"
)

func TestMockTransportReplay(t *testing.T) {
	canned := []byte{0x80, 0x01, 0x00, 0x00, 0x00, 0x0A, 0x00, 0x00, 0x00, 0x00}

	m := &MockTransport{Responses: [][]byte{canned}}

	command := []byte{0x80, 0x01, 0x00, 0x00, 0x00, 0x0C, 0x00, 0x00, 0x01, 0x7B, 0x00, 0x00}
	response, err := m.Transmit(command)
	if err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if !bytes.Equal(response, canned) {
		t.Fatalf("wrong response replayed")
	}

	if len(m.Commands) != 1 || !bytes.Equal(m.Commands[0], command) {
		t.Fatalf("command not recorded")
	}

	if _, err := m.Transmit(command); !errors.Is(err, ErrResponseTruncated) {
		t.Errorf("exhausted transport returned %v, expected ErrResponseTruncated", err)
	}
}
