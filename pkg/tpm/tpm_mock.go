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

// MockTransport replays canned responses and records the commands it
// received.
type MockTransport struct {
	Commands  [][]byte
	Responses [][]byte
}

func (m *MockTransport) Transmit(command []byte) ([]byte, error) {
	m.Commands = append(m.Commands, append([]byte{}, command...))

	if len(m.Responses) == 0 {
		return nil, ErrResponseTruncated
	}

	response := m.Responses[0]
	m.Responses = m.Responses[1:]
	return response, nil
}

func (m *MockTransport) Close() error { return nil }
