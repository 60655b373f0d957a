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

// Package tpm is the command transport boundary to a trusted platform
// module. Command construction and response parsing belong to the
// caller; this layer only moves framed bytes.
package tpm

import "errors"

var ErrResponseTruncated = errors.New("tpm response truncated")

// Transport delivers one TPM command and returns its response frame.
type Transport interface {
	Transmit(command []byte) ([]byte, error)
	Close() error
}
