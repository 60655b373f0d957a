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

// RegisterClient provides uncached, ordered access to a block of memory
// mapped device registers. Offsets are in bytes from the start of the
// mapping. Accesses carry no validation; the caller interprets the bit
// patterns, and a bad mapping surfaces as timeouts further up the stack.
type RegisterClient interface {
	Read32(offset uint64) uint32
	Read64(offset uint64) uint64
	Write32(offset uint64, value uint32)
	Write64(offset uint64, value uint64)
}
