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

package nvme

// Doorbell address computation. The admin pair sits at 0x1000 (SQ tail)
// and 0x1004 (CQ head); I/O pairs follow at 2*qid doorbell strides from
// the same pair of bases, interleaving submission and completion.

func (c *Controller) submissionDoorbell(queueId uint16) uint64 {
	return doorbellRegisterBase + uint64(2*queueId)*c.strideBytes
}

func (c *Controller) completionDoorbell(queueId uint16) uint64 {
	return doorbellRegisterBase + 4 + uint64(2*queueId)*c.strideBytes
}
