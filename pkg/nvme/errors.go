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

import (
	"errors"
	"fmt"
)

// Every fallible driver operation reports through one of these; nothing
// panics across package boundaries and nothing is retried.
var (
	ErrResetTimeout          = errors.New("controller reset timeout")
	ErrEnableTimeout         = errors.New("controller enable timeout")
	ErrFatalControllerStatus = errors.New("controller reports fatal status")
	ErrQueueFull             = errors.New("submission queue full")
	ErrCommandTimeout        = errors.New("command timeout")
	ErrInvalidNamespace      = errors.New("invalid namespace")
	ErrOutOfRangeAccess      = errors.New("access beyond end of namespace")
	ErrTransferTooLarge      = errors.New("transfer exceeds controller limit")
	ErrAllocationFailure     = errors.New("device memory allocation failure")
	ErrControllerNotReady    = errors.New("controller not ready")
	ErrUnexpectedCompletion  = errors.New("completion for a command never submitted")
)

// CommandStatusError is a non-zero completion status returned by the
// controller for a specific command.
type CommandStatusError struct {
	Type uint8 // status code type
	Code uint8 // status code
}

func (e *CommandStatusError) Error() string {
	return fmt.Sprintf("command failed: status type %#x code %#x", e.Type, e.Code)
}
