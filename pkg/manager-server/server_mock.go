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

package server

type MockServerControllerProvider struct {
	// Controller, when set, is handed out instead of a fresh instance.
	Controller *MockServerController
}

func (p MockServerControllerProvider) NewServerController(ServerControllerOptions) ServerControllerApi {
	if p.Controller != nil {
		return p.Controller
	}
	return NewMockServerController()
}

// MockServerController tracks mounts in memory.
type MockServerController struct {
	Mounts map[string]string // mountpoint -> device
}

func NewMockServerController() *MockServerController {
	return &MockServerController{Mounts: make(map[string]string)}
}

func (c *MockServerController) Mount(device, mountpoint, fstype string) error {
	if _, ok := c.Mounts[mountpoint]; ok {
		return ErrAlreadyMounted
	}
	c.Mounts[mountpoint] = device
	return nil
}

func (c *MockServerController) Unmount(mountpoint string) error {
	if _, ok := c.Mounts[mountpoint]; !ok {
		return ErrNotMounted
	}
	delete(c.Mounts, mountpoint)
	return nil
}

func (c *MockServerController) IsMounted(mountpoint string) (bool, error) {
	_, ok := c.Mounts[mountpoint]
	return ok, nil
}
