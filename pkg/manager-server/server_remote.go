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

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"
)

// RemoteServerController forwards mount operations to a mount agent
// on another host. The agent hosts the same operations under
// /v1/mounts.
type RemoteServerController struct {
	address string
	client  *http.Client
	log     logr.Logger
}

// MountRequest is the agent's wire format for Mount.
type MountRequest struct {
	Device     string `json:"device"`
	Mountpoint string `json:"mountpoint"`
	FsType     string `json:"fsType"`
}

// MountStatus is the agent's wire format for IsMounted.
type MountStatus struct {
	Mounted bool `json:"mounted"`
}

func NewRemoteServerController(opts ServerControllerOptions) *RemoteServerController {
	return &RemoteServerController{
		address: opts.Address,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     opts.Log.WithName("remote-server"),
	}
}

func (c *RemoteServerController) mountsUrl(mountpoint string) string {
	u := fmt.Sprintf("http://%s/v1/mounts", c.address)
	if mountpoint != "" {
		u += "?mountpoint=" + url.QueryEscape(mountpoint)
	}
	return u
}

func (c *RemoteServerController) Mount(device, mountpoint, fstype string) error {
	body := bytes.NewBuffer([]byte{})
	if err := json.NewEncoder(body).Encode(MountRequest{Device: device, Mountpoint: mountpoint, FsType: fstype}); err != nil {
		return err
	}

	response, err := c.client.Post(c.mountsUrl(""), "application/json", body)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	c.log.Info("Mount", "device", device, "mountpoint", mountpoint, "status", response.StatusCode)
	return statusToError(response.StatusCode, ErrAlreadyMounted)
}

func (c *RemoteServerController) Unmount(mountpoint string) error {
	request, err := http.NewRequest(http.MethodDelete, c.mountsUrl(mountpoint), nil)
	if err != nil {
		return err
	}

	response, err := c.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	c.log.Info("Unmount", "mountpoint", mountpoint, "status", response.StatusCode)
	return statusToError(response.StatusCode, ErrNotMounted)
}

func (c *RemoteServerController) IsMounted(mountpoint string) (bool, error) {
	response, err := c.client.Get(c.mountsUrl(mountpoint))
	if err != nil {
		return false, err
	}
	defer response.Body.Close()

	if err := statusToError(response.StatusCode, nil); err != nil {
		return false, err
	}

	status := MountStatus{}
	if err := json.NewDecoder(response.Body).Decode(&status); err != nil {
		return false, err
	}

	return status.Mounted, nil
}

// statusToError maps the agent's status codes onto the controller
// errors. Not acceptable carries the conflict error for the operation.
func statusToError(status int, conflict error) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotAcceptable:
		if conflict != nil {
			return conflict
		}
	}
	return fmt.Errorf("mount agent returned status %d", status)
}
