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
	"os"

	"github.com/go-logr/logr"
	"k8s.io/mount-utils"
)

type localServerController struct {
	mounter mount.Interface
	log     logr.Logger
}

func newLocalServerController(opts ServerControllerOptions) ServerControllerApi {
	return &localServerController{
		mounter: mount.New(""),
		log:     opts.Log.WithName("server"),
	}
}

func (c *localServerController) Mount(device, mountpoint, fstype string) error {
	if mounted, err := c.IsMounted(mountpoint); err != nil {
		return err
	} else if mounted {
		return ErrAlreadyMounted
	}

	if err := os.MkdirAll(mountpoint, 0755); err != nil {
		return err
	}

	c.log.Info("Mounting volume", "device", device, "mountpoint", mountpoint, "fstype", fstype)
	return c.mounter.Mount(device, mountpoint, fstype, nil)
}

func (c *localServerController) Unmount(mountpoint string) error {
	if mounted, err := c.IsMounted(mountpoint); err != nil {
		return err
	} else if !mounted {
		return ErrNotMounted
	}

	c.log.Info("Unmounting volume", "mountpoint", mountpoint)
	return c.mounter.Unmount(mountpoint)
}

func (c *localServerController) IsMounted(mountpoint string) (bool, error) {
	notMounted, err := c.mounter.IsLikelyNotMountPoint(mountpoint)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !notMounted, nil
}
