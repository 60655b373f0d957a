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

// Package server exposes provisioned block volumes to the host: a
// volume's block device is mounted at a path where the consuming
// service expects its data.
package server

import (
	"errors"

	"github.com/go-logr/logr"
)

var (
	ErrNotMounted     = errors.New("path is not mounted")
	ErrAlreadyMounted = errors.New("path is already mounted")
)

// ServerControllerOptions selects the controller implementation.
type ServerControllerOptions struct {
	// Local mounts on this host; otherwise a mock controller tracks
	// mounts in memory.
	Local bool

	// Address of a remote mount agent. Takes precedence over Local.
	Address string

	Log logr.Logger
}

// ServerControllerApi manages block device mounts for volumes.
type ServerControllerApi interface {
	// Mount attaches the device at mountpoint with the given file
	// system type.
	Mount(device, mountpoint, fstype string) error

	// Unmount detaches whatever is mounted at mountpoint.
	Unmount(mountpoint string) error

	// IsMounted reports whether mountpoint currently holds a mount.
	IsMounted(mountpoint string) (bool, error)
}

// ServerControllerProvider builds controllers from options.
type ServerControllerProvider interface {
	NewServerController(ServerControllerOptions) ServerControllerApi
}

// DefaultServerControllerProvider -
type DefaultServerControllerProvider struct{}

func (DefaultServerControllerProvider) NewServerController(opts ServerControllerOptions) ServerControllerApi {
	if opts.Log.GetSink() == nil {
		opts.Log = logr.Discard()
	}

	if opts.Address != "" {
		return NewRemoteServerController(opts)
	}
	if opts.Local {
		return newLocalServerController(opts)
	}
	return NewMockServerController()
}
