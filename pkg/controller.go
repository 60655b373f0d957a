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

package bms

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/BareMetalStorage/bms-ec/pkg/ec"
	server "github.com/BareMetalStorage/bms-ec/pkg/manager-server"
	storage "github.com/BareMetalStorage/bms-ec/pkg/manager-storage"
)

const Name = "Bare Metal Storage"
const Port = 50053
const Version = "v1"

// Options configure the storage element controller.
type Options struct {
	store string
	local bool

	log logr.Logger
}

func NewDefaultOptions() *Options {
	return &Options{store: "bms.db", local: false, log: logr.Discard()}
}

// WithLogger routes mount activity through the supplied logger.
func (o *Options) WithLogger(log logr.Logger) *Options {
	o.log = log
	return o
}

// NewMockOptions returns options suitable for tests. Without
// persistence the volume registry lands in a throwaway directory.
func NewMockOptions(persistent bool) *Options {
	opts := NewDefaultOptions()

	if !persistent {
		dir, err := os.MkdirTemp("", "bms-ec")
		if err == nil {
			opts.store = filepath.Join(dir, "mock.db")
		}
	}

	return opts
}

// BindFlags registers the storage controller command line options.
func BindFlags(fs *flag.FlagSet) *Options {
	opts := NewDefaultOptions()

	fs.StringVar(&opts.store, "store", opts.store, "Path of the persistent volume registry")
	fs.BoolVar(&opts.local, "local", opts.local, "Mount attached volumes on the local node")

	return opts
}

// NewController builds the storage element controller. The caller owns
// the lifecycle through ec.Controller Init, Run and Close.
func NewController(opts *Options) *ec.Controller {
	storageOpts := storage.Options{Store: opts.store}
	if opts.local {
		storageOpts.ServerProvider = server.DefaultServerControllerProvider{}
		storageOpts.ServerOptions = server.ServerControllerOptions{Local: true, Log: opts.log}
	}

	manager := storage.NewManager(storageOpts)

	return &ec.Controller{
		Name:    Name,
		Port:    Port,
		Version: Version,
		Routers: ec.Routers{
			NewDefaultApiRouter(NewDefaultApiService(manager), manager),
		},
	}
}
