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
	"github.com/BareMetalStorage/bms-ec/pkg/ec"
	storage "github.com/BareMetalStorage/bms-ec/pkg/manager-storage"
)

// DefaultApiRouter hosts the storage API on the element controller.
// Route names mirror the servicer's handler names 1:1.
type DefaultApiRouter struct {
	servicer Api
	manager  *storage.Manager
}

// NewDefaultApiRouter -
func NewDefaultApiRouter(s Api, m *storage.Manager) ec.Router {
	return &DefaultApiRouter{servicer: s, manager: m}
}

func (*DefaultApiRouter) Name() string { return "Storage Manager" }

func (r *DefaultApiRouter) Init(log ec.Logger) error {
	log.Info("Initializing storage manager")
	return r.manager.Initialize()
}

func (r *DefaultApiRouter) Start() error { return nil }

func (r *DefaultApiRouter) Close() error { return r.manager.Close() }

// Routes -
func (r *DefaultApiRouter) Routes() ec.Routes {
	s := r.servicer
	return ec.Routes{
		{
			Name:        "V1StorageGet",
			Method:      ec.GET_METHOD,
			Path:        "/v1/storage",
			HandlerFunc: s.V1StorageGet,
		},
		{
			Name:        "V1StorageStorageIdGet",
			Method:      ec.GET_METHOD,
			Path:        "/v1/storage/{StorageId}",
			HandlerFunc: s.V1StorageStorageIdGet,
		},
		{
			Name:        "V1StorageStorageIdVolumesGet",
			Method:      ec.GET_METHOD,
			Path:        "/v1/storage/{StorageId}/volumes",
			HandlerFunc: s.V1StorageStorageIdVolumesGet,
		},
		{
			Name:        "V1StorageStorageIdVolumesPost",
			Method:      ec.POST_METHOD,
			Path:        "/v1/storage/{StorageId}/volumes",
			HandlerFunc: s.V1StorageStorageIdVolumesPost,
		},
		{
			Name:        "V1StorageStorageIdVolumesVolumeIdGet",
			Method:      ec.GET_METHOD,
			Path:        "/v1/storage/{StorageId}/volumes/{VolumeId}",
			HandlerFunc: s.V1StorageStorageIdVolumesVolumeIdGet,
		},
		{
			Name:        "V1StorageStorageIdVolumesVolumeIdDelete",
			Method:      ec.DELETE_METHOD,
			Path:        "/v1/storage/{StorageId}/volumes/{VolumeId}",
			HandlerFunc: s.V1StorageStorageIdVolumesVolumeIdDelete,
		},
		{
			Name:        "V1StorageStorageIdVolumesVolumeIdAttachPost",
			Method:      ec.POST_METHOD,
			Path:        "/v1/storage/{StorageId}/volumes/{VolumeId}/attach",
			HandlerFunc: s.V1StorageStorageIdVolumesVolumeIdAttachPost,
		},
		{
			Name:        "V1StorageStorageIdVolumesVolumeIdDetachPost",
			Method:      ec.POST_METHOD,
			Path:        "/v1/storage/{StorageId}/volumes/{VolumeId}/detach",
			HandlerFunc: s.V1StorageStorageIdVolumesVolumeIdDetachPost,
		},
		{
			Name:        "V1StorageStorageIdVolumesVolumeIdReadPost",
			Method:      ec.POST_METHOD,
			Path:        "/v1/storage/{StorageId}/volumes/{VolumeId}/read",
			HandlerFunc: s.V1StorageStorageIdVolumesVolumeIdReadPost,
		},
		{
			Name:        "V1StorageStorageIdVolumesVolumeIdWritePost",
			Method:      ec.POST_METHOD,
			Path:        "/v1/storage/{StorageId}/volumes/{VolumeId}/write",
			HandlerFunc: s.V1StorageStorageIdVolumesVolumeIdWritePost,
		},
	}
}
