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
	"net/http"
)

// Api defines the storage endpoints hosted by the element controller.
// Handler names follow the V1{Path} convention so the route table in
// the router reads as a 1:1 mapping.
type Api interface {
	V1StorageGet(w http.ResponseWriter, r *http.Request)
	V1StorageStorageIdGet(w http.ResponseWriter, r *http.Request)

	V1StorageStorageIdVolumesGet(w http.ResponseWriter, r *http.Request)
	V1StorageStorageIdVolumesPost(w http.ResponseWriter, r *http.Request)
	V1StorageStorageIdVolumesVolumeIdGet(w http.ResponseWriter, r *http.Request)
	V1StorageStorageIdVolumesVolumeIdDelete(w http.ResponseWriter, r *http.Request)

	V1StorageStorageIdVolumesVolumeIdAttachPost(w http.ResponseWriter, r *http.Request)
	V1StorageStorageIdVolumesVolumeIdDetachPost(w http.ResponseWriter, r *http.Request)

	V1StorageStorageIdVolumesVolumeIdReadPost(w http.ResponseWriter, r *http.Request)
	V1StorageStorageIdVolumesVolumeIdWritePost(w http.ResponseWriter, r *http.Request)
}

// StorageCollection lists the managed storage devices by id.
type StorageCollection struct {
	Storage []string `json:"storage"`
}

// StorageModel describes one storage device.
type StorageModel struct {
	Id               string `json:"id"`
	SerialNumber     string `json:"serialNumber"`
	ModelNumber      string `json:"modelNumber"`
	FirmwareRevision string `json:"firmwareRevision"`

	Namespaces []NamespaceModel `json:"namespaces"`
}

type NamespaceModel struct {
	Id            uint32 `json:"id"`
	BlockSize     uint32 `json:"blockSize"`
	BlockCount    uint64 `json:"blockCount"`
	CapacityBytes uint64 `json:"capacityBytes"`
}

// VolumeCollection lists a storage device's volumes.
type VolumeCollection struct {
	Volumes []VolumeModel `json:"volumes"`
}

type VolumeModel struct {
	Id            string `json:"id"`
	NamespaceId   uint32 `json:"namespaceId"`
	StartingBlock uint64 `json:"startingBlock"`
	BlockCount    uint64 `json:"blockCount"`

	Mountpoint string `json:"mountpoint,omitempty"`
}

type VolumeCreateRequest struct {
	BlockCount uint64 `json:"blockCount"`
}

type VolumeAttachRequest struct {
	Mountpoint string `json:"mountpoint"`
	FileSystem string `json:"fileSystem"`
}

// VolumeIoRequest addresses blocks relative to the volume. Data is
// base64 in the JSON encoding and is present only on writes.
type VolumeIoRequest struct {
	StartingBlock uint64 `json:"startingBlock"`
	BlockCount    uint32 `json:"blockCount,omitempty"`
	Data          []byte `json:"data,omitempty"`
}

type VolumeIoResponse struct {
	Data []byte `json:"data"`
}
