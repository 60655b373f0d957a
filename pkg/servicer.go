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

	"github.com/BareMetalStorage/bms-ec/pkg/ec"
	storage "github.com/BareMetalStorage/bms-ec/pkg/manager-storage"
)

// DefaultApiService maps the storage API onto the storage manager.
type DefaultApiService struct {
	manager *storage.Manager
}

// NewDefaultApiService -
func NewDefaultApiService(m *storage.Manager) Api {
	return &DefaultApiService{manager: m}
}

func volumeModel(v *storage.Volume) VolumeModel {
	return VolumeModel{
		Id:            v.Id().String(),
		NamespaceId:   v.NamespaceId(),
		StartingBlock: v.StartingBlock(),
		BlockCount:    v.BlockCount(),
		Mountpoint:    v.Mountpoint(),
	}
}

// V1StorageGet -
func (s *DefaultApiService) V1StorageGet(w http.ResponseWriter, r *http.Request) {
	model := StorageCollection{Storage: s.manager.StorageIds()}

	ec.EncodeResponse(model, nil, w)
}

// V1StorageStorageIdGet -
func (s *DefaultApiService) V1StorageStorageIdGet(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	st, err := s.manager.FindStorage(params["StorageId"])
	if err != nil {
		ec.EncodeResponse(nil, err, w)
		return
	}

	identity := st.Identity()
	model := StorageModel{
		Id:               st.Id(),
		SerialNumber:     identity.SerialNumber,
		ModelNumber:      identity.ModelNumber,
		FirmwareRevision: identity.FirmwareRevision,
	}

	for _, ns := range st.Namespaces() {
		model.Namespaces = append(model.Namespaces, NamespaceModel{
			Id:            ns.Id,
			BlockSize:     ns.BlockSize,
			BlockCount:    ns.BlockCount,
			CapacityBytes: ns.Bytes(),
		})
	}

	ec.EncodeResponse(model, nil, w)
}

// V1StorageStorageIdVolumesGet -
func (s *DefaultApiService) V1StorageStorageIdVolumesGet(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	st, err := s.manager.FindStorage(params["StorageId"])
	if err != nil {
		ec.EncodeResponse(nil, err, w)
		return
	}

	model := VolumeCollection{Volumes: []VolumeModel{}}
	for _, v := range st.Volumes() {
		model.Volumes = append(model.Volumes, volumeModel(v))
	}

	ec.EncodeResponse(model, nil, w)
}

// V1StorageStorageIdVolumesPost -
func (s *DefaultApiService) V1StorageStorageIdVolumesPost(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	request := VolumeCreateRequest{}
	if err := ec.UnmarshalRequest(r, &request); err != nil {
		ec.EncodeResponse(nil, ec.NewErrBadRequest().WithError(err).WithCause("malformed request body"), w)
		return
	}

	volume, err := s.manager.CreateVolume(params["StorageId"], request.BlockCount)
	if err != nil {
		ec.EncodeResponse(nil, err, w)
		return
	}

	ec.EncodeResponse(volumeModel(volume), nil, w)
}

// V1StorageStorageIdVolumesVolumeIdGet -
func (s *DefaultApiService) V1StorageStorageIdVolumesVolumeIdGet(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	_, volume, err := s.manager.FindVolume(params["StorageId"], params["VolumeId"])
	if err != nil {
		ec.EncodeResponse(nil, err, w)
		return
	}

	ec.EncodeResponse(volumeModel(volume), nil, w)
}

// V1StorageStorageIdVolumesVolumeIdDelete -
func (s *DefaultApiService) V1StorageStorageIdVolumesVolumeIdDelete(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	err := s.manager.DeleteVolume(params["StorageId"], params["VolumeId"])
	ec.EncodeResponse(nil, err, w)
}

// V1StorageStorageIdVolumesVolumeIdAttachPost -
func (s *DefaultApiService) V1StorageStorageIdVolumesVolumeIdAttachPost(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	request := VolumeAttachRequest{}
	if err := ec.UnmarshalRequest(r, &request); err != nil {
		ec.EncodeResponse(nil, ec.NewErrBadRequest().WithError(err).WithCause("malformed request body"), w)
		return
	}

	err := s.manager.AttachVolume(params["StorageId"], params["VolumeId"], request.Mountpoint, request.FileSystem)
	ec.EncodeResponse(nil, err, w)
}

// V1StorageStorageIdVolumesVolumeIdDetachPost -
func (s *DefaultApiService) V1StorageStorageIdVolumesVolumeIdDetachPost(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	err := s.manager.DetachVolume(params["StorageId"], params["VolumeId"])
	ec.EncodeResponse(nil, err, w)
}

// V1StorageStorageIdVolumesVolumeIdReadPost -
func (s *DefaultApiService) V1StorageStorageIdVolumesVolumeIdReadPost(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	request := VolumeIoRequest{}
	if err := ec.UnmarshalRequest(r, &request); err != nil {
		ec.EncodeResponse(nil, ec.NewErrBadRequest().WithError(err).WithCause("malformed request body"), w)
		return
	}

	data, err := s.manager.ReadVolume(params["StorageId"], params["VolumeId"], request.StartingBlock, request.BlockCount)
	if err != nil {
		ec.EncodeResponse(nil, err, w)
		return
	}

	ec.EncodeResponse(VolumeIoResponse{Data: data}, nil, w)
}

// V1StorageStorageIdVolumesVolumeIdWritePost -
func (s *DefaultApiService) V1StorageStorageIdVolumesVolumeIdWritePost(w http.ResponseWriter, r *http.Request) {
	params := ec.Params(r)

	request := VolumeIoRequest{}
	if err := ec.UnmarshalRequest(r, &request); err != nil {
		ec.EncodeResponse(nil, ec.NewErrBadRequest().WithError(err).WithCause("malformed request body"), w)
		return
	}

	err := s.manager.WriteVolume(params["StorageId"], params["VolumeId"], request.StartingBlock, request.Data)
	ec.EncodeResponse(nil, err, w)
}
