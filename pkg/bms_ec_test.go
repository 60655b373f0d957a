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
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/BareMetalStorage/bms-ec/pkg/ec"
)

var (
	MockController = NewController(NewMockOptions(false))

	initOnce sync.Once
	initErr  error
)

func initMockController(t *testing.T) {
	initOnce.Do(func() {
		initErr = MockController.Init(ec.NewDefaultOptions())
	})

	if initErr != nil {
		t.Fatalf("Controller failed to initialize: %v", initErr)
	}
}

func send(t *testing.T, method, url string, body interface{}) *ec.ResponseWriter {
	t.Helper()

	var reader *bytes.Buffer = bytes.NewBuffer([]byte{})
	if body != nil {
		if err := json.NewEncoder(reader).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	r, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request %s %s: %v", method, url, err)
	}

	w := ec.NewResponseWriter()
	MockController.Send(w, r)
	return w
}

func sendAndDecode(t *testing.T, method, url string, body interface{}, model interface{}) {
	t.Helper()

	w := send(t, method, url, body)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("%s %s returned status %d: %s", method, url, w.StatusCode, w.Buffer.String())
	}

	if model != nil {
		if err := json.Unmarshal(w.Buffer.Bytes(), model); err != nil {
			t.Fatalf("decode %s response: %v", url, err)
		}
	}
}

func TestStorageEndpoints(t *testing.T) {
	initMockController(t)

	collection := StorageCollection{}
	sendAndDecode(t, ec.GET_METHOD, "/v1/storage", nil, &collection)

	if len(collection.Storage) != 2 {
		t.Fatalf("Wrong number of storage devices: %d expecting: 2", len(collection.Storage))
	}

	for _, id := range collection.Storage {
		model := StorageModel{}
		sendAndDecode(t, ec.GET_METHOD, fmt.Sprintf("/v1/storage/%s", id), nil, &model)

		if model.SerialNumber == "" {
			t.Errorf("Storage %s has no serial number", id)
		}
		if len(model.Namespaces) != 1 {
			t.Fatalf("Storage %s: wrong namespace count: %d expecting: 1", id, len(model.Namespaces))
		}
		if model.Namespaces[0].CapacityBytes != uint64(model.Namespaces[0].BlockSize)*model.Namespaces[0].BlockCount {
			t.Errorf("Storage %s: capacity does not match geometry", id)
		}
	}

	w := send(t, ec.GET_METHOD, "/v1/storage/99", nil)
	if w.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown storage returned status %d expecting: %d", w.StatusCode, http.StatusNotFound)
	}
}

func TestVolumeEndpoints(t *testing.T) {
	initMockController(t)

	volume := VolumeModel{}
	sendAndDecode(t, ec.POST_METHOD, "/v1/storage/0/volumes", VolumeCreateRequest{BlockCount: 128}, &volume)

	if volume.BlockCount != 128 {
		t.Fatalf("Wrong volume block count: %d expecting: 128", volume.BlockCount)
	}

	url := fmt.Sprintf("/v1/storage/0/volumes/%s", volume.Id)

	collection := VolumeCollection{}
	sendAndDecode(t, ec.GET_METHOD, "/v1/storage/0/volumes", nil, &collection)
	if len(collection.Volumes) == 0 {
		t.Fatalf("Created volume missing from collection")
	}

	// One block of recognizable data, written then read back.
	data := bytes.Repeat([]byte{0xA5, 0x5A}, 256)
	sendAndDecode(t, ec.POST_METHOD, url+"/write", VolumeIoRequest{StartingBlock: 4, Data: data}, nil)

	response := VolumeIoResponse{}
	sendAndDecode(t, ec.POST_METHOD, url+"/read", VolumeIoRequest{StartingBlock: 4, BlockCount: 1}, &response)

	if !bytes.Equal(response.Data, data) {
		t.Fatalf("Read data does not match written data")
	}

	w := send(t, ec.POST_METHOD, url+"/read", VolumeIoRequest{StartingBlock: 127, BlockCount: 4})
	if w.StatusCode != http.StatusBadRequest {
		t.Errorf("Out of range read returned status %d expecting: %d", w.StatusCode, http.StatusBadRequest)
	}

	sendAndDecode(t, ec.POST_METHOD, url+"/attach", VolumeAttachRequest{Mountpoint: "/mnt/vol", FileSystem: "ext4"}, nil)

	attached := VolumeModel{}
	sendAndDecode(t, ec.GET_METHOD, url, nil, &attached)
	if attached.Mountpoint != "/mnt/vol" {
		t.Errorf("Wrong mountpoint: %s expecting: /mnt/vol", attached.Mountpoint)
	}

	w = send(t, ec.DELETE_METHOD, url, nil)
	if w.StatusCode != http.StatusNotAcceptable {
		t.Errorf("Delete of attached volume returned status %d expecting: %d", w.StatusCode, http.StatusNotAcceptable)
	}

	sendAndDecode(t, ec.POST_METHOD, url+"/detach", nil, nil)
	sendAndDecode(t, ec.DELETE_METHOD, url, nil, nil)

	w = send(t, ec.GET_METHOD, url, nil)
	if w.StatusCode != http.StatusNotFound {
		t.Errorf("Deleted volume returned status %d expecting: %d", w.StatusCode, http.StatusNotFound)
	}
}
