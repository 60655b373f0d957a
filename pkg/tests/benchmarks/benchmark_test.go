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

package benchmarks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	bms "github.com/BareMetalStorage/bms-ec/pkg"
	"github.com/BareMetalStorage/bms-ec/pkg/ec"
)

func send(t *testing.T, c *ec.Controller, method, url string, body interface{}, model interface{}) {
	t.Helper()

	buffer := bytes.NewBuffer([]byte{})
	if body != nil {
		if err := json.NewEncoder(buffer).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	r, err := http.NewRequest(method, url, buffer)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	w := ec.NewResponseWriter()
	c.Send(w, r)

	if w.StatusCode != http.StatusOK {
		t.Fatalf("%s %s returned status %d: %s", method, url, w.StatusCode, w.Buffer.String())
	}

	if model != nil {
		if err := json.Unmarshal(w.Buffer.Bytes(), model); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

// TestVolumeChurn creates and destroys a batch of volumes repeatedly.
// Block ranges freed by one round must be reusable by the next; the
// registry must not accumulate state.
func TestVolumeChurn(t *testing.T) {
	c := bms.NewController(bms.NewMockOptions(false))
	defer c.Close()

	if err := c.Init(ec.NewDefaultOptions()); err != nil {
		t.Fatalf("Failed to start storage controller: %v", err)
	}

	const rounds = 8
	const batch = 16

	for round := 0; round < rounds; round++ {
		volumes := make([]bms.VolumeModel, 0, batch)

		for j := 0; j < batch; j++ {
			volume := bms.VolumeModel{}
			send(t, c, ec.POST_METHOD, "/v1/storage/0/volumes",
				bms.VolumeCreateRequest{BlockCount: 128}, &volume)
			volumes = append(volumes, volume)
		}

		collection := bms.VolumeCollection{}
		send(t, c, ec.GET_METHOD, "/v1/storage/0/volumes", nil, &collection)
		if len(collection.Volumes) != batch {
			t.Fatalf("Round %d: wrong volume count: %d expecting: %d", round, len(collection.Volumes), batch)
		}

		for _, volume := range volumes {
			send(t, c, ec.DELETE_METHOD, fmt.Sprintf("/v1/storage/0/volumes/%s", volume.Id), nil, nil)
		}

		collection = bms.VolumeCollection{}
		send(t, c, ec.GET_METHOD, "/v1/storage/0/volumes", nil, &collection)
		if len(collection.Volumes) != 0 {
			t.Fatalf("Round %d: %d volumes left after delete", round, len(collection.Volumes))
		}
	}
}

// TestVolumeIoThroughput pushes writes and reads through a single
// volume in controller max transfer sized chunks.
func TestVolumeIoThroughput(t *testing.T) {
	c := bms.NewController(bms.NewMockOptions(false))
	defer c.Close()

	if err := c.Init(ec.NewDefaultOptions()); err != nil {
		t.Fatalf("Failed to start storage controller: %v", err)
	}

	volume := bms.VolumeModel{}
	send(t, c, ec.POST_METHOD, "/v1/storage/0/volumes",
		bms.VolumeCreateRequest{BlockCount: 1024}, &volume)

	url := fmt.Sprintf("/v1/storage/0/volumes/%s", volume.Id)

	const chunkBlocks = 64
	const blockSize = 512

	data := make([]byte, chunkBlocks*blockSize)
	for i := range data {
		data[i] = byte(i)
	}

	for lba := uint64(0); lba < 1024; lba += chunkBlocks {
		send(t, c, ec.POST_METHOD, url+"/write",
			bms.VolumeIoRequest{StartingBlock: lba, Data: data}, nil)
	}

	for lba := uint64(0); lba < 1024; lba += chunkBlocks {
		response := bms.VolumeIoResponse{}
		send(t, c, ec.POST_METHOD, url+"/read",
			bms.VolumeIoRequest{StartingBlock: lba, BlockCount: chunkBlocks}, &response)

		if !bytes.Equal(response.Data, data) {
			t.Fatalf("Data mismatch at lba %d", lba)
		}
	}
}
