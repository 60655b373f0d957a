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

package recovery_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	bms "github.com/BareMetalStorage/bms-ec/pkg"
	"github.com/BareMetalStorage/bms-ec/pkg/ec"
)

// Test of reboot / crash recovery. The element controller is restarted
// between steps; volumes and their attach state must come back from
// the registry with the same identity and block range.

func send(c *ec.Controller, method, url string, body interface{}, model interface{}) int {
	buffer := bytes.NewBuffer([]byte{})
	if body != nil {
		Expect(json.NewEncoder(buffer).Encode(body)).To(Succeed())
	}

	r, err := http.NewRequest(method, url, buffer)
	Expect(err).NotTo(HaveOccurred())

	w := ec.NewResponseWriter()
	c.Send(w, r)

	if model != nil && w.StatusCode == http.StatusOK {
		Expect(json.Unmarshal(w.Buffer.Bytes(), model)).To(Succeed())
	}

	return w.StatusCode
}

var _ = Describe("Reboot Recovery Testing", Ordered, func() {

	var c *ec.Controller
	var volume bms.VolumeModel

	startController := func() *ec.Controller {
		c := bms.NewController(bms.NewMockOptions(true))
		Expect(c.Init(ec.NewDefaultOptions())).NotTo(HaveOccurred())
		return c
	}

	volumeUrl := func() string {
		return fmt.Sprintf("/v1/storage/0/volumes/%s", volume.Id)
	}

	BeforeAll(func() { c = startController() })
	AfterAll(func() { c.Close() })

	restart := func() {
		Expect(c.Close()).To(Succeed())
		c = startController()
	}

	It("creates a volume", func() {
		status := send(c, ec.POST_METHOD, "/v1/storage/0/volumes",
			bms.VolumeCreateRequest{BlockCount: 1024}, &volume)
		Expect(status).To(Equal(http.StatusOK))
		Expect(volume.BlockCount).To(Equal(uint64(1024)))
	})

	It("recovers the volume after a restart", func() {
		restart()

		recovered := bms.VolumeModel{}
		Expect(send(c, ec.GET_METHOD, volumeUrl(), nil, &recovered)).To(Equal(http.StatusOK))

		Expect(recovered.StartingBlock).To(Equal(volume.StartingBlock))
		Expect(recovered.BlockCount).To(Equal(volume.BlockCount))
		Expect(recovered.NamespaceId).To(Equal(volume.NamespaceId))
	})

	It("recovers the attach state after a restart", func() {
		status := send(c, ec.POST_METHOD, volumeUrl()+"/attach",
			bms.VolumeAttachRequest{Mountpoint: "/mnt/recovery", FileSystem: "ext4"}, nil)
		Expect(status).To(Equal(http.StatusOK))

		restart()

		recovered := bms.VolumeModel{}
		Expect(send(c, ec.GET_METHOD, volumeUrl(), nil, &recovered)).To(Equal(http.StatusOK))
		Expect(recovered.Mountpoint).To(Equal("/mnt/recovery"))
	})

	It("deletes the volume once detached", func() {
		// The mount predates this process; detach must still succeed.
		Expect(send(c, ec.POST_METHOD, volumeUrl()+"/detach", nil, nil)).To(Equal(http.StatusOK))

		Expect(send(c, ec.DELETE_METHOD, volumeUrl(), nil, nil)).To(Equal(http.StatusOK))
		Expect(send(c, ec.GET_METHOD, volumeUrl(), nil, nil)).To(Equal(http.StatusNotFound))
	})
})
