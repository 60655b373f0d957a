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

package storage

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"

	server "github.com/BareMetalStorage/bms-ec/pkg/manager-server"
)

func testOptions(t *testing.T) Options {
	logger := log.New()
	logger.SetOutput(io.Discard)

	return Options{
		Store: filepath.Join(t.TempDir(), "test.db"),
		Log:   log.NewEntry(logger),
	}
}

func newTestManager(t *testing.T, opts Options) *Manager {
	m := NewManager(opts)
	if err := m.Initialize(); err != nil {
		t.Fatalf("initialize manager: %v", err)
	}

	t.Cleanup(func() { m.Close() })
	return m
}

func TestInitializeMockDevices(t *testing.T) {
	m := newTestManager(t, testOptions(t))

	ids := m.StorageIds()
	if len(ids) != 2 {
		t.Fatalf("expected 2 storage devices, got %d", len(ids))
	}

	for _, id := range ids {
		s, err := m.FindStorage(id)
		if err != nil {
			t.Fatalf("storage %s: %v", id, err)
		}

		if s.Identity().SerialNumber == "" {
			t.Errorf("storage %s has no serial number", id)
		}
		if len(s.Namespaces()) != 1 {
			t.Errorf("storage %s: expected 1 namespace, got %d", id, len(s.Namespaces()))
		}
	}

	if _, err := m.FindStorage("7"); err == nil {
		t.Errorf("expected error for unknown storage id")
	}
}

func TestVolumeFirstFit(t *testing.T) {
	m := newTestManager(t, testOptions(t))

	a, err := m.CreateVolume("0", 1024)
	if err != nil {
		t.Fatalf("create volume: %v", err)
	}
	b, err := m.CreateVolume("0", 1024)
	if err != nil {
		t.Fatalf("create volume: %v", err)
	}

	if a.StartingBlock() != 0 {
		t.Errorf("first volume starts at %d, expected 0", a.StartingBlock())
	}
	if b.StartingBlock() != 1024 {
		t.Errorf("second volume starts at %d, expected 1024", b.StartingBlock())
	}

	if err := m.DeleteVolume("0", a.Id().String()); err != nil {
		t.Fatalf("delete volume: %v", err)
	}

	// The freed range is the lowest fit.
	c, err := m.CreateVolume("0", 512)
	if err != nil {
		t.Fatalf("create volume: %v", err)
	}
	if c.StartingBlock() != 0 {
		t.Errorf("third volume starts at %d, expected 0", c.StartingBlock())
	}
}

func TestVolumeCapacityLimits(t *testing.T) {
	m := newTestManager(t, testOptions(t))

	if _, err := m.CreateVolume("0", 0); err == nil {
		t.Errorf("expected error for zero-block volume")
	}
	if _, err := m.CreateVolume("0", mockBlockCount+1); err == nil {
		t.Errorf("expected error for oversized volume")
	}

	if _, err := m.CreateVolume("0", mockBlockCount); err != nil {
		t.Fatalf("full-capacity volume: %v", err)
	}
	if _, err := m.CreateVolume("0", 1); err == nil {
		t.Errorf("expected error once capacity is exhausted")
	}
}

func TestVolumeReadWrite(t *testing.T) {
	m := newTestManager(t, testOptions(t))

	v, err := m.CreateVolume("0", 64)
	if err != nil {
		t.Fatalf("create volume: %v", err)
	}

	data := make([]byte, 4*mockBlockSize)
	for i := range data {
		data[i] = byte(i % 251)
	}

	if err := m.WriteVolume("0", v.Id().String(), 8, data); err != nil {
		t.Fatalf("write volume: %v", err)
	}

	got, err := m.ReadVolume("0", v.Id().String(), 8, 4)
	if err != nil {
		t.Fatalf("read volume: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read data does not match written data")
	}

	if _, err := m.ReadVolume("0", v.Id().String(), 62, 4); err == nil {
		t.Errorf("expected error for read beyond end of volume")
	}
	if err := m.WriteVolume("0", v.Id().String(), 0, data[:100]); err == nil {
		t.Errorf("expected error for partial-block write")
	}
	if _, err := m.ReadVolume("0", "not-a-uuid", 0, 1); err == nil {
		t.Errorf("expected error for malformed volume id")
	}
}

func TestVolumeAttachDetach(t *testing.T) {
	mock := server.NewMockServerController()
	opts := testOptions(t)
	opts.ServerProvider = server.MockServerControllerProvider{Controller: mock}

	m := newTestManager(t, opts)

	v, err := m.CreateVolume("0", 64)
	if err != nil {
		t.Fatalf("create volume: %v", err)
	}
	id := v.Id().String()

	if err := m.AttachVolume("0", id, "/mnt/test", "ext4"); err != nil {
		t.Fatalf("attach volume: %v", err)
	}
	if mounted, _ := mock.IsMounted("/mnt/test"); !mounted {
		t.Errorf("mountpoint not recorded by server controller")
	}

	if err := m.AttachVolume("0", id, "/mnt/other", "ext4"); err == nil {
		t.Errorf("expected error for double attach")
	}
	if err := m.DeleteVolume("0", id); err == nil {
		t.Errorf("expected error deleting an attached volume")
	}

	if err := m.DetachVolume("0", id); err != nil {
		t.Fatalf("detach volume: %v", err)
	}
	if err := m.DetachVolume("0", id); err == nil {
		t.Errorf("expected error for double detach")
	}

	if err := m.DeleteVolume("0", id); err != nil {
		t.Fatalf("delete volume: %v", err)
	}
}

func TestVolumePersistence(t *testing.T) {
	opts := testOptions(t)

	m := newTestManager(t, opts)

	v, err := m.CreateVolume("0", 256)
	if err != nil {
		t.Fatalf("create volume: %v", err)
	}
	if err := m.AttachVolume("0", v.Id().String(), "/mnt/persist", "ext4"); err != nil {
		t.Fatalf("attach volume: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close manager: %v", err)
	}

	m = newTestManager(t, opts)

	_, restored, err := m.FindVolume("0", v.Id().String())
	if err != nil {
		t.Fatalf("volume not restored: %v", err)
	}
	if restored.StartingBlock() != v.StartingBlock() || restored.BlockCount() != 256 {
		t.Errorf("restored volume geometry %d+%d, expected %d+256",
			restored.StartingBlock(), restored.BlockCount(), v.StartingBlock())
	}
	if restored.Mountpoint() != "/mnt/persist" {
		t.Errorf("restored mountpoint %q, expected /mnt/persist", restored.Mountpoint())
	}

	// New volumes must not land inside the restored range.
	next, err := m.CreateVolume("0", 64)
	if err != nil {
		t.Fatalf("create volume: %v", err)
	}
	if next.StartingBlock() < 256 {
		t.Errorf("new volume at %d overlaps restored volume", next.StartingBlock())
	}
}
