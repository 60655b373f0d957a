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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/BareMetalStorage/bms-ec/internal/kvstore"
	"github.com/BareMetalStorage/bms-ec/pkg/ec"
	"github.com/BareMetalStorage/bms-ec/pkg/mem"
	"github.com/BareMetalStorage/bms-ec/pkg/mmio"
	"github.com/BareMetalStorage/bms-ec/pkg/nvme"
	"github.com/BareMetalStorage/bms-ec/pkg/pcie"
	server "github.com/BareMetalStorage/bms-ec/pkg/manager-server"
)

const (
	defaultStoreName = "bms.db"

	volumeRegistryPrefix = "V"

	// Device memory granted to each controller's rings and buffers.
	deviceArenaSize = 4 << 20

	// Mock device geometry.
	mockBlockSize  = 512
	mockBlockCount = 1 << 16
)

// Ledger entry types for the volume registry.
const (
	volumeProvisioned uint32 = iota + 1
	volumeAttached
	volumeDetached
)

// Options -
type Options struct {
	// Store path of the persistent volume registry.
	Store string

	// Provider locates PCIe devices; nil selects sysfs discovery.
	Provider pcie.DeviceProvider

	// ServerProvider builds the mount controller for volume attach.
	ServerProvider server.ServerControllerProvider
	ServerOptions  server.ServerControllerOptions

	Log *log.Entry
}

// Manager owns the storage devices named in the configuration and the
// volumes carved out of their namespaces.
type Manager struct {
	log     *log.Entry
	options Options
	config  *ConfigFile

	store      *kvstore.Store
	serverCtrl server.ServerControllerApi

	storage []*Storage
}

// Storage is one NVMe controller under management.
type Storage struct {
	id      string
	address string

	device pcie.Device
	mock   *nvme.MockController

	arena mem.Arena
	ctrl  *nvme.Controller

	volumes []*Volume
}

// Volume is a uuid-labeled block range on one of a storage device's
// namespaces.
type Volume struct {
	id          uuid.UUID
	storageId   string
	namespaceId uint32

	startingBlock uint64
	blockCount    uint64

	mountpoint string
}

func (v *Volume) Id() uuid.UUID       { return v.id }
func (v *Volume) NamespaceId() uint32 { return v.namespaceId }
func (v *Volume) StartingBlock() uint64 { return v.startingBlock }
func (v *Volume) BlockCount() uint64  { return v.blockCount }
func (v *Volume) Mountpoint() string  { return v.mountpoint }

func (s *Storage) Id() string         { return s.id }
func (s *Storage) Address() string    { return s.address }
func (s *Storage) Volumes() []*Volume { return s.volumes }

func (s *Storage) Identity() nvme.ControllerIdentity { return s.ctrl.Identity() }
func (s *Storage) Namespaces() []nvme.Namespace      { return s.ctrl.Namespaces() }

// NewManager -
func NewManager(opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = log.NewEntry(log.StandardLogger())
	}
	if opts.Store == "" {
		opts.Store = defaultStoreName
	}
	if opts.ServerProvider == nil {
		opts.ServerProvider = server.MockServerControllerProvider{}
	}

	return &Manager{
		log:        opts.Log.WithField("Manager", "storage"),
		options:    opts,
		serverCtrl: opts.ServerProvider.NewServerController(opts.ServerOptions),
	}
}

// Initialize loads the configuration, brings up every configured
// device, and replays the volume registry. Devices that fail bring-up
// are fatal; a controller in an unknown state must not serve I/O.
func (m *Manager) Initialize() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	m.config = config

	m.log.WithFields(log.Fields{
		"Name":    config.Metadata.Name,
		"Devices": len(config.Storage.Devices),
	}).Info("Initializing storage manager")

	store, err := kvstore.Open(m.options.Store, false)
	if err != nil {
		return fmt.Errorf("open volume registry: %w", err)
	}
	m.store = store
	m.store.Register([]kvstore.Registry{&volumeRegistry{manager: m}})

	for index, address := range config.Storage.Devices {
		storage, err := m.newStorage(index, address, m.options.Provider)
		if err != nil {
			return fmt.Errorf("storage %d (%s): %w", index, address, err)
		}

		m.storage = append(m.storage, storage)
	}

	if err := m.store.Replay(); err != nil {
		return fmt.Errorf("replay volume registry: %w", err)
	}

	return nil
}

// Close shuts down the registry and releases the devices.
func (m *Manager) Close() error {
	for _, s := range m.storage {
		if s.device != nil {
			s.device.Close()
		}
	}

	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

func (m *Manager) newStorage(index int, address string, provider pcie.DeviceProvider) (*Storage, error) {
	storage := &Storage{
		id:      strconv.Itoa(index),
		address: address,
	}

	if address == "mock" {
		storage.arena = mem.NewArena(deviceArenaSize)
		storage.mock = nvme.NewMockController(storage.arena)
		storage.mock.AddNamespace(1, mockBlockSize, mockBlockCount)
	} else {
		device, err := m.findDevice(address, provider)
		if err != nil {
			return nil, err
		}

		if err := device.EnableBusMasterAndMemory(); err != nil {
			return nil, err
		}

		arena, err := mem.NewDeviceArena(deviceArenaSize)
		if err != nil {
			return nil, err
		}

		storage.device = device
		storage.arena = arena
	}

	storage.ctrl = nvme.New(m.registerClient(storage), storage.arena, nvme.Options{
		QueueCount:     m.config.Storage.Queues.Count,
		QueueDepth:     m.config.Storage.Queues.Depth,
		Timeout:        m.config.Storage.Timeouts.Bringup.Duration,
		CommandTimeout: m.config.Storage.Timeouts.Command.Duration,
		Log:            m.log.WithField("Storage", storage.id),
	})

	if err := storage.ctrl.Bringup(); err != nil {
		return nil, err
	}

	return storage, nil
}

func (m *Manager) registerClient(s *Storage) mmio.RegisterClient {
	if s.mock != nil {
		return s.mock
	}

	client, err := s.device.MapBar(0)
	if err != nil {
		// Surfaced by Bringup as a reset timeout would be misleading;
		// fail loudly here.
		m.log.WithError(err).WithField("Address", s.address).Fatal("BAR0 unmappable")
	}
	return client
}

func (m *Manager) findDevice(address string, provider pcie.DeviceProvider) (pcie.Device, error) {
	if provider == nil {
		provider = pcie.NewSysfsProvider(m.log)
	}

	devices, err := provider.FindDevices(pcie.NvmeClassCode)
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		if device.Address() == address {
			return device, nil
		}
	}

	return nil, pcie.ErrNoDevice
}

// StorageIds -
func (m *Manager) StorageIds() []string {
	ids := make([]string, len(m.storage))
	for i, s := range m.storage {
		ids[i] = s.id
	}
	return ids
}

// FindStorage -
func (m *Manager) FindStorage(storageId string) (*Storage, error) {
	index, err := strconv.Atoi(storageId)
	if err != nil || index < 0 || index >= len(m.storage) {
		return nil, ec.NewErrNotFound().WithCause(fmt.Sprintf("storage %s not found", storageId))
	}

	return m.storage[index], nil
}

// FindVolume -
func (m *Manager) FindVolume(storageId, volumeId string) (*Storage, *Volume, error) {
	s, err := m.FindStorage(storageId)
	if err != nil {
		return nil, nil, err
	}

	id, err := uuid.Parse(volumeId)
	if err != nil {
		return nil, nil, ec.NewErrBadRequest().WithError(err).WithCause("malformed volume id")
	}

	for _, v := range s.volumes {
		if v.id == id {
			return s, v, nil
		}
	}

	return nil, nil, ec.NewErrNotFound().WithCause(fmt.Sprintf("volume %s not found", volumeId))
}

// volumeMetadata is the registry's durable record of a volume.
type volumeMetadata struct {
	Id            uuid.UUID `json:"id"`
	StorageId     string    `json:"storageId"`
	NamespaceId   uint32    `json:"namespaceId"`
	StartingBlock uint64    `json:"startingBlock"`
	BlockCount    uint64    `json:"blockCount"`
}

type attachMetadata struct {
	Mountpoint string `json:"mountpoint"`
	FsType     string `json:"fstype"`
}

// CreateVolume carves a block range out of the storage device's first
// active namespace and records it in the registry.
func (m *Manager) CreateVolume(storageId string, blockCount uint64) (*Volume, error) {
	s, err := m.FindStorage(storageId)
	if err != nil {
		return nil, err
	}

	if blockCount == 0 {
		return nil, ec.NewErrBadRequest().WithCause("volume needs a non-zero block count")
	}

	namespace, err := firstActiveNamespace(s)
	if err != nil {
		return nil, err
	}

	start, ok := findFreeRange(s, namespace.Id, namespace.BlockCount, blockCount)
	if !ok {
		return nil, ec.NewErrNotAcceptable().WithCause("insufficient capacity")
	}

	volume := &Volume{
		id:            uuid.New(),
		storageId:     s.id,
		namespaceId:   namespace.Id,
		startingBlock: start,
		blockCount:    blockCount,
	}

	metadata, err := json.Marshal(volumeMetadata{
		Id:            volume.id,
		StorageId:     volume.storageId,
		NamespaceId:   volume.namespaceId,
		StartingBlock: volume.startingBlock,
		BlockCount:    volume.blockCount,
	})
	if err != nil {
		return nil, err
	}

	ledger, err := m.store.NewKey(volumeKey(volume.id), metadata)
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	if err := ledger.Log(volumeProvisioned, nil); err != nil {
		return nil, err
	}

	s.volumes = append(s.volumes, volume)

	m.log.WithFields(log.Fields{
		"Storage":       s.id,
		"Volume":        volume.id,
		"StartingBlock": volume.startingBlock,
		"BlockCount":    volume.blockCount,
	}).Info("Volume created")

	return volume, nil
}

// DeleteVolume removes the volume and its registry record. An attached
// volume must be detached first.
func (m *Manager) DeleteVolume(storageId, volumeId string) error {
	s, volume, err := m.FindVolume(storageId, volumeId)
	if err != nil {
		return err
	}

	if volume.mountpoint != "" {
		return ec.NewErrNotAcceptable().WithCause("volume is attached")
	}

	if err := m.store.DeleteKey(volumeKey(volume.id)); err != nil {
		return err
	}

	for i, v := range s.volumes {
		if v == volume {
			s.volumes = append(s.volumes[:i], s.volumes[i+1:]...)
			break
		}
	}

	m.log.WithFields(log.Fields{"Storage": s.id, "Volume": volume.id}).Info("Volume deleted")
	return nil
}

// AttachVolume mounts the volume's block device at mountpoint.
func (m *Manager) AttachVolume(storageId, volumeId, mountpoint, fstype string) error {
	s, volume, err := m.FindVolume(storageId, volumeId)
	if err != nil {
		return err
	}

	if volume.mountpoint != "" {
		return ec.NewErrNotAcceptable().WithCause("volume is already attached")
	}

	if err := m.serverCtrl.Mount(devicePath(s, volume), mountpoint, fstype); err != nil {
		return ec.NewErrInternalServerError().WithError(err).WithCause("mount failed")
	}

	volume.mountpoint = mountpoint

	return m.logVolumeEvent(volume, volumeAttached, attachMetadata{Mountpoint: mountpoint, FsType: fstype})
}

// DetachVolume unmounts the volume.
func (m *Manager) DetachVolume(storageId, volumeId string) error {
	_, volume, err := m.FindVolume(storageId, volumeId)
	if err != nil {
		return err
	}

	if volume.mountpoint == "" {
		return ec.NewErrNotAcceptable().WithCause("volume is not attached")
	}

	// A mount can predate this process; a missing mount is not an error
	// during detach.
	if err := m.serverCtrl.Unmount(volume.mountpoint); err != nil && !errors.Is(err, server.ErrNotMounted) {
		return ec.NewErrInternalServerError().WithError(err).WithCause("unmount failed")
	}

	volume.mountpoint = ""

	return m.logVolumeEvent(volume, volumeDetached, nil)
}

func (m *Manager) logVolumeEvent(volume *Volume, event uint32, data interface{}) error {
	ledger, err := m.store.OpenKey(volumeKey(volume.id), false)
	if err != nil {
		return err
	}
	defer ledger.Close()

	payload := []byte{}
	if data != nil {
		if payload, err = json.Marshal(data); err != nil {
			return err
		}
	}

	return ledger.Log(event, payload)
}

// ReadVolume returns count blocks starting at the volume-relative lba.
func (m *Manager) ReadVolume(storageId, volumeId string, lba uint64, count uint32) ([]byte, error) {
	s, volume, err := m.FindVolume(storageId, volumeId)
	if err != nil {
		return nil, err
	}

	blockSize, err := m.checkVolumeRange(s, volume, lba, count)
	if err != nil {
		return nil, err
	}

	data := make([]byte, uint64(count)*uint64(blockSize))
	if err := s.ctrl.Read(volume.namespaceId, volume.startingBlock+lba, count, data); err != nil {
		return nil, ec.NewErrInternalServerError().WithError(err).WithCause("read failed")
	}

	return data, nil
}

// WriteVolume writes data starting at the volume-relative lba.
func (m *Manager) WriteVolume(storageId, volumeId string, lba uint64, data []byte) error {
	s, volume, err := m.FindVolume(storageId, volumeId)
	if err != nil {
		return err
	}

	namespace, err := s.ctrl.Namespace(volume.namespaceId)
	if err != nil {
		return ec.NewErrInternalServerError().WithError(err)
	}

	if uint64(len(data))%uint64(namespace.BlockSize) != 0 {
		return ec.NewErrBadRequest().WithCause("data is not a whole number of blocks")
	}

	count := uint32(uint64(len(data)) / uint64(namespace.BlockSize))
	if _, err := m.checkVolumeRange(s, volume, lba, count); err != nil {
		return err
	}

	if err := s.ctrl.Write(volume.namespaceId, volume.startingBlock+lba, count, data); err != nil {
		return ec.NewErrInternalServerError().WithError(err).WithCause("write failed")
	}

	return nil
}

func (m *Manager) checkVolumeRange(s *Storage, volume *Volume, lba uint64, count uint32) (uint32, error) {
	namespace, err := s.ctrl.Namespace(volume.namespaceId)
	if err != nil {
		return 0, ec.NewErrInternalServerError().WithError(err)
	}

	if count == 0 || lba >= volume.blockCount || uint64(count) > volume.blockCount-lba {
		return 0, ec.NewErrBadRequest().WithCause("access beyond end of volume")
	}

	return namespace.BlockSize, nil
}

func firstActiveNamespace(s *Storage) (nvme.Namespace, error) {
	for _, namespace := range s.ctrl.Namespaces() {
		if namespace.Active {
			return namespace, nil
		}
	}
	return nvme.Namespace{}, ec.NewErrNotAcceptable().WithCause("storage has no active namespace")
}

// findFreeRange first-fits blockCount blocks among the existing volumes
// on the namespace.
func findFreeRange(s *Storage, nsid uint32, namespaceBlocks, blockCount uint64) (uint64, bool) {
	if blockCount > namespaceBlocks {
		return 0, false
	}

	start := uint64(0)
	for {
		conflict := false
		for _, v := range s.volumes {
			if v.namespaceId != nsid {
				continue
			}
			if start < v.startingBlock+v.blockCount && v.startingBlock < start+blockCount {
				start = v.startingBlock + v.blockCount
				conflict = true
			}
		}

		if !conflict {
			if start+blockCount > namespaceBlocks {
				return 0, false
			}
			return start, true
		}

		if start+blockCount > namespaceBlocks {
			return 0, false
		}
	}
}

func volumeKey(id uuid.UUID) string {
	return volumeRegistryPrefix + id.String()
}

func devicePath(s *Storage, v *Volume) string {
	return fmt.Sprintf("/dev/bms%sn%d/%s", s.id, v.namespaceId, v.id)
}

// volumeRegistry rebuilds volumes from the registry on startup.
type volumeRegistry struct {
	manager *Manager
}

func (*volumeRegistry) Prefix() string { return volumeRegistryPrefix }

func (r *volumeRegistry) NewReplay(id string) kvstore.ReplayHandler {
	return &volumeReplayHandler{manager: r.manager, id: id}
}

type volumeReplayHandler struct {
	manager *Manager
	id      string

	volume *Volume
}

func (h *volumeReplayHandler) Metadata(data []byte) error {
	metadata := volumeMetadata{}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return err
	}

	h.volume = &Volume{
		id:            metadata.Id,
		storageId:     metadata.StorageId,
		namespaceId:   metadata.NamespaceId,
		startingBlock: metadata.StartingBlock,
		blockCount:    metadata.BlockCount,
	}

	return nil
}

func (h *volumeReplayHandler) Entry(t uint32, data []byte) error {
	switch t {
	case volumeProvisioned:
	case volumeAttached:
		attach := attachMetadata{}
		if err := json.Unmarshal(data, &attach); err != nil {
			return err
		}
		h.volume.mountpoint = attach.Mountpoint
	case volumeDetached:
		h.volume.mountpoint = ""
	}

	return nil
}

func (h *volumeReplayHandler) Done() error {
	s, err := h.manager.FindStorage(h.volume.storageId)
	if err != nil {
		// The device went away between runs; keep the record but leave
		// the volume unserved.
		h.manager.log.WithFields(log.Fields{
			"Volume":  h.volume.id,
			"Storage": h.volume.storageId,
		}).Warn("Volume references unknown storage")
		return nil
	}

	s.volumes = append(s.volumes, h.volume)

	h.manager.log.WithFields(log.Fields{
		"Storage": s.id,
		"Volume":  h.volume.id,
	}).Info("Volume restored")

	return nil
}
