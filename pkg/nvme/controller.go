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

package nvme

import (
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BareMetalStorage/bms-ec/pkg/mem"
	"github.com/BareMetalStorage/bms-ec/pkg/mmio"
)

// State tracks controller bring-up. Fatal is terminal; once entered no
// component issues further commands.
type State int

const (
	StateUnconfigured State = iota
	StateDisabling
	StateDisabledConfirmed
	StateConfiguring
	StateEnabling
	StateReady
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "Unconfigured"
	case StateDisabling:
		return "Disabling"
	case StateDisabledConfirmed:
		return "DisabledConfirmed"
	case StateConfiguring:
		return "Configuring"
	case StateEnabling:
		return "Enabling"
	case StateReady:
		return "Ready"
	case StateFatal:
		return "Fatal"
	}
	return "Unknown"
}

const (
	defaultQueueCount     = 1
	defaultQueueDepth     = 64
	defaultBringupTimeout = 5 * time.Second
	defaultCommandTimeout = 2 * time.Second

	// Transfer ceiling when the controller reports MDTS of zero (no limit).
	defaultMaxTransferBytes = 1 << 20

	// Namespace scan ceiling; identify buffers are expensive on tiny arenas.
	maxNamespaceScan = 1024
)

// Options configure a controller prior to bring-up.
type Options struct {
	QueueCount int // requested I/O queue pairs
	QueueDepth int // requested entries per ring

	// Bring-up timeout. Zero selects the CAP.TO hint.
	Timeout time.Duration

	// Per-command completion timeout.
	CommandTimeout time.Duration

	Log *log.Entry
}

// Controller is one NVMe device instance. The caller owns the value;
// nothing here is global, and two controllers never share state. All
// operations are cooperative and single-threaded; the device itself is
// the only concurrent actor, and the doorbell writes are the only
// synchronization signal it receives.
type Controller struct {
	regs  mmio.RegisterClient
	arena mem.Arena
	log   *log.Entry

	opts Options

	state       State
	caps        Capabilities
	strideBytes uint64

	commandCounter uint32

	admin *QueuePair
	io    []*QueuePair

	identity         ControllerIdentity
	namespaces       map[uint32]*Namespace
	maxTransferBytes uint64
}

// New binds a controller to its mapped register base and device memory
// arena. The controller is not usable until Bringup succeeds.
func New(regs mmio.RegisterClient, arena mem.Arena, opts Options) *Controller {
	if opts.QueueCount <= 0 {
		opts.QueueCount = defaultQueueCount
	}
	if opts.QueueDepth <= 1 {
		opts.QueueDepth = defaultQueueDepth
	}
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.Log == nil {
		opts.Log = log.NewEntry(log.StandardLogger())
	}

	return &Controller{
		regs:       regs,
		arena:      arena,
		log:        opts.Log,
		opts:       opts,
		state:      StateUnconfigured,
		namespaces: make(map[uint32]*Namespace),
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Identity returns the decoded Identify Controller fields. Valid only
// after Bringup.
func (c *Controller) Identity() ControllerIdentity { return c.identity }

// Namespaces returns the namespace table in id order.
func (c *Controller) Namespaces() []Namespace {
	namespaces := make([]Namespace, 0, len(c.namespaces))
	for nsid := uint32(1); len(namespaces) < len(c.namespaces); nsid++ {
		if ns, ok := c.namespaces[nsid]; ok {
			namespaces = append(namespaces, *ns)
		}
	}
	return namespaces
}

// Namespace looks up a single namespace by id.
func (c *Controller) Namespace(nsid uint32) (Namespace, error) {
	ns, ok := c.namespaces[nsid]
	if !ok {
		return Namespace{}, ErrInvalidNamespace
	}
	return *ns, nil
}

// MaxTransferBytes is the largest single read or write the controller
// accepts.
func (c *Controller) MaxTransferBytes() uint64 { return c.maxTransferBytes }

func (c *Controller) setState(s State) {
	c.log.Debugf("Controller state %s -> %s", c.state, s)
	c.state = s
}

// Bringup drives the controller from whatever state it powered up in to
// Ready, then runs the admin sequence: Identify Controller, namespace
// scan, and I/O queue creation. Any timeout is surfaced to the caller
// and initialization of this controller must be abandoned; there are no
// retries.
func (c *Controller) Bringup() error {
	c.caps = DecodeCapabilities(c.regs.Read64(CapabilitiesRegister))
	c.strideBytes = c.caps.DoorbellStrideBytes()

	timeout := c.opts.Timeout
	if timeout == 0 {
		timeout = c.caps.DefaultTimeout()
	}
	if timeout == 0 {
		timeout = defaultBringupTimeout
	}

	depth := c.opts.QueueDepth
	if max := int(c.caps.MaxQueueEntriesSupported()); depth > max {
		c.log.Debugf("Queue depth %d clamped to controller maximum %d", depth, max)
		depth = max
	}
	// Ring indices are 16 bits.
	if depth > 0xFFFF {
		depth = 0xFFFF
	}
	c.opts.QueueDepth = depth

	if err := c.disable(timeout); err != nil {
		return err
	}

	if err := c.configure(); err != nil {
		c.setState(StateFatal)
		return err
	}

	if err := c.enable(timeout); err != nil {
		return err
	}

	if err := c.identifyController(); err != nil {
		return err
	}

	if err := c.identifyNamespaces(); err != nil {
		return err
	}

	if err := c.createIoQueues(c.opts.QueueCount); err != nil {
		return err
	}

	c.log.WithFields(log.Fields{
		"Model":      c.identity.ModelNumber,
		"Serial":     c.identity.SerialNumber,
		"Firmware":   c.identity.FirmwareRevision,
		"Namespaces": len(c.namespaces),
		"IoQueues":   len(c.io),
	}).Info("Controller ready")

	return nil
}

func (c *Controller) disable(timeout time.Duration) error {
	c.setState(StateDisabling)

	if cc := c.regs.Read32(ConfigurationRegister); cc&ConfigEnable != 0 {
		c.regs.Write32(ConfigurationRegister, cc&^uint32(ConfigEnable))
	}

	if !c.waitStatus(func(csts uint32) bool { return csts&StatusReady == 0 }, timeout) {
		c.setState(StateFatal)
		return ErrResetTimeout
	}

	c.setState(StateDisabledConfirmed)
	return nil
}

func (c *Controller) configure() error {
	c.setState(StateConfiguring)

	admin, err := newQueuePair(c, 0, uint16(c.opts.QueueDepth))
	if err != nil {
		return err
	}
	c.admin = admin

	depth := uint32(c.opts.QueueDepth - 1) // zeroes based
	c.regs.Write32(AdminQueueAttributesRegister, depth<<16|depth)
	c.regs.Write64(AdminSQBaseRegister, admin.sqBuffer.Address)
	c.regs.Write64(AdminCQBaseRegister, admin.cqBuffer.Address)

	// NVM command set, 4 KiB pages, round-robin arbitration. Enable stays
	// clear until the attribute registers are committed.
	cc := uint32(0)
	cc |= 0 << configCommandSetShift
	cc |= 0 << configMemoryPageSizeShift
	cc |= 0 << configArbitrationShift
	cc |= configIOSubmissionEntrySize << configIOSubmissionEntryShift
	cc |= configIOCompletionEntrySize << configIOCompletionEntryShift
	c.regs.Write32(ConfigurationRegister, cc)

	return nil
}

func (c *Controller) enable(timeout time.Duration) error {
	c.setState(StateEnabling)

	cc := c.regs.Read32(ConfigurationRegister)
	c.regs.Write32(ConfigurationRegister, cc|ConfigEnable)

	fatal := false
	ready := c.waitStatus(func(csts uint32) bool {
		if csts&StatusFatal != 0 {
			fatal = true
			return true
		}
		return csts&StatusReady != 0
	}, timeout)

	if fatal {
		c.setState(StateFatal)
		return ErrFatalControllerStatus
	}
	if !ready {
		c.setState(StateFatal)
		return ErrEnableTimeout
	}

	c.setState(StateReady)
	return nil
}

// waitStatus polls CSTS until test passes or the wall-clock deadline
// expires. Timeouts are real time, not iteration counts; behavior does
// not depend on CPU speed.
func (c *Controller) waitStatus(test func(uint32) bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if test(c.regs.Read32(StatusRegister)) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		runtime.Gosched()
	}
}

// nextCommandId allocates the next wire command id, monotonically
// increasing per controller and truncated to 16 bits. At most one ring's
// worth of commands is ever in flight, so a truncated id cannot collide;
// the lookup makes that assumption explicit.
func (c *Controller) nextCommandId(qp *QueuePair) uint16 {
	id := uint16(c.commandCounter)
	c.commandCounter++

	if _, exists := qp.inflight[id]; exists {
		panic("nvme: command id collision with in-flight command")
	}

	return id
}

// dispatch encodes a command into the next free submission slot and
// rings the submission doorbell. No retries; a full queue is the
// caller's problem.
func (c *Controller) dispatch(qp *QueuePair, opcode uint8, nsid uint32, prp1, prp2 uint64, cdw10, cdw11, cdw12, cdw13, cdw14, cdw15 uint32) (uint16, error) {
	entry := &SubmissionEntry{
		Opcode:      opcode,
		NamespaceId: nsid,
		PRP1:        prp1,
		PRP2:        prp2,
		CDW10:       cdw10,
		CDW11:       cdw11,
		CDW12:       cdw12,
		CDW13:       cdw13,
		CDW14:       cdw14,
		CDW15:       cdw15,
	}

	id, err := qp.Submit(entry)
	if err != nil {
		return 0, err
	}

	qp.ringSubmissionDoorbell()
	return id, nil
}
