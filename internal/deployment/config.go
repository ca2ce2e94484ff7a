package deployment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KevinKickass/MokuCore/internal/discovery"
	"github.com/KevinKickass/MokuCore/internal/platform"
	"github.com/KevinKickass/MokuCore/internal/routing"
)

// DeviceBinding is the concrete device a configuration will be applied to.
type DeviceBinding struct {
	IP            string `json:"ip" yaml:"ip"`
	Port          int    `json:"port,omitempty" yaml:"port,omitempty"`
	CanonicalName string `json:"canonical_name,omitempty" yaml:"canonical_name,omitempty"`
	SerialNumber  string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Platform      string `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// Config is a deployable multi-instrument configuration: a platform, the
// instruments in its slots and the signal routing between them.
//
// A Config is built with the mutators below and then sealed before it is
// handed to anything that applies it. Mutators are not safe for concurrent
// use; once sealed a Config is read-only and may be shared freely.
type Config struct {
	platform *platform.Spec
	slots    map[int]SlotConfig
	routing  *routing.ConnectionList
	metadata map[string]any
	device   *DeviceBinding
	state    State
}

// PlatformConfig is the former name of Config.
//
// Deprecated: use Config.
type PlatformConfig = Config

// New returns an empty configuration for spec in the Building state. Without
// a spec, slots and device bindings fail with ErrNoPlatform until SetPlatform
// supplies one.
func New(spec *platform.Spec) *Config {
	c := &Config{
		platform: spec,
		slots:    make(map[int]SlotConfig),
		metadata: make(map[string]any),
		state:    StateBuilding,
	}
	c.routing = routing.NewConnectionList(c)
	return c
}

func (c *Config) Platform() *platform.Spec { return c.platform }
func (c *Config) State() State             { return c.state }
func (c *Config) Sealed() bool             { return c.state == StateSealed }

func (c *Config) HasSlot(index int) bool {
	_, ok := c.slots[index]
	return ok
}

// Routing returns the routing table. Mutations through it obey the same
// sealing and endpoint rules as AddConnection.
func (c *Config) Routing() *routing.ConnectionList { return c.routing }

// AddSlot places sc. A slot index can be occupied once; replacing requires
// RemoveSlot first.
func (c *Config) AddSlot(sc SlotConfig) error {
	if c.Sealed() {
		return ErrSealed
	}
	if _, exists := c.slots[sc.Index]; exists {
		return fmt.Errorf("%w: slot %d", ErrDuplicateSlot, sc.Index)
	}
	if err := sc.ValidateAgainst(c.platform); err != nil {
		return err
	}
	c.slots[sc.Index] = sc.clone()
	return nil
}

// RemoveSlot frees a slot. It refuses while any connection uses the slot.
func (c *Config) RemoveSlot(index int) error {
	if c.Sealed() {
		return ErrSealed
	}
	if _, exists := c.slots[index]; !exists {
		return fmt.Errorf("%w: slot %d", ErrSlotNotFound, index)
	}
	if c.routing.ReferencesSlot(index) {
		return fmt.Errorf("%w: slot %d", ErrSlotInUse, index)
	}
	delete(c.slots, index)
	return nil
}

// AddConnection appends to the routing table. Both endpoints must already
// resolve: slots are added before the connections that use them.
func (c *Config) AddConnection(conn routing.Connection) error {
	return c.routing.Add(conn)
}

func (c *Config) RemoveConnection(conn routing.Connection) error {
	return c.routing.Remove(conn)
}

// SetPlatform retargets the configuration. Existing slots and connections are
// kept as they are; Validate reports whatever the new platform rejects.
func (c *Config) SetPlatform(spec *platform.Spec) error {
	if c.Sealed() {
		return ErrSealed
	}
	if spec == nil {
		return ErrNoPlatform
	}
	c.platform = spec
	return nil
}

// BindDevice records the device the configuration targets.
func (c *Config) BindDevice(info discovery.DeviceInfo) error {
	return c.bind(DeviceBinding{
		IP:            info.IP,
		Port:          info.Port,
		CanonicalName: info.CanonicalName,
		SerialNumber:  info.SerialNumber,
		Platform:      info.Platform,
	})
}

func (c *Config) bind(b DeviceBinding) error {
	if c.Sealed() {
		return ErrSealed
	}
	if strings.TrimSpace(b.IP) == "" {
		return fmt.Errorf("device binding requires an IP address")
	}
	if c.platform == nil {
		return ErrNoPlatform
	}
	if !platformMatches(c.platform, b.Platform) {
		return fmt.Errorf("%w: device is %s, configuration targets %s",
			ErrPlatformMismatch, b.Platform, c.platform.Name)
	}
	c.device = &b
	return nil
}

func platformMatches(spec *platform.Spec, name string) bool {
	if name == "" {
		return true
	}
	return strings.EqualFold(name, spec.Name) || strings.EqualFold(name, spec.HardwareID)
}

func (c *Config) SetMetadata(key string, value any) error {
	if c.Sealed() {
		return ErrSealed
	}
	c.metadata[key] = normalizeValue(value)
	return nil
}

// Seal validates the configuration and makes it immutable. Sealing a sealed
// configuration is a no-op.
func (c *Config) Seal() error {
	if err := ValidateTransition(c.state, StateSealed); err != nil {
		return err
	}
	if c.Sealed() {
		return nil
	}
	if report := c.Validate(); !report.Valid {
		return &ValidationError{Report: report}
	}
	c.state = StateSealed
	return nil
}

// Slot returns the configuration of one slot.
func (c *Config) Slot(index int) (SlotConfig, bool) {
	sc, ok := c.slots[index]
	if !ok {
		return SlotConfig{}, false
	}
	return sc.clone(), true
}

// Slots returns all slots ordered by index.
func (c *Config) Slots() []SlotConfig {
	out := make([]SlotConfig, 0, len(c.slots))
	for _, sc := range c.slots {
		out = append(out, sc.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// InstrumentSlots returns the slot indices holding instrument, ascending.
func (c *Config) InstrumentSlots(instrument string) []int {
	var out []int
	for idx, sc := range c.slots {
		if sc.Instrument == instrument {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func (c *Config) Metadata() map[string]any {
	return normalizeParams(c.metadata)
}

func (c *Config) Device() (DeviceBinding, bool) {
	if c.device == nil {
		return DeviceBinding{}, false
	}
	return *c.device, true
}
