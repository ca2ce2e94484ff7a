package platform

import (
	"fmt"
	"slices"
	"strings"
)

// Channel counts are bounded by the vendor naming scheme (InA..InD, OutA..OutD).
const MaxSlotChannels = 4

type PortDirection string

const (
	DirectionInput  PortDirection = "input"
	DirectionOutput PortDirection = "output"
)

// AnalogPort is one physical BNC connector.
type AnalogPort struct {
	PortID          string        `json:"port_id" yaml:"port_id"`
	ConnectorType   string        `json:"connector_type" yaml:"connector_type"`
	Direction       PortDirection `json:"direction" yaml:"direction"`
	ResolutionBits  int           `json:"resolution_bits" yaml:"resolution_bits"`
	SampleRateMSa   int           `json:"sample_rate_msa" yaml:"sample_rate_msa"`
	VoltageRangeVpp float64       `json:"voltage_range_vpp" yaml:"voltage_range_vpp"`
	Impedance       string        `json:"impedance" yaml:"impedance"`
}

// RouteName returns the name the routing matrix uses for this port,
// e.g. IN1 -> Input1, OUT2 -> Output2.
func (p AnalogPort) RouteName() string {
	switch {
	case strings.HasPrefix(p.PortID, "IN"):
		return "Input" + strings.TrimPrefix(p.PortID, "IN")
	case strings.HasPrefix(p.PortID, "OUT"):
		return "Output" + strings.TrimPrefix(p.PortID, "OUT")
	default:
		return p.PortID
	}
}

// DIOPort describes the digital I/O header.
type DIOPort struct {
	NumPins         int    `json:"num_pins" yaml:"num_pins"`
	LogicLevel      string `json:"logic_level" yaml:"logic_level"`
	VoltageTolerant string `json:"voltage_tolerant" yaml:"voltage_tolerant"`
	SampleRateMSa   int    `json:"sample_rate_msa" yaml:"sample_rate_msa"`
	ConnectorType   string `json:"connector_type" yaml:"connector_type"`
}

// Spec is the static description of one hardware platform. Specs handed out
// by a Registry are shared and must be treated as read-only.
type Spec struct {
	Name          string       `json:"name" yaml:"name"`
	HardwareID    string       `json:"hardware_id" yaml:"hardware_id"`
	SlotCount     int          `json:"slots" yaml:"slots"`
	SlotChannels  int          `json:"slot_channels" yaml:"slot_channels"`
	ClockMHz      int          `json:"clock_mhz" yaml:"clock_mhz"`
	AnalogInputs  []AnalogPort `json:"analog_inputs" yaml:"analog_inputs"`
	AnalogOutputs []AnalogPort `json:"analog_outputs" yaml:"analog_outputs"`
	DIO           DIOPort      `json:"dio" yaml:"dio"`

	// Instruments is the set allowed in every slot unless SlotInstruments
	// overrides it for a given slot index.
	Instruments     []string         `json:"instruments" yaml:"instruments"`
	SlotInstruments map[int][]string `json:"slot_instruments,omitempty" yaml:"slot_instruments,omitempty"`
}

// Validate checks the spec is internally consistent.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("platform name is required")
	}
	if s.SlotCount < 1 {
		return fmt.Errorf("platform %s: slot count must be >= 1, got %d", s.Name, s.SlotCount)
	}
	if s.SlotChannels < 1 || s.SlotChannels > MaxSlotChannels {
		return fmt.Errorf("platform %s: slot channels must be 1-%d, got %d", s.Name, MaxSlotChannels, s.SlotChannels)
	}
	if s.ClockMHz <= 0 {
		return fmt.Errorf("platform %s: clock must be positive", s.Name)
	}
	if len(s.Instruments) == 0 && len(s.SlotInstruments) == 0 {
		return fmt.Errorf("platform %s: no instruments allowed", s.Name)
	}
	for slot := range s.SlotInstruments {
		if !s.ValidSlot(slot) {
			return fmt.Errorf("platform %s: instrument override for slot %d out of range 0-%d",
				s.Name, slot, s.SlotCount-1)
		}
	}

	seen := make(map[string]bool)
	for _, p := range append(slices.Clone(s.AnalogInputs), s.AnalogOutputs...) {
		if p.PortID == "" {
			return fmt.Errorf("platform %s: analog port without id", s.Name)
		}
		if seen[p.PortID] {
			return fmt.Errorf("platform %s: duplicate port %s", s.Name, p.PortID)
		}
		seen[p.PortID] = true
	}
	return nil
}

// ValidSlot reports whether index addresses a physical slot.
func (s *Spec) ValidSlot(index int) bool {
	return index >= 0 && index < s.SlotCount
}

// AllowedInstruments returns the instruments permitted in a slot.
func (s *Spec) AllowedInstruments(slot int) []string {
	if override, ok := s.SlotInstruments[slot]; ok {
		return slices.Clone(override)
	}
	return slices.Clone(s.Instruments)
}

// AllowsInstrument reports whether instrument may occupy slot.
func (s *Spec) AllowsInstrument(slot int, instrument string) bool {
	if !s.ValidSlot(slot) {
		return false
	}
	allowed := s.Instruments
	if override, ok := s.SlotInstruments[slot]; ok {
		allowed = override
	}
	return slices.Contains(allowed, instrument)
}

// RoutablePorts returns the routing-matrix names of the physical analog ports.
func (s *Spec) RoutablePorts() []string {
	ports := make([]string, 0, len(s.AnalogInputs)+len(s.AnalogOutputs))
	for _, p := range s.AnalogInputs {
		ports = append(ports, p.RouteName())
	}
	for _, p := range s.AnalogOutputs {
		ports = append(ports, p.RouteName())
	}
	return ports
}

// HasPort accepts both the routing name (Input1) and the port id (IN1).
func (s *Spec) HasPort(name string) bool {
	for _, p := range s.AnalogInputs {
		if p.PortID == name || p.RouteName() == name {
			return true
		}
	}
	for _, p := range s.AnalogOutputs {
		if p.PortID == name || p.RouteName() == name {
			return true
		}
	}
	return false
}

func (s *Spec) AnalogInputByID(portID string) (AnalogPort, bool) {
	return findPort(s.AnalogInputs, portID)
}

func (s *Spec) AnalogOutputByID(portID string) (AnalogPort, bool) {
	return findPort(s.AnalogOutputs, portID)
}

func findPort(ports []AnalogPort, portID string) (AnalogPort, bool) {
	for _, p := range ports {
		if p.PortID == portID {
			return p, true
		}
	}
	return AnalogPort{}, false
}

// ClockPeriodNS returns the system clock period in nanoseconds.
func (s *Spec) ClockPeriodNS() float64 {
	return 1000.0 / float64(s.ClockMHz)
}

func (s *Spec) String() string {
	return fmt.Sprintf("%s: %dIN/%dOUT, %dDIO", s.Name, len(s.AnalogInputs), len(s.AnalogOutputs), s.DIO.NumPins)
}

// Clone returns a deep copy.
func (s *Spec) Clone() *Spec {
	c := *s
	c.AnalogInputs = slices.Clone(s.AnalogInputs)
	c.AnalogOutputs = slices.Clone(s.AnalogOutputs)
	c.Instruments = slices.Clone(s.Instruments)
	if s.SlotInstruments != nil {
		c.SlotInstruments = make(map[int][]string, len(s.SlotInstruments))
		for slot, names := range s.SlotInstruments {
			c.SlotInstruments[slot] = slices.Clone(names)
		}
	}
	return &c
}
