package deployment

import (
	"fmt"
	"maps"
	"strings"

	"github.com/KevinKickass/MokuCore/internal/platform"
)

// SlotConfig describes the instrument occupying one slot. It carries no
// platform reference; validity is checked when it is added to a Config.
type SlotConfig struct {
	Index      int
	Instrument string
	Parameters map[string]any

	// CloudCompile slots only.
	ControlRegisters map[int]uint32
	Bitstream        string
}

// NewSlotConfig copies params. Numbers are stored the way the JSON and YAML
// codecs read them back: whole numbers as int, the rest as float64.
func NewSlotConfig(index int, instrument string, params map[string]any) SlotConfig {
	return SlotConfig{
		Index:      index,
		Instrument: strings.TrimSpace(instrument),
		Parameters: normalizeParams(params),
	}
}

// ValidateAgainst checks the slot index bounds and that the platform allows
// the instrument in that slot.
func (s SlotConfig) ValidateAgainst(spec *platform.Spec) error {
	if spec == nil {
		return ErrNoPlatform
	}
	if !spec.ValidSlot(s.Index) {
		return &InvalidSlotError{
			Index:      s.Index,
			Instrument: s.Instrument,
			Kind:       SlotOutOfRange,
			Reason:     fmt.Sprintf("slot %d out of range for %s (0-%d)", s.Index, spec.Name, spec.SlotCount-1),
		}
	}
	if strings.TrimSpace(s.Instrument) == "" {
		return &InvalidSlotError{
			Index:  s.Index,
			Kind:   SlotEmptyInstrument,
			Reason: "instrument name cannot be empty",
		}
	}
	if !spec.AllowsInstrument(s.Index, s.Instrument) {
		return &InvalidSlotError{
			Index:      s.Index,
			Instrument: s.Instrument,
			Kind:       SlotInstrumentDenied,
			Reason:     fmt.Sprintf("instrument %s not allowed in slot %d on %s", s.Instrument, s.Index, spec.Name),
		}
	}
	return nil
}

func (s SlotConfig) clone() SlotConfig {
	s.Parameters = normalizeParams(s.Parameters)
	s.ControlRegisters = maps.Clone(s.ControlRegisters)
	return s
}
