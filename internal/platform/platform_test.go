package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMokuGoSpec(t *testing.T) {
	spec := MokuGo()
	require.NoError(t, spec.Validate())

	assert.Equal(t, 2, spec.SlotCount)
	assert.Equal(t, "Moku:Go: 2IN/2OUT, 16DIO", spec.String())
	assert.InDelta(t, 8.0, spec.ClockPeriodNS(), 1e-9)
	assert.Equal(t, []string{"Input1", "Input2", "Output1", "Output2"}, spec.RoutablePorts())

	in1, ok := spec.AnalogInputByID("IN1")
	require.True(t, ok)
	assert.Equal(t, "1MOhm", in1.Impedance)

	_, ok = spec.AnalogOutputByID("IN1")
	assert.False(t, ok)

	assert.True(t, spec.HasPort("OUT2"))
	assert.True(t, spec.HasPort("Output2"))
	assert.False(t, spec.HasPort("Output3"))
}

func TestAllowsInstrument(t *testing.T) {
	spec := MokuGo()
	spec.SlotInstruments = map[int][]string{1: {InstrumentOscilloscope}}

	tests := []struct {
		name       string
		slot       int
		instrument string
		want       bool
	}{
		{"global set slot 0", 0, InstrumentCloudCompile, true},
		{"override permits", 1, InstrumentOscilloscope, true},
		{"override excludes global entry", 1, InstrumentCloudCompile, false},
		{"unknown instrument", 0, "Toaster", false},
		{"negative slot", -1, InstrumentOscilloscope, false},
		{"slot past end", 2, InstrumentOscilloscope, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spec.AllowsInstrument(tt.slot, tt.instrument))
		})
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"empty name", func(s *Spec) { s.Name = " " }},
		{"no slots", func(s *Spec) { s.SlotCount = 0 }},
		{"too many channels", func(s *Spec) { s.SlotChannels = 5 }},
		{"zero clock", func(s *Spec) { s.ClockMHz = 0 }},
		{"no instruments", func(s *Spec) { s.Instruments = nil }},
		{"override out of range", func(s *Spec) { s.SlotInstruments = map[int][]string{7: {"X"}} }},
		{"duplicate port", func(s *Spec) { s.AnalogOutputs[0].PortID = "IN1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := MokuGo()
			tt.mutate(spec)
			assert.Error(t, spec.Validate())
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()

	t.Run("GetByName", func(t *testing.T) {
		spec, err := reg.Get("Moku:Go")
		require.NoError(t, err)
		assert.Equal(t, MokuGoName, spec.Name)
	})

	t.Run("GetByHardwareID", func(t *testing.T) {
		spec, err := reg.Get("MOKUGO")
		require.NoError(t, err)
		assert.Equal(t, MokuGoName, spec.Name)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := reg.Get("Moku:Delta")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownPlatform))

		var upe *UnknownPlatformError
		require.True(t, errors.As(err, &upe))
		assert.Equal(t, "Moku:Delta", upe.Name)
	})

	t.Run("RegisterExtends", func(t *testing.T) {
		reg := DefaultRegistry()
		lab := MokuGo()
		lab.Name = "Moku:Lab"
		lab.HardwareID = "mokulab"
		lab.ClockMHz = 500

		require.NoError(t, reg.Register(lab))
		assert.Equal(t, []string{"Moku:Go", "Moku:Lab"}, reg.Names())

		got, err := reg.Get("moku:lab")
		require.NoError(t, err)
		assert.Equal(t, 500, got.ClockMHz)
	})

	t.Run("RegisterDuplicate", func(t *testing.T) {
		reg := DefaultRegistry()
		err := reg.Register(MokuGo())
		assert.True(t, errors.Is(err, ErrDuplicatePlatform))
	})

	t.Run("RegisteredCopyIsIsolated", func(t *testing.T) {
		spec := MokuGo()
		spec.Name = "Moku:Copy"
		spec.HardwareID = "mokucopy"
		reg := DefaultRegistry()
		require.NoError(t, reg.Register(spec))

		spec.SlotCount = 99
		got, err := reg.Get("Moku:Copy")
		require.NoError(t, err)
		assert.Equal(t, 2, got.SlotCount)
	})

	t.Run("ReturnedSpecIsACopy", func(t *testing.T) {
		reg := DefaultRegistry()
		got, err := reg.Get("Moku:Go")
		require.NoError(t, err)
		got.SlotCount = 99
		got.Instruments[0] = "Tampered"
		reg.List()[0].ClockMHz = 1

		again, err := reg.Get("mokugo")
		require.NoError(t, err)
		assert.Equal(t, MokuGo(), again)
	})
}

const labYAML = `name: "Moku:Lab"
hardware_id: mokulab
slots: 2
slot_channels: 4
clock_mhz: 500
analog_inputs:
  - port_id: IN1
    direction: input
    resolution_bits: 12
    sample_rate_msa: 500
    voltage_range_vpp: 1.0
    impedance: 50Ohm
analog_outputs:
  - port_id: OUT1
    direction: output
    resolution_bits: 16
    sample_rate_msa: 1000
    voltage_range_vpp: 2.0
    impedance: 50Ohm
instruments: [Oscilloscope, PIDController]
slot_instruments:
  1: [Oscilloscope]
`

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lab.yaml"), []byte(labYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	reg := DefaultRegistry()
	loader, err := NewLoader(reg, []string{dir}, zap.NewNop())
	require.NoError(t, err)

	n, err := loader.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lab, err := reg.Get("mokulab")
	require.NoError(t, err)
	assert.Equal(t, "Moku:Lab", lab.Name)
	assert.True(t, lab.AllowsInstrument(0, InstrumentPIDController))
	assert.False(t, lab.AllowsInstrument(1, InstrumentPIDController))
}

func TestLoaderRejectsSchemaViolation(t *testing.T) {
	dir := t.TempDir()
	bad := "name: \"Moku:Bad\"\nslots: 0\nslot_channels: 4\nclock_mhz: 10\nanalog_inputs: []\nanalog_outputs: []\ninstruments: [Oscilloscope]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte(bad), 0644))

	reg := DefaultRegistry()
	loader, err := NewLoader(reg, []string{dir}, zap.NewNop())
	require.NoError(t, err)

	n, err := loader.LoadAll()
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"Moku:Go"}, reg.Names())
}
