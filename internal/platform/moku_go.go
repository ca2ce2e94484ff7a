package platform

// Instrument names accepted by the multi-instrument slots.
const (
	InstrumentCloudCompile               = "CloudCompile"
	InstrumentOscilloscope               = "Oscilloscope"
	InstrumentWaveformGenerator          = "WaveformGenerator"
	InstrumentArbitraryWaveformGenerator = "ArbitraryWaveformGenerator"
	InstrumentSpectrumAnalyzer           = "SpectrumAnalyzer"
	InstrumentDatalogger                 = "Datalogger"
	InstrumentPIDController              = "PIDController"
	InstrumentLockInAmp                  = "LockInAmp"
	InstrumentFrequencyResponseAnalyzer  = "FrequencyResponseAnalyzer"
	InstrumentDigitalFilterBox           = "DigitalFilterBox"
	InstrumentFIRFilterBox               = "FIRFilterBox"
	InstrumentLogicAnalyzer              = "LogicAnalyzer"
)

const MokuGoName = "Moku:Go"

// MokuGo returns the Moku:Go platform: two multi-instrument slots, two
// 12-bit analog inputs and outputs, a 16 pin DIO header, 125 MHz clock.
func MokuGo() *Spec {
	return &Spec{
		Name:         MokuGoName,
		HardwareID:   "mokugo",
		SlotCount:    2,
		SlotChannels: 4,
		ClockMHz:     125,
		AnalogInputs: []AnalogPort{
			goInput("IN1"),
			goInput("IN2"),
		},
		AnalogOutputs: []AnalogPort{
			goOutput("OUT1"),
			goOutput("OUT2"),
		},
		DIO: DIOPort{
			NumPins:         16,
			LogicLevel:      "3.3V",
			VoltageTolerant: "5V",
			SampleRateMSa:   125,
			ConnectorType:   "ribbon_cable",
		},
		Instruments: []string{
			InstrumentCloudCompile,
			InstrumentOscilloscope,
			InstrumentWaveformGenerator,
			InstrumentArbitraryWaveformGenerator,
			InstrumentSpectrumAnalyzer,
			InstrumentDatalogger,
			InstrumentPIDController,
			InstrumentLockInAmp,
			InstrumentFrequencyResponseAnalyzer,
			InstrumentDigitalFilterBox,
			InstrumentFIRFilterBox,
			InstrumentLogicAnalyzer,
		},
	}
}

// ±25 V range into 1 MOhm.
func goInput(id string) AnalogPort {
	return AnalogPort{
		PortID:          id,
		ConnectorType:   "BNC",
		Direction:       DirectionInput,
		ResolutionBits:  12,
		SampleRateMSa:   125,
		VoltageRangeVpp: 50.0,
		Impedance:       "1MOhm",
	}
}

// ±5 V range, 50 Ohm source.
func goOutput(id string) AnalogPort {
	return AnalogPort{
		PortID:          id,
		ConnectorType:   "BNC",
		Direction:       DirectionOutput,
		ResolutionBits:  12,
		SampleRateMSa:   125,
		VoltageRangeVpp: 10.0,
		Impedance:       "50Ohm",
	}
}
