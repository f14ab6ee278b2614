package txsim

import (
	"go.uber.org/zap"
)

// Slot configuration of the networks the simulators know about
const (
	MainnetZeroTime = 1596059091000
	MainnetZeroSlot = 4492800
	PreprodZeroTime = 1655769600000
	PreprodZeroSlot = 86400
	SlotLength      = 1000
)

// Config holds the options recognized by the Resolver.
type Config struct {
	PlutusVersion PlutusVersion // Reference script language, defaults to the newest
	Network       NetworkID     // Address headers and simulator slot config
	Debug         bool          // Log hex snapshots of intermediate encodings
	Logger        *zap.Logger   // Optional, discards logs when nil
}

func (c Config) outputOptions() OutputOptions {
	version := c.PlutusVersion
	if version == 0 {
		version = DefaultPlutusVersion
	}
	return OutputOptions{Network: c.Network, PlutusVersion: version}
}

// EvaluatorConfig holds configuration parameters for the WasmSimulator.
type EvaluatorConfig struct {
	WasmFile     string // Path to the phase-two evaluator WASM module
	CostModels   []byte // Serialized cost models
	MaxTxExSteps uint64 // Maximum transaction execution steps
	MaxTxExMem   uint64 // Maximum transaction execution memory
	ZeroTime     uint64 // Zero time parameter, network default when 0
	ZeroSlot     uint64 // Zero slot parameter, network default when 0
	SlotLength   uint64 // Slot length parameter, SlotLength when 0
	Logger       *zap.Logger
}

// slotConfig returns the slot parameters for network, letting explicit
// values in the config win.
func (c EvaluatorConfig) slotConfig(network NetworkID) (zeroTime, zeroSlot, slotLength uint64) {
	zeroTime, zeroSlot, slotLength = MainnetZeroTime, MainnetZeroSlot, SlotLength
	if network == Testnet {
		zeroTime, zeroSlot = PreprodZeroTime, PreprodZeroSlot
	}
	if c.ZeroTime != 0 {
		zeroTime = c.ZeroTime
	}
	if c.ZeroSlot != 0 {
		zeroSlot = c.ZeroSlot
	}
	if c.SlotLength != 0 {
		slotLength = c.SlotLength
	}
	return zeroTime, zeroSlot, slotLength
}
