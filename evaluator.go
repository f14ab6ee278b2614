package txsim

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// WasmSimulator evaluates transactions in-process with the Aiken phase-two
// evaluator compiled to WASM.
type WasmSimulator struct {
	runtime         wazero.Runtime
	module          api.Module
	evalPhaseTwoRaw api.Function
	alloc           api.Function
	dealloc         api.Function
	config          EvaluatorConfig
	logger          *zap.Logger
}

func NewWasmSimulator(ctx context.Context, config EvaluatorConfig) (*WasmSimulator, error) {
	if config.WasmFile == "" {
		return nil, errors.New("no evaluator WASM file configured")
	}
	wasmBytes, err := os.ReadFile(config.WasmFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read WASM file: %w", err)
	}

	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, err
	}

	modConfig := wazero.NewModuleConfig().
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)

	module, err := runtime.InstantiateWithConfig(ctx, wasmBytes, modConfig)
	if err != nil {
		runtime.Close(ctx)
		return nil, err
	}

	s := &WasmSimulator{
		runtime:         runtime,
		module:          module,
		evalPhaseTwoRaw: module.ExportedFunction("eval_phase_two_raw"),
		alloc:           module.ExportedFunction("alloc"),
		dealloc:         module.ExportedFunction("dealloc"),
		config:          config,
		logger:          config.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.evalPhaseTwoRaw == nil || s.alloc == nil || s.dealloc == nil {
		s.Close(ctx)
		return nil, errors.New("WASM module is missing evaluator exports")
	}
	return s, nil
}

// Close terminates the WASM runtime and releases resources.
func (s *WasmSimulator) Close(ctx context.Context) {
	s.module.Close(ctx)
	s.runtime.Close(ctx)
}

func (s *WasmSimulator) Simulate(ctx context.Context, req SimulationRequest) SimulationResult {
	redeemers, err := s.evaluate(ctx, req)
	if err != nil {
		return simulationFailed("%v", err)
	}
	budgets, err := budgetsFromRedeemers(redeemers)
	if err != nil {
		return simulationFailed("failed to decode redeemers: %v", err)
	}
	return SimulationResult{Status: SimulationSucceeded, Budgets: budgets}
}

// evaluate runs phase two and returns the evaluated redeemers as bytes.
func (s *WasmSimulator) evaluate(ctx context.Context, req SimulationRequest) ([][]byte, error) {
	if len(req.InputItems) != len(req.OutputItems) {
		return nil, fmt.Errorf("input/output count mismatch: %d != %d", len(req.InputItems), len(req.OutputItems))
	}
	zeroTime, zeroSlot, slotLength := s.config.slotConfig(req.Network)

	serializedUtxos := serializeUTxOs(req.InputItems, req.OutputItems)

	txPtr, txLen, err := s.writeToMemory(ctx, req.Tx)
	if err != nil {
		return nil, err
	}
	defer s.deallocMemory(ctx, txPtr, txLen)
	utxosPtr, utxosLen, err := s.writeToMemory(ctx, serializedUtxos)
	if err != nil {
		return nil, err
	}
	defer s.deallocMemory(ctx, utxosPtr, utxosLen)
	costModelsPtr, costModelsLen, err := s.writeToMemory(ctx, s.config.CostModels)
	if err != nil {
		return nil, err
	}
	defer s.deallocMemory(ctx, costModelsPtr, costModelsLen)

	results, err := s.evalPhaseTwoRaw.Call(ctx,
		txPtr, txLen,
		utxosPtr, utxosLen,
		costModelsPtr, costModelsLen,
		s.config.MaxTxExSteps, s.config.MaxTxExMem,
		zeroTime, zeroSlot, slotLength,
	)
	if err != nil {
		return nil, err
	}

	resultPtr := uint32(results[0] >> 32)
	resultLen := uint32(results[0])

	resultBytes, ok := s.module.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, errors.New("failed to read result memory")
	}
	// Copy out before the memory goes back to the module
	resultCopy := bytes.Clone(resultBytes)
	s.deallocMemory(ctx, uint64(resultPtr), uint64(resultLen))

	if len(resultCopy) == 0 {
		return nil, errors.New("empty result from WASM evaluation")
	}

	if resultCopy[0] == 0 {
		var cborArray [][]byte
		if err := decMode.Unmarshal(resultCopy[1:], &cborArray); err != nil {
			return nil, err
		}
		return cborArray, nil
	}

	var evalError EvalError
	if err := decMode.Unmarshal(resultCopy[1:], &evalError); err != nil {
		return nil, err
	}
	s.logger.Debug("evaluation failed",
		zap.String("error_type", evalError.ErrorType),
		zap.Strings("trace", evalError.DebugTrace),
	)
	return nil, &EvaluationError{EvalError: evalError}
}

// writeToMemory allocates memory in WASM and writes data to it.
func (s *WasmSimulator) writeToMemory(ctx context.Context, data []byte) (uint64, uint64, error) {
	results, err := s.alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to allocate memory: %w", err)
	}
	ptr := results[0]
	if !s.module.Memory().Write(uint32(ptr), data) {
		s.deallocMemory(ctx, ptr, uint64(len(data)))
		return 0, 0, errors.New("failed to write data to WASM memory")
	}
	return ptr, uint64(len(data)), nil
}

// deallocMemory deallocates memory in WASM.
func (s *WasmSimulator) deallocMemory(ctx context.Context, ptr, size uint64) {
	if _, err := s.dealloc.Call(ctx, ptr, size); err != nil {
		s.logger.Warn("failed to deallocate memory", zap.Error(err))
	}
}

// serializeUTxOs serializes input and output UTxOs into a single byte slice.
func serializeUTxOs(utxosX, utxosY [][]byte) []byte {
	var buf bytes.Buffer

	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(utxosX)))

	for i := 0; i < len(utxosX); i++ {
		_ = binary.Write(&buf, binary.LittleEndian, uint64(len(utxosX[i])))
		buf.Write(utxosX[i])

		_ = binary.Write(&buf, binary.LittleEndian, uint64(len(utxosY[i])))
		buf.Write(utxosY[i])
	}

	return buf.Bytes()
}

type exUnits struct {
	_      struct{} `cbor:",toarray"`
	Memory uint64
	Steps  uint64
}

type evaluatedRedeemer struct {
	_       struct{} `cbor:",toarray"`
	Tag     uint64
	Index   uint64
	Data    cbor.RawMessage
	ExUnits exUnits
}

// budgetsFromRedeemers pulls the execution units out of each
// [tag, index, data, [mem, steps]] redeemer.
func budgetsFromRedeemers(redeemers [][]byte) ([]Budget, error) {
	budgets := make([]Budget, 0, len(redeemers))
	for _, raw := range redeemers {
		var redeemer evaluatedRedeemer
		if err := decMode.Unmarshal(raw, &redeemer); err != nil {
			return nil, err
		}
		budgets = append(budgets, Budget{Mem: redeemer.ExUnits.Memory, CPU: redeemer.ExUnits.Steps})
	}
	return budgets, nil
}
