package txsim

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Simulator runs the scripts of a transaction against its resolved inputs.
type Simulator interface {
	Simulate(ctx context.Context, req SimulationRequest) SimulationResult
}

// SimulationRequest carries the draft plus the canonical input and output
// sequences, both whole and per item.
type SimulationRequest struct {
	Tx          []byte
	Inputs      []byte
	Outputs     []byte
	InputItems  [][]byte
	OutputItems [][]byte
	Network     NetworkID
}

type SimulationStatus int

const (
	SimulationSucceeded SimulationStatus = iota
	SimulationFailed
)

func (s SimulationStatus) String() string {
	if s == SimulationFailed {
		return "failed"
	}
	return "succeeded"
}

// SimulationResult tells a run that executed no scripts (Succeeded, no
// budgets) apart from one where the simulator broke down (Failed).
type SimulationResult struct {
	Status  SimulationStatus
	Budgets []Budget
	Reason  string
}

func simulationFailed(format string, args ...any) SimulationResult {
	return SimulationResult{Status: SimulationFailed, Reason: fmt.Sprintf(format, args...)}
}

const DefaultAikenPath = "aiken"

// AikenSimulator shells out to `aiken tx simulate`.
type AikenSimulator struct {
	Path       string // Executable, DefaultAikenPath when empty
	ScratchDir string // Parent of the per-run scratch directory, os.TempDir when empty
	ZeroTime   uint64 // Overrides the network's Shelley start time when set
	ZeroSlot   uint64 // Overrides the network's Shelley start slot when set
	Logger     *zap.Logger
}

// slotFlags returns the --zero-time/--zero-slot arguments. Mainnet uses
// aiken's built-in defaults unless overridden.
func (s *AikenSimulator) slotFlags(network NetworkID) []string {
	zeroTime, zeroSlot := s.ZeroTime, s.ZeroSlot
	if network == Testnet {
		if zeroTime == 0 {
			zeroTime = PreprodZeroTime
		}
		if zeroSlot == 0 {
			zeroSlot = PreprodZeroSlot
		}
	}
	var args []string
	if zeroTime != 0 {
		args = append(args, "--zero-time", strconv.FormatUint(zeroTime, 10))
	}
	if zeroSlot != 0 {
		args = append(args, "--zero-slot", strconv.FormatUint(zeroSlot, 10))
	}
	return args
}

func (s *AikenSimulator) Simulate(ctx context.Context, req SimulationRequest) SimulationResult {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	path := s.Path
	if path == "" {
		path = DefaultAikenPath
	}

	// Everything handed to aiken lives in one directory removed on return
	dir, err := os.MkdirTemp(s.ScratchDir, "txsim-")
	if err != nil {
		return simulationFailed("failed to create scratch directory: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove scratch directory", zap.String("dir", dir), zap.Error(err))
		}
	}()

	files := []struct {
		name string
		data []byte
	}{
		{"tx.cbor", req.Tx},
		{"inputs.cbor", req.Inputs},
		{"outputs.cbor", req.Outputs},
	}
	args := []string{"tx", "simulate"}
	for _, f := range files {
		filePath := filepath.Join(dir, f.name)
		if err := os.WriteFile(filePath, []byte(hex.EncodeToString(f.data)), 0o600); err != nil {
			return simulationFailed("failed to write %s: %v", f.name, err)
		}
		args = append(args, filePath)
	}
	args = append(args, s.slotFlags(req.Network)...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	logger.Debug("running simulator", zap.String("path", path), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return simulationFailed("%v: %s", err, strings.TrimSpace(stderr.String()))
	}

	var budgets []Budget
	if err := json.Unmarshal(stdout.Bytes(), &budgets); err != nil {
		return simulationFailed("failed to decode simulator output: %v", err)
	}
	return SimulationResult{Status: SimulationSucceeded, Budgets: budgets}
}
