package txsim

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Indexer fetches the outputs of the transactions that produced refs. A
// resolution run calls it exactly once.
type Indexer interface {
	FetchTransactions(ctx context.Context, refs []UtxoRef) ([]ChainTx, error)
}

// DistinctTxHashes returns each transaction hash in refs once, in order of
// first appearance.
func DistinctTxHashes(refs []UtxoRef) []string {
	seen := make(map[string]bool, len(refs))
	hashes := make([]string, 0, len(refs))
	for _, ref := range refs {
		if seen[ref.TxHash] {
			continue
		}
		seen[ref.TxHash] = true
		hashes = append(hashes, ref.TxHash)
	}
	return hashes
}

// Resolution is the outcome of one run: the consumed references in draft
// order and their rebuilt outputs at matching positions.
type Resolution struct {
	Tx          []byte
	Inputs      []UtxoRef
	Outputs     []ResolvedOutput
	InputsCbor  []byte
	OutputsCbor []byte
}

func (r *Resolution) InputsHex() string {
	return hex.EncodeToString(r.InputsCbor)
}

func (r *Resolution) OutputsHex() string {
	return hex.EncodeToString(r.OutputsCbor)
}

// Unresolved lists the references no chain data was found for.
func (r *Resolution) Unresolved() []UtxoRef {
	var ret []UtxoRef
	for i, output := range r.Outputs {
		if !output.IsResolved() {
			ret = append(ret, r.Inputs[i])
		}
	}
	return ret
}

// Err returns an error wrapping ErrUnresolvedOutput when any input is
// unresolved. Callers that want strict behavior opt into it here.
func (r *Resolution) Err() error {
	unresolved := r.Unresolved()
	if len(unresolved) == 0 {
		return nil
	}
	ids := make([]string, 0, len(unresolved))
	for _, ref := range unresolved {
		ids = append(ids, ref.String())
	}
	return fmt.Errorf("%w: %s", ErrUnresolvedOutput, strings.Join(ids, ", "))
}

// SimulationRequest builds the payloads handed to a Simulator.
func (r *Resolution) SimulationRequest(network NetworkID) (SimulationRequest, error) {
	req := SimulationRequest{
		Tx:          r.Tx,
		Inputs:      r.InputsCbor,
		Outputs:     r.OutputsCbor,
		InputItems:  make([][]byte, 0, len(r.Inputs)),
		OutputItems: make([][]byte, 0, len(r.Outputs)),
		Network:     network,
	}
	for i := range r.Inputs {
		inputCbor, err := encMode.Marshal(r.Inputs[i])
		if err != nil {
			return SimulationRequest{}, err
		}
		outputCbor, err := encMode.Marshal(r.Outputs[i])
		if err != nil {
			return SimulationRequest{}, err
		}
		req.InputItems = append(req.InputItems, inputCbor)
		req.OutputItems = append(req.OutputItems, outputCbor)
	}
	return req, nil
}

// EncodeInputs encodes refs as a CBOR array of [hash, index] pairs.
func EncodeInputs(refs []UtxoRef) ([]byte, error) {
	if refs == nil {
		refs = []UtxoRef{}
	}
	return encMode.Marshal(refs)
}

// EncodeOutputs encodes outputs as a CBOR array of output maps.
func EncodeOutputs(outputs []ResolvedOutput) ([]byte, error) {
	if outputs == nil {
		outputs = []ResolvedOutput{}
	}
	return encMode.Marshal(outputs)
}

// Resolver drives a transaction draft through extraction, chain lookup and
// output assembly.
type Resolver struct {
	config    Config
	indexer   Indexer
	simulator Simulator
	logger    *zap.Logger
}

// NewResolver returns a Resolver. simulator may be nil when only Resolve is
// used.
func NewResolver(config Config, indexer Indexer, simulator Simulator) *Resolver {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		config:    config,
		indexer:   indexer,
		simulator: simulator,
		logger:    logger,
	}
}

// Resolve rebuilds the outputs spent by the draft. Format and structural
// problems are returned as errors; inputs missing from the indexer response
// yield empty outputs.
func (r *Resolver) Resolve(ctx context.Context, draftHex string) (*Resolution, error) {
	txBytes, err := DecodeDraft(draftHex)
	if err != nil {
		return nil, err
	}
	refs, err := ExtractUtxoRefs(txBytes)
	if err != nil {
		return nil, err
	}

	batches := map[string]ChainTx{}
	if len(refs) > 0 {
		if r.indexer == nil {
			return nil, errors.New("no indexer configured")
		}
		txs, err := r.indexer.FetchTransactions(ctx, refs)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch transactions: %w", err)
		}
		for _, tx := range txs {
			key := strings.ToLower(tx.TxHash)
			// Indexers may split one transaction over several records
			if existing, ok := batches[key]; ok {
				existing.Outputs = append(existing.Outputs, tx.Outputs...)
				batches[key] = existing
				continue
			}
			batches[key] = tx
		}
	}

	opts := r.config.outputOptions()
	outputs := make([]ResolvedOutput, 0, len(refs))
	for _, ref := range refs {
		output, err := BuildResolvedOutput(ref, batches[ref.TxHash], opts)
		if err != nil {
			return nil, err
		}
		if !output.IsResolved() {
			r.logger.Warn("no chain data for input", zap.String("utxo", ref.String()))
		}
		outputs = append(outputs, output)
	}

	inputsCbor, err := EncodeInputs(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inputs: %w", err)
	}
	outputsCbor, err := EncodeOutputs(outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outputs: %w", err)
	}

	if r.config.Debug {
		r.logger.Debug("resolved transaction",
			zap.String("tx", draftHex),
			zap.String("inputs", hex.EncodeToString(inputsCbor)),
			zap.String("outputs", hex.EncodeToString(outputsCbor)),
			zap.Int("input_count", len(refs)),
		)
	}

	return &Resolution{
		Tx:          txBytes,
		Inputs:      refs,
		Outputs:     outputs,
		InputsCbor:  inputsCbor,
		OutputsCbor: outputsCbor,
	}, nil
}

// Simulate resolves the draft and runs it through the configured simulator.
// Simulator failures are reported in the result, never as an error.
func (r *Resolver) Simulate(ctx context.Context, draftHex string) (*Resolution, SimulationResult, error) {
	if r.simulator == nil {
		return nil, SimulationResult{}, errors.New("no simulator configured")
	}
	resolution, err := r.Resolve(ctx, draftHex)
	if err != nil {
		return nil, SimulationResult{}, err
	}
	req, err := resolution.SimulationRequest(r.config.Network)
	if err != nil {
		return nil, SimulationResult{}, err
	}
	result := r.simulator.Simulate(ctx, req)
	if result.Status == SimulationFailed {
		r.logger.Info("simulation failed", zap.String("reason", result.Reason))
	} else if r.config.Debug {
		r.logger.Debug("simulation succeeded", zap.Int("scripts", len(result.Budgets)))
	}
	return resolution, result, nil
}
