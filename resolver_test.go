package txsim

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeIndexer struct {
	txs   []ChainTx
	err   error
	calls int
	refs  []UtxoRef
}

func (f *fakeIndexer) FetchTransactions(_ context.Context, refs []UtxoRef) ([]ChainTx, error) {
	f.calls++
	f.refs = refs
	return f.txs, f.err
}

type fakeSimulator struct {
	result SimulationResult
	req    SimulationRequest
}

func (f *fakeSimulator) Simulate(_ context.Context, req SimulationRequest) SimulationResult {
	f.req = req
	return f.result
}

var shortDraftHash = hex.EncodeToString([]byte("this is a string inside the cbor"))

func TestResolveShortDraft(t *testing.T) {
	indexer := &fakeIndexer{txs: []ChainTx{{
		// Indexers may report upper case hashes
		TxHash: strings.ToUpper(shortDraftHash),
		Outputs: []ChainUtxo{
			{Index: 1, PaymentCred: PaymentCredential{Hash: testPaymentHash}, Lovelace: 1},
			{Index: 0, PaymentCred: PaymentCredential{Hash: testPaymentHash}, Lovelace: 42},
		},
	}}}
	resolver := NewResolver(Config{Network: Testnet}, indexer, nil)

	resolution, err := resolver.Resolve(context.Background(), shortDraft)
	require.NoError(t, err)
	assert.Equal(t, 1, indexer.calls)
	assert.Equal(t, []UtxoRef{{TxHash: shortDraftHash, Index: 0}}, indexer.refs)

	require.Len(t, resolution.Outputs, 1)
	assert.Empty(t, resolution.Unresolved())
	assert.NoError(t, resolution.Err())

	expectedInputs := mustMarshal(t, []any{[]any{[]byte("this is a string inside the cbor"), uint64(0)}})
	assert.Equal(t, expectedInputs, resolution.InputsCbor)
	assert.Equal(t, hex.EncodeToString(expectedInputs), resolution.InputsHex())

	expectedOutputs := mustMarshal(t, []any{map[uint64]any{
		0: append([]byte{0x60}, mustDecodeHex(t, testPaymentHash)...),
		1: uint64(42),
	}})
	assert.Equal(t, expectedOutputs, resolution.OutputsCbor)
	assert.Equal(t, hex.EncodeToString(expectedOutputs), resolution.OutputsHex())
}

func TestResolveKeepsInputOrder(t *testing.T) {
	refs, err := ExtractUtxoRefs(mustDecodeHex(t, scriptDraft))
	require.NoError(t, err)

	// Batches split and in reverse order; one ref left unresolved
	var txs []ChainTx
	for i := len(refs) - 1; i >= 1; i-- {
		txs = append(txs, ChainTx{
			TxHash: refs[i].TxHash,
			Outputs: []ChainUtxo{{
				Index:       refs[i].Index,
				PaymentCred: PaymentCredential{Hash: testPaymentHash},
				Lovelace:    uint64(i),
			}},
		})
	}
	indexer := &fakeIndexer{txs: txs}
	resolver := NewResolver(Config{}, indexer, nil)

	resolution, err := resolver.Resolve(context.Background(), scriptDraft)
	require.NoError(t, err)
	assert.Equal(t, 1, indexer.calls)
	assert.Equal(t, refs, resolution.Inputs)
	require.Len(t, resolution.Outputs, len(refs))

	assert.False(t, resolution.Outputs[0].IsResolved())
	for i := 1; i < len(refs); i++ {
		require.True(t, resolution.Outputs[i].IsResolved())
		assert.Equal(t, uint64(i), resolution.Outputs[i].Amount.Coin)
	}
	assert.Equal(t, []UtxoRef{refs[0]}, resolution.Unresolved())
	assert.ErrorIs(t, resolution.Err(), ErrUnresolvedOutput)
}

func TestResolveMergesDuplicateBatches(t *testing.T) {
	indexer := &fakeIndexer{txs: []ChainTx{
		{TxHash: shortDraftHash, Outputs: []ChainUtxo{{Index: 3, PaymentCred: PaymentCredential{Hash: testPaymentHash}}}},
		{TxHash: shortDraftHash, Outputs: []ChainUtxo{{Index: 0, PaymentCred: PaymentCredential{Hash: testPaymentHash}}}},
	}}
	resolution, err := NewResolver(Config{}, indexer, nil).Resolve(context.Background(), shortDraft)
	require.NoError(t, err)
	assert.True(t, resolution.Outputs[0].IsResolved())
}

func TestResolveUnresolvedWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	resolver := NewResolver(Config{Logger: zap.New(core)}, &fakeIndexer{}, nil)

	resolution, err := resolver.Resolve(context.Background(), shortDraft)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0xa0}, resolution.OutputsCbor)
	assert.Equal(t, 1, logs.FilterMessage("no chain data for input").Len())
}

func TestResolveDebugSnapshot(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	indexer := &fakeIndexer{}

	_, err := NewResolver(Config{Logger: zap.New(core)}, indexer, nil).Resolve(context.Background(), shortDraft)
	require.NoError(t, err)
	assert.Zero(t, logs.FilterMessage("resolved transaction").Len())

	withDebug, err := NewResolver(Config{Logger: zap.New(core), Debug: true}, indexer, nil).Resolve(context.Background(), shortDraft)
	require.NoError(t, err)
	entries := logs.FilterMessage("resolved transaction").All()
	require.Len(t, entries, 1)
	assert.Equal(t, withDebug.OutputsHex(), entries[0].ContextMap()["outputs"])
}

func TestResolveNoInputs(t *testing.T) {
	// [{0: []}, {}, true, null]
	indexer := &fakeIndexer{}
	resolution, err := NewResolver(Config{}, indexer, nil).Resolve(context.Background(), "84a10080a0f5f6")
	require.NoError(t, err)
	assert.Zero(t, indexer.calls)
	assert.Equal(t, []byte{0x80}, resolution.InputsCbor)
	assert.Equal(t, []byte{0x80}, resolution.OutputsCbor)
}

func TestResolveErrors(t *testing.T) {
	resolver := NewResolver(Config{}, &fakeIndexer{}, nil)

	_, err := resolver.Resolve(context.Background(), "not_a_hex")
	var formatErr *FormatError
	assert.True(t, errors.As(err, &formatErr))

	_, err = resolver.Resolve(context.Background(), "84a10180a0f5f6")
	var structErr *StructuralError
	assert.True(t, errors.As(err, &structErr))

	indexerErr := errors.New("koios down")
	_, err = NewResolver(Config{}, &fakeIndexer{err: indexerErr}, nil).Resolve(context.Background(), shortDraft)
	assert.ErrorIs(t, err, indexerErr)

	_, err = NewResolver(Config{}, nil, nil).Resolve(context.Background(), shortDraft)
	assert.Error(t, err)
}

func TestSimulate(t *testing.T) {
	indexer := &fakeIndexer{txs: []ChainTx{{
		TxHash:  shortDraftHash,
		Outputs: []ChainUtxo{{Index: 0, PaymentCred: PaymentCredential{Hash: testPaymentHash}, Lovelace: 42}},
	}}}
	simulator := &fakeSimulator{result: SimulationResult{
		Status:  SimulationSucceeded,
		Budgets: []Budget{{Mem: 1, CPU: 2}},
	}}
	resolver := NewResolver(Config{Network: Mainnet}, indexer, simulator)

	resolution, result, err := resolver.Simulate(context.Background(), shortDraft)
	require.NoError(t, err)
	assert.Equal(t, SimulationSucceeded, result.Status)
	assert.Equal(t, []Budget{{Mem: 1, CPU: 2}}, result.Budgets)

	assert.Equal(t, resolution.Tx, simulator.req.Tx)
	assert.Equal(t, resolution.InputsCbor, simulator.req.Inputs)
	assert.Equal(t, resolution.OutputsCbor, simulator.req.Outputs)
	assert.Equal(t, Mainnet, simulator.req.Network)
	require.Len(t, simulator.req.InputItems, 1)
	require.Len(t, simulator.req.OutputItems, 1)
	// The whole sequence is a one-element array around the single item
	assert.Equal(t, append([]byte{0x81}, simulator.req.InputItems[0]...), resolution.InputsCbor)
	assert.Equal(t, append([]byte{0x81}, simulator.req.OutputItems[0]...), resolution.OutputsCbor)
}

func TestSimulateFailedIsNotAnError(t *testing.T) {
	simulator := &fakeSimulator{result: simulationFailed("boom")}
	_, result, err := NewResolver(Config{}, &fakeIndexer{}, simulator).Simulate(context.Background(), shortDraft)
	require.NoError(t, err)
	assert.Equal(t, SimulationFailed, result.Status)
	assert.Equal(t, "boom", result.Reason)
	assert.Equal(t, "failed", result.Status.String())
}

func TestSimulateWithoutSimulator(t *testing.T) {
	_, _, err := NewResolver(Config{}, &fakeIndexer{}, nil).Simulate(context.Background(), shortDraft)
	assert.Error(t, err)
}

func TestDistinctTxHashes(t *testing.T) {
	refs := []UtxoRef{{TxHash: "b"}, {TxHash: "a", Index: 1}, {TxHash: "b", Index: 2}}
	assert.Equal(t, []string{"b", "a"}, DistinctTxHashes(refs))
	assert.Empty(t, DistinctTxHashes(nil))
}

func TestUtxoRefText(t *testing.T) {
	ref, err := ParseUtxoRef(strings.ToUpper(testTxHash) + "#3")
	require.NoError(t, err)
	assert.Equal(t, UtxoRef{TxHash: testTxHash, Index: 3}, ref)
	assert.Equal(t, testTxHash+"#3", ref.String())

	for _, bad := range []string{testTxHash, "zz#1", testTxHash + "#x", "abcd#0", testTxHash + "00#0"} {
		_, err := ParseUtxoRef(bad)
		assert.Error(t, err, bad)
	}
}
