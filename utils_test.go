package txsim

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSnapshot = `[
  {
    "hash": "` + testTxHash + `",
    "outputs": [
      {
        "tx_hash": "` + testTxHash + `",
        "output_index": 0,
        "address": "` + testBaseAddress + `",
        "amount": [
          {"unit": "lovelace", "quantity": 5000000},
          {"unit": "acabacabacabacabacabacabacabacabacabacabacabacabacabacabcafe", "quantity": 3}
        ],
        "inline_datum": "d87980"
      },
      {
        "tx_hash": "` + testTxHash + `",
        "output_index": 1,
        "address": "` + testBaseAddress + `",
        "amount": [{"unit": "lovelace", "quantity": 1000000}],
        "reference_script": "4e4d01"
      }
    ]
  },
  {
    "hash": "` + testStakeHash + `1234",
    "outputs": []
  }
]`

func TestParseUTxOsJSON(t *testing.T) {
	txs, err := ParseUTxOsJSON([]byte(testSnapshot))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Len(t, txs[0].Outputs, 2)

	first := txs[0].Outputs[0]
	assert.Equal(t, testTxHash, first.TxHash)
	assert.Equal(t, uint64(5000000), first.Lovelace)
	assert.Equal(t, testPaymentHash, first.PaymentCred.Hash)
	assert.Equal(t, testStakeAddress, first.StakeAddress)
	assert.Equal(t, "d87980", first.InlineDatum)
	assert.Equal(t, []AssetQuantity{{
		PolicyID:  "acabacabacabacabacabacabacabacabacabacabacabacabacabacab",
		AssetName: "cafe",
		Quantity:  3,
	}}, first.Assets)

	second := txs[0].Outputs[1]
	assert.Equal(t, uint64(1), second.Index)
	assert.Equal(t, "4e4d01", second.ReferenceScript)
	assert.Empty(t, second.Assets)
}

func TestParseUTxOsJSONErrors(t *testing.T) {
	testDefs := []string{
		`{`,
		`[{"hash": "ab", "outputs": [{"address": "bogus"}]}]`,
		`[{"hash": "ab", "outputs": [{"address": "` + testBaseAddress + `", "amount": [{"unit": "lovelace", "quantity": -1}]}]}]`,
		`[{"hash": "ab", "outputs": [{"address": "` + testBaseAddress + `", "amount": [{"unit": "acab", "quantity": 1}]}]}]`,
	}
	for _, testDef := range testDefs {
		_, err := ParseUTxOsJSON([]byte(testDef))
		assert.Error(t, err, testDef)
	}
}

func TestStaticIndexer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxos.json")
	require.NoError(t, os.WriteFile(path, []byte(testSnapshot), 0o600))

	indexer, err := LoadStaticIndexer(path)
	require.NoError(t, err)

	txs, err := indexer.FetchTransactions(context.Background(), []UtxoRef{
		{TxHash: testTxHash, Index: 1},
		{TxHash: testTxHash, Index: 0},
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, testTxHash, txs[0].TxHash)

	txs, err = indexer.FetchTransactions(context.Background(), []UtxoRef{{TxHash: testPaymentHash}})
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = LoadStaticIndexer(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestStaticIndexerResolves(t *testing.T) {
	txs, err := ParseUTxOsJSON([]byte(testSnapshot))
	require.NoError(t, err)
	resolver := NewResolver(Config{}, &StaticIndexer{Txs: txs}, nil)

	// [{0: [[h'0b5d..', 1]]}, {}, true, null]
	draft := mustMarshal(t, []any{
		map[uint64]any{0: []any{[]any{mustDecodeHex(t, testTxHash), 1}}},
		map[uint64]any{},
		true,
		nil,
	})
	resolution, err := resolver.Resolve(context.Background(), hex.EncodeToString(draft))
	require.NoError(t, err)
	require.Len(t, resolution.Outputs, 1)
	require.True(t, resolution.Outputs[0].IsResolved())
	assert.NotNil(t, resolution.Outputs[0].ScriptRef)
	assert.Nil(t, resolution.Outputs[0].Datum)
}
