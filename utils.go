package txsim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	lovelaceUnit = "lovelace"
	policyIDLen  = 2 * AddressHashSize
)

// ParseUTxOsJSON parses an offline UTxO snapshot into chain transactions.
func ParseUTxOsJSON(jsonData []byte) ([]ChainTx, error) {
	var txs []UTxOJSON
	if err := json.Unmarshal(jsonData, &txs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	ret := make([]ChainTx, 0, len(txs))
	for _, tx := range txs {
		chainTx := ChainTx{
			TxHash:  strings.ToLower(tx.Hash),
			Outputs: make([]ChainUtxo, 0, len(tx.Outputs)),
		}
		for _, output := range tx.Outputs {
			utxo, err := convertJSONOutput(output)
			if err != nil {
				return nil, fmt.Errorf("failed to convert output %s#%d: %w", output.TxHash, output.OutputIndex, err)
			}
			if chainTx.TxHash == "" {
				chainTx.TxHash = utxo.TxHash
			}
			chainTx.Outputs = append(chainTx.Outputs, utxo)
		}
		ret = append(ret, chainTx)
	}
	return ret, nil
}

// convertJSONOutput converts a snapshot output to a ChainUtxo
func convertJSONOutput(output OutputJSON) (ChainUtxo, error) {
	utxo := ChainUtxo{
		TxHash:          strings.ToLower(output.TxHash),
		Index:           output.OutputIndex,
		InlineDatum:     output.InlineDatum,
		ReferenceScript: output.ReferenceScript,
	}
	if err := utxo.SetAddress(output.Address); err != nil {
		return ChainUtxo{}, fmt.Errorf("failed to decode address: %w", err)
	}

	for _, amt := range output.Amount {
		if amt.Unit == lovelaceUnit {
			if amt.Quantity < 0 {
				return ChainUtxo{}, fmt.Errorf("negative lovelace amount %d", amt.Quantity)
			}
			utxo.Lovelace = uint64(amt.Quantity)
			continue
		}
		if len(amt.Unit) < policyIDLen {
			return ChainUtxo{}, &FormatError{Msg: fmt.Sprintf("asset unit %q is shorter than a policy ID", amt.Unit)}
		}
		utxo.Assets = append(utxo.Assets, AssetQuantity{
			PolicyID:  amt.Unit[:policyIDLen],
			AssetName: amt.Unit[policyIDLen:],
			Quantity:  amt.Quantity,
		})
	}
	return utxo, nil
}

// StaticIndexer serves chain data from an in-memory snapshot.
type StaticIndexer struct {
	Txs []ChainTx
}

// LoadStaticIndexer reads an offline UTxO snapshot file.
func LoadStaticIndexer(path string) (*StaticIndexer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read UTxO file: %w", err)
	}
	txs, err := ParseUTxOsJSON(data)
	if err != nil {
		return nil, err
	}
	return &StaticIndexer{Txs: txs}, nil
}

// FetchTransactions returns the snapshot transactions produced by any of refs.
func (s *StaticIndexer) FetchTransactions(_ context.Context, refs []UtxoRef) ([]ChainTx, error) {
	wanted := make(map[string]bool, len(refs))
	for _, hash := range DistinctTxHashes(refs) {
		wanted[strings.ToLower(hash)] = true
	}
	var ret []ChainTx
	for _, tx := range s.Txs {
		if wanted[strings.ToLower(tx.TxHash)] {
			ret = append(ret, tx)
		}
	}
	return ret, nil
}
