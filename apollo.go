package txsim

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Salvionied/apollo/serialization/PlutusData"
	apolloUTxO "github.com/Salvionied/apollo/serialization/UTxO"
	base "github.com/Salvionied/apollo/txBuilding/Backend/Base"
	apolloCbor "github.com/Salvionied/cbor/v2"
)

// ChainContextIndexer looks up inputs one at a time through an Apollo chain
// context backend.
type ChainContextIndexer struct {
	Context base.ChainContext
	// Connect builds Context on first use when Context is nil. Backends
	// such as Blockfrost query the chain as soon as they are constructed.
	Connect func() (base.ChainContext, error)

	mu sync.Mutex
}

func (c *ChainContextIndexer) chainContext() (base.ChainContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Context != nil {
		return c.Context, nil
	}
	if c.Connect == nil {
		return nil, errors.New("no chain context configured")
	}
	chainContext, err := c.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect chain context: %w", err)
	}
	c.Context = chainContext
	return chainContext, nil
}

// FetchTransactions resolves each ref through the chain context. Refs the
// backend does not know are left out of the result.
func (c *ChainContextIndexer) FetchTransactions(ctx context.Context, refs []UtxoRef) ([]ChainTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chainContext, err := c.chainContext()
	if err != nil {
		return nil, err
	}
	byHash := map[string]int{}
	var ret []ChainTx
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		utxo := chainContext.GetUtxoFromRef(ref.TxHash, int(ref.Index))
		if utxo == nil {
			continue
		}
		chainUtxo, err := chainUtxoFromApollo(utxo)
		if err != nil {
			return nil, fmt.Errorf("failed to convert UTxO %s: %w", ref, err)
		}
		key := strings.ToLower(ref.TxHash)
		idx, ok := byHash[key]
		if !ok {
			idx = len(ret)
			byHash[key] = idx
			ret = append(ret, ChainTx{TxHash: key})
		}
		ret[idx].Outputs = append(ret[idx].Outputs, chainUtxo)
	}
	return ret, nil
}

// chainUtxoFromApollo converts an Apollo UTxO to a ChainUtxo.
func chainUtxoFromApollo(utxo *apolloUTxO.UTxO) (ChainUtxo, error) {
	ret := ChainUtxo{
		TxHash: hex.EncodeToString(utxo.Input.TransactionId),
		Index:  uint64(utxo.Input.Index),
	}
	if err := ret.SetAddress(utxo.Output.GetAddress().String()); err != nil {
		return ChainUtxo{}, err
	}

	amount := utxo.Output.GetAmount()
	if coin := amount.GetCoin(); coin > 0 {
		ret.Lovelace = uint64(coin)
	}
	for policyID, assetGroup := range amount.GetAssets() {
		for assetName, quantity := range assetGroup {
			ret.Assets = append(ret.Assets, AssetQuantity{
				PolicyID:  policyID.Value,
				AssetName: assetName.HexString(),
				Quantity:  int64(quantity),
			})
		}
	}

	// GetDatum dereferences the datum option without a nil check
	if opt := utxo.Output.GetDatumOption(); opt != nil && opt.DatumType == PlutusData.DatumTypeInline && opt.Inline != nil {
		datumCbor, err := apolloCbor.Marshal(opt.Inline)
		if err != nil {
			return ChainUtxo{}, fmt.Errorf("failed to encode datum: %w", err)
		}
		ret.InlineDatum = hex.EncodeToString(datumCbor)
	}

	if ref := utxo.Output.GetScriptRef(); ref != nil && len(*ref) > 0 {
		ret.ReferenceScript = hex.EncodeToString(*ref)
	}
	return ret, nil
}
