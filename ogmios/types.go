package ogmios

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mgpai22/txsim"
)

type UtxoTxID struct {
	ID string `json:"id"`
}

type TxInQuery struct {
	Transaction UtxoTxID `json:"transaction"`
	Index       uint32   `json:"index"`
}

// Value maps policy ID to asset name to quantity. Lovelace sits under
// "ada"/"lovelace".
type Value map[string]map[string]json.Number

type Script struct {
	Language string `json:"language"`
	Cbor     string `json:"cbor"`
}

type Utxo struct {
	Transaction UtxoTxID `json:"transaction"`
	Index       uint32   `json:"index"`
	Address     string   `json:"address"`
	Value       Value    `json:"value"`
	DatumHash   string   `json:"datumHash,omitempty"`
	Datum       string   `json:"datum,omitempty"`
	Script      *Script  `json:"script,omitempty"`
}

func (u Utxo) chainUtxo() (txsim.ChainUtxo, error) {
	ret := txsim.ChainUtxo{
		TxHash:      u.Transaction.ID,
		Index:       uint64(u.Index),
		InlineDatum: u.Datum,
	}
	if err := ret.SetAddress(u.Address); err != nil {
		return txsim.ChainUtxo{}, err
	}
	if u.Script != nil {
		ret.ReferenceScript = u.Script.Cbor
	}
	for policyID, assets := range u.Value {
		if policyID == "ada" {
			lovelace, ok := assets["lovelace"]
			if !ok {
				continue
			}
			coin, err := strconv.ParseUint(lovelace.String(), 10, 64)
			if err != nil {
				return txsim.ChainUtxo{}, fmt.Errorf("invalid lovelace %q: %w", lovelace, err)
			}
			ret.Lovelace = coin
			continue
		}
		for assetName, quantity := range assets {
			q, err := strconv.ParseInt(quantity.String(), 10, 64)
			if err != nil {
				return txsim.ChainUtxo{}, fmt.Errorf("invalid quantity %q: %w", quantity, err)
			}
			ret.Assets = append(ret.Assets, txsim.AssetQuantity{
				PolicyID:  policyID,
				AssetName: assetName,
				Quantity:  q,
			})
		}
	}
	return ret, nil
}
