package txsim

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// MultiAsset maps policy ID (hex) to asset name (hex) to a net quantity.
type MultiAsset map[string]map[string]int64

// MarshalCBOR encodes the policy and asset names as byte strings.
func (m MultiAsset) MarshalCBOR() ([]byte, error) {
	tmp := make(map[cbor.ByteString]map[cbor.ByteString]int64, len(m))
	for policyID, assets := range m {
		policy, err := DecodeHex(policyID)
		if err != nil {
			return nil, err
		}
		tmpAssets := make(map[cbor.ByteString]int64, len(assets))
		for assetName, quantity := range assets {
			name, err := DecodeHex(assetName)
			if err != nil {
				return nil, err
			}
			tmpAssets[cbor.ByteString(name)] = quantity
		}
		tmp[cbor.ByteString(policy)] = tmpAssets
	}
	return encMode.Marshal(tmp)
}

// Value is an output value. A nil Assets map encodes as a bare lovelace
// integer, anything else as [lovelace, assets].
type Value struct {
	Coin   uint64
	Assets MultiAsset
}

func (v Value) MarshalCBOR() ([]byte, error) {
	if v.Assets == nil {
		return encMode.Marshal(v.Coin)
	}
	return encMode.Marshal([]any{v.Coin, v.Assets})
}

// BuildValue folds lovelace and a list of asset movements into a Value.
// Quantities for repeated (policy, asset) pairs are summed; entries netting to
// zero and policies left empty are dropped.
func BuildValue(lovelace uint64, assets []AssetQuantity) (Value, error) {
	if len(assets) == 0 {
		return Value{Coin: lovelace}, nil
	}
	multiAsset := MultiAsset{}
	for _, asset := range assets {
		// Keys are normalized so differently-cased hex folds into one entry
		policyID := strings.ToLower(asset.PolicyID)
		assetName := strings.ToLower(asset.AssetName)
		if _, err := DecodeHex(policyID); err != nil {
			return Value{}, fmt.Errorf("invalid policy ID: %w", err)
		}
		if _, err := DecodeHex(assetName); err != nil {
			return Value{}, fmt.Errorf("invalid asset name: %w", err)
		}
		if _, ok := multiAsset[policyID]; !ok {
			multiAsset[policyID] = map[string]int64{}
		}
		current := multiAsset[policyID][assetName]
		sum := current + asset.Quantity
		if (asset.Quantity > 0 && sum < current) || (asset.Quantity < 0 && sum > current) {
			return Value{}, &FormatError{Msg: fmt.Sprintf("quantity overflow for asset %s.%s", policyID, assetName)}
		}
		multiAsset[policyID][assetName] = sum
	}
	for policyID, policyAssets := range multiAsset {
		for assetName, quantity := range policyAssets {
			if quantity == 0 {
				delete(policyAssets, assetName)
			}
		}
		if len(policyAssets) == 0 {
			delete(multiAsset, policyID)
		}
	}
	return Value{Coin: lovelace, Assets: multiAsset}, nil
}
