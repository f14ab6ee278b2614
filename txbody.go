package txsim

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
)

// Transaction body keys holding consumed outputs
const (
	txBodyKeyInputs          = 0
	txBodyKeyCollateral      = 13
	txBodyKeyReferenceInputs = 18
)

const txHashSize = 32

const errMissingBodyElements = "required tx body elements are missing"

// ExtractUtxoRefs returns every output consumed by the transaction: inputs,
// then collateral inputs, then reference inputs. Draft order and
// duplicates are kept.
func ExtractUtxoRefs(txBytes []byte) ([]UtxoRef, error) {
	var tx []cbor.RawMessage
	if err := decMode.Unmarshal(txBytes, &tx); err != nil {
		return nil, newStructuralError("%s: transaction is not an array: %v", errMissingBodyElements, err)
	}
	if len(tx) == 0 {
		return nil, newStructuralError(errMissingBodyElements)
	}
	var body map[uint64]cbor.RawMessage
	if err := decMode.Unmarshal(tx[0], &body); err != nil {
		return nil, newStructuralError("%s: body is not a map: %v", errMissingBodyElements, err)
	}
	if _, ok := body[txBodyKeyInputs]; !ok {
		return nil, newStructuralError(errMissingBodyElements)
	}
	var refs []UtxoRef
	for _, key := range []uint64{txBodyKeyInputs, txBodyKeyCollateral, txBodyKeyReferenceInputs} {
		raw, ok := body[key]
		if !ok {
			continue
		}
		tmpRefs, err := decodeInputList(key, raw)
		if err != nil {
			return nil, err
		}
		refs = append(refs, tmpRefs...)
	}
	return refs, nil
}

func decodeInputList(key uint64, raw cbor.RawMessage) ([]UtxoRef, error) {
	var list any
	if err := decMode.Unmarshal(raw, &list); err != nil {
		return nil, newStructuralError("tx body key %d: %v", key, err)
	}
	// Conway-era bodies may wrap input lists in a set tag
	if tag, ok := list.(cbor.Tag); ok && tag.Number == cborTagSet {
		list = tag.Content
	}
	items, ok := list.([]any)
	if !ok {
		return nil, newStructuralError("tx body key %d: expected a list of inputs, got %T", key, list)
	}
	refs := make([]UtxoRef, 0, len(items))
	for i, item := range items {
		ref, err := utxoRefFromItem(item)
		if err != nil {
			return nil, newStructuralError("tx body key %d, item %d: %s", key, i, err.Msg)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func utxoRefFromItem(item any) (UtxoRef, *StructuralError) {
	pair, ok := item.([]any)
	if !ok || len(pair) != 2 {
		return UtxoRef{}, newStructuralError("input must be a 2-item array")
	}
	hash, ok := pair[0].([]byte)
	if !ok || len(hash) != txHashSize {
		return UtxoRef{}, newStructuralError("input hash must be %d bytes", txHashSize)
	}
	index, ok := pair[1].(uint64)
	if !ok {
		return UtxoRef{}, newStructuralError("input index must be a non-negative integer")
	}
	return UtxoRef{TxHash: hex.EncodeToString(hash), Index: index}, nil
}
