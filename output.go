package txsim

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// PlutusVersion is the language discriminant used when wrapping reference
// scripts.
type PlutusVersion uint8

const (
	PlutusV1 PlutusVersion = 1
	PlutusV2 PlutusVersion = 2
	PlutusV3 PlutusVersion = 3

	DefaultPlutusVersion = PlutusV3
)

// datumOptionInline marks an inline datum in the output datum option
const datumOptionInline = 1

// DatumOption is the [1, #6.24(datum)] form of an inline datum.
type DatumOption struct {
	_    struct{} `cbor:",toarray"`
	Kind uint64
	Data cbor.Tag
}

// ResolvedOutput is the ledger form of a spent output. The zero value encodes
// as an empty map and stands for an output that could not be resolved.
type ResolvedOutput struct {
	Address   []byte       `cbor:"0,keyasint,omitempty"`
	Amount    *Value       `cbor:"1,keyasint,omitempty"`
	Datum     *DatumOption `cbor:"2,keyasint,omitempty"`
	ScriptRef *cbor.Tag    `cbor:"3,keyasint,omitempty"`
}

func (o ResolvedOutput) IsResolved() bool {
	return o.Address != nil
}

type OutputOptions struct {
	Network       NetworkID
	PlutusVersion PlutusVersion
}

// BuildResolvedOutput finds the output of tx matching ref and rebuilds it in
// ledger form. When nothing matches, an empty ResolvedOutput is returned with
// a nil error.
func BuildResolvedOutput(ref UtxoRef, tx ChainTx, opts OutputOptions) (ResolvedOutput, error) {
	utxo, ok := findOutput(ref, tx)
	if !ok {
		return ResolvedOutput{}, nil
	}

	// Outputs carrying an inline datum are assumed to sit at a script address
	paymentKind := CredentialKey
	if utxo.InlineDatum != "" {
		paymentKind = CredentialScript
	}
	address, err := buildOutputAddress(utxo, paymentKind, opts.Network)
	if err != nil {
		return ResolvedOutput{}, fmt.Errorf("failed to build address for %s: %w", ref, err)
	}

	value, err := BuildValue(utxo.Lovelace, utxo.Assets)
	if err != nil {
		return ResolvedOutput{}, fmt.Errorf("failed to build value for %s: %w", ref, err)
	}

	resolved := ResolvedOutput{
		Address: address,
		Amount:  &value,
	}

	if utxo.InlineDatum != "" {
		datum, err := DecodeHex(utxo.InlineDatum)
		if err != nil {
			return ResolvedOutput{}, fmt.Errorf("invalid inline datum for %s: %w", ref, err)
		}
		resolved.Datum = &DatumOption{
			Kind: datumOptionInline,
			Data: cbor.Tag{Number: cborTagEncodedCbor, Content: datum},
		}
	}

	if utxo.ReferenceScript != "" {
		script, err := DecodeHex(utxo.ReferenceScript)
		if err != nil {
			return ResolvedOutput{}, fmt.Errorf("invalid reference script for %s: %w", ref, err)
		}
		version := opts.PlutusVersion
		if version == 0 {
			version = DefaultPlutusVersion
		}
		scriptCbor, err := encMode.Marshal([]any{uint64(version), script})
		if err != nil {
			return ResolvedOutput{}, err
		}
		resolved.ScriptRef = &cbor.Tag{Number: cborTagEncodedCbor, Content: scriptCbor}
	}

	return resolved, nil
}

func findOutput(ref UtxoRef, tx ChainTx) (ChainUtxo, bool) {
	for _, utxo := range tx.Outputs {
		hash := utxo.TxHash
		if hash == "" {
			hash = tx.TxHash
		}
		if strings.EqualFold(hash, ref.TxHash) && utxo.Index == ref.Index {
			return utxo, true
		}
	}
	return ChainUtxo{}, false
}

func buildOutputAddress(utxo ChainUtxo, paymentKind CredentialKind, network NetworkID) ([]byte, error) {
	paymentHash, err := DecodeHex(utxo.PaymentCred.Hash)
	if err != nil {
		return nil, err
	}
	stakeKind := StakeNone
	var stakeHash []byte
	if utxo.StakeAddress != "" {
		hash, isScript, err := ResolveCredential(utxo.StakeAddress)
		if err != nil {
			return nil, err
		}
		if stakeHash, err = DecodeHex(hash); err != nil {
			return nil, err
		}
		stakeKind = StakeKey
		if isScript {
			stakeKind = StakeScript
		}
	}
	return BuildAddress(paymentKind, paymentHash, stakeKind, stakeHash, network)
}
