package txsim

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// TxHashSize is the length in bytes of a transaction hash.
const TxHashSize = 32

// UtxoRef identifies a transaction output by producing transaction hash and
// output index.
type UtxoRef struct {
	TxHash string
	Index  uint64
}

// ParseUtxoRef parses the "hash#index" form produced by UtxoRef.String.
func ParseUtxoRef(s string) (UtxoRef, error) {
	hash, idx, ok := strings.Cut(s, "#")
	if !ok {
		return UtxoRef{}, &FormatError{Msg: fmt.Sprintf("missing '#' in utxo reference %q", s)}
	}
	hashBytes, err := DecodeHex(hash)
	if err != nil {
		return UtxoRef{}, err
	}
	if len(hashBytes) != TxHashSize {
		return UtxoRef{}, &FormatError{Msg: fmt.Sprintf("tx hash in %q is %d bytes, expected %d", s, len(hashBytes), TxHashSize)}
	}
	index, err := strconv.ParseUint(idx, 10, 64)
	if err != nil {
		return UtxoRef{}, &FormatError{Msg: fmt.Sprintf("invalid output index in %q", s), Err: err}
	}
	return UtxoRef{TxHash: strings.ToLower(hash), Index: index}, nil
}

func (r UtxoRef) String() string {
	return fmt.Sprintf("%s#%d", r.TxHash, r.Index)
}

// MarshalCBOR encodes the reference as [hash bytes, index].
func (r UtxoRef) MarshalCBOR() ([]byte, error) {
	hash, err := hex.DecodeString(r.TxHash)
	if err != nil {
		return nil, &FormatError{Msg: fmt.Sprintf("invalid tx hash %q", r.TxHash), Err: err}
	}
	return encMode.Marshal([]any{hash, r.Index})
}

// ChainTx is the indexer's view of one transaction: its hash and the outputs
// it produced.
type ChainTx struct {
	TxHash  string
	Outputs []ChainUtxo
}

type PaymentCredential struct {
	Hash   string // 28-byte hash, hex
	Bech32 string // full address text
}

// ChainUtxo is a read-only snapshot of one output as reported by an indexer.
// Empty strings mean "absent" for the optional fields.
type ChainUtxo struct {
	TxHash          string
	Index           uint64
	PaymentCred     PaymentCredential
	StakeAddress    string
	InlineDatum     string
	ReferenceScript string
	Lovelace        uint64
	Assets          []AssetQuantity
}

// AssetQuantity is a signed movement of one native asset. Negative quantities
// express burning.
type AssetQuantity struct {
	PolicyID  string
	AssetName string
	Quantity  int64
}

type EvalError struct {
	ErrorType  string   `cbor:"error_type"`
	Budget     Budget   `cbor:"budget"`
	DebugTrace []string `cbor:"debug_trace"`
}

type Budget struct {
	Mem uint64 `cbor:"mem" json:"mem"`
	CPU uint64 `cbor:"cpu" json:"cpu"`
}

// UTxOJSON is one transaction in an offline UTxO snapshot file.
type UTxOJSON struct {
	Hash    string       `json:"hash"`
	Outputs []OutputJSON `json:"outputs"`
}

type OutputJSON struct {
	TxHash          string      `json:"tx_hash"`
	OutputIndex     uint64      `json:"output_index"`
	Address         string      `json:"address"`
	Amount          []AssetJSON `json:"amount"`
	InlineDatum     string      `json:"inline_datum"`
	ReferenceScript string      `json:"reference_script"`
}

type AssetJSON struct {
	Unit     string `json:"unit"`
	Quantity int64  `json:"quantity"`
}
