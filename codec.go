package txsim

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

const (
	cborTagEncodedCbor = 24
	cborTagSet         = 258
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Maps are emitted with ordered keys so both sequences are byte-stable
	encMode, err = cbor.EncOptions{Sort: cbor.SortCoreDeterministic}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{MaxNestedLevels: 256}.DecMode()
	if err != nil {
		panic(err)
	}
}

// DecodeHex converts hex text into bytes. The empty string yields an empty
// slice.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		pos := 1
		var invalid hex.InvalidByteError
		if errors.As(err, &invalid) {
			for i := range s {
				if s[i] == byte(invalid) {
					pos = i + 1
					break
				}
			}
		}
		return nil, &FormatError{
			Msg: fmt.Sprintf("non-hexadecimal number found in %q at position %d", s, pos),
			Err: err,
		}
	}
	return b, nil
}

// DecodeDraft decodes a hex-encoded transaction draft and checks that it holds
// exactly one well-formed CBOR item.
func DecodeDraft(draftHex string) ([]byte, error) {
	txBytes, err := DecodeHex(draftHex)
	if err != nil {
		return nil, err
	}
	if err := decMode.Wellformed(txBytes); err != nil {
		return nil, &FormatError{Msg: "transaction draft is not valid CBOR", Err: err}
	}
	return txBytes, nil
}

// TextEnvelope is the JSON wrapper cardano-cli writes around transaction drafts.
type TextEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// LoadDraftFile reads a transaction draft file and returns its CBOR hex.
func LoadDraftFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read draft file: %w", err)
	}
	var envelope TextEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("failed to parse draft file: %w", err)
	}
	if envelope.CborHex == "" {
		return "", &FormatError{Msg: fmt.Sprintf("draft file %s has no cborHex", path)}
	}
	return envelope.CborHex, nil
}
