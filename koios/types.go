package koios

import (
	"encoding/json"
	"fmt"
)

// TxInfo is the subset of a tx_info record needed to rebuild spent outputs.
type TxInfo struct {
	TxHash  string     `json:"tx_hash"`
	Outputs []TxOutput `json:"outputs"`
}

type TxOutput struct {
	TxHash          string           `json:"tx_hash"`
	TxIndex         uint64           `json:"tx_index"`
	Value           json.Number      `json:"value"`
	PaymentAddr     PaymentAddr      `json:"payment_addr"`
	StakeAddr       *string          `json:"stake_addr"`
	DatumHash       *string          `json:"datum_hash"`
	InlineDatum     *InlineDatum     `json:"inline_datum"`
	ReferenceScript *ReferenceScript `json:"reference_script"`
	AssetList       []Asset          `json:"asset_list"`
}

type PaymentAddr struct {
	Bech32 string `json:"bech32"`
	Cred   string `json:"cred"`
}

type InlineDatum struct {
	Bytes string          `json:"bytes"`
	Value json.RawMessage `json:"value"`
}

type ReferenceScript struct {
	Hash  string `json:"hash"`
	Size  uint64 `json:"size"`
	Type  string `json:"type"`
	Bytes string `json:"bytes"`
}

type Asset struct {
	PolicyID  string      `json:"policy_id"`
	AssetName string      `json:"asset_name"`
	Quantity  json.Number `json:"quantity"`
}

// APIError is the error object Koios returns in place of a result list.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("koios: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("koios: %s: %s", e.Code, e.Message)
}
