package koios

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"go.uber.org/zap"

	"github.com/mgpai22/txsim"
)

const (
	MainnetEndpoint = "https://api.koios.rest/api/v1"
	PreprodEndpoint = "https://preprod.koios.rest/api/v1"
)

// Client queries transaction outputs from a Koios instance.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

// WithEndpoint overrides the network default endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a Client for network. Only mainnet and preprod have default
// endpoints.
func New(network txsim.NetworkID, opts ...Option) *Client {
	c := &Client{
		endpoint:   PreprodEndpoint,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	if network == txsim.Mainnet {
		c.endpoint = MainnetEndpoint
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TxInfo posts the hashes to tx_info. The returned order need not match the
// order of hashes.
func (c *Client) TxInfo(ctx context.Context, hashes []string) ([]TxInfo, error) {
	if hashes == nil {
		hashes = []string{}
	}
	body, err := json.Marshal(map[string]any{
		"_tx_hashes": hashes,
		"_assets":    true,
		"_scripts":   true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/tx_info", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("querying koios", zap.String("endpoint", c.endpoint), zap.Int("tx_count", len(hashes)))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query koios: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read koios response: %w", err)
	}
	if apiErr := readAPIError(data); apiErr != nil {
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	var txs []TxInfo
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("failed to parse koios response: %w", err)
	}
	return txs, nil
}

// readAPIError returns the error object in data, or nil when data holds
// anything else.
func readAPIError(data []byte) *APIError {
	_, dataType, _, err := jsonparser.Get(data)
	if err != nil || dataType != jsonparser.Object {
		return nil
	}
	message, err := jsonparser.GetString(data, "message")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil
	}
	apiErr := &APIError{Message: message}
	apiErr.Code, _ = jsonparser.GetString(data, "code")
	apiErr.Details, _ = jsonparser.GetString(data, "details")
	apiErr.Hint, _ = jsonparser.GetString(data, "hint")
	return apiErr
}

// FetchTransactions queries every distinct transaction in refs with a single
// request.
func (c *Client) FetchTransactions(ctx context.Context, refs []txsim.UtxoRef) ([]txsim.ChainTx, error) {
	infos, err := c.TxInfo(ctx, txsim.DistinctTxHashes(refs))
	if err != nil {
		return nil, err
	}
	ret := make([]txsim.ChainTx, 0, len(infos))
	for _, info := range infos {
		tx, err := chainTx(info)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tx %s: %w", info.TxHash, err)
		}
		ret = append(ret, tx)
	}
	return ret, nil
}

func chainTx(info TxInfo) (txsim.ChainTx, error) {
	tx := txsim.ChainTx{
		TxHash:  info.TxHash,
		Outputs: make([]txsim.ChainUtxo, 0, len(info.Outputs)),
	}
	for _, output := range info.Outputs {
		utxo := txsim.ChainUtxo{
			TxHash: output.TxHash,
			Index:  output.TxIndex,
			PaymentCred: txsim.PaymentCredential{
				Hash:   output.PaymentAddr.Cred,
				Bech32: output.PaymentAddr.Bech32,
			},
		}
		lovelace, err := strconv.ParseUint(output.Value.String(), 10, 64)
		if err != nil {
			return txsim.ChainTx{}, fmt.Errorf("invalid value %q: %w", output.Value, err)
		}
		utxo.Lovelace = lovelace
		if output.StakeAddr != nil {
			utxo.StakeAddress = *output.StakeAddr
		}
		if output.InlineDatum != nil {
			utxo.InlineDatum = output.InlineDatum.Bytes
		}
		if output.ReferenceScript != nil {
			utxo.ReferenceScript = output.ReferenceScript.Bytes
		}
		for _, asset := range output.AssetList {
			quantity, err := strconv.ParseInt(asset.Quantity.String(), 10, 64)
			if err != nil {
				return txsim.ChainTx{}, fmt.Errorf("invalid quantity %q: %w", asset.Quantity, err)
			}
			utxo.Assets = append(utxo.Assets, txsim.AssetQuantity{
				PolicyID:  asset.PolicyID,
				AssetName: asset.AssetName,
				Quantity:  quantity,
			})
		}
		tx.Outputs = append(tx.Outputs, utxo)
	}
	return tx, nil
}
