package ogmios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mgpai22/txsim"
)

const DefaultEndpoint = "ws://127.0.0.1:1337"

// Client issues Ogmios JSON-RPC queries, one websocket connection per query.
type Client struct {
	endpoint string
	dialer   *websocket.Dialer
	logger   *zap.Logger
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		dialer:   websocket.DefaultDialer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Map map[string]any

// Error is a JSON-RPC error returned by Ogmios.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("ogmios: %d: %s", e.Code, e.Message)
}

func makePayload(method string, params Map, id any) Map {
	payload := Map{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	if id != nil {
		payload["id"] = id
	}
	return payload
}

// query sends payload and decodes the result member of the reply into v.
func (c *Client) query(ctx context.Context, payload any, v any) (err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to ogmios %s: %w", c.endpoint, err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the pending read
			closeConn()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(payload); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to write ogmios request: %w", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to read ogmios response: %w", err)
	}

	if raw, _, _, err := jsonparser.Get(data, "error"); err == nil {
		var rpcErr Error
		if err := json.Unmarshal(raw, &rpcErr); err != nil {
			return fmt.Errorf("failed to parse ogmios error: %w %s", err, data)
		}
		return &rpcErr
	}
	raw, _, _, err := jsonparser.Get(data, "result")
	if err != nil {
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return fmt.Errorf("ogmios response has no result: %s", data)
		}
		return fmt.Errorf("failed to parse ogmios response: %w", err)
	}
	return json.Unmarshal(raw, v)
}

// UtxosByTxIn returns the unspent outputs at the given references.
func (c *Client) UtxosByTxIn(ctx context.Context, txIns ...TxInQuery) ([]Utxo, error) {
	var (
		payload = makePayload(
			"queryLedgerState/utxo",
			Map{"outputReferences": txIns},
			nil,
		)
		content []Utxo
	)

	if err := c.query(ctx, payload, &content); err != nil {
		return nil, fmt.Errorf("failed to query utxos by output reference: %w", err)
	}

	return content, nil
}

// FetchTransactions queries all refs in one request and groups the outputs
// by producing transaction.
func (c *Client) FetchTransactions(ctx context.Context, refs []txsim.UtxoRef) ([]txsim.ChainTx, error) {
	txIns := make([]TxInQuery, 0, len(refs))
	for _, ref := range refs {
		// Output indexes are 32-bit on the wire; larger ones cannot exist
		if ref.Index > math.MaxUint32 {
			c.logger.Debug("skipping out of range output index", zap.Stringer("ref", ref))
			continue
		}
		txIns = append(txIns, TxInQuery{Transaction: UtxoTxID{ID: ref.TxHash}, Index: uint32(ref.Index)})
	}
	if len(txIns) == 0 {
		return nil, nil
	}
	c.logger.Debug("querying ogmios", zap.String("endpoint", c.endpoint), zap.Int("ref_count", len(refs)))
	utxos, err := c.UtxosByTxIn(ctx, txIns...)
	if err != nil {
		return nil, err
	}

	byHash := map[string]int{}
	var ret []txsim.ChainTx
	for _, utxo := range utxos {
		chainUtxo, err := utxo.chainUtxo()
		if err != nil {
			return nil, fmt.Errorf("failed to convert utxo %s#%d: %w", utxo.Transaction.ID, utxo.Index, err)
		}
		key := strings.ToLower(utxo.Transaction.ID)
		idx, ok := byHash[key]
		if !ok {
			idx = len(ret)
			byHash[key] = idx
			ret = append(ret, txsim.ChainTx{TxHash: key})
		}
		ret[idx].Outputs = append(ret[idx].Outputs, chainUtxo)
	}
	return ret, nil
}
