package utxo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client 访问 esplora 风格的浏览器 REST API (blockstream/mempool 等)。
// endpoints 按顺序是 primary + fallback：一个数据源失败就换下一个，
// 全部失败才返回最后一次的错误。
type Client struct {
	endpoints []string
	http      *http.Client
	log       *zap.Logger
}

func NewClient(endpoints []string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		endpoints: endpoints,
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}
}

// Utxo 地址的未花费输出
type Utxo struct {
	TxID   string     `json:"txid"`
	Vout   uint32     `json:"vout"`
	Value  int64      `json:"value"` // satoshis
	Status UtxoStatus `json:"status"`
}

type UtxoStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
}

// Tx 交易详情 (历史回填和状态检查共用)
type Tx struct {
	TxID   string     `json:"txid"`
	Fee    int64      `json:"fee"`
	Status UtxoStatus `json:"status"`
	Vin    []TxVin    `json:"vin"`
	Vout   []TxVout   `json:"vout"`
}

type TxVin struct {
	Prevout *TxVout `json:"prevout"`
}

type TxVout struct {
	Address string `json:"scriptpubkey_address"`
	Value   int64  `json:"value"`
}

// Utxos 列出地址的未花费输出
func (c *Client) Utxos(ctx context.Context, address string) ([]Utxo, error) {
	var out []Utxo
	err := c.getJSON(ctx, "/address/"+address+"/utxo", &out)
	return out, err
}

// GetTx 按哈希查询交易
func (c *Client) GetTx(ctx context.Context, txid string) (*Tx, error) {
	var out Tx
	if err := c.getJSON(ctx, "/tx/"+txid, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddressTxs 地址最近的交易 (esplora 单页最多 50 条)
func (c *Client) AddressTxs(ctx context.Context, address string) ([]Tx, error) {
	var out []Tx
	err := c.getJSON(ctx, "/address/"+address+"/txs", &out)
	return out, err
}

// TipHeight 当前链顶高度
func (c *Client) TipHeight(ctx context.Context) (uint64, error) {
	body, err := c.getText(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(body), 10, 64)
}

// FeeEstimates 目标区块数 -> sat/vB
func (c *Client) FeeEstimates(ctx context.Context) (map[string]float64, error) {
	var out map[string]float64
	err := c.getJSON(ctx, "/fee-estimates", &out)
	return out, err
}

// BroadcastTx 提交已签名交易的 hex，返回 txid
func (c *Client) BroadcastTx(ctx context.Context, rawHex string) (string, error) {
	var lastErr error
	for _, base := range c.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/tx", bytes.NewBufferString(rawHex))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "text/plain")

		body, err := c.do(req)
		if err != nil {
			lastErr = err
			c.log.Warn("utxo broadcast endpoint failed, trying next",
				zap.String("endpoint", base), zap.Error(err))
			continue
		}
		return strings.TrimSpace(body), nil
	}
	return "", fmt.Errorf("all utxo endpoints exhausted: %w", lastErr)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.getText(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) getText(ctx context.Context, path string) (string, error) {
	var lastErr error
	for _, base := range c.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return "", err
		}

		body, err := c.do(req)
		if err != nil {
			lastErr = err
			c.log.Warn("utxo data source failed, trying next",
				zap.String("endpoint", base), zap.String("path", path), zap.Error(err))
			continue
		}
		return body, nil
	}
	return "", fmt.Errorf("all utxo endpoints exhausted: %w", lastErr)
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}
