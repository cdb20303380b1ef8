package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// explorerClient 访问 etherscan 风格的浏览器 REST API。
// 只在配置了 API key 时启用，用来补全原生转账历史
// (eth_getLogs 看不到普通 value transfer)。
type explorerClient struct {
	baseURLs []string
	apiKey   string
	http     *http.Client
	log      *zap.Logger
}

func newExplorerClient(baseURLs []string, apiKey string, timeout time.Duration, log *zap.Logger) *explorerClient {
	return &explorerClient{
		baseURLs: baseURLs,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (c *explorerClient) enabled() bool {
	return c != nil && c.apiKey != "" && len(c.baseURLs) > 0
}

// explorerTx etherscan txlist 条目
type explorerTx struct {
	Hash          string `json:"hash"`
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"` // wei
	BlockNumber   string `json:"blockNumber"`
	TimeStamp     string `json:"timeStamp"`
	GasUsed       string `json:"gasUsed"`
	GasPrice      string `json:"gasPrice"`
	IsError       string `json:"isError"`
	Confirmations string `json:"confirmations"`
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// TxList 地址最近的原生转账，最多 limit 条。
func (c *explorerClient) TxList(ctx context.Context, address string, limit int) ([]explorerTx, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(limit))
	params.Set("sort", "desc")
	params.Set("apikey", c.apiKey)

	var lastErr error
	for _, base := range c.baseURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}

		txs, err := c.doTxList(req)
		if err != nil {
			lastErr = err
			c.log.Warn("explorer endpoint failed, trying next",
				zap.String("endpoint", base), zap.Error(err))
			continue
		}
		return txs, nil
	}
	return nil, fmt.Errorf("all explorer endpoints exhausted: %w", lastErr)
}

func (c *explorerClient) doTxList(req *http.Request) ([]explorerTx, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer status %d", resp.StatusCode)
	}

	var envelope explorerResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode explorer response: %w", err)
	}
	// status=0 且 message=No transactions found 是正常的空结果
	if envelope.Status != "1" && envelope.Message != "No transactions found" {
		return nil, fmt.Errorf("explorer error: %s", envelope.Message)
	}

	var txs []explorerTx
	if len(envelope.Result) > 0 && envelope.Result[0] == '[' {
		if err := json.Unmarshal(envelope.Result, &txs); err != nil {
			return nil, fmt.Errorf("decode explorer txlist: %w", err)
		}
	}
	return txs, nil
}
