package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Client 封装多个 JSON-RPC 节点，按顺序 primary + fallback 尝试。
// ethclient 对 HTTP 端点是懒连接的，启动时全部 Dial 不产生网络请求。
type Client struct {
	clients []*ethclient.Client
	urls    []string
	log     *zap.Logger
}

func NewClient(urls []string, log *zap.Logger) (*Client, error) {
	clients := make([]*ethclient.Client, 0, len(urls))
	for _, u := range urls {
		c, err := ethclient.Dial(u)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", u, err)
		}
		clients = append(clients, c)
	}
	return &Client{clients: clients, urls: urls, log: log}, nil
}

// tryEach 依次在各节点上执行 fn，第一个成功的结果胜出。
func (c *Client) tryEach(fn func(*ethclient.Client) error) error {
	var lastErr error
	for i, ec := range c.clients {
		if err := fn(ec); err != nil {
			lastErr = err
			c.log.Warn("evm rpc endpoint failed, trying next",
				zap.String("endpoint", c.urls[i]), zap.Error(err))
			continue
		}
		return nil
	}
	return fmt.Errorf("all evm endpoints exhausted: %w", lastErr)
}

// PendingNonce eth_getTransactionCount (pending)
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce uint64
	err := c.tryEach(func(ec *ethclient.Client) error {
		n, err := ec.PendingNonceAt(ctx, addr)
		if err != nil {
			return err
		}
		nonce = n
		return nil
	})
	return nonce, err
}

// GasPrice eth_gasPrice
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.tryEach(func(ec *ethclient.Client) error {
		p, err := ec.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	return price, err
}

// BlockNumber eth_blockNumber
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var num uint64
	err := c.tryEach(func(ec *ethclient.Client) error {
		n, err := ec.BlockNumber(ctx)
		if err != nil {
			return err
		}
		num = n
		return nil
	})
	return num, err
}

// Receipt eth_getTransactionReceipt。未上链的交易这里会返回 not found，
// 调用方把它当作暂不可用处理。
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.tryEach(func(ec *ethclient.Client) error {
		r, err := ec.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	return receipt, err
}

// HeaderByNumber eth_getBlockByNumber (仅头部，取时间戳用)
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.tryEach(func(ec *ethclient.Client) error {
		h, err := ec.HeaderByNumber(ctx, number)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	return header, err
}

// FilterLogs eth_getLogs
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.tryEach(func(ec *ethclient.Client) error {
		l, err := ec.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	return logs, err
}

// SendTransaction eth_sendRawTransaction
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.tryEach(func(ec *ethclient.Client) error {
		return ec.SendTransaction(ctx, tx)
	})
}
