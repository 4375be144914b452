// Package rpcclient wraps an Ethereum JSON-RPC endpoint with the
// transaction-building, signing, and submission helpers every market
// participant (bidder, resolver, builder, tracker) needs. Grounded on the
// teacher's pkg/ethereum/client.go, generalized from single-contract Certen
// calls to the generic ABI-driven call/send surface the marketplace's four
// client roles all share.
package rpcclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/zkintents/taralli/pkg/errs"
)

// Client wraps an ethclient.Client with the chain ID needed to build and
// sign transactions locally.
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
	url     string
}

// Dial connects to an Ethereum JSON-RPC endpoint and fetches its chain ID.
func Dial(ctx context.Context, url string) (*Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: dial %s: %w", url, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: fetch chain id: %w", err)
	}
	return &Client{client: client, chainID: chainID, url: url}, nil
}

// NewClient wraps an already-dialed ethclient.Client with a known chain ID,
// skipping the eth_chainId round trip. Useful in tests against a simulated backend.
func NewClient(client *ethclient.Client, chainID *big.Int) *Client {
	return &Client{client: client, chainID: chainID}
}

func (c *Client) ChainID() *big.Int             { return c.chainID }
func (c *Client) Raw() *ethclient.Client        { return c.client }
func (c *Client) URL() string                   { return c.url }

// GetBalance returns address's ETH balance at the latest block.
func (c *Client) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: get balance: %w", err)
	}
	return balance, nil
}

// GetNonce returns address's pending-block transaction nonce.
func (c *Client) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("rpcclient: get nonce: %w", err)
	}
	return nonce, nil
}

// GetGasPrice returns the node's suggested gas price.
func (c *Client) GetGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: get gas price: %w", err)
	}
	return gasPrice, nil
}

// CreateTransactor builds a bind.TransactOpts signer from a hex-encoded
// private key, bound to this client's chain ID.
func (c *Client) CreateTransactor(privateKeyHex string) (*bind.TransactOpts, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("rpcclient: parse private key: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: create transactor: %w", err)
	}
	return auth, nil
}

// PublicAddress recovers the public address for a hex-encoded private key.
func PublicAddress(privateKeyHex string) (common.Address, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("rpcclient: parse private key: %w", err)
	}
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, fmt.Errorf("rpcclient: cast public key to ECDSA")
	}
	return crypto.PubkeyToAddress(*publicKeyECDSA), nil
}

// EstimateGas estimates the gas cost of msg.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gasLimit, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("rpcclient: estimate gas: %w", err)
	}
	return gasLimit, nil
}

// WaitForTransaction blocks until tx is mined and returns its receipt.
func (c *Client) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: wait for transaction: %w", err)
	}
	return receipt, nil
}

// Health reports whether the node is reachable and serving blocks.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("rpcclient: health check: %w", err)
	}
	return nil
}

// TransactionResult summarizes a mined transaction.
type TransactionResult struct {
	TransactionHash common.Hash
	BlockNumber     uint64
	GasUsed         uint64
	GasCost         *big.Int
	Success         bool
	Timestamp       time.Time
}

// CallContract makes a read-only ABI-encoded call against a deployed contract.
func (c *Client) CallContract(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, method string, params ...interface{}) ([]interface{}, error) {
	callData, err := contractABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: pack %s call: %w", method, err)
	}
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &contractAddr, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: call %s: %w", method, err)
	}
	outputs, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: unpack %s result: %w", method, err)
	}
	return outputs, nil
}

// minGasPriceWei is the floor this marketplace enforces on any locally built
// transaction so underpriced submissions don't stall in the mempool.
var minGasPriceWei = big.NewInt(1e9) // 1 Gwei

// SendTransaction builds, signs, and submits an ABI-encoded contract call
// carrying value wei, waiting for it to be mined.
func (c *Client) SendTransaction(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex, method string, value *big.Int, gasLimit uint64, params ...interface{}) (*TransactionResult, error) {
	callData, err := contractABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %w", errs.ErrTransactionSetup, method, err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %w", errs.ErrTransactionSetup, err)
	}
	from := crypto.PubkeyToAddress(privateKey.PublicKey)

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: get nonce: %w", errs.ErrTransactionSetup, err)
	}
	gasPrice, err := c.floorGasPrice(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransactionSetup, err)
	}
	if value == nil {
		value = big.NewInt(0)
	}

	tx := types.NewTransaction(nonce, contractAddr, value, gasLimit, gasPrice, callData)
	signer := types.LatestSignerForChainID(c.chainID)
	signedTx, err := types.SignTx(tx, signer, privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: sign transaction: %w", errs.ErrTransactionSetup, err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("%w: submit: %w", errs.ErrTransactionFailure, err)
	}
	return c.waitAndSummarize(ctx, signedTx, gasPrice)
}

// SendTransactionWithRetry retries SendTransaction on known-retryable RPC
// rejections (replacement underpriced, nonce too low, already known),
// escalating gas price 20% per attempt.
func (c *Client) SendTransactionWithRetry(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex, method string, value *big.Int, gasLimit uint64, maxRetries int, params ...interface{}) (*TransactionResult, error) {
	callData, err := contractABI.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %w", errs.ErrTransactionSetup, method, err)
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %w", errs.ErrTransactionSetup, err)
	}
	from := crypto.PubkeyToAddress(privateKey.PublicKey)
	if value == nil {
		value = big.NewInt(0)
	}
	signer := types.LatestSignerForChainID(c.chainID)

	for attempt := 0; attempt < maxRetries; attempt++ {
		nonce, err := c.client.PendingNonceAt(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("%w: get nonce: %w", errs.ErrTransactionSetup, err)
		}
		gasPrice, err := c.floorGasPrice(ctx, attempt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrTransactionSetup, err)
		}

		tx := types.NewTransaction(nonce, contractAddr, value, gasLimit, gasPrice, callData)
		signedTx, err := types.SignTx(tx, signer, privateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: sign transaction: %w", errs.ErrTransactionSetup, err)
		}

		err = c.client.SendTransaction(ctx, signedTx)
		if err != nil {
			if attempt < maxRetries-1 && isRetryableSendError(err) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(2 * time.Second):
				}
				continue
			}
			return nil, fmt.Errorf("%w: attempt %d: %w", errs.ErrTransactionFailure, attempt+1, err)
		}
		return c.waitAndSummarize(ctx, signedTx, gasPrice)
	}
	return nil, fmt.Errorf("%w: exhausted %d attempts", errs.ErrTransactionFailure, maxRetries)
}

func isRetryableSendError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "replacement transaction underpriced") ||
		strings.Contains(s, "nonce too low") ||
		strings.Contains(s, "already known")
}

// floorGasPrice fetches the suggested gas price, enforces minGasPriceWei,
// and escalates 20% per retry attempt beyond the first.
func (c *Client) floorGasPrice(ctx context.Context, attempt int) (*big.Int, error) {
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}
	if gasPrice.Cmp(minGasPriceWei) < 0 {
		gasPrice = new(big.Int).Set(minGasPriceWei)
	}
	if attempt > 0 {
		multiplier := big.NewInt(int64(100 + 20*attempt))
		gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, multiplier), big.NewInt(100))
	}
	return gasPrice, nil
}

func (c *Client) waitAndSummarize(ctx context.Context, signedTx *types.Transaction, gasPrice *big.Int) (*TransactionResult, error) {
	receipt, err := c.WaitForTransaction(ctx, signedTx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrTransactionFailure, err)
	}
	return &TransactionResult{
		TransactionHash: signedTx.Hash(),
		BlockNumber:     receipt.BlockNumber.Uint64(),
		GasUsed:         receipt.GasUsed,
		GasCost:         new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(receipt.GasUsed)),
		Success:         receipt.Status == types.ReceiptStatusSuccessful,
		Timestamp:       time.Now(),
	}, nil
}

// GetBlock fetches a block by number; nil means "latest".
func (c *Client) GetBlock(ctx context.Context, blockNumber *big.Int) (*types.Block, error) {
	block, err := c.client.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: get block: %w", err)
	}
	return block, nil
}

// LatestTimestamp returns the unix timestamp of the latest block, the
// "now" the builder uses for start_auction_timestamp and the validator for
// its auction-window bound.
func (c *Client) LatestTimestamp(ctx context.Context) (uint64, error) {
	block, err := c.GetBlock(ctx, nil)
	if err != nil {
		return 0, err
	}
	return block.Time(), nil
}

// FilterLogs forwards to the underlying node's eth_getLogs, the primitive
// the tracker's bid/resolve watchers poll.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: filter logs: %w", errs.ErrTransport, err)
	}
	return logs, nil
}

// SubscribeFilterLogs forwards to the node's log subscription, used when the
// underlying transport supports it (ws://).
func (c *Client) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	sub, err := c.client.SubscribeFilterLogs(ctx, q, ch)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe logs: %w", errs.ErrTransport, err)
	}
	return sub, nil
}
