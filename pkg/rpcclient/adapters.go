package rpcclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/bidder"
	"github.com/zkintents/taralli/pkg/resolver"
)

// BidSender adapts *Client to bidder.TransactionSender: the two packages
// deliberately don't import each other (pkg/bidder stays free of any RPC
// dependency, see its own doc comment), so this client-side wrapper
// reshapes *TransactionResult into the *bidder.BidReceipt the bidder
// package expects back.
type BidSender struct {
	client *Client
}

// NewBidSender wraps client for use as a bidder.TransactionSender.
func NewBidSender(client *Client) *BidSender {
	return &BidSender{client: client}
}

func (s *BidSender) SendTransaction(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex, method string, value *big.Int, gasLimit uint64, params ...interface{}) (*bidder.BidReceipt, error) {
	result, err := s.client.SendTransaction(ctx, contractAddr, contractABI, privateKeyHex, method, value, gasLimit, params...)
	if err != nil {
		return nil, err
	}
	return &bidder.BidReceipt{
		TxHash:      result.TransactionHash,
		BlockNumber: result.BlockNumber,
		GasUsed:     result.GasUsed,
		Success:     result.Success,
	}, nil
}

// ResolveSender adapts *Client to resolver.TransactionSender, the same way
// BidSender adapts it to bidder.TransactionSender.
type ResolveSender struct {
	client *Client
}

// NewResolveSender wraps client for use as a resolver.TransactionSender.
func NewResolveSender(client *Client) *ResolveSender {
	return &ResolveSender{client: client}
}

func (s *ResolveSender) SendTransaction(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex, method string, value *big.Int, gasLimit uint64, params ...interface{}) (*resolver.Receipt, error) {
	result, err := s.client.SendTransaction(ctx, contractAddr, contractABI, privateKeyHex, method, value, gasLimit, params...)
	if err != nil {
		return nil, err
	}
	return &resolver.Receipt{
		TxHash:      result.TransactionHash,
		BlockNumber: result.BlockNumber,
		GasUsed:     result.GasUsed,
		Success:     result.Success,
	}, nil
}
