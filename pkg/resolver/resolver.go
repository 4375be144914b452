// Package resolver sends the final on-chain settlement transaction: the
// market's resolve(intent_id, opaque_submission[, partial_commitment]) call
// carrying a worker's proof artifact. Grounded on spec.md §4.J ("thin
// wrapper over pkg/rpcclient.SendContractTransaction ... no retry —
// transport-level retries belong in the RPC layer") and the teacher's
// pkg/ethereum/client.go SendContractTransaction/WaitForTransaction idiom,
// now generalized behind rpcclient.Client's ABI-driven SendTransaction.
package resolver

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/errs"
)

// TransactionSender is the minimal on-chain write surface the resolver
// needs. Satisfied by *rpcclient.ResolveSender, a thin adapter over
// *rpcclient.Client.
type TransactionSender interface {
	SendTransaction(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex, method string, value *big.Int, gasLimit uint64, params ...interface{}) (*Receipt, error)
}

// Receipt summarizes a mined resolve transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
}

// defaultResolveGasLimit is a conservative ceiling for the resolve() call;
// verifier-heavy markets may need WithGasLimit to raise it.
const defaultResolveGasLimit = 600_000

const resolveMethod = "resolve"

// Resolver submits settlement transactions against one market contract.
type Resolver struct {
	sender    TransactionSender
	marketABI abi.ABI
	market    common.Address
	gasLimit  uint64
	logger    *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGasLimit overrides the gas limit passed to the resolve transaction.
func WithGasLimit(limit uint64) Option {
	return func(r *Resolver) { r.gasLimit = limit }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New constructs a Resolver bound to one market contract.
func New(sender TransactionSender, marketABI abi.ABI, market common.Address, opts ...Option) *Resolver {
	r := &Resolver{
		sender:    sender,
		marketABI: marketABI,
		market:    market,
		gasLimit:  defaultResolveGasLimit,
		logger:    log.New(log.Writer(), "[Resolver] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve sends resolve(intentID, opaqueSubmission, partialCommitment) and
// awaits its receipt. A zero partialCommitment is still passed through
// unchanged: whether the market contract's ABI carries the field at all is
// fixed by marketABI, not decided here. There is no retry; a failed send or
// a reverted receipt surfaces immediately as errs.ErrTransactionFailure.
func (r *Resolver) Resolve(ctx context.Context, intentID common.Hash, opaqueSubmission []byte, partialCommitment [32]byte, privateKeyHex string) (*Receipt, error) {
	r.logger.Printf("resolving intent %s", intentID)
	receipt, err := r.sender.SendTransaction(ctx, r.market, r.marketABI, privateKeyHex, resolveMethod, big.NewInt(0), r.gasLimit, intentID, opaqueSubmission, partialCommitment)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", errs.ErrTransactionFailure, intentID, err)
	}
	if !receipt.Success {
		return receipt, fmt.Errorf("%w: resolve %s reverted", errs.ErrTransactionFailure, intentID)
	}
	return receipt, nil
}
