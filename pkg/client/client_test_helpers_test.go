package client

import (
	"context"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/zkintents/taralli/pkg/bidder"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/resolver"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/worker"
)

// testMarketABIJSON is a minimal market ABI covering every method/event the
// client state machines exercise: bid/resolve/activeProofRequestData/
// activeProofOfferData functions, plus Bid/Resolve events shaped so
// pkg/tracker can filter on topic2 == intentId with no non-indexed payload.
const testMarketABIJSON = `[
	{"type":"function","name":"bid","stateMutability":"payable","inputs":[{"name":"proofRequest","type":"tuple","components":[
		{"name":"signer","type":"address"},{"name":"market","type":"address"},{"name":"nonce","type":"uint256"},
		{"name":"rewardToken","type":"address"},{"name":"maxRewardAmount","type":"uint256"},{"name":"minRewardAmount","type":"uint256"},
		{"name":"minimumStake","type":"uint128"},{"name":"startAuctionTimestamp","type":"uint64"},{"name":"endAuctionTimestamp","type":"uint64"},
		{"name":"provingTime","type":"uint32"},{"name":"inputsCommitment","type":"bytes32"},{"name":"extraData","type":"bytes"}
	]},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"resolve","stateMutability":"nonpayable","inputs":[
		{"name":"intentId","type":"bytes32"},{"name":"opaqueSubmission","type":"bytes"},{"name":"partialCommitment","type":"bytes32"}
	],"outputs":[]},
	{"type":"function","name":"activeProofRequestData","stateMutability":"view","inputs":[{"name":"intentId","type":"bytes32"}],"outputs":[{"name":"requester","type":"address"}]},
	{"type":"function","name":"activeProofOfferData","stateMutability":"view","inputs":[{"name":"intentId","type":"bytes32"}],"outputs":[{"name":"provider","type":"address"}]},
	{"type":"event","name":"Bid","inputs":[{"name":"bidder","type":"address","indexed":true},{"name":"intentId","type":"bytes32","indexed":true}]},
	{"type":"event","name":"Resolve","inputs":[{"name":"prover","type":"address","indexed":true},{"name":"intentId","type":"bytes32","indexed":true}]}
]`

func mustParseMarketABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(testMarketABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}

// fakeChainReader answers every CallContract with claimedBy (zero address
// means "not yet claimed").
type fakeChainReader struct {
	claimedBy common.Address
}

func (f *fakeChainReader) CallContract(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, method string, params ...interface{}) ([]interface{}, error) {
	return []interface{}{f.claimedBy}, nil
}

// fakeBidSender records the last bid it was asked to send and returns a
// canned receipt or error.
type fakeBidSender struct {
	receipt *bidder.BidReceipt
	err     error
	method  string
	value   *big.Int
	params  []interface{}
	calls   int
}

func (f *fakeBidSender) SendTransaction(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex, method string, value *big.Int, gasLimit uint64, params ...interface{}) (*bidder.BidReceipt, error) {
	f.calls++
	f.method = method
	f.value = value
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

// fakeResolveSender is resolver.TransactionSender's test double.
type fakeResolveSender struct {
	receipt *resolver.Receipt
	err     error
	calls   int
	params  []interface{}
}

func (f *fakeResolveSender) SendTransaction(ctx context.Context, contractAddr common.Address, contractABI abi.ABI, privateKeyHex, method string, value *big.Int, gasLimit uint64, params ...interface{}) (*resolver.Receipt, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

// fakeLogSource hands back a subscription that immediately (or never)
// delivers a single log, depending on whether logs is empty.
type fakeLogSource struct {
	logs []types.Log
}

func (f *fakeLogSource) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	sub := &fakeSubscription{errCh: make(chan error, 1)}
	for _, l := range f.logs {
		ch <- l
	}
	return sub, nil
}

type fakeSubscription struct {
	errCh chan error
}

func (s *fakeSubscription) Unsubscribe() {}
func (s *fakeSubscription) Err() <-chan error {
	return s.errCh
}

// fakeClock is a constant TimestampSource.
type fakeClock struct {
	ts  uint64
	err error
}

func (f *fakeClock) LatestTimestamp(ctx context.Context) (uint64, error) {
	return f.ts, f.err
}

// fakeValidator is a permissive validator.IntentValidator test double: it
// sidesteps the real StandardValidator's checks (market, time bounds,
// verifier details, signature recovery against the SigningDigest) so these
// tests exercise state-machine orchestration, not the validator package's
// own logic.
type fakeValidator struct {
	requestErr error
	offerErr   error
	requests   []*intent.ComputeRequest
	offers     []*intent.ComputeOffer
}

func (f *fakeValidator) ValidateRequest(ctx context.Context, req *intent.ComputeRequest, latestTS uint64, expectedMarket common.Address) error {
	f.requests = append(f.requests, req)
	return f.requestErr
}

func (f *fakeValidator) ValidateOffer(ctx context.Context, off *intent.ComputeOffer, latestTS uint64, expectedMarket common.Address) error {
	f.offers = append(f.offers, off)
	return f.offerErr
}

// fakeWorker is worker.Worker's test double.
type fakeWorker struct {
	result *worker.WorkResult
	err    error
	calls  int
}

func (f *fakeWorker) Execute(ctx context.Context, sys systems.System) (*worker.WorkResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
