package client

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/bidder"
	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/resolver"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/validator"
	"github.com/zkintents/taralli/pkg/worker"
)

func newTestProviderStreamingClient(t *testing.T, v *fakeValidator, w *fakeWorker, resolveSender *fakeResolveSender) (*ProviderStreamingClient, *fakeBidSender) {
	t.Helper()
	marketABI := mustParseMarketABI()
	market := common.HexToAddress("0x2222222222222222222222222222222222222222")

	bidSender := &fakeBidSender{receipt: &bidder.BidReceipt{Success: true}}
	b := bidder.New(&fakeChainReader{}, bidSender, marketABI, market)

	workers := worker.NewManager()
	workers.Register(systems.Risc0, w)

	r := resolver.New(resolveSender, marketABI, market)

	registry := validator.NewRegistry(v)

	c := NewProviderStreamingClient(nil, &fakeClock{ts: 1000}, registry, market, b, workers, r, "deadbeef", nil)
	return c, bidSender
}

func testRequestRecord(t *testing.T) *codec.RequestStreamRecord {
	t.Helper()
	systemBytes, err := codec.CompressSystemParams(&systems.RawSystemParams{ID: systems.Risc0, Bytes: []byte("elf-bytes")}, codec.DefaultBrotliOptions())
	if err != nil {
		t.Fatalf("compress system params: %v", err)
	}
	return &codec.RequestStreamRecord{
		SystemID: systems.Risc0,
		System:   systemBytes,
		Commitment: intent.RequestCommitment{
			Signer:                common.HexToAddress("0x1111111111111111111111111111111111111111"),
			Market:                common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Nonce:                 big.NewInt(1),
			RewardToken:           common.HexToAddress("0x3333333333333333333333333333333333333333"),
			MaxRewardAmount:       big.NewInt(700),
			MinRewardAmount:       big.NewInt(100),
			MinimumStake:          big.NewInt(5),
			StartAuctionTimestamp: 900,
			EndAuctionTimestamp:   1100,
			ProvingTime:           60,
		},
	}
}

func TestProviderStreamingHandleRequestHappyPath(t *testing.T) {
	v := &fakeValidator{}
	w := &fakeWorker{result: &worker.WorkResult{OpaqueSubmission: []byte("proof"), PartialCommitment: [32]byte{1}}}
	resolveSender := &fakeResolveSender{receipt: &resolver.Receipt{Success: true}}
	c, bidSender := newTestProviderStreamingClient(t, v, w, resolveSender)

	rec := testRequestRecord(t)
	if err := c.handleRequest(context.Background(), rec); err != nil {
		t.Fatalf("handleRequest: %v", err)
	}

	if len(v.requests) != 1 {
		t.Fatalf("expected validator to see one request, got %d", len(v.requests))
	}
	if bidSender.calls != 1 {
		t.Fatalf("expected one bid, got %d", bidSender.calls)
	}
	if w.calls != 1 {
		t.Fatalf("expected one work execution, got %d", w.calls)
	}
	if resolveSender.calls != 1 {
		t.Fatalf("expected one resolve, got %d", resolveSender.calls)
	}
	if !bytes.Equal(resolveSender.params[1].([]byte), []byte("proof")) {
		t.Fatalf("expected resolve to carry the worker's opaque submission, got %v", resolveSender.params[1])
	}
}

func TestProviderStreamingHandleRequestStopsOnValidationFailure(t *testing.T) {
	v := &fakeValidator{requestErr: errValidationStub}
	w := &fakeWorker{result: &worker.WorkResult{}}
	resolveSender := &fakeResolveSender{receipt: &resolver.Receipt{Success: true}}
	c, bidSender := newTestProviderStreamingClient(t, v, w, resolveSender)

	rec := testRequestRecord(t)
	if err := c.handleRequest(context.Background(), rec); err == nil {
		t.Fatal("expected handleRequest to fail when validation rejects the request")
	}
	if bidSender.calls != 0 {
		t.Fatalf("expected no bid after a validation failure, got %d", bidSender.calls)
	}
	if w.calls != 0 {
		t.Fatalf("expected no work execution after a validation failure, got %d", w.calls)
	}
	if resolveSender.calls != 0 {
		t.Fatalf("expected no resolve after a validation failure, got %d", resolveSender.calls)
	}
}

func TestProviderStreamingHandleRequestPropagatesWorkerError(t *testing.T) {
	v := &fakeValidator{}
	w := &fakeWorker{err: errWorkerStub}
	resolveSender := &fakeResolveSender{receipt: &resolver.Receipt{Success: true}}
	c, _ := newTestProviderStreamingClient(t, v, w, resolveSender)

	rec := testRequestRecord(t)
	if err := c.handleRequest(context.Background(), rec); err == nil {
		t.Fatal("expected handleRequest to surface a worker error")
	}
	if resolveSender.calls != 0 {
		t.Fatalf("expected no resolve after a worker failure, got %d", resolveSender.calls)
	}
}

var errValidationStub = errStub("validation rejected")
var errWorkerStub = errStub("worker failed")

type errStub string

func (e errStub) Error() string { return string(e) }
