package client

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/zkintents/taralli/pkg/broker"
	"github.com/zkintents/taralli/pkg/builder"
	"github.com/zkintents/taralli/pkg/resolver"
	"github.com/zkintents/taralli/pkg/signer"
	"github.com/zkintents/taralli/pkg/systems"
	"github.com/zkintents/taralli/pkg/tracker"
	"github.com/zkintents/taralli/pkg/validator"
	"github.com/zkintents/taralli/pkg/worker"
)

const testPrivateKeyHex = "1111111111111111" +
	"1111111111111111" +
	"1111111111111111" +
	"1111111111111111"

func newSubmitOfferServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := 1
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(broker.SubmissionResult{BroadcastedTo: &n})
	}))
}

func newTestOfferBuilder(t *testing.T, s *signer.Signer, market common.Address) *builder.OfferBuilder {
	t.Helper()
	ob := builder.NewOfferBuilder(nil, nil, s.Address(), market, systems.Gnark)
	ob.Nonce(big.NewInt(1)).
		TimeParams(1000, 1060, 60).
		TokenParams(
			common.HexToAddress("0x3333333333333333333333333333333333333333"), big.NewInt(500),
			common.HexToAddress("0x4444444444444444444444444444444444444444"), big.NewInt(10),
		).
		System(&systems.RawSystemParams{ID: systems.Gnark, Bytes: []byte("circuit")})
	return ob
}

func TestProviderOfferingRunResolvesAfterBid(t *testing.T) {
	srv := newSubmitOfferServer(t)
	defer srv.Close()

	s, err := signer.New(testPrivateKeyHex)
	if err != nil {
		t.Fatalf("signer.New: %v", err)
	}
	market := common.HexToAddress("0x2222222222222222222222222222222222222222")
	marketABI := mustParseMarketABI()

	bidEvent := marketABI.Events["Bid"]
	logs := []types.Log{{Topics: []common.Hash{bidEvent.ID, {}, common.HexToHash("0xaaaa")}}}
	trk := tracker.New(&fakeLogSource{logs: logs}, marketABI, market)

	w := &fakeWorker{result: &worker.WorkResult{OpaqueSubmission: []byte("proof")}}
	workers := worker.NewManager()
	workers.Register(systems.Gnark, w)

	resolveSender := &fakeResolveSender{receipt: &resolver.Receipt{Success: true}}
	r := resolver.New(resolveSender, marketABI, market)

	registry := validator.NewRegistry(&fakeValidator{})

	c := NewProviderOfferingClient(NewBrokerTransport(srv.URL), registry, market, s, trk, workers, r, testPrivateKeyHex)
	ob := newTestOfferBuilder(t, s, market)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Run(ctx, ob, 1000, time.Second, []byte("compressed")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("expected the worker to run once, got %d", w.calls)
	}
	if resolveSender.calls != 1 {
		t.Fatalf("expected one resolve, got %d", resolveSender.calls)
	}
}

func TestProviderOfferingRunExitsCleanlyWhenAuctionElapsesWithNoBid(t *testing.T) {
	srv := newSubmitOfferServer(t)
	defer srv.Close()

	s, err := signer.New(testPrivateKeyHex)
	if err != nil {
		t.Fatalf("signer.New: %v", err)
	}
	market := common.HexToAddress("0x2222222222222222222222222222222222222222")
	marketABI := mustParseMarketABI()

	trk := tracker.New(&fakeLogSource{}, marketABI, market)

	w := &fakeWorker{result: &worker.WorkResult{}}
	workers := worker.NewManager()
	workers.Register(systems.Gnark, w)

	resolveSender := &fakeResolveSender{receipt: &resolver.Receipt{Success: true}}
	r := resolver.New(resolveSender, marketABI, market)

	registry := validator.NewRegistry(&fakeValidator{})

	c := NewProviderOfferingClient(NewBrokerTransport(srv.URL), registry, market, s, trk, workers, r, testPrivateKeyHex)
	ob := newTestOfferBuilder(t, s, market)

	if err := c.Run(context.Background(), ob, 1000, 50*time.Millisecond, []byte("compressed")); err != nil {
		t.Fatalf("expected a clean exit on auction timeout, got: %v", err)
	}
	if w.calls != 0 {
		t.Fatalf("expected no work when the auction elapses with no bid, got %d", w.calls)
	}
	if resolveSender.calls != 0 {
		t.Fatalf("expected no resolve when the auction elapses with no bid, got %d", resolveSender.calls)
	}
}
