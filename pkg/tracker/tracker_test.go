package tracker

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const testMarketABIJSON = `[
	{"type":"event","name":"Bid","inputs":[
		{"name":"intentId","type":"bytes32","indexed":true},
		{"name":"intentId2","type":"bytes32","indexed":true},
		{"name":"bidder","type":"address","indexed":false},
		{"name":"stake","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Resolve","inputs":[
		{"name":"intentId","type":"bytes32","indexed":true},
		{"name":"intentId2","type":"bytes32","indexed":true},
		{"name":"success","type":"bool","indexed":false}
	]}
]`

func testMarketABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testMarketABIJSON))
	if err != nil {
		t.Fatalf("parse test ABI: %v", err)
	}
	return parsed
}

type fakeSubscription struct {
	errCh chan error
}

func (f *fakeSubscription) Unsubscribe()          {}
func (f *fakeSubscription) Err() <-chan error     { return f.errCh }

type fakeLogSource struct {
	logs   []types.Log
	sub    *fakeSubscription
	subErr error
}

func newFakeLogSource() *fakeLogSource {
	return &fakeLogSource{sub: &fakeSubscription{errCh: make(chan error, 1)}}
}

func (f *fakeLogSource) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	go func() {
		for _, l := range f.logs {
			ch <- l
		}
	}()
	return f.sub, nil
}

func TestTrackAuctionReceivesMatchingEvent(t *testing.T) {
	marketABI := testMarketABI(t)
	intentID := common.HexToHash("0xaaaa")

	bidEvent := marketABI.Events["Bid"]
	data, err := bidEvent.Inputs.NonIndexed().Pack(common.HexToAddress("0x1111111111111111111111111111111111111111"), big.NewInt(7))
	if err != nil {
		t.Fatalf("pack bid data: %v", err)
	}

	source := newFakeLogSource()
	source.logs = []types.Log{{
		Topics:      []common.Hash{bidEvent.ID, intentID, intentID},
		Data:        data,
		BlockNumber: 42,
	}}

	tr := New(source, marketABI, common.HexToAddress("0x2222222222222222222222222222222222222222"))
	event, err := tr.TrackAuction(context.Background(), intentID, time.Second)
	if err != nil {
		t.Fatalf("TrackAuction: %v", err)
	}
	if event == nil {
		t.Fatal("expected a Bid event, got nil")
	}
	if event.Name != "Bid" {
		t.Fatalf("unexpected event name: %s", event.Name)
	}
	stake, ok := event.Values["stake"].(*big.Int)
	if !ok || stake.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("unexpected stake value: %v", event.Values["stake"])
	}
}

func TestTrackAuctionTimesOutWithoutEvent(t *testing.T) {
	marketABI := testMarketABI(t)
	source := newFakeLogSource()

	tr := New(source, marketABI, common.HexToAddress("0x2222222222222222222222222222222222222222"))
	event, err := tr.TrackAuction(context.Background(), common.HexToHash("0xaaaa"), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("expected nil error on timeout, got %v", err)
	}
	if event != nil {
		t.Fatal("expected nil event on timeout")
	}
}

func TestTrackResolvePropagatesSubscribeError(t *testing.T) {
	marketABI := testMarketABI(t)
	source := newFakeLogSource()
	source.subErr = errors.New("dial failed")

	tr := New(source, marketABI, common.HexToAddress("0x2222222222222222222222222222222222222222"))
	if _, err := tr.TrackResolve(context.Background(), common.HexToHash("0xaaaa"), time.Second); err == nil {
		t.Fatal("expected subscribe error to propagate")
	}
}
