package resolver

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/errs"
)

const testMarketABIJSON = `[
	{"type":"function","name":"resolve","stateMutability":"nonpayable","inputs":[
		{"name":"intentId","type":"bytes32"},
		{"name":"opaqueSubmission","type":"bytes"},
		{"name":"partialCommitment","type":"bytes32"}
	],"outputs":[]}
]`

func testMarketABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testMarketABIJSON))
	if err != nil {
		t.Fatalf("parse test ABI: %v", err)
	}
	return parsed
}

type fakeSender struct {
	receipt *Receipt
	err     error
	method  string
	params  []interface{}
	calls   int
}

func (f *fakeSender) SendTransaction(_ context.Context, _ common.Address, _ abi.ABI, _, method string, _ *big.Int, _ uint64, params ...interface{}) (*Receipt, error) {
	f.calls++
	f.method = method
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &Receipt{Success: true}, nil
}

func TestResolveSendsIntentIDAndSubmission(t *testing.T) {
	marketABI := testMarketABI(t)
	sender := &fakeSender{}
	r := New(sender, marketABI, common.HexToAddress("0x2222222222222222222222222222222222222222"))

	intentID := common.HexToHash("0xabc")
	submission := []byte{1, 2, 3, 4}
	var commitment [32]byte
	commitment[31] = 7

	receipt, err := r.Resolve(context.Background(), intentID, submission, commitment, "dead")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !receipt.Success {
		t.Fatal("expected a successful receipt")
	}
	if sender.method != "resolve" {
		t.Fatalf("expected method resolve, got %s", sender.method)
	}
	if sender.params[0].(common.Hash) != intentID {
		t.Fatalf("expected intent id %s, got %v", intentID, sender.params[0])
	}
}

func TestResolvePropagatesSendError(t *testing.T) {
	marketABI := testMarketABI(t)
	sender := &fakeSender{err: errors.New("dial failed")}
	r := New(sender, marketABI, common.HexToAddress("0x2222222222222222222222222222222222222222"))

	_, err := r.Resolve(context.Background(), common.HexToHash("0xabc"), []byte{1}, [32]byte{}, "dead")
	if !errors.Is(err, errs.ErrTransactionFailure) {
		t.Fatalf("expected ErrTransactionFailure, got %v", err)
	}
}

func TestResolveSurfacesRevertedReceipt(t *testing.T) {
	marketABI := testMarketABI(t)
	sender := &fakeSender{receipt: &Receipt{Success: false}}
	r := New(sender, marketABI, common.HexToAddress("0x2222222222222222222222222222222222222222"))

	_, err := r.Resolve(context.Background(), common.HexToHash("0xabc"), []byte{1}, [32]byte{}, "dead")
	if !errors.Is(err, errs.ErrTransactionFailure) {
		t.Fatalf("expected ErrTransactionFailure for reverted receipt, got %v", err)
	}
}
