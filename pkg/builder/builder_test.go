package builder

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/nonce"
	"github.com/zkintents/taralli/pkg/systems"
)

type fakeClock struct {
	ts  uint64
	err error
}

func (f fakeClock) LatestTimestamp(context.Context) (uint64, error) { return f.ts, f.err }

type fakeBitmapReader struct{ bitmap *big.Int }

func (f fakeBitmapReader) NonceBitmap(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.bitmap, nil
}

func rawParams(id systems.SystemId) *systems.RawSystemParams {
	return &systems.RawSystemParams{ID: id, Bytes: []byte("deadbeef")}
}

func TestRequestBuilderBuild(t *testing.T) {
	signer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	market := common.HexToAddress("0x2222222222222222222222222222222222222222")

	rb := NewRequestBuilder(fakeClock{ts: 1000}, nil, signer, market, systems.Risc0).
		Nonce(big.NewInt(5)).
		TimeParams(1000, 1060, 60).
		RewardParams(big.NewInt(1), big.NewInt(10), big.NewInt(100)).
		RewardToken(common.HexToAddress("0x3333333333333333333333333333333333333333")).
		System(rawParams(systems.Risc0))

	req, err := rb.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if req.Commitment.Signer != signer || req.Commitment.Market != market {
		t.Fatal("signer/market not carried through")
	}
	if req.Commitment.Nonce.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected nonce: %v", req.Commitment.Nonce)
	}
	if req.Commitment.StartAuctionTimestamp != 1000 || req.Commitment.EndAuctionTimestamp != 1060 {
		t.Fatal("auction timestamps not carried through")
	}
	allZero := true
	for _, b := range req.Signature {
		if b != 0 {
			allZero = false
		}
	}
	if !allZero {
		t.Fatal("expected dummy signature before signing")
	}
}

func TestRequestBuilderMissingSystem(t *testing.T) {
	rb := NewRequestBuilder(fakeClock{}, nil, common.Address{}, common.Address{}, systems.Gnark)
	if _, err := rb.Build(); err == nil {
		t.Fatal("expected error when system params are unset")
	}
}

func TestRequestBuilderSetNewNonce(t *testing.T) {
	signer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	mgr := nonce.NewManager(fakeBitmapReader{bitmap: big.NewInt(0)}, signer)
	rb := NewRequestBuilder(fakeClock{ts: 1000}, mgr, signer, common.Address{}, systems.Sp1)

	rb, err := rb.SetNewNonce(context.Background())
	if err != nil {
		t.Fatalf("SetNewNonce: %v", err)
	}
	if rb.nonceValue == nil || rb.nonceValue.Sign() != 0 {
		t.Fatalf("expected nonce 0 from an empty bitmap, got %v", rb.nonceValue)
	}
}

func TestRequestBuilderSetAuctionTimestampsFromAuctionLength(t *testing.T) {
	rb := NewRequestBuilder(fakeClock{ts: 5000}, nil, common.Address{}, common.Address{}, systems.Sp1).
		AuctionLength(30)

	rb, err := rb.SetAuctionTimestampsFromAuctionLength(context.Background())
	if err != nil {
		t.Fatalf("SetAuctionTimestampsFromAuctionLength: %v", err)
	}
	if rb.startAuctionTimestamp != 5000 || rb.endAuctionTimestamp != 5030 {
		t.Fatalf("unexpected window: [%d, %d)", rb.startAuctionTimestamp, rb.endAuctionTimestamp)
	}
}

func TestRequestBuilderSetAuctionTimestampsRequiresLength(t *testing.T) {
	rb := NewRequestBuilder(fakeClock{ts: 5000}, nil, common.Address{}, common.Address{}, systems.Sp1)
	if _, err := rb.SetAuctionTimestampsFromAuctionLength(context.Background()); err == nil {
		t.Fatal("expected error when auction length is unset")
	}
}

func TestRequestBuilderClockFailurePropagates(t *testing.T) {
	rb := NewRequestBuilder(fakeClock{err: errors.New("rpc down")}, nil, common.Address{}, common.Address{}, systems.Sp1).
		AuctionLength(30)
	if _, err := rb.SetAuctionTimestampsFromAuctionLength(context.Background()); err == nil {
		t.Fatal("expected clock failure to propagate")
	}
}

func TestOfferBuilderBuild(t *testing.T) {
	signer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	market := common.HexToAddress("0x2222222222222222222222222222222222222222")
	rewardToken := common.HexToAddress("0x3333333333333333333333333333333333333333")
	stakeToken := common.HexToAddress("0x4444444444444444444444444444444444444444")

	ob := NewOfferBuilder(fakeClock{ts: 1000}, nil, signer, market, systems.Gnark).
		Nonce(big.NewInt(9)).
		TimeParams(1000, 1060, 60).
		TokenParams(rewardToken, big.NewInt(50), stakeToken, big.NewInt(5)).
		System(rawParams(systems.Gnark))

	off, err := ob.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if off.Commitment.RewardAmount.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("unexpected reward amount: %v", off.Commitment.RewardAmount)
	}
	if off.Commitment.StakeToken != stakeToken {
		t.Fatal("stake token not carried through")
	}
}

func TestOfferBuilderMissingSystem(t *testing.T) {
	ob := NewOfferBuilder(fakeClock{}, nil, common.Address{}, common.Address{}, systems.Arkworks)
	if _, err := ob.Build(); err == nil {
		t.Fatal("expected error when system params are unset")
	}
}
