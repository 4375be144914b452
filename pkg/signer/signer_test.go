package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/systems"
)

func testPrivateKeyHex(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return common.Bytes2Hex(crypto.FromECDSA(key))
}

func sampleRequest() *intent.ComputeRequest {
	return &intent.ComputeRequest{
		SystemID: systems.Risc0,
		Commitment: intent.RequestCommitment{
			Market:                common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Nonce:                 big.NewInt(1),
			RewardToken:           common.HexToAddress("0x3333333333333333333333333333333333333333"),
			MaxRewardAmount:       big.NewInt(100),
			MinRewardAmount:       big.NewInt(10),
			MinimumStake:          big.NewInt(1),
			StartAuctionTimestamp: 1000,
			EndAuctionTimestamp:   1060,
			ProvingTime:           60,
		},
	}
}

func TestNewParsesHexKeyWithAndWithout0xPrefix(t *testing.T) {
	hexKey := testPrivateKeyHex(t)

	s1, err := New(hexKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s2, err := New("0x" + hexKey)
	if err != nil {
		t.Fatalf("New with 0x prefix: %v", err)
	}
	if s1.Address() != s2.Address() {
		t.Fatal("expected identical derived address regardless of 0x prefix")
	}
}

func TestNewRejectsMalformedKey(t *testing.T) {
	if _, err := New("not-hex"); err == nil {
		t.Fatal("expected error for malformed private key")
	}
}

func TestSignRequestSetsSignerAndSignature(t *testing.T) {
	s, err := New(testPrivateKeyHex(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := sampleRequest()

	if err := s.SignRequest(req); err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	if req.Commitment.Signer != s.Address() {
		t.Fatal("expected signer field to be overwritten with the signer's address")
	}
	allZero := true
	for _, b := range req.Signature {
		if b != 0 {
			allZero = false
		}
	}
	if allZero {
		t.Fatal("expected a non-zero signature after signing")
	}
}

func TestSignRequestIsDeterministicForIdenticalInput(t *testing.T) {
	s, err := New(testPrivateKeyHex(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req1 := sampleRequest()
	req2 := sampleRequest()

	if err := s.SignRequest(req1); err != nil {
		t.Fatalf("SignRequest req1: %v", err)
	}
	if err := s.SignRequest(req2); err != nil {
		t.Fatalf("SignRequest req2: %v", err)
	}
	if req1.Signature != req2.Signature {
		t.Fatal("expected identical signatures for identical commitments and key")
	}
}

func TestSignOfferSetsSignerAndSignature(t *testing.T) {
	s, err := New(testPrivateKeyHex(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	off := &intent.ComputeOffer{
		SystemID: systems.Gnark,
		Commitment: intent.OfferCommitment{
			Market:                common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Nonce:                 big.NewInt(9),
			RewardToken:           common.HexToAddress("0x3333333333333333333333333333333333333333"),
			RewardAmount:          big.NewInt(50),
			StakeToken:            common.HexToAddress("0x4444444444444444444444444444444444444444"),
			StakeAmount:           big.NewInt(5),
			StartAuctionTimestamp: 1000,
			EndAuctionTimestamp:   1060,
			ProvingTime:           60,
		},
	}

	if err := s.SignOffer(off); err != nil {
		t.Fatalf("SignOffer: %v", err)
	}
	if off.Commitment.Signer != s.Address() {
		t.Fatal("expected signer field to be overwritten with the signer's address")
	}
}
