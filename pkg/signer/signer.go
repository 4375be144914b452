// Package signer produces the ECDSA signature over a ComputeRequest/
// ComputeOffer's Permit2 digest that a builder installs as a placeholder
// (intent.DummySignature). Grounded on the teacher's
// pkg/rpcclient.PublicAddress/CreateTransactor helpers (hex-key parsing,
// chain-ID-bound signing) generalized from transaction signing to
// EIP-712-digest signing via go-ethereum/crypto.Sign.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/intent"
)

// Signer holds a parsed ECDSA private key and signs intent digests with it.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// New parses a hex-encoded private key (with or without a leading "0x") and
// returns a Signer bound to its derived address.
func New(privateKeyHex string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("signer: %w: parse private key: %w", errs.ErrSigning, err)
	}
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("signer: %w: cast public key to ECDSA", errs.ErrSigning)
	}
	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

// Address returns the signer's derived address.
func (s *Signer) Address() common.Address {
	return s.address
}

// signDigest produces the 65-byte [R || S || V] signature over digest, V in
// {0,1} per go-ethereum/crypto.Sign's convention (the same convention the
// Permit2 contract's ecrecover path expects after a +27 adjustment on-chain,
// mirroring the teacher's transaction-signing path).
func (s *Signer) signDigest(digest common.Hash) ([65]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), s.privateKey)
	if err != nil {
		return [65]byte{}, fmt.Errorf("signer: %w: %w", errs.ErrSigning, err)
	}
	var out [65]byte
	copy(out[:], sig)
	return out, nil
}

// SignRequest overwrites req's signer field with this signer's address and
// installs a fresh signature over the resulting Permit2 digest.
func (s *Signer) SignRequest(req *intent.ComputeRequest) error {
	req.Commitment.Signer = s.address
	sig, err := s.signDigest(req.SigningDigest())
	if err != nil {
		return err
	}
	req.Signature = sig
	return nil
}

// SignOffer overwrites off's signer field with this signer's address and
// installs a fresh signature over the resulting Permit2 digest.
func (s *Signer) SignOffer(off *intent.ComputeOffer) error {
	off.Commitment.Signer = s.address
	sig, err := s.signDigest(off.SigningDigest())
	if err != nil {
		return err
	}
	off.Signature = sig
	return nil
}
