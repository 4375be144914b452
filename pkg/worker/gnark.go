package worker

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/systems"
)

// commitmentCircuit proves knowledge of a private (x,y) preimage whose
// linear mixing x + 7y equals the public Commitment. A stand-in for the
// per-program R1CS the original's external "gnark-prover" subprocess
// compiled and ran; kept in-process here since gnark's own Go API already
// provides everything that subprocess call was working around. Mixing
// coefficient grounded on the teacher's (now-adapted)
// computePubkeyCommitment helper.
type commitmentCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	PreimageX  frontend.Variable
	PreimageY  frontend.Variable
}

func (c *commitmentCircuit) Define(api frontend.API) error {
	mixed := api.Add(c.PreimageX, api.Mul(c.PreimageY, 7))
	api.AssertIsEqual(c.Commitment, mixed)
	return nil
}

var proofCalldataArgs = abi.Arguments{
	{Type: mustABIType("uint256[2]")},
	{Type: mustABIType("uint256[2][2]")},
	{Type: mustABIType("uint256[2]")},
	{Type: mustABIType("uint256")},
}

func mustABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// GnarkWorker runs a Groth16 proof over commitmentCircuit for every Gnark
// intent it executes, compiling the circuit and running its trusted setup
// once on first use. Grounded on the teacher's
// pkg/crypto/bls_zkp/prover.go's BLSZKProver.Initialize/GenerateProof
// (frontend.Compile -> groth16.Setup, then frontend.NewWitness ->
// groth16.Prove per call), generalized from the BLS aggregate-signature
// circuit to a generic commitment circuit that stands in for the
// marketplace's per-program proving work.
type GnarkWorker struct {
	mu          sync.Mutex
	cs          constraint.ConstraintSystem
	pk          groth16.ProvingKey
	vk          groth16.VerifyingKey
	initialized bool
}

// NewGnarkWorker constructs a GnarkWorker; circuit compilation and the
// Groth16 trusted setup are deferred to the first Execute call.
func NewGnarkWorker() *GnarkWorker {
	return &GnarkWorker{}
}

func (w *GnarkWorker) setup() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.initialized {
		return nil
	}
	var circuit commitmentCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("%w: compile circuit: %w", errs.ErrWorker, err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("%w: groth16 setup: %w", errs.ErrWorker, err)
	}
	w.cs, w.pk, w.vk = cs, pk, vk
	w.initialized = true
	return nil
}

// preimageFromInputs derives deterministic field-element witness values
// from the intent's opaque input bytes, standing in for the private data a
// real per-program prover would consume, and the commitment the circuit
// checks them against.
func preimageFromInputs(inputs []byte) (x, y, commitment *big.Int) {
	sum := sha256.Sum256(inputs)
	x = new(big.Int).SetBytes(sum[:16])
	y = new(big.Int).SetBytes(sum[16:])
	commitment = new(big.Int).Mul(y, big.NewInt(7))
	commitment.Add(commitment, x)
	return x, y, commitment
}

// Execute generates a Groth16 proof over sys's opaque input bytes and
// returns it ABI-encoded as the opaque submission, with the commitment
// doubling as the partial commitment.
func (w *GnarkWorker) Execute(ctx context.Context, sys systems.System) (*WorkResult, error) {
	if sys.SystemID() != systems.Gnark {
		return nil, fmt.Errorf("%w: gnark worker received %s system", errs.ErrWorker, sys.SystemID())
	}
	if err := sys.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrWorker, err)
	}
	if err := w.setup(); err != nil {
		return nil, err
	}

	x, y, commitment := preimageFromInputs(sys.Inputs())
	assignment := &commitmentCircuit{Commitment: commitment, PreimageX: x, PreimageY: y}
	witnessData, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: build witness: %w", errs.ErrWorker, err)
	}

	w.mu.Lock()
	proof, err := groth16.Prove(w.cs, w.pk, witnessData)
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: generate proof: %w", errs.ErrWorker, err)
	}

	opaqueSubmission, err := encodeGroth16Proof(proof, commitment)
	if err != nil {
		return nil, fmt.Errorf("%w: encode proof: %w", errs.ErrWorker, err)
	}

	var partialCommitment [32]byte
	commitment.FillBytes(partialCommitment[:])

	return &WorkResult{OpaqueSubmission: opaqueSubmission, PartialCommitment: partialCommitment}, nil
}

// Verify checks a proof produced by Execute against the public commitment,
// mirroring the teacher's VerifyProofLocally (public-only witness, Groth16
// verify). Exposed so callers (and tests) can sanity-check a proof without
// going through the on-chain verifier.
func (w *GnarkWorker) Verify(commitment *big.Int, proof groth16.Proof) error {
	w.mu.Lock()
	vk := w.vk
	w.mu.Unlock()
	if vk == nil {
		return fmt.Errorf("%w: gnark worker not initialized", errs.ErrWorker)
	}
	publicAssignment := &commitmentCircuit{Commitment: commitment}
	publicWitness, err := frontend.NewWitness(publicAssignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%w: build public witness: %w", errs.ErrWorker, err)
	}
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return fmt.Errorf("%w: verify: %w", errs.ErrWorker, err)
	}
	return nil
}

// encodeGroth16Proof ABI-encodes a BN254 Groth16 proof's (A,B,C) points
// alongside the public commitment, mirroring the teacher's
// ToSolidityCalldata extraction of Ar/Bs/Krs coordinates.
func encodeGroth16Proof(proof groth16.Proof, commitment *big.Int) ([]byte, error) {
	proofBN254, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("gnark: proof is not a BN254 proof")
	}

	ax, ay := new(big.Int), new(big.Int)
	proofBN254.Ar.X.BigInt(ax)
	proofBN254.Ar.Y.BigInt(ay)

	bx0, bx1, by0, by1 := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	proofBN254.Bs.X.A0.BigInt(bx0)
	proofBN254.Bs.X.A1.BigInt(bx1)
	proofBN254.Bs.Y.A0.BigInt(by0)
	proofBN254.Bs.Y.A1.BigInt(by1)

	cx, cy := new(big.Int), new(big.Int)
	proofBN254.Krs.X.BigInt(cx)
	proofBN254.Krs.Y.BigInt(cy)

	return proofCalldataArgs.Pack(
		[2]*big.Int{ax, ay},
		[2][2]*big.Int{{bx0, bx1}, {by0, by1}},
		[2]*big.Int{cx, cy},
		commitment,
	)
}
