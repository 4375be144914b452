package worker

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/systems"
)

// externalOutput is the JSON document an external prover binary writes to
// the file named by its --output argument once it finishes.
type externalOutput struct {
	OpaqueSubmission  string `json:"opaque_submission"`
	PartialCommitment string `json:"partial_commitment"`
}

// ExternalWorker runs a proving system with no native Go SDK (AlignedLayer,
// Arkworks, Risc0, Sp1) by shelling out to a configured external binary,
// writing the intent's opaque input bytes to a temp file and reading a JSON
// result back from a second temp file passed as --output. Grounded on
// original_source/crates/taralli-provider/src/workers/gnark.rs's
// execute_gnark_prover (NamedTempFile + subprocess + JSON exchange), the same
// pattern workers/aligned_layer.rs reuses for its own gnark-routed case;
// generalized here because risc0_zkvm, sp1_sdk and aligned_sdk are
// native-Rust-only with no Go bindings to call in-process.
type ExternalWorker struct {
	systemID systems.SystemId
	binary   string
	args     []string
}

// NewExternalWorker constructs a worker for systemID that invokes binary,
// appending extraArgs before the "--input"/"--output" file flags it adds
// itself.
func NewExternalWorker(systemID systems.SystemId, binary string, extraArgs ...string) *ExternalWorker {
	return &ExternalWorker{systemID: systemID, binary: binary, args: extraArgs}
}

// Execute writes sys's opaque input bytes to a temp file, invokes the
// configured binary with --input/--output file flags, and parses the
// resulting JSON output file into a WorkResult.
func (w *ExternalWorker) Execute(ctx context.Context, sys systems.System) (*WorkResult, error) {
	if sys.SystemID() != w.systemID {
		return nil, fmt.Errorf("%w: external %s worker received %s system", errs.ErrWorker, w.systemID, sys.SystemID())
	}
	if err := sys.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrWorker, err)
	}

	inputFile, err := os.CreateTemp("", "taralli-worker-input-*.json")
	if err != nil {
		return nil, fmt.Errorf("%w: create input temp file: %w", errs.ErrWorker, err)
	}
	defer os.Remove(inputFile.Name())

	if _, err := inputFile.Write(sys.Inputs()); err != nil {
		inputFile.Close()
		return nil, fmt.Errorf("%w: write input temp file: %w", errs.ErrWorker, err)
	}
	if err := inputFile.Close(); err != nil {
		return nil, fmt.Errorf("%w: close input temp file: %w", errs.ErrWorker, err)
	}

	outputFile, err := os.CreateTemp("", "taralli-worker-output-*.json")
	if err != nil {
		return nil, fmt.Errorf("%w: create output temp file: %w", errs.ErrWorker, err)
	}
	outputFile.Close()
	defer os.Remove(outputFile.Name())

	args := append(append([]string{}, w.args...), "--input", inputFile.Name(), "--output", outputFile.Name())
	cmd := exec.CommandContext(ctx, w.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w: %s", errs.ErrWorker, w.binary, err, stderr.String())
	}

	raw, err := os.ReadFile(outputFile.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: read output file: %w", errs.ErrWorker, err)
	}

	var out externalOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: parse output json: %w", errs.ErrWorker, err)
	}

	opaqueSubmission, err := hex.DecodeString(trimHexPrefix(out.OpaqueSubmission))
	if err != nil {
		return nil, fmt.Errorf("%w: decode opaque_submission: %w", errs.ErrWorker, err)
	}

	commitmentBytes, err := hex.DecodeString(trimHexPrefix(out.PartialCommitment))
	if err != nil {
		return nil, fmt.Errorf("%w: decode partial_commitment: %w", errs.ErrWorker, err)
	}
	var partialCommitment [32]byte
	if len(commitmentBytes) > 0 {
		if len(commitmentBytes) != 32 {
			return nil, fmt.Errorf("%w: partial_commitment must be 32 bytes, got %d", errs.ErrWorker, len(commitmentBytes))
		}
		copy(partialCommitment[:], commitmentBytes)
	}

	return &WorkResult{OpaqueSubmission: opaqueSubmission, PartialCommitment: partialCommitment}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
