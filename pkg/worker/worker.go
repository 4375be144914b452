// Package worker dispatches ComputeIntent execution to a per-system prover,
// producing the opaque calldata blob the market's resolve() call forwards
// to the on-chain verifier. Grounded on
// original_source/crates/taralli-provider/src/worker.rs's
// ComputeWorker/WorkerManager (ComputeWorker.execute ->
// WorkResult{opaque_submission, partial_commitment}, WorkerManager keyed by
// ProvingSystemId), generalized to the marketplace's five-system
// enumeration per spec.md §4.I.
package worker

import (
	"context"
	"fmt"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/systems"
)

// WorkResult is the opaque output of executing a ComputeIntent's system
// payload: the ABI-encoded calldata the market's resolve() call forwards to
// the on-chain verifier, plus a partial commitment checked against the
// intent's verifier details (zero when a system has no partial-commitment
// scheme).
type WorkResult struct {
	OpaqueSubmission  []byte
	PartialCommitment [32]byte
}

// Worker executes one proving system's payload. Concrete implementations
// (GnarkWorker, ExternalWorker) reject a System whose SystemID doesn't match
// what they were constructed for; routing by SystemID across all five
// systems is the Manager's job.
type Worker interface {
	Execute(ctx context.Context, sys systems.System) (*WorkResult, error)
}

// Manager dispatches a System to the Worker registered for its SystemId; an
// unregistered SystemId is an error, per spec.md §4.I ("unknown system ->
// error").
type Manager struct {
	workers map[systems.SystemId]Worker
}

// NewManager constructs an empty Manager; call Register for each system the
// running client supports.
func NewManager() *Manager {
	return &Manager{workers: make(map[systems.SystemId]Worker)}
}

// Register binds a Worker to a SystemId, replacing any previous binding.
func (m *Manager) Register(id systems.SystemId, w Worker) {
	m.workers[id] = w
}

// Execute routes sys to its registered Worker.
func (m *Manager) Execute(ctx context.Context, sys systems.System) (*WorkResult, error) {
	w, ok := m.workers[sys.SystemID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownSystem, sys.SystemID())
	}
	return w.Execute(ctx, sys)
}
