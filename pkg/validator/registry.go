package validator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/systems"
)

// Registry dispatches to a per-SystemId IntentValidator, falling back to a
// default when no system-specific validator is registered. Mirrors
// taralli-primitives's StandardValidatorRegistry<I,C,V>.
type Registry struct {
	validators map[systems.SystemId]IntentValidator
	defaultV   IntentValidator
}

// NewRegistry constructs an empty registry backed by the given default
// validator (used for any SystemId without a specific override).
func NewRegistry(defaultValidator IntentValidator) *Registry {
	return &Registry{
		validators: make(map[systems.SystemId]IntentValidator),
		defaultV:   defaultValidator,
	}
}

// Register installs a system-specific validator, overriding the default for that SystemId.
func (r *Registry) Register(id systems.SystemId, v IntentValidator) {
	r.validators[id] = v
}

func (r *Registry) For(id systems.SystemId) (IntentValidator, error) {
	if v, ok := r.validators[id]; ok {
		return v, nil
	}
	if r.defaultV != nil {
		return r.defaultV, nil
	}
	return nil, fmt.Errorf("validator: %w: %s", errs.ErrUnknownSystem, id)
}

// ValidateRequest dispatches to the registered validator for req.SystemID.
func (r *Registry) ValidateRequest(ctx context.Context, req *intent.ComputeRequest, latestTS uint64, expectedMarket common.Address) error {
	v, err := r.For(req.SystemID)
	if err != nil {
		return errs.NewValidationError(errs.KindUnsupportedSystem, err.Error())
	}
	return v.ValidateRequest(ctx, req, latestTS, expectedMarket)
}

// ValidateOffer dispatches to the registered validator for off.SystemID.
func (r *Registry) ValidateOffer(ctx context.Context, off *intent.ComputeOffer, latestTS uint64, expectedMarket common.Address) error {
	v, err := r.For(off.SystemID)
	if err != nil {
		return errs.NewValidationError(errs.KindUnsupportedSystem, err.Error())
	}
	return v.ValidateOffer(ctx, off, latestTS, expectedMarket)
}
