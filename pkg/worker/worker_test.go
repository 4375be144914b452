package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/systems"
)

type fakeWorker struct {
	result *WorkResult
	err    error
	calls  int
}

func (f *fakeWorker) Execute(_ context.Context, _ systems.System) (*WorkResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestManagerDispatchesToRegisteredWorker(t *testing.T) {
	m := NewManager()
	want := &WorkResult{OpaqueSubmission: []byte{1, 2, 3}}
	fw := &fakeWorker{result: want}
	m.Register(systems.Gnark, fw)

	sys := &systems.RawSystemParams{ID: systems.Gnark, Bytes: []byte("program")}
	got, err := m.Execute(context.Background(), sys)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if fw.calls != 1 {
		t.Fatalf("expected 1 call, got %d", fw.calls)
	}
}

func TestManagerRejectsUnregisteredSystem(t *testing.T) {
	m := NewManager()
	sys := &systems.RawSystemParams{ID: systems.Sp1, Bytes: []byte("elf")}
	_, err := m.Execute(context.Background(), sys)
	if !errors.Is(err, errs.ErrUnknownSystem) {
		t.Fatalf("expected ErrUnknownSystem, got %v", err)
	}
}

func TestManagerPropagatesWorkerError(t *testing.T) {
	m := NewManager()
	fw := &fakeWorker{err: errors.New("prover exploded")}
	m.Register(systems.Risc0, fw)

	sys := &systems.RawSystemParams{ID: systems.Risc0, Bytes: []byte("elf")}
	_, err := m.Execute(context.Background(), sys)
	if err == nil {
		t.Fatal("expected error from worker")
	}
}
