package markets

import "testing"

func TestBombettaABIHasExpectedMembers(t *testing.T) {
	a, err := BombettaABI()
	if err != nil {
		t.Fatalf("BombettaABI: %v", err)
	}
	for _, name := range []string{"bid", "resolve", "activeProofRequestData"} {
		if _, ok := a.Methods[name]; !ok {
			t.Fatalf("expected method %q", name)
		}
	}
	for _, name := range []string{"Bid", "Resolve"} {
		event, ok := a.Events[name]
		if !ok {
			t.Fatalf("expected event %q", name)
		}
		if len(event.Inputs) != 2 {
			t.Fatalf("event %q: expected 2 inputs, got %d", name, len(event.Inputs))
		}
		for _, in := range event.Inputs {
			if !in.Indexed {
				t.Fatalf("event %q: expected all inputs indexed, %q is not", name, in.Name)
			}
		}
	}
}

func TestPorchettaABIHasExpectedMembers(t *testing.T) {
	a, err := PorchettaABI()
	if err != nil {
		t.Fatalf("PorchettaABI: %v", err)
	}
	for _, name := range []string{"bid", "resolve", "activeProofOfferData"} {
		if _, ok := a.Methods[name]; !ok {
			t.Fatalf("expected method %q", name)
		}
	}
	for _, name := range []string{"Bid", "Resolve"} {
		if _, ok := a.Events[name]; !ok {
			t.Fatalf("expected event %q", name)
		}
	}
}
