package broker

import (
	"testing"
	"time"

	"github.com/zkintents/taralli/pkg/systems"
)

func TestBroadcastDeliversOnlyToMatchingBit(t *testing.T) {
	hub := NewHub()
	risc0Only := hub.Subscribe(systems.Risc0.Bit())
	both := hub.Subscribe(systems.Risc0.Bit() | systems.Sp1.Bit())
	defer risc0Only.Close()
	defer both.Close()

	hub.Broadcast(systems.Sp1, []byte("sp1-request"))
	hub.Broadcast(systems.Risc0, []byte("risc0-request"))

	select {
	case msg := <-risc0Only.Messages():
		if string(msg) != "risc0-request" {
			t.Fatalf("unexpected message for risc0-only subscriber: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for risc0-only subscriber's message")
	}

	select {
	case msg := <-risc0Only.Messages():
		t.Fatalf("risc0-only subscriber should not see SP1 traffic, got %s", msg)
	default:
	}

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-both.Messages():
			got[string(msg)] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for dual subscriber's messages")
		}
	}
	if !got["sp1-request"] || !got["risc0-request"] {
		t.Fatalf("dual subscriber missing a message, got %v", got)
	}
}

func TestBroadcastReturnsZeroWithNoSubscribers(t *testing.T) {
	hub := NewHub()
	n := hub.Broadcast(systems.Gnark, []byte("x"))
	if n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}

func TestBroadcastDoesNotBlockOnFullSubscriberChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(systems.Gnark.Bit())
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastCapacity+5; i++ {
			hub.Broadcast(systems.Gnark, []byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full subscriber channel")
	}
}

func TestSubscriptionCloseDetaches(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(systems.Gnark.Bit())
	sub.Close()

	n := hub.Broadcast(systems.Gnark, []byte("x"))
	if n != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", n)
	}
}
