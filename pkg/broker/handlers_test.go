package broker

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/zkintents/taralli/pkg/validator"
)

func TestShutdownClosesLiveSubscriptionsWithNormalClosure(t *testing.T) {
	hub := NewHub()
	registry := validator.NewRegistry(permissiveValidator{})
	b := New(nil, hub, registry, fakeClock{ts: 1030}, testBrokerFileConfig(), common.Address{}, common.Address{})
	handlers := NewHandlers(b)

	srv := httptest.NewServer(NewRouter(handlers))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/subscribe?system_ids=risc0"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial subscribe: %v", err)
	}
	defer conn.Close()

	closeCode := -1
	conn.SetCloseHandler(func(code int, text string) error {
		closeCode = code
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	handlers.Shutdown(2 * time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the client read loop to observe the close frame")
	}

	if closeCode != websocket.CloseNormalClosure {
		t.Fatalf("expected CloseNormalClosure (%d), got %d", websocket.CloseNormalClosure, closeCode)
	}
}

func TestShutdownIsSafeToCallTwice(t *testing.T) {
	hub := NewHub()
	registry := validator.NewRegistry(permissiveValidator{})
	b := New(nil, hub, registry, fakeClock{ts: 1030}, testBrokerFileConfig(), common.Address{}, common.Address{})
	handlers := NewHandlers(b)

	handlers.Shutdown(time.Second)
	handlers.Shutdown(time.Second)
}
