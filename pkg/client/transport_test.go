package client

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/zkintents/taralli/pkg/broker"
	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/systems"
)

func sampleRequest() *intent.ComputeRequest {
	var sig [65]byte
	return &intent.ComputeRequest{
		SystemID: systems.Risc0,
		System:   &systems.RawSystemParams{ID: systems.Risc0, Bytes: []byte("elf")},
		Commitment: intent.RequestCommitment{
			Signer:                common.HexToAddress("0x1111111111111111111111111111111111111111"),
			Market:                common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Nonce:                 big.NewInt(1),
			RewardToken:           common.HexToAddress("0x3333333333333333333333333333333333333333"),
			MaxRewardAmount:       big.NewInt(700),
			MinRewardAmount:       big.NewInt(100),
			MinimumStake:          big.NewInt(5),
			StartAuctionTimestamp: 1000,
			EndAuctionTimestamp:   1060,
			ProvingTime:           60,
		},
		Signature: sig,
	}
}

func TestBrokerTransportSubmitRequestRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submit/request" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		sub, err := codec.DecodeSubmission(r, "request")
		if err != nil {
			t.Fatalf("decode submission: %v", err)
		}
		partial, err := codec.UnmarshalPartialRequest(sub.PartialJSON)
		if err != nil {
			t.Fatalf("unmarshal partial: %v", err)
		}
		if partial.SystemID != systems.Risc0 {
			t.Errorf("expected risc0, got %s", partial.SystemID)
		}
		n := 3
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(broker.SubmissionResult{BroadcastedTo: &n})
	}))
	defer srv.Close()

	transport := NewBrokerTransport(srv.URL)
	req := sampleRequest()
	systemBytes, err := codec.CompressSystemParams(req.System.(*systems.RawSystemParams), codec.DefaultBrotliOptions())
	if err != nil {
		t.Fatalf("compress system params: %v", err)
	}

	result, err := transport.SubmitRequest(context.Background(), req, systemBytes)
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	if result.BroadcastedTo == nil || *result.BroadcastedTo != 3 {
		t.Fatalf("expected broadcasted_to=3, got %+v", result)
	}
}

func TestBrokerTransportSubmitRequestSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	transport := NewBrokerTransport(srv.URL)
	req := sampleRequest()
	systemBytes, _ := codec.CompressSystemParams(req.System.(*systems.RawSystemParams), codec.DefaultBrotliOptions())

	_, err := transport.SubmitRequest(context.Background(), req, systemBytes)
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestBrokerTransportQueryOffers(t *testing.T) {
	offer := broker.StoredOffer{IntentID: "0xabc", SystemID: systems.Gnark, Payload: []byte{1, 2, 3}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query/gnark" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"intents": []broker.StoredOffer{offer}})
	}))
	defer srv.Close()

	transport := NewBrokerTransport(srv.URL)
	offers, err := transport.QueryOffers(context.Background(), systems.Gnark)
	if err != nil {
		t.Fatalf("QueryOffers: %v", err)
	}
	if len(offers) != 1 || offers[0].IntentID != "0xabc" {
		t.Fatalf("unexpected offers: %+v", offers)
	}
}

func TestBrokerTransportSubscribeReceivesFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	rec := codec.RequestStreamRecord{SystemID: systems.Sp1, System: []byte("payload")}
	payload, err := codec.EncodeRequestStream(rec)
	if err != nil {
		t.Fatalf("encode stream record: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("system_ids") != "sp1" {
			t.Errorf("unexpected system_ids %s", r.URL.Query().Get("system_ids"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()
		conn.WriteMessage(websocket.BinaryMessage, payload)
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	transport := NewBrokerTransport(srv.URL)
	stream, err := transport.Subscribe(context.Background(), systems.Sp1)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := stream.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.SystemID != systems.Sp1 || string(got.System) != "payload" {
		t.Fatalf("unexpected record: %+v", got)
	}
}
