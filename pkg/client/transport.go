// Package client composes the broker HTTP/WebSocket transport with the
// bidder, worker, resolver, builder, signer and tracker packages into the
// four state machines spec.md §4.K describes: provider-streaming,
// provider-offering, requester-requesting, requester-searching. Grounded
// structurally on
// original_source/crates/taralli-client/src/{client,subscriber}.rs's
// per-flavor run loops, translated from futures/tokio combinators into
// plain goroutines and channels the way the teacher's own services compose
// their dependencies (constructor takes already-built collaborators, no
// framework-level DI container).
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zkintents/taralli/pkg/broker"
	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/intent"
	"github.com/zkintents/taralli/pkg/systems"
)

// BrokerTransport is the broker-facing HTTP/WebSocket client every state
// machine submits requests/offers through and streams/queries against.
type BrokerTransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewBrokerTransport constructs a BrokerTransport against baseURL (e.g.
// "http://localhost:8080", the teacher's SERVER_URL convention).
func NewBrokerTransport(baseURL string) *BrokerTransport {
	return &BrokerTransport{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SubmitRequest posts req to POST /submit/request and returns the broker's
// SubmissionResult.
func (t *BrokerTransport) SubmitRequest(ctx context.Context, req *intent.ComputeRequest, systemBytes []byte) (*broker.SubmissionResult, error) {
	partial := codec.ToPartial(req)
	partialJSON, err := codec.MarshalPartialRequest(partial)
	if err != nil {
		return nil, fmt.Errorf("client: marshal partial request: %w", err)
	}
	return t.postSubmission(ctx, "request", partialJSON, systemBytes)
}

// SubmitOffer posts off to POST /submit/offer and returns the broker's
// SubmissionResult.
func (t *BrokerTransport) SubmitOffer(ctx context.Context, off *intent.ComputeOffer, systemBytes []byte) (*broker.SubmissionResult, error) {
	partial := codec.ToPartialOffer(off)
	partialJSON, err := codec.MarshalPartialOffer(partial)
	if err != nil {
		return nil, fmt.Errorf("client: marshal partial offer: %w", err)
	}
	return t.postSubmission(ctx, "offer", partialJSON, systemBytes)
}

func (t *BrokerTransport) postSubmission(ctx context.Context, kind string, partialJSON, systemBytes []byte) (*broker.SubmissionResult, error) {
	body, contentType, err := codec.EncodeSubmission(kind, partialJSON, systemBytes)
	if err != nil {
		return nil, fmt.Errorf("client: encode submission: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/submit/"+kind, body)
	if err != nil {
		return nil, fmt.Errorf("client: build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: submit %s: %w", errs.ErrTransport, kind, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read submit response: %w", errs.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: submit %s: status %d: %s", errs.ErrIntentSubmission, kind, resp.StatusCode, string(respBody))
	}

	var result broker.SubmissionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("client: decode submission result: %w", err)
	}
	return &result, nil
}

// QueryOffers fetches every live stored offer for systemID from GET
// /query/{system}.
func (t *BrokerTransport) QueryOffers(ctx context.Context, systemID systems.SystemId) ([]broker.StoredOffer, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/query/"+systemID.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: build query request: %w", err)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", errs.ErrTransport, systemID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read query response: %w", errs.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: query %s: status %d: %s", errs.ErrTransport, systemID, resp.StatusCode, string(respBody))
	}

	var wire struct {
		Intents []broker.StoredOffer `json:"intents"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("client: decode query response: %w", err)
	}
	return wire.Intents, nil
}

// RequestStream is the open subscription a provider-streaming client reads
// ComputeRequest records from.
type RequestStream struct {
	conn *websocket.Conn
}

// Subscribe opens GET /subscribe?system_ids=... and returns a stream of
// incoming request records, per spec.md §4.F's broadcast fan-out.
func (t *BrokerTransport) Subscribe(ctx context.Context, systemIDs ...systems.SystemId) (*RequestStream, error) {
	names := make([]string, len(systemIDs))
	for i, id := range systemIDs {
		names[i] = id.String()
	}

	wsURL, err := t.websocketURL(names)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%w: subscribe: %w", errs.ErrTransport, err)
	}
	return &RequestStream{conn: conn}, nil
}

func (t *BrokerTransport) websocketURL(names []string) (string, error) {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return "", fmt.Errorf("client: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/subscribe"
	q := u.Query()
	q.Set("system_ids", strings.Join(names, ","))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Recv blocks for the next request record, or returns an error once the
// server closes the connection or ctx's deadline elapses.
func (s *RequestStream) Recv(ctx context.Context) (*codec.RequestStreamRecord, error) {
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetReadDeadline(deadline)
	} else {
		s.conn.SetReadDeadline(time.Time{})
	}
	_, payload, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: read stream frame: %w", errs.ErrTransport, err)
	}
	rec, err := codec.DecodeRequestStream(payload)
	if err != nil {
		return nil, fmt.Errorf("client: decode stream frame: %w", err)
	}
	return &rec, nil
}

// Close sends a Close frame and tears down the connection, per spec.md
// §5's "cleanup sends a Close frame" provider-streaming teardown.
func (s *RequestStream) Close() error {
	deadline := time.Now().Add(1000 * time.Millisecond)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
