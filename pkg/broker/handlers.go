package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zkintents/taralli/pkg/codec"
	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/systems"
)

// closeGraceTime bounds how long runSession waits for a Close frame to flush
// to a subscriber before tearing down the connection during shutdown.
const closeGraceTime = 5 * time.Second

// Handlers exposes the broker's HTTP surface: POST /submit/{request,offer},
// GET /query/{system_id}, GET /subscribe. Grounded structurally on the
// teacher's ProofHandlers (writeJSON/writeError helpers, path-prefix
// routing), with bodies rewritten for the submit/query/subscribe pipeline.
type Handlers struct {
	broker   *Broker
	upgrader websocket.Upgrader
	logger   *log.Logger

	shutdown     chan struct{}
	shutdownOnce sync.Once
	sessions     sync.WaitGroup
}

// NewHandlers constructs Handlers over broker.
func NewHandlers(broker *Broker) *Handlers {
	return &Handlers{
		broker:   broker,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:   log.New(log.Writer(), "[BrokerAPI] ", log.LstdFlags),
		shutdown: make(chan struct{}),
	}
}

// Shutdown signals every live runSession loop to send a Close frame and
// return, then blocks until they have all done so or timeout elapses,
// whichever comes first. Safe to call more than once; only the first call
// signals, but every call waits.
func (h *Handlers) Shutdown(timeout time.Duration) {
	h.shutdownOnce.Do(func() { close(h.shutdown) })

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		h.logger.Printf("shutdown: timed out waiting for %s for sessions to close", timeout)
	}
}

type submitFunc func(ctx context.Context, partialJSON, systemBytes []byte) (*SubmissionResult, error)

// HandleSubmitRequest handles POST /submit/request.
func (h *Handlers) HandleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	h.handleSubmit(w, r, "request", h.broker.SubmitRequest)
}

// HandleSubmitOffer handles POST /submit/offer.
func (h *Handlers) HandleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	h.handleSubmit(w, r, "offer", h.broker.SubmitOffer)
}

func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request, kind string, submit submitFunc) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sub, err := codec.DecodeSubmission(r, kind)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := submit(r.Context(), sub.PartialJSON, sub.SystemBytes)
	if err != nil {
		h.writeSubmissionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleQuery handles GET /query/{system_id}.
func (h *Handlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/query/")
	name = strings.TrimSuffix(name, "/")
	systemID, err := systems.ParseSystemId(name)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	offers, err := h.broker.Query(r.Context(), systemID)
	if err != nil {
		h.logger.Printf("query %s: %v", systemID, err)
		h.writeError(w, http.StatusInternalServerError, "failed to query offers")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"intents": offers})
}

// HandleSubscribe handles GET /subscribe?system_ids=a,b,c, upgrading to a
// WebSocket that streams matching requests as Binary frames.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := r.URL.Query().Get("system_ids")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "system_ids is required")
		return
	}
	mask, err := systems.MaskFromNames(strings.Split(raw, ","))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	h.runSession(conn, mask)
}

// runSession drives one WebSocket subscriber until the peer closes, the
// connection errors, or the process shuts down, per spec.md §4.F's
// select-loop description.
func (h *Handlers) runSession(conn *websocket.Conn, mask uint32) {
	sessionID := uuid.NewString()
	sub := h.broker.Subscribe(mask)
	h.logger.Printf("session %s: subscribed with mask %#x", sessionID, mask)
	h.sessions.Add(1)
	defer h.sessions.Done()
	defer h.logger.Printf("session %s: closed", sessionID)
	defer sub.Close()
	defer conn.Close()

	closeRead := make(chan struct{})
	go func() {
		defer close(closeRead)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				h.logger.Printf("session %s: write failed: %v", sessionID, err)
				return
			}
		case <-closeRead:
			return
		case <-h.shutdown:
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down")
			if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeGraceTime)); err != nil {
				h.logger.Printf("session %s: close frame failed: %v", sessionID, err)
			}
			return
		}
	}
}

func (h *Handlers) writeSubmissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrValidationTimeout):
		h.writeError(w, http.StatusRequestTimeout, "validation timeout")
	case errors.Is(err, errs.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrParse):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Printf("submission failed: %v", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("encode response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
