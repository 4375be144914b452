// Package tracker watches a market contract for the Bid/Resolve log that
// settles a specific intent, returning the first matching event or nil on
// timeout. Grounded on the teacher's pkg/anchor/event_watcher.go idiom
// (pre-typed event structs, FilterLogs/SubscribeFilterLogs, abi.Unpack) and
// original_source/crates/taralli-client/src/tracker.rs's
// track_auction/track_resolve (topic2-filtered watch, tokio::time::timeout
// racing the event stream) translated to context.WithTimeout plus select.
package tracker

import (
	"context"
	"fmt"
	"log"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/zkintents/taralli/pkg/errs"
)

// LogSource is the minimal RPC surface the tracker needs: a live log
// subscription. Satisfied by *rpcclient.Client.
type LogSource interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Event is a decoded Bid or Resolve log: the event name, the intent id it
// was filtered on (the log's topic2), its ABI-unpacked non-indexed fields,
// and the log's chain position.
type Event struct {
	Name        string
	IntentID    common.Hash
	Values      map[string]any
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// Tracker watches one market contract's Bid/Resolve events, parameterized
// by that market's ABI (UniversalBombetta for requests, UniversalPorchetta
// for offers), per spec.md §4.G.
type Tracker struct {
	source        LogSource
	marketABI     abi.ABI
	marketAddress common.Address
	logger        *log.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New constructs a Tracker bound to marketAddress, decoding logs against marketABI.
func New(source LogSource, marketABI abi.ABI, marketAddress common.Address, opts ...Option) *Tracker {
	t := &Tracker{
		source:        source,
		marketABI:     marketABI,
		marketAddress: marketAddress,
		logger:        log.New(log.Writer(), "[Tracker] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrackAuction watches for the first Bid event carrying topic2 == intentId,
// returning nil (not an error) if timeout elapses first.
func (t *Tracker) TrackAuction(ctx context.Context, intentID common.Hash, timeout time.Duration) (*Event, error) {
	return t.track(ctx, "Bid", intentID, timeout)
}

// TrackResolve watches for the first Resolve event carrying topic2 ==
// intentId, returning nil (not an error) if timeout elapses first.
func (t *Tracker) TrackResolve(ctx context.Context, intentID common.Hash, timeout time.Duration) (*Event, error) {
	return t.track(ctx, "Resolve", intentID, timeout)
}

func (t *Tracker) track(ctx context.Context, eventName string, intentID common.Hash, timeout time.Duration) (*Event, error) {
	event, ok := t.marketABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("tracker: unknown event %q in market ABI", eventName)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logs := make(chan types.Log, 16)
	query := ethereum.FilterQuery{
		Addresses: []common.Address{t.marketAddress},
		Topics:    [][]common.Hash{{event.ID}, nil, {intentID}},
	}
	sub, err := t.source.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("tracker: %w: subscribe %s: %w", errs.ErrTransport, eventName, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case l := <-logs:
			values := make(map[string]any)
			if err := t.marketABI.UnpackIntoMap(values, eventName, l.Data); err != nil {
				t.logger.Printf("decode %s log: %v", eventName, err)
				continue
			}
			return &Event{
				Name:        eventName,
				IntentID:    intentID,
				Values:      values,
				BlockNumber: l.BlockNumber,
				TxHash:      l.TxHash,
				LogIndex:    l.Index,
			}, nil
		case err := <-sub.Err():
			if err != nil {
				return nil, fmt.Errorf("tracker: %w: %s subscription: %w", errs.ErrTransport, eventName, err)
			}
			// sub.Err() closes (zero value) when the subscription ends
			// cleanly, e.g. on ctx cancellation — treat like a timeout.
			return nil, nil
		case <-ctx.Done():
			t.logger.Printf("%s watch for %s timed out", eventName, intentID)
			return nil, nil
		}
	}
}
