// Package nonce implements the Permit2 unordered-nonce bitmap walk every
// signer uses to find a fresh, unused nonce before building an intent.
// Grounded on
// original_source/crates/taralli-requester/src/nonce_manager.rs's
// Permit2NonceManager (get_nonce/fetch_next_word/find_unused_nonce), adapted
// to the mutex-guarded cache + functional-option idiom of the teacher's
// pkg/execution/nonce_tracker.go.
package nonce

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zkintents/taralli/pkg/errs"
)

var (
	bigOne = big.NewInt(1)
	bigWordBits = big.NewInt(256)
	// maxWord is 2^256-1, the bitmap value Permit2 returns once every bit in
	// a word has been consumed.
	maxWord = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 256), bigOne)
)

// BitmapReader is the minimal Permit2 read surface the manager needs:
// nonceBitmap(owner, wordPos) on the canonical Permit2 deployment. Satisfied
// by pkg/rpcclient's Permit2 binding; kept as an interface so this package
// never imports ethclient directly.
type BitmapReader interface {
	NonceBitmap(ctx context.Context, owner common.Address, wordPos *big.Int) (*big.Int, error)
}

// Manager walks a signer's Permit2 nonce bitmap to find an unused nonce,
// caching the last-seen (wordPos, bitmap) pair so repeated GetNonce calls in
// a tight intent-building loop don't re-hit the RPC for every nonce.
type Manager struct {
	mu     sync.Mutex
	reader BitmapReader
	signer common.Address

	cached     bool
	wordPos    *big.Int
	bitmap     *big.Int

	logger *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager constructs a nonce Manager for the given signer, reading
// bitmap words through reader.
func NewManager(reader BitmapReader, signer common.Address, opts ...Option) *Manager {
	m := &Manager{
		reader: reader,
		signer: signer,
		logger: log.New(log.Writer(), "[NonceManager] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetNonce returns an unused nonce for the manager's signer, consulting the
// cached word first and only re-querying Permit2 when the cached word is
// fully consumed (or not yet fetched). The returned nonce is marked used in
// the local cache before GetNonce returns, so two calls in a row (or two
// concurrent callers) never hand out the same nonce twice.
func (m *Manager) GetNonce(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached {
		if n, err := findUnusedNonce(m.wordPos, m.bitmap); err == nil {
			m.markUsedLocked(n)
			return n, nil
		}
	}

	wordPos, bitmap, err := m.fetchNextWord(ctx)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w: %w", errs.ErrGetNonce, err)
	}
	nonce, err := findUnusedNonce(wordPos, bitmap)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	m.wordPos, m.bitmap, m.cached = wordPos, bitmap, true
	m.markUsedLocked(nonce)
	m.logger.Printf("reserved nonce %s (word %s)", nonce, wordPos)
	return nonce, nil
}

// MarkUsed updates the local cache to reflect that nonce has been consumed,
// without waiting for the next on-chain read to observe it. Only affects the
// cache when nonce falls in the currently cached word; otherwise it is a
// no-op since the next fetchNextWord will see the true on-chain state. Safe
// to call again on a nonce GetNonce already reserved (e.g. once a bid
// confirms on-chain) since setting an already-set bit is idempotent.
func (m *Manager) MarkUsed(nonce *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markUsedLocked(nonce)
}

// markUsedLocked is MarkUsed's body, callable while m.mu is already held.
func (m *Manager) markUsedLocked(nonce *big.Int) {
	if !m.cached {
		return
	}
	wordPos, bitPos := wordAndBit(nonce)
	if wordPos.Cmp(m.wordPos) != 0 {
		return
	}
	mask := new(big.Int).Lsh(bigOne, uint(bitPos.Uint64()))
	m.bitmap = new(big.Int).Or(m.bitmap, mask)
}

// fetchNextWord walks word_pos upward (from 0, or from the cached word once
// one is cached, with its locally reserved bits merged into the fetched
// bitmap) until it finds one whose bitmap is not fully saturated (all 256
// bits set), mirroring Permit2NonceManager::fetch_next_word.
func (m *Manager) fetchNextWord(ctx context.Context) (*big.Int, *big.Int, error) {
	wordPos := new(big.Int)
	if m.cached {
		wordPos.Set(m.wordPos)
	}
	for {
		bitmap, err := m.reader.NonceBitmap(ctx, m.signer, wordPos)
		if err != nil {
			return nil, nil, fmt.Errorf("query nonceBitmap at word %s: %w", wordPos, err)
		}
		if m.cached && wordPos.Cmp(m.wordPos) == 0 {
			bitmap = new(big.Int).Or(bitmap, m.bitmap)
		}
		if bitmap.Cmp(maxWord) != 0 {
			return new(big.Int).Set(wordPos), bitmap, nil
		}
		wordPos = new(big.Int).Add(wordPos, bigOne)
	}
}

// findUnusedNonce scans a 256-bit word for the first zero bit and returns
// the absolute nonce it corresponds to, mirroring
// Permit2NonceManager::find_unused_nonce.
func findUnusedNonce(wordPos, bitmap *big.Int) (*big.Int, error) {
	for i := 0; i < 256; i++ {
		mask := new(big.Int).Lsh(bigOne, uint(i))
		if new(big.Int).And(bitmap, mask).Sign() == 0 {
			offset := new(big.Int).Mul(wordPos, bigWordBits)
			return offset.Add(offset, big.NewInt(int64(i))), nil
		}
	}
	return nil, errs.ErrFindUnusedNonce
}

// wordAndBit splits an absolute nonce into its Permit2 (word_pos, bit_pos) pair.
func wordAndBit(nonce *big.Int) (wordPos, bitPos *big.Int) {
	wordPos, bitPos = new(big.Int), new(big.Int)
	wordPos.DivMod(nonce, bigWordBits, bitPos)
	return wordPos, bitPos
}
