// Package broker implements the marketplace's central clearinghouse: the
// submit -> validate -> persist -> fan-out pipeline every request/offer
// passes through, its subscription bus, and its expiration sweeper.
// Grounded on spec.md §4.F and the teacher's pkg/database/client.go
// (connection pooling, migration runner, functional ClientOption idiom) plus
// pkg/server/proof_handlers.go (HTTP handler struct shape).
package broker

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"

	"github.com/zkintents/taralli/pkg/config"
	"github.com/zkintents/taralli/pkg/systems"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the intents table behind a connection-pooled *sql.DB.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore opens a connection pool against cfg.DatabaseURL and verifies
// connectivity before returning.
func NewStore(cfg *config.Config, opts ...StoreOption) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("broker: config cannot be nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("broker: database URL cannot be empty")
	}

	s := &Store{logger: log.New(log.Writer(), "[Store] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("broker: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	s.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("broker: ping database: %w", err)
	}

	s.logger.Printf("connected to database (max_open=%d, max_idle=%d)", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	return s, nil
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		s.logger.Println("closing database connection")
		return s.db.Close()
	}
	return nil
}

// HealthStatus reports connection pool and reachability state.
type HealthStatus struct {
	Healthy            bool          `json:"healthy"`
	Error              string        `json:"error,omitempty"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	MaxOpenConnections int           `json:"max_open_connections"`
	CheckedAt          time.Time     `json:"checked_at"`
}

// Health pings the database and reports pool statistics.
func (s *Store) Health(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{CheckedAt: time.Now()}
	if err := s.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
		return status, nil
	}
	stats := s.db.Stats()
	status.Healthy = true
	status.OpenConnections = stats.OpenConnections
	status.InUse = stats.InUse
	status.Idle = stats.Idle
	status.WaitCount = stats.WaitCount
	status.WaitDuration = stats.WaitDuration
	status.MaxOpenConnections = stats.MaxOpenConnections
	return status, nil
}

// Migration is one embedded schema change.
type Migration struct {
	Version string
	SQL     string
}

// MigrateUp applies every embedded migration not yet recorded in
// schema_migrations, in filename order.
func (s *Store) MigrateUp(ctx context.Context) error {
	s.logger.Println("running database migrations...")

	migrations, err := s.readMigrations()
	if err != nil {
		return fmt.Errorf("broker: read migrations: %w", err)
	}
	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("broker: read applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		s.logger.Printf("  applying %s", m.Version)
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("broker: begin migration tx: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("broker: apply migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("broker: commit migration %s: %w", m.Version, err)
		}
	}
	s.logger.Println("migrations complete")
	return nil
}

func (s *Store) readMigrations() ([]Migration, error) {
	var migrations []Migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(d.Name(), ".sql"),
			SQL:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// EnsureMarket compares the market addresses persisted from the last boot
// against the configured ones. On a change it truncates the intents table
// (every previously stored intent referenced the old market and is no
// longer valid) and records the new addresses, per spec.md's
// market-address-change invariant.
func (s *Store) EnsureMarket(ctx context.Context, bombetta, porchetta string) error {
	var existingBombetta, existingPorchetta string
	err := s.db.QueryRowContext(ctx,
		`SELECT universal_bombetta, universal_porchetta FROM broker_market_config WHERE id = 1`,
	).Scan(&existingBombetta, &existingPorchetta)

	switch {
	case err == sql.ErrNoRows:
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO broker_market_config (id, universal_bombetta, universal_porchetta) VALUES (1, $1, $2)`,
			bombetta, porchetta)
		if err != nil {
			return fmt.Errorf("broker: record initial market config: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("broker: read market config: %w", err)
	}

	if existingBombetta == bombetta && existingPorchetta == porchetta {
		return nil
	}

	s.logger.Printf("market addresses changed (bombetta %s -> %s, porchetta %s -> %s): recreating intents table",
		existingBombetta, bombetta, existingPorchetta, porchetta)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("broker: begin market-change tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE intents`); err != nil {
		return fmt.Errorf("broker: truncate intents on market change: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE broker_market_config SET universal_bombetta = $1, universal_porchetta = $2, updated_at = now() WHERE id = 1`,
		bombetta, porchetta); err != nil {
		return fmt.Errorf("broker: update market config: %w", err)
	}
	return tx.Commit()
}

// StoredOffer is one row of the offer table, per spec.md §3's stored-offer
// shape: `(intent_id, system_id, system_bytes, proof_commitment_bytes,
// signature_bytes, expiration_ts, created_at, expired_at)`. Payload carries
// the still-Brotli-compressed system bytes plus the gob-encoded
// commitment/signature (see codec.OfferStreamRecord), so a query response
// can be replayed straight back through the streaming wire form.
type StoredOffer struct {
	IntentID              string           `json:"intent_id"`
	SystemID              systems.SystemId `json:"system_id"`
	Payload               []byte           `json:"payload"`
	StartAuctionTimestamp uint64           `json:"start_auction_timestamp"`
	EndAuctionTimestamp   uint64           `json:"end_auction_timestamp"`
	CreatedAt             time.Time        `json:"created_at"`
	ExpiredAt             *time.Time       `json:"expired_at,omitempty"`
}

// InsertOffer persists a validated offer. intentID is the hex-encoded
// IntentId; nonce, signer and market are carried alongside payload for
// future duplicate/ownership queries even though the spec's API surface
// doesn't require them yet.
func (s *Store) InsertOffer(ctx context.Context, intentID string, systemID systems.SystemId, signer, market common.Address, nonce *big.Int, payload []byte, startTS, endTS uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intents (id, kind, system_id, signer, market, nonce, payload, start_auction_timestamp, end_auction_timestamp)
		VALUES ($1, 'offer', $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		intentID, int(systemID), signer.Hex(), market.Hex(), nonce.String(), payload, int64(startTS), int64(endTS))
	if err != nil {
		return fmt.Errorf("broker: insert offer %s: %w", intentID, err)
	}
	return nil
}

// QueryOffers returns every non-expired stored offer for systemID, in
// insertion order.
func (s *Store) QueryOffers(ctx context.Context, systemID systems.SystemId) ([]StoredOffer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, system_id, payload, start_auction_timestamp, end_auction_timestamp, created_at, expired_at
		FROM intents
		WHERE system_id = $1 AND kind = 'offer' AND expired_at IS NULL
		ORDER BY created_at ASC`, int(systemID))
	if err != nil {
		return nil, fmt.Errorf("broker: query offers for %s: %w", systemID, err)
	}
	defer rows.Close()

	var out []StoredOffer
	for rows.Next() {
		var o StoredOffer
		var sid int
		var start, end int64
		var expiredAt sql.NullTime
		if err := rows.Scan(&o.IntentID, &sid, &o.Payload, &start, &end, &o.CreatedAt, &expiredAt); err != nil {
			return nil, fmt.Errorf("broker: scan offer row: %w", err)
		}
		o.SystemID = systems.SystemId(sid)
		o.StartAuctionTimestamp = uint64(start)
		o.EndAuctionTimestamp = uint64(end)
		if expiredAt.Valid {
			t := expiredAt.Time
			o.ExpiredAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SweepExpired marks expired_at = now() on every offer row whose
// end_auction_timestamp has passed and isn't already marked, never
// deleting rows (spec.md §4.F). Returns the number of rows newly expired.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE intents
		SET expired_at = now()
		WHERE kind = 'offer'
		  AND expired_at IS NULL
		  AND end_auction_timestamp <= extract(epoch FROM now())::bigint`)
	if err != nil {
		return 0, fmt.Errorf("broker: sweep expired offers: %w", err)
	}
	return res.RowsAffected()
}
