package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/blekhmanlab/rxivist-sub000/internal/config"
)

// Store owns the Postgres connection shared by every repository. Reconnect
// policy lives here so callers never special-case retries.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	logger  *slog.Logger

	attempts int
	pause    time.Duration
}

// Connect opens the store with a bounded retry loop: one ping per attempt,
// a fixed pause between attempts, and a single observable exhaustion path.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var pingErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		logger.Warn("store connect failed", "attempt", attempt, "of", attempts, "error", pingErr)
		if attempt < attempts {
			select {
			case <-time.After(cfg.ConnectPause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store unreachable after %d attempts: %w", attempts, pingErr)
	}

	store := &Store{
		db:       db,
		builder:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db),
		logger:   logger,
		attempts: attempts,
		pause:    cfg.ConnectPause,
	}

	if err := store.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Articles returns the article repository bound to this store.
func (s *Store) Articles() *ArticleRepo { return &ArticleRepo{store: s} }

// Authors returns the author repository bound to this store.
func (s *Store) Authors() *AuthorRepo { return &AuthorRepo{store: s} }

// Traffic returns the traffic repository bound to this store.
func (s *Store) Traffic() *TrafficRepo { return &TrafficRepo{store: s} }

// Ranks returns the ranking repository bound to this store.
func (s *Store) Ranks() *RankRepo { return &RankRepo{store: s} }

// reconnect re-establishes a lost connection with the same bounded policy
// used at startup.
func (s *Store) reconnect(ctx context.Context) error {
	var pingErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		pingErr = s.db.PingContext(ctx)
		if pingErr == nil {
			return nil
		}
		s.logger.Warn("store reconnect failed", "attempt", attempt, "of", s.attempts, "error", pingErr)
		if attempt < s.attempts {
			select {
			case <-time.After(s.pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("store unreachable after %d attempts: %w", s.attempts, pingErr)
}

// exec runs fn, and on a lost connection reconnects once and re-runs it.
func (s *Store) exec(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !lostConnection(err) {
		return err
	}
	if rcErr := s.reconnect(ctx); rcErr != nil {
		return rcErr
	}
	return fn()
}

func lostConnection(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	// Error class 08 covers connection exceptions.
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}
	return false
}

// isDuplicate reports a unique-constraint violation. A concurrent writer
// racing an insert means the row is already recorded, which callers treat
// as success.
func isDuplicate(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *Store) bootstrap(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
