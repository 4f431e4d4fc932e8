package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnIdleTime time.Duration
	AcquireTimeout  time.Duration
	QueryTimeout    time.Duration
}

// Defaults sized for a single service instance; the acquire timeout is
// deliberately short so pool exhaustion surfaces as an error instead
// of queued requests piling up.
const (
	defaultMaxConns        = 20
	defaultMaxConnIdleTime = 30 * time.Second
	defaultAcquireTimeout  = 2 * time.Second
)

type DB struct {
	Pool           *pgxpool.Pool
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration

	waiting   atomic.Int64
	closeOnce sync.Once
}

var (
	sharedMu sync.Mutex
	shared   *DB
)

// Init creates the process-wide pool. Idempotent: once a pool exists,
// later calls return it unchanged regardless of cfg.
func Init(ctx context.Context, cfg Config) (*DB, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		return shared, nil
	}

	db, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	shared = db
	return shared, nil
}

// Get returns the pool created by Init. Calling it first is a
// programming error and fails with ErrNotInitialized; it never
// constructs a pool on its own.
func Get() (*DB, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		return nil, ErrNotInitialized
	}
	return shared, nil
}

// CloseShared drains the process-wide pool. No-op when Init was never
// called or the pool is already closed.
func CloseShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		shared.Close()
		shared = nil
	}
}

// New builds a standalone pool, outside the Init/Get singleton. Used
// directly by tests that need an isolated pool per case.
func New(ctx context.Context, cfg Config) (*DB, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	pcfg.MaxConns = defaultMaxConns
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.MaxConnIdleTime = defaultMaxConnIdleTime
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(hctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = defaultAcquireTimeout
	}
	return &DB{
		Pool:           pool,
		AcquireTimeout: acquireTimeout,
		QueryTimeout:   cfg.QueryTimeout,
	}, nil
}

func (db *DB) Close() {
	db.closeOnce.Do(func() { db.Pool.Close() })
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// acquire checks out one connection, bounded by the acquire timeout.
// Hitting that bound maps to ErrAcquireTimeout so callers can tell an
// exhausted pool from a failed query. Every pool operation routes
// through here, so the waiting counter sees all acquirers.
func (db *DB) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	db.waiting.Add(1)
	defer db.waiting.Add(-1)

	actx, cancel := context.WithTimeout(ctx, db.AcquireTimeout)
	defer cancel()

	conn, err := db.Pool.Acquire(actx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrAcquireTimeout
		}
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	return conn, nil
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}

// Query runs sql and collects every row into T. The connection comes
// from acquire, so an exhausted pool fails with ErrAcquireTimeout
// instead of queueing.
func Query[T any](ctx context.Context, db *DB, sql string, args ...any) ([]T, error) {
	conn, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return out, nil
}

// QueryOne runs sql and scans the first row into T, or ErrNotFound
// when the result set is empty. Same acquire bound as Query.
func QueryOne[T any](ctx context.Context, db *DB, sql string, args ...any) (*T, error) {
	conn, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("collect row: %w", err)
	}
	return &row, nil
}

// Stats is a point-in-time view of pool occupancy, exposed on the
// metrics endpoint. Waiting is the number of goroutines currently
// inside acquire, i.e. holding no connection yet.
type Stats struct {
	Total   int32
	Idle    int32
	Waiting int64
}

func (db *DB) Stats() Stats {
	s := db.Pool.Stat()
	return Stats{
		Total:   s.TotalConns(),
		Idle:    s.IdleConns(),
		Waiting: db.waiting.Load(),
	}
}
