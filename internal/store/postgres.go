package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresTimeout = 5 * time.Second

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresKV keeps records in a single calai_records table. Each call runs
// under its own timeout because the KV contract carries no context.
type PostgresKV struct {
	conn    PgConnection
	pool    *pgxpool.Pool
	Timeout time.Duration
}

func NewPostgresKV(ctx context.Context, connString string) (*PostgresKV, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	kv := &PostgresKV{conn: pool, pool: pool, Timeout: defaultPostgresTimeout}
	if err := kv.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return kv, nil
}

func NewPostgresKVWithConn(conn PgConnection) *PostgresKV {
	return &PostgresKV{conn: conn, Timeout: defaultPostgresTimeout}
}

func (p *PostgresKV) EnsureSchema(ctx context.Context) error {
	_, err := p.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS calai_records (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT now());`)
	if err != nil {
		return fmt.Errorf("ensure calai_records table: %w", err)
	}
	return nil
}

func (p *PostgresKV) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresKV) ctx() (context.Context, context.CancelFunc) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultPostgresTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (p *PostgresKV) Get(key string) (string, bool, error) {
	ctx, cancel := p.ctx()
	defer cancel()
	var value string
	err := p.conn.QueryRow(ctx, `SELECT value FROM calai_records WHERE key = $1;`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get record %q: %w", key, err)
	}
	return value, true, nil
}

func (p *PostgresKV) Set(key, value string) error {
	ctx, cancel := p.ctx()
	defer cancel()
	_, err := p.conn.Exec(ctx, `INSERT INTO calai_records (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now();`, key, value)
	if err != nil {
		return fmt.Errorf("set record %q: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Delete(key string) error {
	ctx, cancel := p.ctx()
	defer cancel()
	if _, err := p.conn.Exec(ctx, `DELETE FROM calai_records WHERE key = $1;`, key); err != nil {
		return fmt.Errorf("delete record %q: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Keys(prefix string) ([]string, error) {
	ctx, cancel := p.ctx()
	defer cancel()
	rows, err := p.conn.Query(ctx, `SELECT key FROM calai_records WHERE starts_with(key, $1) ORDER BY key ASC;`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan record key: %w", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
