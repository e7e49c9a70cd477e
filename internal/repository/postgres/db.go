// Package postgres contains PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"plant-photo-backend/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool used by repositories.
// pgxmock.PgxPoolIface satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// DB wraps the pool shared by all repositories
type DB struct{ Pool PgxPool }

// New connects to the database and verifies the connection
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// Store groups the Postgres repositories behind repository.Store
type Store struct {
	db      *DB
	users   *UserRepo
	uploads *UploadRepo
	stats   *StatsRepo
}

// NewStore builds all repositories over one pool
func NewStore(db *DB) *Store {
	return &Store{
		db:      db,
		users:   NewUserRepo(db),
		uploads: NewUploadRepo(db),
		stats:   NewStatsRepo(db),
	}
}

func (s *Store) Users() repository.UserRepository     { return s.users }
func (s *Store) Uploads() repository.UploadRepository { return s.uploads }
func (s *Store) Stats() repository.StatsRepository    { return s.stats }
func (s *Store) Close()                               { s.db.Close() }

func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23503"
}
