// 文件路径: internal/repository/sqlite/store.go
// 模块说明: 基于 SQLite 的仓储实现集合，同一个 Store 可以绑定连接池或单个事务。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wires SQLite-backed repository implementations.
type Store struct {
	db   *sql.DB
	inTx bool

	nodes       repository.NodeRepository
	allocations repository.AllocationRepository
	eggs        repository.EggRepository
	servers     repository.ServerRepository
	users       repository.UserRepository
	syncJobs    repository.SyncJobRepository
}

// NewStore constructs a SQLite-backed repository store.
func NewStore(db *sql.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(q querier) *Store {
	return &Store{
		nodes:       &nodeRepo{db: q},
		allocations: &allocationRepo{db: q},
		eggs:        &eggRepo{db: q},
		servers:     &serverRepo{db: q},
		users:       &userRepo{db: q},
		syncJobs:    &syncJobRepo{db: q},
	}
}

func (s *Store) Nodes() repository.NodeRepository {
	return s.nodes
}

func (s *Store) Allocations() repository.AllocationRepository {
	return s.allocations
}

func (s *Store) Eggs() repository.EggRepository {
	return s.eggs
}

func (s *Store) Servers() repository.ServerRepository {
	return s.servers
}

func (s *Store) Users() repository.UserRepository {
	return s.users
}

func (s *Store) SyncJobs() repository.SyncJobRepository {
	return s.syncJobs
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := bind(tx)
	txStore.inTx = true

	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
