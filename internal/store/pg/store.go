// Package pg implementa los repositorios del core sobre PostgreSQL.
// Usa pgxpool directamente; el schema está en migrations/postgres.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aulalink/aulalink/internal/domain/repository"
)

// Config del pool de conexiones.
type Config struct {
	MaxConns        int
	ConnMaxLifetime time.Duration
}

// Store agrupa los repositorios postgres sobre un pool compartido.
type Store struct {
	pool *pgxpool.Pool
}

// New abre el pool y verifica la conexión.
func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping para health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Chains() repository.RefreshChainRepository { return &chainRepo{pool: s.pool} }
func (s *Store) Tenants() repository.TenantRepository      { return &tenantRepo{pool: s.pool} }
func (s *Store) Users() repository.UserRepository          { return &userRepo{pool: s.pool} }
func (s *Store) Students() repository.StudentRepository    { return &studentRepo{pool: s.pool} }
