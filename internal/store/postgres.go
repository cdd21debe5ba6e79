package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3-frozen/collateral-risk-monitor/internal/risk"
)

// Store reads trove positions from the indexer database.
type Store struct {
	pool         *pgxpool.Pool
	troveManager string
}

func New(ctx context.Context, databaseURL, troveManager string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool, troveManager: troveManager}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// ListTroves returns every trove of the configured trove manager.
func (s *Store) ListTroves(ctx context.Context) ([]risk.Trove, error) {
	rows, err := s.pool.Query(ctx, listTrovesSQL, s.troveManager)
	if err != nil {
		return nil, fmt.Errorf("query troves: %w", err)
	}
	defer rows.Close()

	troves := []risk.Trove{}
	for rows.Next() {
		var (
			status string
			t      risk.Trove
		)
		if err := rows.Scan(&status, &t.CollateralRatio, &t.CollateralUSD); err != nil {
			return nil, fmt.Errorf("scan trove: %w", err)
		}
		t.Status = risk.ParseTroveStatus(status)
		troves = append(troves, t)
	}
	return troves, rows.Err()
}
