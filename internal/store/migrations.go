package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS troves (
    trove_manager TEXT NOT NULL,
    owner TEXT NOT NULL,
    status TEXT NOT NULL,
    collateral_ratio DOUBLE PRECISION NOT NULL,
    collateral_usd DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (trove_manager, owner)
);

CREATE INDEX IF NOT EXISTS idx_troves_manager_status ON troves(lower(trove_manager), status);
`

const listTrovesSQL = `
SELECT status, collateral_ratio, collateral_usd
FROM troves
WHERE lower(trove_manager) = lower($1)
ORDER BY owner`

// Migrate creates the trove table when the indexer has not done so yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
