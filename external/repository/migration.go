package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS voice_preferences (
		account_id TEXT PRIMARY KEY,
		auto_silence_ms BIGINT NOT NULL DEFAULT 2000,
		hard_cap_ms BIGINT NOT NULL DEFAULT 60000,
		default_locked BOOLEAN NOT NULL DEFAULT FALSE,
		streaming_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
