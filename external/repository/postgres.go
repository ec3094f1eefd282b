package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightclass/voicesession/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.PreferencesRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) GetVoicePreferences(ctx context.Context, accountID string) (*repository.VoicePreferences, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT account_id, auto_silence_ms, hard_cap_ms, default_locked, streaming_enabled, updated_at
		 FROM voice_preferences WHERE account_id = $1`,
		accountID)

	var p repository.VoicePreferences
	var autoSilenceMs, hardCapMs int64
	err := row.Scan(&p.AccountID, &autoSilenceMs, &hardCapMs, &p.DefaultLocked, &p.StreamingEnabled, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.AutoSilence = time.Duration(autoSilenceMs) * time.Millisecond
	p.HardCap = time.Duration(hardCapMs) * time.Millisecond
	return &p, nil
}
