package storage

import "context"

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		email TEXT,
		full_name TEXT,
		avatar_url TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_email_lower ON profiles (lower(email))`,
	`CREATE TABLE IF NOT EXISTS poop_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL,
		type SMALLINT NOT NULL CHECK (type BETWEEN 1 AND 7),
		notes TEXT,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_poop_logs_user_occurred ON poop_logs (user_id, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS friendships (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL,
		friend_id UUID NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'accepted')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_friendships_user ON friendships (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_friendships_friend ON friendships (friend_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_friendships_pair ON friendships (LEAST(user_id, friend_id), GREATEST(user_id, friend_id))`,
}

// Migrate creates the tables when they do not exist yet.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := p.pool.Exec(ctx, q); err != nil {
			p.logger.Errorf("storage: migration failed: %v", err)
			return err
		}
	}
	return nil
}
