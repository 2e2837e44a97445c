package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ivanreeve/poop-tracker/internal"
)

const uniqueViolation = "23505"

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(ctx context.Context, dsn string, logger internal.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Errorf("failed to ping postgres: %v", err)
		return nil, err
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const logColumns = `id::text, user_id::text, type, notes, occurred_at`

func scanLogs(rows pgx.Rows) ([]internal.LogEntry, error) {
	defer rows.Close()
	logs := []internal.LogEntry{}
	for rows.Next() {
		var l internal.LogEntry
		if err := rows.Scan(&l.ID, &l.UserID, &l.Type, &l.Notes, &l.OccurredAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// --- LogRepository ---
func (p *PostgresStorage) ListLogs(ctx context.Context, userID string) ([]internal.LogEntry, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+logColumns+` FROM poop_logs WHERE user_id = $1::uuid ORDER BY occurred_at DESC`, userID)
	if err != nil {
		p.logger.Errorf("failed to query logs: %v", err)
		return nil, err
	}
	logs, err := scanLogs(rows)
	if err != nil {
		p.logger.Errorf("failed to scan logs: %v", err)
		return nil, err
	}
	return logs, nil
}

func (p *PostgresStorage) ListLogsForUsers(ctx context.Context, userIDs []string) ([]internal.LogEntry, error) {
	if len(userIDs) == 0 {
		return []internal.LogEntry{}, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT `+logColumns+` FROM poop_logs WHERE user_id = ANY($1::uuid[]) ORDER BY occurred_at DESC`, userIDs)
	if err != nil {
		p.logger.Errorf("failed to query friend logs: %v", err)
		return nil, err
	}
	logs, err := scanLogs(rows)
	if err != nil {
		p.logger.Errorf("failed to scan friend logs: %v", err)
		return nil, err
	}
	return logs, nil
}

func (p *PostgresStorage) CreateLog(ctx context.Context, userID string, typ int, notes string, occurredAt time.Time) (*internal.LogEntry, error) {
	row := p.pool.QueryRow(ctx, `INSERT INTO poop_logs (user_id, type, notes, occurred_at) VALUES ($1::uuid, $2, $3, $4) RETURNING `+logColumns,
		userID, typ, notes, occurredAt)
	var l internal.LogEntry
	if err := row.Scan(&l.ID, &l.UserID, &l.Type, &l.Notes, &l.OccurredAt); err != nil {
		p.logger.Errorf("failed to insert log: %v", err)
		return nil, err
	}
	return &l, nil
}

func (p *PostgresStorage) RecreateLog(ctx context.Context, log internal.LogEntry) (*internal.LogEntry, error) {
	row := p.pool.QueryRow(ctx, `INSERT INTO poop_logs (id, user_id, type, notes, occurred_at) VALUES ($1::uuid, $2::uuid, $3, $4, $5) RETURNING `+logColumns,
		log.ID, log.UserID, log.Type, log.Notes, log.OccurredAt)
	var l internal.LogEntry
	if err := row.Scan(&l.ID, &l.UserID, &l.Type, &l.Notes, &l.OccurredAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		p.logger.Errorf("failed to recreate log: %v", err)
		return nil, err
	}
	return &l, nil
}

func (p *PostgresStorage) DeleteLog(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM poop_logs WHERE id = $1::uuid`, id)
	if err != nil {
		p.logger.Errorf("failed to delete log: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- FriendshipRepository ---
const friendshipColumns = `id::text, user_id::text, friend_id::text, status, created_at`

func (p *PostgresStorage) ListFriendships(ctx context.Context, userID string) ([]internal.Friendship, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+friendshipColumns+` FROM friendships WHERE user_id = $1::uuid OR friend_id = $1::uuid ORDER BY created_at`, userID)
	if err != nil {
		p.logger.Errorf("failed to query friendships: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := []internal.Friendship{}
	for rows.Next() {
		var f internal.Friendship
		if err := rows.Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt); err != nil {
			p.logger.Errorf("failed to scan friendship: %v", err)
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (p *PostgresStorage) CreateFriendship(ctx context.Context, userID, friendID string) (*internal.Friendship, error) {
	row := p.pool.QueryRow(ctx, `INSERT INTO friendships (user_id, friend_id, status) VALUES ($1::uuid, $2::uuid, $3) RETURNING `+friendshipColumns,
		userID, friendID, string(internal.FriendshipPending))
	var f internal.Friendship
	if err := row.Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		p.logger.Errorf("failed to insert friendship: %v", err)
		return nil, err
	}
	return &f, nil
}

func (p *PostgresStorage) UpdateFriendshipStatus(ctx context.Context, id string, status internal.FriendshipStatus) error {
	tag, err := p.pool.Exec(ctx, `UPDATE friendships SET status = $2 WHERE id = $1::uuid`, id, string(status))
	if err != nil {
		p.logger.Errorf("failed to update friendship: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) DeleteFriendship(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM friendships WHERE id = $1::uuid`, id)
	if err != nil {
		p.logger.Errorf("failed to delete friendship: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- ProfileRepository ---
const profileColumns = `id::text, email, full_name, avatar_url`

func (p *PostgresStorage) FindProfileByEmail(ctx context.Context, email string) (*internal.Profile, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1) ORDER BY id LIMIT 1`, email)
	var pr internal.Profile
	if err := row.Scan(&pr.ID, &pr.Email, &pr.FullName, &pr.AvatarURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		p.logger.Errorf("failed to look up profile: %v", err)
		return nil, err
	}
	return &pr, nil
}

func (p *PostgresStorage) ListProfiles(ctx context.Context, ids []string) ([]internal.Profile, error) {
	if len(ids) == 0 {
		return []internal.Profile{}, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		p.logger.Errorf("failed to query profiles: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := []internal.Profile{}
	for rows.Next() {
		var pr internal.Profile
		if err := rows.Scan(&pr.ID, &pr.Email, &pr.FullName, &pr.AvatarURL); err != nil {
			p.logger.Errorf("failed to scan profile: %v", err)
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *PostgresStorage) UpsertProfile(ctx context.Context, pr internal.Profile) (*internal.Profile, error) {
	row := p.pool.QueryRow(ctx, `INSERT INTO profiles (id, email, full_name, avatar_url) VALUES ($1::uuid, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name, avatar_url = EXCLUDED.avatar_url
		RETURNING `+profileColumns,
		pr.ID, pr.Email, pr.FullName, pr.AvatarURL)
	var out internal.Profile
	if err := row.Scan(&out.ID, &out.Email, &out.FullName, &out.AvatarURL); err != nil {
		p.logger.Errorf("failed to upsert profile: %v", err)
		return nil, err
	}
	return &out, nil
}

// --- Compile-time assertions ---
var _ Store = (*PostgresStorage)(nil)
