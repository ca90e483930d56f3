package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder appends analytics rows to PostgreSQL. Sessions are keyed
// by user id; a new session row is minted when none exists yet.
type PostgresRecorder struct {
	pool *pgxpool.Pool
	bot  string
}

func NewPostgresRecorder(ctx context.Context, databaseURL, bot string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect analytics postgres: %w", err)
	}
	if err := initAnalyticsSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	if strings.TrimSpace(bot) == "" {
		bot = "pool-guide"
	}
	return &PostgresRecorder{pool: pool, bot: bot}, nil
}

func initAnalyticsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_session (
			id TEXT PRIMARY KEY,
			bot TEXT NOT NULL,
			session_external_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_session_external ON chat_session (bot, session_external_id);`,
		`CREATE TABLE IF NOT EXISTS chat_message (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_session(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			buyer_stage TEXT NOT NULL DEFAULT '',
			render_stage TEXT NOT NULL DEFAULT '',
			latency_ms BIGINT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS cta_event (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_session(id) ON DELETE CASCADE,
			cta_key TEXT NOT NULL,
			outcome TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init analytics schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (r *PostgresRecorder) sessionID(ctx context.Context, userID string) (string, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id FROM chat_session
		  WHERE bot=$1 AND session_external_id=$2
		  ORDER BY started_at DESC LIMIT 1`,
		r.bot, userID,
	)
	var id string
	if err := row.Scan(&id); err == nil {
		return id, nil
	}

	id = uuid.NewString()
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO chat_session (id, bot, session_external_id) VALUES ($1,$2,$3)`,
		id, r.bot, userID,
	); err != nil {
		return "", fmt.Errorf("create analytics session: %w", err)
	}
	return id, nil
}

func (r *PostgresRecorder) RecordTurn(ctx context.Context, event TurnEvent) error {
	sessionID, err := r.sessionID(ctx, event.UserID)
	if err != nil {
		return err
	}
	at := event.RecordedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	batchRows := []struct {
		role    string
		content string
	}{
		{"user", event.UserText},
		{"assistant", event.BotText},
	}
	for _, m := range batchRows {
		if _, err := r.pool.Exec(ctx,
			`INSERT INTO chat_message (session_id, role, content, buyer_stage, render_stage, latency_ms, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			sessionID, m.role, m.content, event.BuyerStage, event.RenderStage, event.LatencyMS, at,
		); err != nil {
			return fmt.Errorf("record turn message: %w", err)
		}
	}
	return nil
}

func (r *PostgresRecorder) RecordCTA(ctx context.Context, event CTAEvent) error {
	sessionID, err := r.sessionID(ctx, event.UserID)
	if err != nil {
		return err
	}
	at := event.RecordedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO cta_event (session_id, cta_key, outcome, created_at) VALUES ($1,$2,$3,$4)`,
		sessionID, event.Kind, event.Outcome, at,
	); err != nil {
		return fmt.Errorf("record cta event: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Close() error {
	r.pool.Close()
	return nil
}
