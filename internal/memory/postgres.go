package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/countryleisure/rusty/internal/journey"
)

// PostgresStore persists conversation records in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	expiry time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, expiry time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, expiry: expiry}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_memories (
			user_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
			interactions JSONB NOT NULL DEFAULT '[]',
			key_facts JSONB NOT NULL DEFAULT '{}',
			buyer_stage TEXT NOT NULL DEFAULT 'browsing',
			engagement_level INT NOT NULL DEFAULT 1,
			render_requested BOOLEAN NOT NULL DEFAULT FALSE,
			render_status TEXT NOT NULL DEFAULT '',
			contact_info JSONB NOT NULL DEFAULT '{}',
			cta_attempts JSONB NOT NULL DEFAULT '[]',
			last_cta_attempt TIMESTAMPTZ NULL,
			version BIGINT NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_user_memories_last_updated ON user_memories (last_updated);`,
		`CREATE INDEX IF NOT EXISTS idx_user_memories_buyer_stage ON user_memories (buyer_stage);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string, now time.Time) (journey.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, created_at, last_updated, interactions, key_facts, buyer_stage,
		        engagement_level, render_requested, render_status, contact_info,
		        cta_attempts, last_cta_attempt, version
		   FROM user_memories WHERE user_id=$1`,
		userID,
	)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return journey.NewRecord(userID, now), nil
		}
		return journey.Record{}, fmt.Errorf("load record: %w", err)
	}
	if record.Expired(now, s.expiry) {
		return journey.NewRecord(userID, now), nil
	}
	record.Normalize(now)
	return record, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, record journey.Record, now time.Time) (journey.Record, error) {
	interactions, err := json.Marshal(record.Interactions)
	if err != nil {
		return journey.Record{}, fmt.Errorf("marshal interactions: %w", err)
	}
	keyFacts, err := json.Marshal(record.KeyFacts)
	if err != nil {
		return journey.Record{}, fmt.Errorf("marshal key facts: %w", err)
	}
	contactInfo, err := json.Marshal(record.ContactInfo)
	if err != nil {
		return journey.Record{}, fmt.Errorf("marshal contact info: %w", err)
	}
	ctaAttempts, err := json.Marshal(record.CTAAttempts)
	if err != nil {
		return journey.Record{}, fmt.Errorf("marshal cta attempts: %w", err)
	}

	record.LastUpdatedAt = now

	// The version predicate turns a lost-update race into zero affected
	// rows instead of a silent overwrite. A version-0 working copy may also
	// replace a row whose freshness window already lapsed. The insert arm
	// carries the same guard: only a version-0 copy may create the row, so a
	// stale copy of a since-reset record conflicts instead of resurrecting
	// it.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO user_memories (
			user_id, created_at, last_updated, interactions, key_facts, buyer_stage,
			engagement_level, render_requested, render_status, contact_info,
			cta_attempts, last_cta_attempt, version
		)
		SELECT $1::text, $2::timestamptz, $3::timestamptz, $4::jsonb, $5::jsonb, $6::text,
		       $7::int, $8::boolean, $9::text, $10::jsonb,
		       $11::jsonb, $12::timestamptz, 1
		 WHERE $13::bigint = 0
		    OR EXISTS (SELECT 1 FROM user_memories WHERE user_id = $1)
		ON CONFLICT (user_id) DO UPDATE SET
			last_updated=EXCLUDED.last_updated,
			interactions=EXCLUDED.interactions,
			key_facts=EXCLUDED.key_facts,
			buyer_stage=EXCLUDED.buyer_stage,
			engagement_level=EXCLUDED.engagement_level,
			render_requested=EXCLUDED.render_requested,
			render_status=EXCLUDED.render_status,
			contact_info=EXCLUDED.contact_info,
			cta_attempts=EXCLUDED.cta_attempts,
			last_cta_attempt=EXCLUDED.last_cta_attempt,
			version=user_memories.version+1
		WHERE user_memories.version=$13
		   OR ($13=0 AND user_memories.last_updated < $14)`,
		record.UserID,
		record.CreatedAt,
		record.LastUpdatedAt,
		interactions,
		keyFacts,
		string(record.BuyerStage),
		record.EngagementLevel,
		record.RenderRequested,
		string(record.RenderStatus),
		contactInfo,
		ctaAttempts,
		record.LastCTAAttempt,
		record.Version,
		now.Add(-s.expiry),
	)
	if err != nil {
		return journey.Record{}, fmt.Errorf("upsert record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return journey.Record{}, ErrVersionConflict
	}

	record.Version++
	return record, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_memories WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	// Single DELETE so the freshness condition is re-evaluated inside the
	// statement; a concurrent live update refreshing last_updated makes the
	// row ineligible.
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_memories WHERE last_updated < $1`,
		now.Add(-s.expiry),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ExportCompletedRenders(ctx context.Context) ([]journey.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, created_at, last_updated, interactions, key_facts, buyer_stage,
		        engagement_level, render_requested, render_status, contact_info,
		        cta_attempts, last_cta_attempt, version
		   FROM user_memories
		  WHERE render_requested=TRUE AND render_status='complete'
		  ORDER BY last_updated DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query completed renders: %w", err)
	}
	defer rows.Close()

	var out []journey.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan render row: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate render rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Overview(ctx context.Context, now time.Time) (Overview, error) {
	overview := Overview{ByStage: make(map[journey.BuyerStage]int64)}

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE last_updated > $1),
		        COUNT(*) FILTER (WHERE render_requested)
		   FROM user_memories`,
		now.Add(-7*24*time.Hour),
	)
	if err := row.Scan(&overview.TotalUsers, &overview.ActiveLastWeek, &overview.RenderRequests); err != nil {
		return Overview{}, fmt.Errorf("overview counts: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT buyer_stage, COUNT(*) FROM user_memories GROUP BY buyer_stage`,
	)
	if err != nil {
		return Overview{}, fmt.Errorf("overview stages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stage string
		var count int64
		if err := rows.Scan(&stage, &count); err != nil {
			return Overview{}, fmt.Errorf("scan stage row: %w", err)
		}
		overview.ByStage[journey.BuyerStage(stage)] = count
	}
	if err := rows.Err(); err != nil {
		return Overview{}, fmt.Errorf("iterate stage rows: %w", err)
	}
	return overview, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (journey.Record, error) {
	var (
		record         journey.Record
		stage          string
		renderStatus   string
		interactions   []byte
		keyFacts       []byte
		contactInfo    []byte
		ctaAttempts    []byte
		lastCTAAttempt *time.Time
	)
	if err := row.Scan(
		&record.UserID,
		&record.CreatedAt,
		&record.LastUpdatedAt,
		&interactions,
		&keyFacts,
		&stage,
		&record.EngagementLevel,
		&record.RenderRequested,
		&renderStatus,
		&contactInfo,
		&ctaAttempts,
		&lastCTAAttempt,
		&record.Version,
	); err != nil {
		return journey.Record{}, err
	}

	record.BuyerStage = journey.BuyerStage(stage)
	record.RenderStatus = journey.RenderStatus(renderStatus)
	record.LastCTAAttempt = lastCTAAttempt

	// Corrupt embedded documents degrade to defaults rather than failing
	// the turn.
	if len(interactions) > 0 {
		_ = json.Unmarshal(interactions, &record.Interactions)
	}
	if len(keyFacts) > 0 {
		_ = json.Unmarshal(keyFacts, &record.KeyFacts)
	}
	if len(contactInfo) > 0 {
		_ = json.Unmarshal(contactInfo, &record.ContactInfo)
	}
	if len(ctaAttempts) > 0 {
		_ = json.Unmarshal(ctaAttempts, &record.CTAAttempts)
	}
	return record, nil
}
