package db

import (
	"context"
	"fmt"
)

// EnsureSchema creates the facilitator tables. Statements are idempotent.
func (db *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		// ── Messages ──────────────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS community_messages (
			id            BIGINT PRIMARY KEY,
			community_id  TEXT NOT NULL,
			author_id     TEXT NOT NULL,
			content       TEXT NOT NULL,
			sequence      BIGINT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (community_id, sequence)
		)`,
		`CREATE INDEX IF NOT EXISTS community_messages_recent_idx
			ON community_messages (community_id, sequence DESC)`,

		// Per-community sequence counter; the row lock serializes appends.
		`CREATE TABLE IF NOT EXISTS community_sequences (
			community_id  TEXT PRIMARY KEY,
			last_sequence BIGINT NOT NULL DEFAULT 0
		)`,

		// ── Cadence ───────────────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS community_cadence (
			community_id          TEXT PRIMARY KEY,
			human_messages_since  INT NOT NULL DEFAULT 0,
			last_human_message_at TIMESTAMPTZ,
			last_intervention_at  TIMESTAMPTZ,
			version               BIGINT NOT NULL DEFAULT 0
		)`,

		// ── User intervention state ───────────────────────────────────────────
		// scope_key is the community id, or '*' when limits are global per user.
		`CREATE TABLE IF NOT EXISTS user_intervention_state (
			user_id              TEXT NOT NULL,
			scope_key            TEXT NOT NULL,
			last_intervention_at TIMESTAMPTZ,
			count_day            TEXT NOT NULL DEFAULT '',
			today_count          INT NOT NULL DEFAULT 0 CHECK (today_count >= 0),
			probability          DOUBLE PRECISION NOT NULL CHECK (probability >= 0 AND probability <= 1),
			consecutive_ignored  INT NOT NULL DEFAULT 0,
			answered_total       INT NOT NULL DEFAULT 0,
			ignored_total        INT NOT NULL DEFAULT 0,
			bridges_today        INT NOT NULL DEFAULT 0 CHECK (bridges_today >= 0),
			version              BIGINT NOT NULL DEFAULT 0,
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, scope_key)
		)`,
		`ALTER TABLE user_intervention_state
			ADD COLUMN IF NOT EXISTS bridges_today INT NOT NULL DEFAULT 0`,

		// ── Interventions ─────────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS interventions (
			id                 BIGINT PRIMARY KEY,
			community_id       TEXT NOT NULL,
			user_id            TEXT NOT NULL,
			trigger_message_id BIGINT NOT NULL REFERENCES community_messages(id),
			type               TEXT NOT NULL CHECK (type IN (
			                   	'summary', 'highlight', 'question', 'bridge_to_article', 'bridge_to_app'
			                   )),
			pattern            TEXT NOT NULL,
			body               TEXT NOT NULL,
			follow_up_question TEXT NOT NULL,
			content            TEXT NOT NULL,
			answered           BOOLEAN NOT NULL DEFAULT false,
			ignored            BOOLEAN NOT NULL DEFAULT false,
			answer_message_id  BIGINT,
			resolved_at        TIMESTAMPTZ,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (NOT (answered AND ignored))
		)`,
		`CREATE INDEX IF NOT EXISTS interventions_community_idx
			ON interventions (community_id, created_at DESC)`,

		// ── Follow-up watches ─────────────────────────────────────────────────
		// Primary key enforces at most one pending watch per (user, community).
		`CREATE TABLE IF NOT EXISTS follow_up_watches (
			user_id         TEXT NOT NULL,
			community_id    TEXT NOT NULL,
			intervention_id BIGINT NOT NULL REFERENCES interventions(id) ON DELETE CASCADE,
			deadline        TIMESTAMPTZ NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, community_id)
		)`,

		// ── Sessions (written by the auth frontend, read here) ────────────────
		`CREATE TABLE IF NOT EXISTS sessions (
			id         BIGINT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
