package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the replydesk store (SQLite).
var Migrations = migrate.NewGroup("replydesk")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_replydesk_events",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS replydesk_events (
    id           TEXT PRIMARY KEY,
    external_id  TEXT NOT NULL,
    tenant_id    TEXT NOT NULL,
    bot_id       TEXT NOT NULL DEFAULT '',
    contact_id   TEXT NOT NULL DEFAULT '',
    payload      TEXT,
    status       TEXT NOT NULL DEFAULT 'pending',
    received_at  TEXT NOT NULL DEFAULT (datetime('now')),
    processed_at TEXT,
    last_error   TEXT NOT NULL DEFAULT '',
    attempts     INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_replydesk_events_external ON replydesk_events (tenant_id, external_id);
CREATE INDEX IF NOT EXISTS idx_replydesk_events_status ON replydesk_events (status, updated_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS replydesk_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_replydesk_credentials",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS replydesk_credentials (
    id             TEXT PRIMARY KEY,
    tenant_id      TEXT NOT NULL UNIQUE,
    bot_id         TEXT NOT NULL DEFAULT '',
    channel_secret TEXT NOT NULL DEFAULT '',
    access_token   TEXT NOT NULL DEFAULT '',
    key_version    INTEGER NOT NULL DEFAULT 0,
    confidence_threshold REAL NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS replydesk_credentials`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_replydesk_suggestions",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS replydesk_suggestions (
    id               TEXT PRIMARY KEY,
    tenant_id        TEXT NOT NULL,
    contact_id       TEXT NOT NULL DEFAULT '',
    event_id         TEXT NOT NULL DEFAULT '',
    kind             TEXT NOT NULL DEFAULT 'suggest',
    user_message     TEXT NOT NULL DEFAULT '',
    draft_reply      TEXT NOT NULL DEFAULT '',
    sources_count    INTEGER NOT NULL DEFAULT 0,
    confidence_score REAL NOT NULL DEFAULT 0,
    risk_category    TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'draft',
    expires_at       TEXT NOT NULL,
    sent_at          TEXT,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_replydesk_suggestions_tenant ON replydesk_suggestions (tenant_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS replydesk_suggestions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_replydesk_conversations",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS replydesk_conversations (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    contact_id      TEXT NOT NULL,
    needs_human     INTEGER NOT NULL DEFAULT 0,
    handoff_reason  TEXT NOT NULL DEFAULT '',
    handoff_at      TEXT,
    last_message_at TEXT,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_replydesk_conversations_contact ON replydesk_conversations (tenant_id, contact_id);

CREATE TABLE IF NOT EXISTS replydesk_messages (
    id            TEXT PRIMARY KEY,
    tenant_id     TEXT NOT NULL,
    contact_id    TEXT NOT NULL,
    event_id      TEXT NOT NULL DEFAULT '',
    suggestion_id TEXT NOT NULL DEFAULT '',
    text          TEXT NOT NULL DEFAULT '',
    origin        TEXT NOT NULL DEFAULT '',
    sent_at       TEXT NOT NULL DEFAULT (datetime('now')),
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_replydesk_messages_contact ON replydesk_messages (tenant_id, contact_id, sent_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS replydesk_messages;
DROP TABLE IF EXISTS replydesk_conversations;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_replydesk_knowledge",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS replydesk_knowledge (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    category   TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_replydesk_knowledge_tenant ON replydesk_knowledge (tenant_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS replydesk_knowledge`)
				return err
			},
		},
	)
}
