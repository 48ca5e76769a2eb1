package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the replydesk store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
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
    payload      JSONB,
    status       TEXT NOT NULL DEFAULT 'pending',
    received_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ,
    last_error   TEXT NOT NULL DEFAULT '',
    attempts     INT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_replydesk_events_external ON replydesk_events (tenant_id, external_id);
CREATE INDEX IF NOT EXISTS idx_replydesk_events_status ON replydesk_events (status, updated_at);
CREATE INDEX IF NOT EXISTS idx_replydesk_events_received ON replydesk_events (received_at);
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
    key_version    INT NOT NULL DEFAULT 0,
    confidence_threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    sources_count    INT NOT NULL DEFAULT 0,
    confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    risk_category    TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'draft',
    expires_at       TIMESTAMPTZ NOT NULL,
    sent_at          TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_replydesk_suggestions_tenant ON replydesk_suggestions (tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_replydesk_suggestions_expiry ON replydesk_suggestions (expires_at) WHERE status = 'draft';
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
    needs_human     BOOLEAN NOT NULL DEFAULT FALSE,
    handoff_reason  TEXT NOT NULL DEFAULT '',
    handoff_at      TIMESTAMPTZ,
    last_message_at TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    sent_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_replydesk_messages_contact ON replydesk_messages (tenant_id, contact_id, sent_at DESC);
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
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
