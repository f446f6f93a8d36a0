package store

import (
	"github.com/pkg/errors"
	"gopkg.in/reform.v1"
)

var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS checkout`,
	`CREATE TABLE IF NOT EXISTS checkout.unsynced_orders (
		id         BIGSERIAL PRIMARY KEY,
		order_uid  TEXT NOT NULL UNIQUE,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS checkout.terminal_operations (
		id         BIGSERIAL PRIMARY KEY,
		line_id    TEXT NOT NULL,
		order_uid  TEXT NOT NULL,
		provider   TEXT NOT NULL,
		ext_id     TEXT NOT NULL DEFAULT '',
		raw_status TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (line_id, provider)
	)`,
	`CREATE INDEX IF NOT EXISTS terminal_operations_ext_id_idx ON checkout.terminal_operations (provider, ext_id)`,
}

// EnsureSchema creates the checkout schema and its tables when missing.
func EnsureSchema(db *reform.DB) error {
	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			return errors.Wrap(err, "Failed apply schema")
		}
	}
	return nil
}
