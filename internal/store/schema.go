package store

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. The transact table is the shared
// staging log drained by the external transfer process; parts and stock
// mirror Target's current state; the archive tables are written by Target's
// own execution and consumed by the feedback channel.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS transact (
		id            BIGSERIAL PRIMARY KEY,
		trans_type    TEXT NOT NULL,
		district      INT NOT NULL,
		source_event_id  TEXT NOT NULL,
		event_trunc   TEXT NOT NULL,
		order_no      TEXT,
		item_name     TEXT,
		qty           INT,
		material      TEXT,
		thickness     DOUBLE PRECISION,
		width         DOUBLE PRECISION,
		length        DOUBLE PRECISION,
		prime_code    TEXT,
		file_name     TEXT,
		program_name  TEXT,
		program_repeat INT,
		state         TEXT,
		drawing       TEXT,
		codegen       TEXT,
		job           TEXT,
		shipment      TEXT,
		charge_ref    TEXT,
		op1           TEXT,
		op2           TEXT,
		op3           TEXT,
		mark          TEXT,
		raw_mm        TEXT,
		note1         TEXT,
		note2         TEXT,
		note3         TEXT,
		note4         TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS transact_event_idx ON transact (source_event_id)`,
	`CREATE INDEX IF NOT EXISTS transact_item_idx ON transact (item_name)`,
	`CREATE TABLE IF NOT EXISTS parts (
		id             BIGSERIAL PRIMARY KEY,
		part_name      TEXT NOT NULL,
		wo_number      TEXT NOT NULL,
		qty_ordered    INT NOT NULL DEFAULT 0,
		qty_completed  INT NOT NULL DEFAULT 0,
		qty_in_process INT NOT NULL DEFAULT 0,
		material       TEXT,
		job            TEXT,
		shipment       TEXT,
		source_event_id   TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS parts_name_idx ON parts (part_name)`,
	`CREATE TABLE IF NOT EXISTS stock (
		id           BIGSERIAL PRIMARY KEY,
		sheet_name   TEXT NOT NULL,
		sheet_type   TEXT NOT NULL DEFAULT 'Standard',
		qty          INT NOT NULL DEFAULT 0,
		material     TEXT,
		prime_code   TEXT NOT NULL,
		thickness    DOUBLE PRECISION,
		width        DOUBLE PRECISION,
		length       DOUBLE PRECISION,
		source_event_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS stock_prime_idx ON stock (prime_code)`,
	`CREATE TABLE IF NOT EXISTS slab_allocations (
		id         BIGSERIAL PRIMARY KEY,
		part_name  TEXT,
		wo_number  TEXT,
		sheet_name TEXT,
		qty        INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS programs (
		program_name      TEXT NOT NULL,
		repeat_id         INT NOT NULL,
		archive_packet_id TEXT,
		machine_name      TEXT,
		sheet_name        TEXT,
		cutting_time      DOUBLE PRECISION,
		PRIMARY KEY (program_name, repeat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id         BIGSERIAL PRIMARY KEY,
		batch_name TEXT NOT NULL,
		sheet_name TEXT NOT NULL,
		material   TEXT,
		qty        INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS program_archive (
		id                BIGSERIAL PRIMARY KEY,
		archive_packet_id TEXT NOT NULL,
		op                TEXT NOT NULL,
		program_name      TEXT,
		machine_name      TEXT,
		cutting_time      DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS pip_archive (
		id                BIGSERIAL PRIMARY KEY,
		archive_packet_id TEXT NOT NULL,
		op                TEXT NOT NULL,
		sheet_name        TEXT,
		part_name         TEXT,
		wo_number         TEXT,
		qty               INT NOT NULL DEFAULT 0,
		true_area         DOUBLE PRECISION,
		nested_area       DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS remnant_archive (
		id                BIGSERIAL PRIMARY KEY,
		archive_packet_id TEXT NOT NULL,
		op                TEXT NOT NULL,
		sheet_name        TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sheet_archive (
		id                BIGSERIAL PRIMARY KEY,
		archive_packet_id TEXT NOT NULL,
		op                TEXT NOT NULL,
		sheet_name        TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS wo_archive (
		id                BIGSERIAL PRIMARY KEY,
		archive_packet_id TEXT NOT NULL,
		op                TEXT NOT NULL,
		wo_number         TEXT
	)`,
}

// Schema applies the schema statements idempotently.
func (p *Postgres) Schema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
