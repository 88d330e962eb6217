// Package store provides the PostgreSQL-backed implementations of the
// reconciliation engine's Store, the feedback channel's ArchiveStore, and the
// viewer's catalog queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/paddymills/nestbridge/internal/recon"
	"github.com/paddymills/nestbridge/pkg/postgres"
)

// Postgres is the production store over the shared nesting database.
type Postgres struct {
	db *postgres.Client
}

func New(db *postgres.Client) *Postgres {
	return &Postgres{db: db}
}

// Atomically runs fn against a transaction-scoped recon.Store. One push
// operation maps to exactly one database transaction.
func (p *Postgres) Atomically(ctx context.Context, fn func(recon.Store) error) error {
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

// txStore implements recon.Store against one open transaction.
type txStore struct {
	tx *sql.Tx
}

func (s *txStore) HasEntriesForEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM transact WHERE source_event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking transact for event %s: %w", eventID, err)
	}
	return exists, nil
}

func (s *txStore) InsertStaging(ctx context.Context, e recon.StagingEntry) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO transact (
			trans_type, district, source_event_id, event_trunc,
			order_no, item_name, qty, material,
			thickness, width, length, prime_code, file_name,
			program_name, program_repeat,
			state, drawing, codegen, job, shipment, charge_ref,
			op1, op2, op3, mark, raw_mm,
			note1, note2, note3, note4
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15,
			$16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26,
			$27, $28, $29, $30
		)`,
		string(e.TransType), e.District, e.EventID, e.EventTrunc,
		nullStr(e.OrderNo), nullStr(e.ItemName), e.Qty, nullStr(e.Material),
		e.Thickness, e.Width, e.Length, nullStr(e.PrimeCode), nullStr(e.FileName),
		nullStr(e.ProgramName), e.ProgramRepeat,
		nullStr(e.State), nullStr(e.Drawing), nullStr(e.Codegen),
		nullStr(e.Job), nullStr(e.Shipment), nullStr(e.ChargeRef),
		nullStr(e.Op1), nullStr(e.Op2), nullStr(e.Op3),
		nullStr(e.Mark), nullStr(e.RawMaterialMaster),
		nullStr(e.Notes[0]), nullStr(e.Notes[1]), nullStr(e.Notes[2]), nullStr(e.Notes[3]),
	)
	if err != nil {
		return fmt.Errorf("inserting staging entry: %w", err)
	}
	return nil
}

func (s *txStore) DeleteStagedDemand(ctx context.Context, workOrder, partName, eventID string) (int64, error) {
	res, err := s.tx.ExecContext(ctx, `
		DELETE FROM transact
		WHERE order_no = $1 AND item_name = $2 AND source_event_id = $3
		AND trans_type IN ($4, $5)`,
		workOrder, partName, eventID,
		string(recon.DemandUpsert), string(recon.DemandDelete),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting staged demand: %w", err)
	}
	return res.RowsAffected()
}

func (s *txStore) DeleteStagedSheet(ctx context.Context, sheetName string) (int64, error) {
	res, err := s.tx.ExecContext(ctx, `
		DELETE FROM transact
		WHERE item_name = $1 AND trans_type IN ($2, $3)`,
		sheetName,
		string(recon.StandardStockUpsert), string(recon.RemnantUpsert),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting staged sheet entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *txStore) DemandLinesByPart(ctx context.Context, partName string) ([]recon.DemandLine, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT wo_number, part_name, qty_ordered, qty_completed, qty_in_process,
		       COALESCE(material, ''), COALESCE(source_event_id, '')
		FROM parts WHERE part_name = $1`,
		partName,
	)
	if err != nil {
		return nil, fmt.Errorf("querying demand lines: %w", err)
	}
	defer rows.Close()

	var lines []recon.DemandLine
	for rows.Next() {
		var l recon.DemandLine
		if err := rows.Scan(&l.WorkOrder, &l.PartName, &l.QtyOrdered,
			&l.QtyCompleted, &l.QtyInProcess, &l.Material, &l.EventTag); err != nil {
			return nil, fmt.Errorf("scanning demand line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *txStore) InventoryByMaterialMaster(ctx context.Context, materialMaster string) ([]recon.InventoryLine, error) {
	rows, err := s.tx.QueryContext(ctx, `
		SELECT sheet_name, sheet_type, qty, COALESCE(material, ''),
		       prime_code, COALESCE(source_event_id, '')
		FROM stock WHERE prime_code = $1`,
		materialMaster,
	)
	if err != nil {
		return nil, fmt.Errorf("querying inventory: %w", err)
	}
	defer rows.Close()

	var lines []recon.InventoryLine
	for rows.Next() {
		var l recon.InventoryLine
		if err := rows.Scan(&l.SheetName, &l.SheetType, &l.Qty,
			&l.Material, &l.MaterialMaster, &l.EventTag); err != nil {
			return nil, fmt.Errorf("scanning inventory line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *txStore) AllocatedDemandQty(ctx context.Context, partName, workOrder string) (int, error) {
	var total int
	err := s.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(qty), 0) FROM slab_allocations
		WHERE part_name = $1 AND wo_number = $2`,
		partName, workOrder,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing slab allocations: %w", err)
	}
	return total, nil
}

func (s *txStore) AllocationCountForSheet(ctx context.Context, sheetName string) (int, error) {
	var count int
	err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM slab_allocations WHERE sheet_name = $1`,
		sheetName,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting slab allocations: %w", err)
	}
	return count, nil
}

func (s *txStore) ProgramByArchivePacket(ctx context.Context, archivePacketID string) (*recon.Program, error) {
	var prog recon.Program
	err := s.tx.QueryRowContext(ctx, `
		SELECT program_name, repeat_id FROM programs
		WHERE archive_packet_id = $1
		ORDER BY repeat_id DESC LIMIT 1`,
		archivePacketID,
	).Scan(&prog.Name, &prog.RepeatID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving program: %w", err)
	}
	return &prog, nil
}

// nullStr maps the empty string to NULL so unused staging fields stay null.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// placeholders builds $n, $n+1, ... $n+count-1 for IN clauses.
func placeholders(start, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
