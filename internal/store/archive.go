package store

import (
	"context"
	"fmt"

	"github.com/paddymills/nestbridge/internal/feedback"
)

// archiveTables maps feedback categories to their table names.
var archiveTables = map[feedback.Category]string{
	feedback.CategoryProgram:   "program_archive",
	feedback.CategoryPart:      "pip_archive",
	feedback.CategoryRemnant:   "remnant_archive",
	feedback.CategorySheet:     "sheet_archive",
	feedback.CategoryWorkOrder: "wo_archive",
}

func (p *Postgres) PurgeArchive(ctx context.Context, cat feedback.Category, keep []feedback.Op) (int64, error) {
	table, ok := archiveTables[cat]
	if !ok {
		return 0, fmt.Errorf("unknown archive category %q", cat)
	}

	query := fmt.Sprintf(`DELETE FROM %s`, table)
	args := make([]any, 0, len(keep))
	if len(keep) > 0 {
		query += fmt.Sprintf(` WHERE op NOT IN (%s)`, placeholders(1, len(keep)))
		for _, op := range keep {
			args = append(args, string(op))
		}
	}

	res, err := p.db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purging %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (p *Postgres) ProgramRows(ctx context.Context) ([]feedback.ProgramRow, error) {
	rows, err := p.db.DB.QueryContext(ctx, `
		SELECT id, archive_packet_id, op,
		       COALESCE(program_name, ''), COALESCE(machine_name, ''),
		       COALESCE(cutting_time, 0)
		FROM program_archive ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying program archive: %w", err)
	}
	defer rows.Close()

	var out []feedback.ProgramRow
	for rows.Next() {
		var r feedback.ProgramRow
		var op string
		if err := rows.Scan(&r.ID, &r.ArchivePacketID, &op,
			&r.ProgramName, &r.MachineName, &r.CuttingTime); err != nil {
			return nil, fmt.Errorf("scanning program archive row: %w", err)
		}
		r.Op = feedback.Op(op)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) PartRows(ctx context.Context) ([]feedback.PartRow, error) {
	rows, err := p.db.DB.QueryContext(ctx, `
		SELECT a.id, a.archive_packet_id, a.op,
		       COALESCE(a.sheet_name, ''), COALESCE(a.part_name, ''), a.qty,
		       COALESCE(pt.job, ''), COALESCE(pt.shipment, ''),
		       COALESCE(a.true_area, 0), COALESCE(a.nested_area, 0)
		FROM pip_archive a
		LEFT JOIN parts pt
		  ON pt.part_name = a.part_name AND pt.wo_number = a.wo_number
		ORDER BY a.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying pip archive: %w", err)
	}
	defer rows.Close()

	var out []feedback.PartRow
	for rows.Next() {
		var r feedback.PartRow
		var op string
		if err := rows.Scan(&r.ID, &r.ArchivePacketID, &op,
			&r.SheetName, &r.PartName, &r.Qty,
			&r.Job, &r.Shipment, &r.TrueArea, &r.NestedArea); err != nil {
			return nil, fmt.Errorf("scanning pip archive row: %w", err)
		}
		r.Op = feedback.Op(op)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteProgramRow(ctx context.Context, id int64) (bool, error) {
	res, err := p.db.DB.ExecContext(ctx, `DELETE FROM program_archive WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting program archive row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (p *Postgres) DeletePartRow(ctx context.Context, id int64) (bool, error) {
	res, err := p.db.DB.ExecContext(ctx, `DELETE FROM pip_archive WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting pip archive row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
