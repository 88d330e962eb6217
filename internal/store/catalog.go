package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paddymills/nestbridge/internal/recon"
	"github.com/paddymills/nestbridge/internal/viewer"
)

func (p *Postgres) Machines(ctx context.Context) ([]string, error) {
	rows, err := p.db.DB.QueryContext(ctx, `
		SELECT DISTINCT machine_name FROM programs
		WHERE machine_name IS NOT NULL ORDER BY machine_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying machines: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning machine name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ProgramsForMachine lists programs with repeats that have not yet produced a
// revision-accept staging entry. A repeat already staged back to Source is
// done from the operator's point of view.
func (p *Postgres) ProgramsForMachine(ctx context.Context, machine string) ([]viewer.ProgramSummary, error) {
	rows, err := p.db.DB.QueryContext(ctx, `
		SELECT program_name, COUNT(repeat_id), COALESCE(MAX(cutting_time), 0)
		FROM programs pr
		WHERE machine_name = $1
		AND NOT EXISTS (
			SELECT 1 FROM transact t
			WHERE t.trans_type = $2
			AND t.program_name = pr.program_name
			AND t.program_repeat = pr.repeat_id
		)
		GROUP BY program_name
		HAVING COUNT(repeat_id) > 0
		ORDER BY program_name`,
		machine, string(recon.ProgramRevisionAccept),
	)
	if err != nil {
		return nil, fmt.Errorf("querying programs for %s: %w", machine, err)
	}
	defer rows.Close()

	var out []viewer.ProgramSummary
	for rows.Next() {
		var s viewer.ProgramSummary
		if err := rows.Scan(&s.Program, &s.Repeats, &s.CuttingTime); err != nil {
			return nil, fmt.Errorf("scanning program summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) Batches(ctx context.Context) ([]viewer.Batch, error) {
	rows, err := p.db.DB.QueryContext(ctx, `
		SELECT batch_name, sheet_name, COALESCE(material, ''), qty
		FROM batches ORDER BY batch_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var out []viewer.Batch
	for rows.Next() {
		var b viewer.Batch
		if err := rows.Scan(&b.Name, &b.SheetName, &b.Material, &b.Qty); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) Program(ctx context.Context, name string) (*viewer.ProgramDetail, error) {
	var d viewer.ProgramDetail
	var machine, sheet sql.NullString
	err := p.db.DB.QueryRowContext(ctx, `
		SELECT program_name, MAX(machine_name), MAX(sheet_name),
		       COUNT(repeat_id), COALESCE(MAX(cutting_time), 0)
		FROM programs
		WHERE program_name = $1
		GROUP BY program_name`,
		name,
	).Scan(&d.Program, &machine, &sheet, &d.Repeats, &d.CuttingTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying program %s: %w", name, err)
	}
	d.MachineName = machine.String
	d.SheetName = sheet.String
	return &d, nil
}

func (p *Postgres) ProgramSheet(ctx context.Context, program string) (string, error) {
	var sheet sql.NullString
	err := p.db.DB.QueryRowContext(ctx, `
		SELECT sheet_name FROM programs
		WHERE program_name = $1
		ORDER BY repeat_id DESC LIMIT 1`,
		program,
	).Scan(&sheet)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying program sheet: %w", err)
	}
	return sheet.String, nil
}
