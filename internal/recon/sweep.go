package recon

import (
	"context"
	"fmt"

	"github.com/paddymills/nestbridge/pkg/config"
)

// The sweep is a preemptive "assume removed unless proven present" pass that
// runs at most once per event id. The gate is the transact log itself: the
// sweep executes iff no staging entry currently carries the event's full id.
// Rows whose own last-seen event tag equals the current id are skipped so a
// push retried mid-flight cannot delete its own work.

// sweepDemand emits one corrective entry per demand line matching partName:
// a delete when Target has nothing committed, otherwise an update down to the
// committed quantity. Reports whether the sweep executed.
func (e *Engine) sweepDemand(ctx context.Context, s Store, event SourceEvent, route config.SystemRoute, partName string) (bool, error) {
	seen, err := s.HasEntriesForEvent(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("checking sweep gate: %w", err)
	}
	if seen {
		e.countSweep("demand", "skipped")
		return false, nil
	}

	lines, err := s.DemandLinesByPart(ctx, partName)
	if err != nil {
		return false, fmt.Errorf("loading demand lines for %s: %w", partName, err)
	}
	for _, line := range lines {
		if line.EventTag == event.ID {
			continue
		}
		entry := StagingEntry{
			District:   route.District,
			EventID:    event.ID,
			EventTrunc: event.Truncated(),
			OrderNo:    line.WorkOrder,
			ItemName:   line.PartName,
			Material:   line.Material,
		}
		if committed := line.Committed(); committed == 0 {
			entry.TransType = DemandDelete
		} else {
			entry.TransType = DemandUpsert
			entry.Qty = committed
		}
		if err := s.InsertStaging(ctx, entry); err != nil {
			return false, fmt.Errorf("staging demand sweep entry: %w", err)
		}
		e.countEntry(entry.TransType)
	}
	e.countSweep("demand", "executed")
	e.logger.Debug("demand sweep executed",
		"event", event.Truncated(),
		"part", partName,
		"lines", len(lines),
	)
	return true, nil
}

// sweepInventory emits one zero-quantity stock entry per sheet of the
// material master, removing everything the rest of this event does not
// re-assert. Reports whether the sweep executed.
func (e *Engine) sweepInventory(ctx context.Context, s Store, event SourceEvent, route config.SystemRoute, materialMaster string) (bool, error) {
	seen, err := s.HasEntriesForEvent(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("checking sweep gate: %w", err)
	}
	if seen {
		e.countSweep("inventory", "skipped")
		return false, nil
	}

	lines, err := s.InventoryByMaterialMaster(ctx, materialMaster)
	if err != nil {
		return false, fmt.Errorf("loading inventory for %s: %w", materialMaster, err)
	}
	for _, line := range lines {
		if line.EventTag == event.ID {
			continue
		}
		entry := StagingEntry{
			TransType:  StandardStockUpsert,
			District:   route.District,
			EventID:    event.ID,
			EventTrunc: event.Truncated(),
			ItemName:   line.SheetName,
			Qty:        0,
			Material:   line.Material,
			PrimeCode:  line.MaterialMaster,
		}
		if err := s.InsertStaging(ctx, entry); err != nil {
			return false, fmt.Errorf("staging inventory sweep entry: %w", err)
		}
		e.countEntry(entry.TransType)
	}
	e.countSweep("inventory", "executed")
	e.logger.Debug("inventory sweep executed",
		"event", event.Truncated(),
		"material_master", materialMaster,
		"lines", len(lines),
	)
	return true, nil
}
