package recon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/paddymills/nestbridge/pkg/config"
	apperrors "github.com/paddymills/nestbridge/pkg/errors"
)

// PushInventory reconciles one stock or remnant sheet from Source. Netting
// subtracts the count of slab allocations referencing the sheet -- each
// allocation consumes one sheet. Remnant upserts carry a geometry file path
// derived from the system's remnant template.
func (e *Engine) PushInventory(ctx context.Context, event SourceEvent, req InventoryRequest) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if req.SheetName == "" || req.MaterialMaster == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "sheet name and material master are required")
	}

	route, err := e.routes.Resolve(event.System)
	if err != nil {
		return err
	}

	return e.store.Atomically(ctx, func(s Store) error {
		if _, err := e.sweepInventory(ctx, s, event, route, req.MaterialMaster); err != nil {
			return err
		}

		allocated, err := s.AllocationCountForSheet(ctx, req.SheetName)
		if err != nil {
			return fmt.Errorf("counting slab allocations: %w", err)
		}
		net := req.Qty - allocated
		if net <= 0 {
			e.countNettedToZero("inventory")
			e.logger.Info("inventory netted to zero",
				"event", event.Truncated(),
				"sheet", req.SheetName,
				"qty", req.Qty,
				"allocated", allocated,
			)
			return nil
		}

		deleted, err := s.DeleteStagedSheet(ctx, req.SheetName)
		if err != nil {
			return fmt.Errorf("deleting stale staged sheet entries: %w", err)
		}
		e.countStagingDeletes(deleted)

		entry := StagingEntry{
			TransType:  StandardStockUpsert,
			District:   route.District,
			EventID:    event.ID,
			EventTrunc: event.Truncated(),
			ItemName:   req.SheetName,
			Qty:        net,
			Material:   req.Material,
			Thickness:  req.Thickness,
			Width:      req.Width,
			Length:     req.Length,
			PrimeCode:  req.MaterialMaster,
			Notes:      req.Notes,
		}
		if req.SheetType == SheetTypeRemnant {
			entry.TransType = RemnantUpsert
			entry.FileName = remnantPath(route.RemnantTemplate, config.RemnantPlaceholder, req.SheetName)
		}
		if err := s.InsertStaging(ctx, entry); err != nil {
			return fmt.Errorf("staging inventory upsert: %w", err)
		}
		e.countEntry(entry.TransType)
		e.logger.Info("inventory staged",
			"event", event.Truncated(),
			"sheet", req.SheetName,
			"type", req.SheetType,
			"qty", net,
			"stale_deleted", deleted,
		)
		return nil
	})
}
