package recon

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/paddymills/nestbridge/pkg/errors"
)

// PushDemand reconciles one work-order/part demand line from Source. The
// whole operation runs in a single transaction: sweep, net against the slab
// allocation ledger, delete stale staged entries, insert the authoritative
// upsert. After the entries drain, Target sees a single coherent state for
// (workOrder, partName) -- never a transient delete/upsert oscillation.
func (e *Engine) PushDemand(ctx context.Context, event SourceEvent, req DemandRequest) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if req.WorkOrder == "" || req.PartName == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "work order and part name are required")
	}

	route, err := e.routes.Resolve(event.System)
	if err != nil {
		return err
	}

	mark := req.Mark
	if mark == "" {
		mark = deriveMark(req.PartName, req.Job)
	}

	return e.store.Atomically(ctx, func(s Store) error {
		if _, err := e.sweepDemand(ctx, s, event, route, req.PartName); err != nil {
			return err
		}

		allocated, err := s.AllocatedDemandQty(ctx, req.PartName, req.WorkOrder)
		if err != nil {
			return fmt.Errorf("netting slab allocations: %w", err)
		}
		net := req.Qty - allocated
		if net <= 0 {
			// The sweep already guarantees removal; a duplicate delete
			// would oscillate against the sweep's own entry.
			e.countNettedToZero("demand")
			e.logger.Info("demand netted to zero",
				"event", event.Truncated(),
				"work_order", req.WorkOrder,
				"part", req.PartName,
				"qty", req.Qty,
				"allocated", allocated,
			)
			return nil
		}

		deleted, err := s.DeleteStagedDemand(ctx, req.WorkOrder, req.PartName, event.ID)
		if err != nil {
			return fmt.Errorf("deleting stale staged demand: %w", err)
		}
		e.countStagingDeletes(deleted)

		entry := StagingEntry{
			TransType:         DemandUpsert,
			District:          route.District,
			EventID:           event.ID,
			EventTrunc:        event.Truncated(),
			OrderNo:           req.WorkOrder,
			ItemName:          req.PartName,
			Qty:               net,
			Material:          req.Material,
			State:             req.State,
			Drawing:           req.Drawing,
			Codegen:           req.Codegen,
			Job:               req.Job,
			Shipment:          req.Shipment,
			ChargeRef:         req.ChargeRef,
			Op1:               req.Op1,
			Op2:               req.Op2,
			Op3:               req.Op3,
			Mark:              mark,
			RawMaterialMaster: req.RawMaterialMaster,
		}
		if err := s.InsertStaging(ctx, entry); err != nil {
			return fmt.Errorf("staging demand upsert: %w", err)
		}
		e.countEntry(DemandUpsert)
		e.logger.Info("demand staged",
			"event", event.Truncated(),
			"work_order", req.WorkOrder,
			"part", req.PartName,
			"qty", net,
			"stale_deleted", deleted,
		)
		return nil
	})
}
