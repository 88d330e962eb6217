package recon

import "context"

// Store is the engine's view of the shared nesting database: the transact
// staging log, Target's current demand and inventory state, the local slab
// allocation ledger, and the program catalog.
type Store interface {
	// HasEntriesForEvent reports whether any staging entry already carries
	// the full Source event id. The transact log doubles as the idempotency
	// ledger; no separate dedup table exists.
	HasEntriesForEvent(ctx context.Context, eventID string) (bool, error)

	// InsertStaging appends one entry to the transact log.
	InsertStaging(ctx context.Context, entry StagingEntry) error

	// DeleteStagedDemand removes not-yet-drained demand entries queued for
	// the given work order, part, and event. Returns the number removed.
	DeleteStagedDemand(ctx context.Context, workOrder, partName, eventID string) (int64, error)

	// DeleteStagedSheet removes not-yet-drained inventory entries queued
	// for the given sheet. Returns the number removed.
	DeleteStagedSheet(ctx context.Context, sheetName string) (int64, error)

	// DemandLinesByPart returns Target's current demand lines for a part.
	DemandLinesByPart(ctx context.Context, partName string) ([]DemandLine, error)

	// InventoryByMaterialMaster returns Target's current sheets for a
	// material master.
	InventoryByMaterialMaster(ctx context.Context, materialMaster string) ([]InventoryLine, error)

	// AllocatedDemandQty sums slab allocation quantities for a part on a
	// work order.
	AllocatedDemandQty(ctx context.Context, partName, workOrder string) (int, error)

	// AllocationCountForSheet counts slab allocations referencing a sheet.
	// Each allocation consumes one sheet.
	AllocationCountForSheet(ctx context.Context, sheetName string) (int, error)

	// ProgramByArchivePacket resolves the program name and repeat id
	// currently associated with an archive packet. Returns nil when no
	// program matches.
	ProgramByArchivePacket(ctx context.Context, archivePacketID string) (*Program, error)
}

// TxStore runs a function against a Store inside a single transaction. Every
// push operation executes as one atomic read-modify-write: a crash can never
// leave a sweep's removal entries without the corrective upsert.
type TxStore interface {
	Atomically(ctx context.Context, fn func(Store) error) error
}
