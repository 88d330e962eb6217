package recon

import (
	"context"
	"sync"
)

// memStore is an in-memory Store/TxStore used by the engine tests. Atomically
// serialises callers behind one mutex, mirroring the per-operation
// transaction of the Postgres implementation.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	entries     []StagingEntry
	demand      []DemandLine
	inventory   []InventoryLine
	allocations []LocalAllocation
	programs    map[string]Program
}

func newMemStore() *memStore {
	return &memStore{programs: make(map[string]Program)}
}

func (m *memStore) Atomically(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

func (m *memStore) HasEntriesForEvent(ctx context.Context, eventID string) (bool, error) {
	for _, e := range m.entries {
		if e.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertStaging(ctx context.Context, entry StagingEntry) error {
	m.nextID++
	entry.ID = m.nextID
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) DeleteStagedDemand(ctx context.Context, workOrder, partName, eventID string) (int64, error) {
	var kept []StagingEntry
	var deleted int64
	for _, e := range m.entries {
		if e.OrderNo == workOrder && e.ItemName == partName && e.EventID == eventID &&
			(e.TransType == DemandUpsert || e.TransType == DemandDelete) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return deleted, nil
}

func (m *memStore) DeleteStagedSheet(ctx context.Context, sheetName string) (int64, error) {
	var kept []StagingEntry
	var deleted int64
	for _, e := range m.entries {
		if e.ItemName == sheetName &&
			(e.TransType == StandardStockUpsert || e.TransType == RemnantUpsert) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return deleted, nil
}

func (m *memStore) DemandLinesByPart(ctx context.Context, partName string) ([]DemandLine, error) {
	var out []DemandLine
	for _, l := range m.demand {
		if l.PartName == partName {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) InventoryByMaterialMaster(ctx context.Context, materialMaster string) ([]InventoryLine, error) {
	var out []InventoryLine
	for _, l := range m.inventory {
		if l.MaterialMaster == materialMaster {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) AllocatedDemandQty(ctx context.Context, partName, workOrder string) (int, error) {
	total := 0
	for _, a := range m.allocations {
		if a.PartName == partName && a.WorkOrder == workOrder {
			total += a.Qty
		}
	}
	return total, nil
}

func (m *memStore) AllocationCountForSheet(ctx context.Context, sheetName string) (int, error) {
	count := 0
	for _, a := range m.allocations {
		if a.SheetName == sheetName {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ProgramByArchivePacket(ctx context.Context, archivePacketID string) (*Program, error) {
	if prog, ok := m.programs[archivePacketID]; ok {
		return &prog, nil
	}
	return nil, nil
}

// entriesOfType returns staged entries filtered by trans type.
func (m *memStore) entriesOfType(t TransType) []StagingEntry {
	var out []StagingEntry
	for _, e := range m.entries {
		if e.TransType == t {
			out = append(out, e)
		}
	}
	return out
}
