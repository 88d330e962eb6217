package feedback

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	apperrors "github.com/paddymills/nestbridge/pkg/errors"
)

// memArchive is an in-memory ArchiveStore for tests.
type memArchive struct {
	mu       sync.Mutex
	programs []ProgramRow
	parts    []PartRow
	aux      map[Category][]Op // remnant / sheet / wo rows, op only
}

func newMemArchive() *memArchive {
	return &memArchive{aux: make(map[Category][]Op)}
}

func (m *memArchive) PurgeArchive(ctx context.Context, cat Category, keep []Op) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keepSet := make(map[Op]bool, len(keep))
	for _, op := range keep {
		keepSet[op] = true
	}
	var purged int64
	switch cat {
	case CategoryProgram:
		var kept []ProgramRow
		for _, r := range m.programs {
			if keepSet[r.Op] {
				kept = append(kept, r)
			} else {
				purged++
			}
		}
		m.programs = kept
	case CategoryPart:
		var kept []PartRow
		for _, r := range m.parts {
			if keepSet[r.Op] {
				kept = append(kept, r)
			} else {
				purged++
			}
		}
		m.parts = kept
	default:
		var kept []Op
		for _, op := range m.aux[cat] {
			if keepSet[op] {
				kept = append(kept, op)
			} else {
				purged++
			}
		}
		m.aux[cat] = kept
	}
	return purged, nil
}

func (m *memArchive) ProgramRows(ctx context.Context) ([]ProgramRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProgramRow(nil), m.programs...), nil
}

func (m *memArchive) PartRows(ctx context.Context) ([]PartRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PartRow(nil), m.parts...), nil
}

func (m *memArchive) DeleteProgramRow(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.programs {
		if r.ID == id {
			m.programs = append(m.programs[:i], m.programs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memArchive) DeletePartRow(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.parts {
		if r.ID == id {
			m.parts = append(m.parts[:i], m.parts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func TestExportSweepsAndExtracts(t *testing.T) {
	store := newMemArchive()
	store.programs = []ProgramRow{
		{ID: 1, ArchivePacketID: "PKT-1", Op: OpPost, ProgramName: "NEST-1", MachineName: "Plasma1", CuttingTime: 12.5},
		{ID: 2, ArchivePacketID: "PKT-2", Op: OpDelete, ProgramName: "NEST-2"},
		{ID: 3, ArchivePacketID: "PKT-3", Op: OpUpdate, ProgramName: "NEST-3"}, // not a keep type
	}
	store.parts = []PartRow{
		{ID: 10, ArchivePacketID: "PKT-1", Op: OpPost, PartName: "P1", SheetName: "SH1", Qty: 4, Job: "J1", Shipment: "S1"},
		{ID: 11, ArchivePacketID: "PKT-1", Op: OpPost, PartName: "P2", Qty: 0},  // zero processed
		{ID: 12, ArchivePacketID: "PKT-1", Op: OpDelete, PartName: "P3", Qty: 2}, // swept
	}
	store.aux[CategoryRemnant] = []Op{OpPost, OpPost}
	store.aux[CategorySheet] = []Op{OpPost}
	store.aux[CategoryWorkOrder] = []Op{OpUpdate}

	svc := NewService(store, nil)
	export, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if len(export.Programs) != 2 {
		t.Fatalf("expected 2 program rows, got %d", len(export.Programs))
	}
	if export.Programs[0].Status != StatusCreated || export.Programs[1].Status != StatusDeleted {
		t.Errorf("unexpected statuses: %+v", export.Programs)
	}
	if len(export.Parts) != 1 || export.Parts[0].PartName != "P1" {
		t.Fatalf("expected only the positive-qty post row, got %+v", export.Parts)
	}
	if export.Parts[0].Job != "J1" || export.Parts[0].Shipment != "S1" {
		t.Errorf("part row missing joined context: %+v", export.Parts[0])
	}

	// Auxiliary categories are always discarded entirely.
	for _, cat := range []Category{CategoryRemnant, CategorySheet, CategoryWorkOrder} {
		if n := len(store.aux[cat]); n != 0 {
			t.Errorf("%s archive should be empty, has %d rows", cat, n)
		}
	}
}

func TestExportIsIdempotent(t *testing.T) {
	store := newMemArchive()
	store.programs = []ProgramRow{
		{ID: 1, ArchivePacketID: "PKT-1", Op: OpPost, ProgramName: "NEST-1"},
		{ID: 2, ArchivePacketID: "PKT-2", Op: OpUpdate},
	}
	svc := NewService(store, nil)

	first, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second export differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if len(store.programs) != 1 {
		t.Errorf("second sweep must delete nothing further, %d rows remain", len(store.programs))
	}
}

func TestDeleteFeedbackRemovesExactlyOneRow(t *testing.T) {
	store := newMemArchive()
	store.programs = []ProgramRow{
		{ID: 1, Op: OpPost, ProgramName: "NEST-1"},
		{ID: 2, Op: OpPost, ProgramName: "NEST-2"},
	}
	store.parts = []PartRow{
		{ID: 10, Op: OpPost, PartName: "P1", Qty: 1},
		{ID: 11, Op: OpPost, PartName: "P2", Qty: 1},
	}
	svc := NewService(store, nil)
	ctx := context.Background()

	if err := svc.DeleteProgramFeedback(ctx, 1); err != nil {
		t.Fatalf("DeleteProgramFeedback: %v", err)
	}
	if err := svc.DeletePartFeedback(ctx, 11); err != nil {
		t.Fatalf("DeletePartFeedback: %v", err)
	}

	export, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(export.Programs) != 1 || export.Programs[0].ID != 2 {
		t.Errorf("expected only program 2 to remain, got %+v", export.Programs)
	}
	if len(export.Parts) != 1 || export.Parts[0].ID != 10 {
		t.Errorf("expected only part 10 to remain, got %+v", export.Parts)
	}
}

func TestDeleteFeedbackUnknownID(t *testing.T) {
	svc := NewService(newMemArchive(), nil)
	if err := svc.DeleteProgramFeedback(context.Background(), 99); !errors.Is(err, apperrors.ErrFeedbackNotFound) {
		t.Errorf("program: got %v, want ErrFeedbackNotFound", err)
	}
	if err := svc.DeletePartFeedback(context.Background(), 99); !errors.Is(err, apperrors.ErrFeedbackNotFound) {
		t.Errorf("part: got %v, want ErrFeedbackNotFound", err)
	}
}
