package recon

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/paddymills/nestbridge/pkg/errors"
)

func TestPushInventoryStandardStock(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)

	err := engine.PushInventory(context.Background(),
		SourceEvent{System: "PRD", ID: "1"},
		InventoryRequest{
			SheetName:      "SH1",
			SheetType:      "Standard",
			Qty:            5,
			Material:       "A36",
			Thickness:      0.25,
			Width:          48,
			Length:         96,
			MaterialMaster: "MM1",
		},
	)
	if err != nil {
		t.Fatalf("PushInventory: %v", err)
	}

	if len(store.entries) != 1 {
		t.Fatalf("expected exactly 1 staging entry, got %d", len(store.entries))
	}
	got := store.entries[0]
	if got.TransType != StandardStockUpsert {
		t.Errorf("trans type = %s, want %s", got.TransType, StandardStockUpsert)
	}
	if got.ItemName != "SH1" || got.Qty != 5 || got.PrimeCode != "MM1" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.FileName != "" {
		t.Errorf("standard stock must not carry a file name, got %q", got.FileName)
	}
}

func TestPushInventoryRemnantPath(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)

	err := engine.PushInventory(context.Background(),
		SourceEvent{System: "PRD", ID: "2"},
		InventoryRequest{
			SheetName:      "REM-42",
			SheetType:      "Remnant",
			Qty:            1,
			Material:       "A36",
			MaterialMaster: "MM1",
		},
	)
	if err != nil {
		t.Fatalf("PushInventory: %v", err)
	}

	remnants := store.entriesOfType(RemnantUpsert)
	if len(remnants) != 1 {
		t.Fatalf("expected 1 remnant upsert, got %d", len(remnants))
	}
	want := `\\fileserv\remnants\REM-42.dxf`
	if remnants[0].FileName != want {
		t.Errorf("file name = %q, want %q", remnants[0].FileName, want)
	}
}

func TestPushInventoryNetsByAllocationCount(t *testing.T) {
	tests := []struct {
		name   string
		qty    int
		allocs int
		wantN  int
		want   int
	}{
		{"no allocations", 5, 0, 1, 5},
		{"partially allocated", 5, 2, 1, 3},
		{"fully allocated", 2, 2, 0, 0},
		{"over-allocated", 1, 3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			for i := 0; i < tt.allocs; i++ {
				store.allocations = append(store.allocations, LocalAllocation{SheetName: "SH1"})
			}
			engine := newTestEngine(store)

			err := engine.PushInventory(context.Background(),
				SourceEvent{System: "PRD", ID: "3"},
				InventoryRequest{SheetName: "SH1", SheetType: "Standard", Qty: tt.qty, MaterialMaster: "MM1"},
			)
			if err != nil {
				t.Fatalf("PushInventory: %v", err)
			}

			upserts := store.entriesOfType(StandardStockUpsert)
			if len(upserts) != tt.wantN {
				t.Fatalf("expected %d upserts, got %d", tt.wantN, len(upserts))
			}
			if tt.wantN == 1 && upserts[0].Qty != tt.want {
				t.Errorf("qty = %d, want %d", upserts[0].Qty, tt.want)
			}
		})
	}
}

func TestInventorySweepRemovesOtherSheets(t *testing.T) {
	store := newMemStore()
	store.inventory = []InventoryLine{
		{SheetName: "SH-OLD", MaterialMaster: "MM1", Qty: 2, Material: "A36"},
		{SheetName: "SH-OTHER-MM", MaterialMaster: "MM2", Qty: 2},
		{SheetName: "SH-SAME-EVENT", MaterialMaster: "MM1", EventTag: "4"},
	}
	engine := newTestEngine(store)

	err := engine.PushInventory(context.Background(),
		SourceEvent{System: "PRD", ID: "4"},
		InventoryRequest{SheetName: "SH-NEW", SheetType: "Standard", Qty: 3, MaterialMaster: "MM1"},
	)
	if err != nil {
		t.Fatalf("PushInventory: %v", err)
	}

	var zeroed []string
	for _, e := range store.entriesOfType(StandardStockUpsert) {
		if e.Qty == 0 {
			zeroed = append(zeroed, e.ItemName)
		}
	}
	if len(zeroed) != 1 || zeroed[0] != "SH-OLD" {
		t.Errorf("sweep zeroed %v, want only SH-OLD", zeroed)
	}
}

func TestInventorySweepIdempotentAcrossRedelivery(t *testing.T) {
	store := newMemStore()
	store.inventory = []InventoryLine{
		{SheetName: "SH-OLD", MaterialMaster: "MM1", Qty: 2},
	}
	engine := newTestEngine(store)
	event := SourceEvent{System: "PRD", ID: "5"}
	req := InventoryRequest{SheetName: "SH-NEW", SheetType: "Standard", Qty: 3, MaterialMaster: "MM1"}

	for i := 0; i < 2; i++ {
		if err := engine.PushInventory(context.Background(), event, req); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	var zero, nonzero int
	for _, e := range store.entriesOfType(StandardStockUpsert) {
		if e.Qty == 0 {
			zero++
		} else {
			nonzero++
		}
	}
	if zero != 1 {
		t.Errorf("expected 1 sweep removal total across redeliveries, got %d", zero)
	}
	if nonzero != 1 {
		t.Errorf("expected 1 upsert, got %d", nonzero)
	}
}

func TestPushInventoryRejectsMissingSheet(t *testing.T) {
	engine := newTestEngine(newMemStore())
	err := engine.PushInventory(context.Background(),
		SourceEvent{System: "PRD", ID: "6"},
		InventoryRequest{SheetType: "Standard", Qty: 1},
	)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}
