package recon

import (
	"context"
	"errors"
	"testing"

	"github.com/paddymills/nestbridge/pkg/config"
	apperrors "github.com/paddymills/nestbridge/pkg/errors"
)

func testResolver() Resolver {
	return NewConfigResolver(&config.Config{
		Systems: map[string]config.SystemRoute{
			"PRD": {District: 1, RemnantTemplate: `\\fileserv\remnants\{}.dxf`},
		},
	})
}

func newTestEngine(store *memStore) *Engine {
	return New(store, testResolver(), nil)
}

func TestPushDemandStagesSingleUpsert(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)
	event := SourceEvent{System: "PRD", ID: "12345678901234567890"}

	err := engine.PushDemand(context.Background(), event, DemandRequest{
		WorkOrder: "WO-1",
		PartName:  "1200055C-X1A",
		Qty:       10,
		Material:  "A36",
		Job:       "1200055C",
	})
	if err != nil {
		t.Fatalf("PushDemand: %v", err)
	}

	upserts := store.entriesOfType(DemandUpsert)
	if len(upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(upserts))
	}
	got := upserts[0]
	if got.OrderNo != "WO-1" || got.ItemName != "1200055C-X1A" || got.Qty != 10 {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Mark != "X1A" {
		t.Errorf("mark = %q, want X1A", got.Mark)
	}
	if got.EventID != event.ID {
		t.Errorf("entry carries event id %q, want full id %q", got.EventID, event.ID)
	}
	if got.EventTrunc != "1234567890" {
		t.Errorf("entry trunc = %q, want lowest 10 digits", got.EventTrunc)
	}
}

func TestPushDemandRedeliveryKeepsSingleEntry(t *testing.T) {
	store := newMemStore()
	// Target already tracks this part on the same work order.
	store.demand = []DemandLine{
		{WorkOrder: "WO-1", PartName: "P1", QtyCompleted: 2, QtyInProcess: 1, Material: "A36"},
	}
	engine := newTestEngine(store)
	event := SourceEvent{System: "PRD", ID: "100"}
	req := DemandRequest{WorkOrder: "WO-1", PartName: "P1", Qty: 8, Material: "A36"}

	for i := 0; i < 2; i++ {
		if err := engine.PushDemand(context.Background(), event, req); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if got := store.entriesOfType(DemandUpsert); len(got) != 1 {
		t.Fatalf("expected exactly 1 upsert after redelivery, got %d", len(got))
	} else if got[0].Qty != 8 {
		t.Errorf("qty = %d, want 8", got[0].Qty)
	}
	if got := store.entriesOfType(DemandDelete); len(got) != 0 {
		t.Errorf("expected no stray deletes, got %d", len(got))
	}
}

func TestPushDemandNettingIsLinear(t *testing.T) {
	tests := []struct {
		name    string
		qty     int
		allocs  []LocalAllocation
		wantQty int
		wantN   int
	}{
		{
			name: "two allocations subtract",
			qty:  10,
			allocs: []LocalAllocation{
				{PartName: "P1", WorkOrder: "WO-1", Qty: 3},
				{PartName: "P1", WorkOrder: "WO-1", Qty: 4},
			},
			wantQty: 3,
			wantN:   1,
		},
		{
			name: "fully allocated nets to zero",
			qty:  7,
			allocs: []LocalAllocation{
				{PartName: "P1", WorkOrder: "WO-1", Qty: 7},
			},
			wantN: 0,
		},
		{
			name: "other work order does not net",
			qty:  5,
			allocs: []LocalAllocation{
				{PartName: "P1", WorkOrder: "WO-2", Qty: 5},
			},
			wantQty: 5,
			wantN:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.allocations = tt.allocs
			engine := newTestEngine(store)

			err := engine.PushDemand(context.Background(),
				SourceEvent{System: "PRD", ID: "200"},
				DemandRequest{WorkOrder: "WO-1", PartName: "P1", Qty: tt.qty},
			)
			if err != nil {
				t.Fatalf("PushDemand: %v", err)
			}

			upserts := store.entriesOfType(DemandUpsert)
			if len(upserts) != tt.wantN {
				t.Fatalf("expected %d upserts, got %d", tt.wantN, len(upserts))
			}
			if tt.wantN == 1 && upserts[0].Qty != tt.wantQty {
				t.Errorf("qty = %d, want %d", upserts[0].Qty, tt.wantQty)
			}
			// Netting to zero must not write a duplicate delete either.
			if tt.wantN == 0 && len(store.entries) != 0 {
				t.Errorf("expected empty staging log, got %d entries", len(store.entries))
			}
		})
	}
}

func TestDemandSweepRunsOncePerEvent(t *testing.T) {
	store := newMemStore()
	// A stale line on another work order: nothing committed, so the sweep
	// should remove it. It survives the stale-entry cleanup because the
	// push targets a different work order.
	store.demand = []DemandLine{
		{WorkOrder: "WO-OLD", PartName: "P1", QtyCompleted: 0, QtyInProcess: 0},
	}
	engine := newTestEngine(store)
	event := SourceEvent{System: "PRD", ID: "300"}
	req := DemandRequest{WorkOrder: "WO-NEW", PartName: "P1", Qty: 4}

	for i := 0; i < 2; i++ {
		if err := engine.PushDemand(context.Background(), event, req); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if got := store.entriesOfType(DemandDelete); len(got) != 1 {
		t.Fatalf("expected exactly 1 removal round, got %d deletes", len(got))
	} else if got[0].OrderNo != "WO-OLD" {
		t.Errorf("delete targets %q, want WO-OLD", got[0].OrderNo)
	}
	if got := store.entriesOfType(DemandUpsert); len(got) != 1 {
		t.Errorf("expected 1 upsert, got %d", len(got))
	}
}

func TestDemandSweepCorrectsDriftToCommitted(t *testing.T) {
	store := newMemStore()
	store.demand = []DemandLine{
		{WorkOrder: "WO-OLD", PartName: "P1", QtyCompleted: 2, QtyInProcess: 3, Material: "A36"},
	}
	engine := newTestEngine(store)

	err := engine.PushDemand(context.Background(),
		SourceEvent{System: "PRD", ID: "400"},
		DemandRequest{WorkOrder: "WO-NEW", PartName: "P1", Qty: 6},
	)
	if err != nil {
		t.Fatalf("PushDemand: %v", err)
	}

	upserts := store.entriesOfType(DemandUpsert)
	if len(upserts) != 2 {
		t.Fatalf("expected sweep correction + push upsert, got %d", len(upserts))
	}
	var sweepQty int
	for _, e := range upserts {
		if e.OrderNo == "WO-OLD" {
			sweepQty = e.Qty
		}
	}
	if sweepQty != 5 {
		t.Errorf("sweep corrected to %d, want committed quantity 5", sweepQty)
	}
}

func TestDemandSweepSkipsOwnEventTag(t *testing.T) {
	store := newMemStore()
	store.demand = []DemandLine{
		{WorkOrder: "WO-1", PartName: "P1", EventTag: "500"},
	}
	engine := newTestEngine(store)

	err := engine.PushDemand(context.Background(),
		SourceEvent{System: "PRD", ID: "500"},
		DemandRequest{WorkOrder: "WO-1", PartName: "P1", Qty: 1},
	)
	if err != nil {
		t.Fatalf("PushDemand: %v", err)
	}
	if got := store.entriesOfType(DemandDelete); len(got) != 0 {
		t.Errorf("sweep must not delete rows tagged with the current event, got %d deletes", len(got))
	}
}

func TestPushDemandRejectsBadInput(t *testing.T) {
	engine := newTestEngine(newMemStore())
	ctx := context.Background()

	tests := []struct {
		name  string
		event SourceEvent
		req   DemandRequest
	}{
		{"bad system", SourceEvent{System: "TOOLONG", ID: "1"}, DemandRequest{WorkOrder: "W", PartName: "P"}},
		{"non-numeric event", SourceEvent{System: "PRD", ID: "12x4"}, DemandRequest{WorkOrder: "W", PartName: "P"}},
		{"oversize event", SourceEvent{System: "PRD", ID: "123456789012345678901"}, DemandRequest{WorkOrder: "W", PartName: "P"}},
		{"missing part", SourceEvent{System: "PRD", ID: "1"}, DemandRequest{WorkOrder: "W"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.PushDemand(ctx, tt.event, tt.req)
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPushDemandUnknownSystem(t *testing.T) {
	engine := newTestEngine(newMemStore())
	err := engine.PushDemand(context.Background(),
		SourceEvent{System: "XXX", ID: "1"},
		DemandRequest{WorkOrder: "W", PartName: "P", Qty: 1},
	)
	if !errors.Is(err, apperrors.ErrSystemNotConfigured) {
		t.Errorf("got %v, want ErrSystemNotConfigured", err)
	}
}

func TestDeriveMark(t *testing.T) {
	tests := []struct {
		part, job, want string
	}{
		{"1200055C-X1A", "1200055C", "X1A"},
		{"1200055C-X1A", "", "X1A"},
		{"PLAIN", "", "PLAIN"},
		{"1200055C-X1A", "OTHER", "1200055C-X1A"},
	}
	for _, tt := range tests {
		if got := deriveMark(tt.part, tt.job); got != tt.want {
			t.Errorf("deriveMark(%q, %q) = %q, want %q", tt.part, tt.job, got, tt.want)
		}
	}
}
