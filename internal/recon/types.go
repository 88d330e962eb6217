// Package recon implements the reconciliation engine that mediates between
// the ERP system of record ("Source") and the nesting/cutting optimizer
// ("Target"). Each inbound Source event is turned into zero or more ordered
// staging entries in the shared transact log, which an external transfer
// process drains into Target at its own pace.
package recon

import (
	"net/http"
	"strings"

	apperrors "github.com/paddymills/nestbridge/pkg/errors"
)

// TransType is the SimTrans operation code carried by a staging entry.
type TransType string

const (
	// DemandUpsert adds or updates a work-order/part demand line.
	DemandUpsert TransType = "SN81"
	// DemandDelete removes a work-order/part demand line.
	DemandDelete TransType = "SN82"
	// StandardStockUpsert sets the available quantity of a stock sheet.
	// Quantity zero acts as removal.
	StandardStockUpsert TransType = "SN91A"
	// RemnantUpsert sets the available quantity of a remnant sheet and
	// carries its geometry file path.
	RemnantUpsert TransType = "SN97"
	// ProgramRevisionAccept instructs Target to accept an externally
	// approved program revision.
	ProgramRevisionAccept TransType = "SN70"
)

// SheetTypeRemnant is the inventory sheet type that routes an upsert through
// the remnant path instead of standard stock.
const SheetTypeRemnant = "Remnant"

// SourceEvent identifies one logical unit of work from Source. ID is the full
// event identifier and serves as the idempotency key. Multiple calls may share
// one ID and together form a single logical event.
type SourceEvent struct {
	System string
	ID     string
}

// Truncated returns the lowest 10 digits of the event ID. This form is kept
// for log correlation with Source only; collisions across distinct events are
// tolerated.
func (e SourceEvent) Truncated() string {
	if len(e.ID) <= 10 {
		return e.ID
	}
	return e.ID[len(e.ID)-10:]
}

// Validate checks the 3-character system code and the digit-only event ID of
// at most 20 digits.
func (e SourceEvent) Validate() error {
	if len(e.System) != 3 {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "system must be a 3-character code, got %q", e.System)
	}
	if e.ID == "" || len(e.ID) > 20 {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "event id must be 1-20 digits, got %q", e.ID)
	}
	for _, r := range e.ID {
		if r < '0' || r > '9' {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "event id must be numeric, got %q", e.ID)
		}
	}
	return nil
}

// DemandRequest is the payload of a demand push from Source.
type DemandRequest struct {
	WorkOrder string
	PartName  string
	Qty       int
	Material  string

	// optional descriptors, mirrored verbatim onto the staging entry
	State             string
	Drawing           string
	Codegen           string
	Job               string
	Shipment          string
	ChargeRef         string
	Op1               string
	Op2               string
	Op3               string
	Mark              string
	RawMaterialMaster string
}

// InventoryRequest is the payload of an inventory push from Source.
type InventoryRequest struct {
	SheetName      string
	SheetType      string
	Qty            int
	Material       string
	Thickness      float64
	Width          float64
	Length         float64
	MaterialMaster string
	Notes          [4]string
}

// DemandLine is Target's current state for one work-order/part demand row.
type DemandLine struct {
	WorkOrder    string
	PartName     string
	QtyOrdered   int
	QtyCompleted int
	QtyInProcess int
	Material     string
	EventTag     string // Source event that last touched this line
}

// Committed is the quantity Target has already acted on. A swept line with a
// zero committed quantity is removed outright; a non-zero one is corrected
// down to this value.
func (l DemandLine) Committed() int {
	return l.QtyCompleted + l.QtyInProcess
}

// InventoryLine is Target's current state for one stock or remnant sheet.
type InventoryLine struct {
	SheetName      string
	SheetType      string
	Qty            int
	Material       string
	MaterialMaster string
	EventTag       string
}

// LocalAllocation is a quantity already consumed by the local slab planning
// process. Demand allocations are keyed by (part, work order); inventory
// allocations reference a sheet name.
type LocalAllocation struct {
	PartName  string
	WorkOrder string
	SheetName string
	Qty       int
}

// Program is the Target-side program revision referenced by a program update.
type Program struct {
	Name     string
	RepeatID int
}

// StagingEntry is the unit written to the transact log. Fields not used by a
// given trans type stay zero and map to NULL columns.
type StagingEntry struct {
	ID         int64
	TransType  TransType
	District   int
	EventID    string // full Source event id, the idempotency key
	EventTrunc string // low 10 digits, log correlation only

	OrderNo   string
	ItemName  string
	Qty       int
	Material  string
	Thickness float64
	Width     float64
	Length    float64
	PrimeCode string
	FileName  string

	ProgramName   string
	ProgramRepeat int

	State             string
	Drawing           string
	Codegen           string
	Job               string
	Shipment          string
	ChargeRef         string
	Op1               string
	Op2               string
	Op3               string
	Mark              string
	RawMaterialMaster string
	Notes             [4]string
}

// deriveMark strips the job prefix from a part name. "1200055C-X1A" with job
// "1200055C" yields "X1A". Without a job, everything up to the first dash is
// treated as the job.
func deriveMark(partName, job string) string {
	if job != "" {
		return strings.TrimPrefix(partName, job+"-")
	}
	if i := strings.Index(partName, "-"); i >= 0 {
		return partName[i+1:]
	}
	return partName
}

// remnantPath substitutes the sheet name into a remnant geometry template.
func remnantPath(template, placeholder, sheetName string) string {
	return strings.Replace(template, placeholder, sheetName, 1)
}
