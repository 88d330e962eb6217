package server

import (
	"fmt"
	"strings"
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

func validateEvent(errs map[string]string, system, eventID string) {
	if len(system) != 3 {
		errs["system"] = "system must be a 3-character code"
	}
	if eventID == "" || len(eventID) > 20 {
		errs["event_id"] = "event id must be 1-20 digits"
	} else {
		for _, r := range eventID {
			if r < '0' || r > '9' {
				errs["event_id"] = "event id must be numeric"
				break
			}
		}
	}
}

func validateDemandRequest(req *demandRequest) error {
	errs := make(map[string]string)
	validateEvent(errs, req.System, req.EventID)
	if strings.TrimSpace(req.WorkOrder) == "" {
		errs["work_order"] = "work order is required"
	}
	if strings.TrimSpace(req.PartName) == "" {
		errs["part_name"] = "part name is required"
	}
	if req.Qty < 0 {
		errs["qty"] = "qty must not be negative"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateInventoryRequest(req *inventoryRequest) error {
	errs := make(map[string]string)
	validateEvent(errs, req.System, req.EventID)
	if strings.TrimSpace(req.SheetName) == "" {
		errs["sheet_name"] = "sheet name is required"
	}
	if strings.TrimSpace(req.MaterialMaster) == "" {
		errs["material_master"] = "material master is required"
	}
	if req.Qty < 0 {
		errs["qty"] = "qty must not be negative"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateProgramUpdateRequest(req *programUpdateRequest) error {
	errs := make(map[string]string)
	validateEvent(errs, req.System, req.EventID)
	if strings.TrimSpace(req.ArchivePacketID) == "" {
		errs["archive_packet_id"] = "archive packet id is required"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
