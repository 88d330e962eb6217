// Package server wires the inbound HTTP surface: the Source push operations,
// the feedback read/ack endpoints, and the read-only viewer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/paddymills/nestbridge/internal/feedback"
	"github.com/paddymills/nestbridge/internal/recon"
	"github.com/paddymills/nestbridge/internal/viewer"
	apperrors "github.com/paddymills/nestbridge/pkg/errors"
	"github.com/paddymills/nestbridge/pkg/logger"
)

type PushEngine interface {
	PushDemand(ctx context.Context, event recon.SourceEvent, req recon.DemandRequest) error
	PushInventory(ctx context.Context, event recon.SourceEvent, req recon.InventoryRequest) error
	PushProgramUpdate(ctx context.Context, event recon.SourceEvent, archivePacketID string) error
}

type FeedbackService interface {
	Export(ctx context.Context) (*feedback.Export, error)
	DeleteProgramFeedback(ctx context.Context, id int64) error
	DeletePartFeedback(ctx context.Context, id int64) error
}

type ViewerService interface {
	Machines(ctx context.Context) ([]string, error)
	ProgramsForMachine(ctx context.Context, machine string) ([]viewer.ProgramSummary, error)
	Batches(ctx context.Context) ([]viewer.Batch, error)
	Program(ctx context.Context, name string) (*viewer.ProgramDetail, error)
	BatchesForProgram(ctx context.Context, program string) ([]viewer.Batch, error)
}

type Handler struct {
	engine   PushEngine
	feedback FeedbackService
	viewer   ViewerService
	logger   *slog.Logger
}

func New(engine PushEngine, fb FeedbackService, vw ViewerService) *Handler {
	return &Handler{
		engine:   engine,
		feedback: fb,
		viewer:   vw,
		logger:   slog.Default().With("component", "http-handler"),
	}
}

// Routes registers every route on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/demand", h.PushDemand)
	mux.HandleFunc("POST /api/v1/inventory", h.PushInventory)
	mux.HandleFunc("POST /api/v1/program-update", h.PushProgramUpdate)

	mux.HandleFunc("GET /api/v1/feedback/programs", h.ListProgramFeedback)
	mux.HandleFunc("GET /api/v1/feedback/parts", h.ListPartFeedback)
	mux.HandleFunc("DELETE /api/v1/feedback/programs/{id}", h.DeleteProgramFeedback)
	mux.HandleFunc("DELETE /api/v1/feedback/parts/{id}", h.DeletePartFeedback)

	mux.HandleFunc("GET /api/v1/machines", h.Machines)
	mux.HandleFunc("GET /api/v1/machines/{machine}/programs", h.MachinePrograms)
	mux.HandleFunc("GET /api/v1/batches", h.Batches)
	mux.HandleFunc("GET /api/v1/programs/{program}", h.Program)
	mux.HandleFunc("GET /api/v1/programs/{program}/batches", h.ProgramBatches)

	return mux
}

type demandRequest struct {
	System    string `json:"system"`
	EventID   string `json:"event_id"`
	WorkOrder string `json:"work_order"`
	PartName  string `json:"part_name"`
	Qty       int    `json:"qty"`
	Material  string `json:"material"`

	State             string `json:"state,omitempty"`
	Drawing           string `json:"dwg,omitempty"`
	Codegen           string `json:"codegen,omitempty"`
	Job               string `json:"job,omitempty"`
	Shipment          string `json:"shipment,omitempty"`
	ChargeRef         string `json:"charge_ref,omitempty"`
	Op1               string `json:"op1,omitempty"`
	Op2               string `json:"op2,omitempty"`
	Op3               string `json:"op3,omitempty"`
	Mark              string `json:"mark,omitempty"`
	RawMaterialMaster string `json:"raw_mm,omitempty"`
}

func (h *Handler) PushDemand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req demandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateDemandRequest(&req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	event := recon.SourceEvent{System: req.System, ID: req.EventID}
	err := h.engine.PushDemand(ctx, event, recon.DemandRequest{
		WorkOrder:         req.WorkOrder,
		PartName:          req.PartName,
		Qty:               req.Qty,
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
		Mark:              req.Mark,
		RawMaterialMaster: req.RawMaterialMaster,
	})
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("demand push failed", "error", err, "status_code", status)
		h.writeError(w, status, "demand push failed")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type inventoryRequest struct {
	System         string  `json:"system"`
	EventID        string  `json:"event_id"`
	SheetName      string  `json:"sheet_name"`
	SheetType      string  `json:"sheet_type"`
	Qty            int     `json:"qty"`
	Material       string  `json:"material"`
	Thickness      float64 `json:"thickness"`
	Width          float64 `json:"width"`
	Length         float64 `json:"length"`
	MaterialMaster string  `json:"material_master"`
	Note1          string  `json:"note1,omitempty"`
	Note2          string  `json:"note2,omitempty"`
	Note3          string  `json:"note3,omitempty"`
	Note4          string  `json:"note4,omitempty"`
}

func (h *Handler) PushInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req inventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateInventoryRequest(&req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	event := recon.SourceEvent{System: req.System, ID: req.EventID}
	err := h.engine.PushInventory(ctx, event, recon.InventoryRequest{
		SheetName:      req.SheetName,
		SheetType:      req.SheetType,
		Qty:            req.Qty,
		Material:       req.Material,
		Thickness:      req.Thickness,
		Width:          req.Width,
		Length:         req.Length,
		MaterialMaster: req.MaterialMaster,
		Notes:          [4]string{req.Note1, req.Note2, req.Note3, req.Note4},
	})
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("inventory push failed", "error", err, "status_code", status)
		h.writeError(w, status, "inventory push failed")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type programUpdateRequest struct {
	System          string `json:"system"`
	EventID         string `json:"event_id"`
	ArchivePacketID string `json:"archive_packet_id"`
}

func (h *Handler) PushProgramUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req programUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateProgramUpdateRequest(&req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	event := recon.SourceEvent{System: req.System, ID: req.EventID}
	err := h.engine.PushProgramUpdate(ctx, event, req.ArchivePacketID)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if errors.Is(err, apperrors.ErrProgramNotFound) {
			// Nothing is staged; the precondition violation is reported
			// instead of silently dropped.
			log.Warn("program update for unknown packet", "error", err)
		} else {
			log.Error("program update failed", "error", err, "status_code", status)
		}
		h.writeError(w, status, "program update failed")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) ListProgramFeedback(w http.ResponseWriter, r *http.Request) {
	export, err := h.feedback.Export(r.Context())
	if err != nil {
		h.logger.Error("feedback export failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "feedback export failed")
		return
	}
	if export.Programs == nil {
		export.Programs = []feedback.ProgramFeedback{}
	}
	h.writeJSON(w, http.StatusOK, export.Programs)
}

func (h *Handler) ListPartFeedback(w http.ResponseWriter, r *http.Request) {
	export, err := h.feedback.Export(r.Context())
	if err != nil {
		h.logger.Error("feedback export failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "feedback export failed")
		return
	}
	if export.Parts == nil {
		export.Parts = []feedback.PartFeedback{}
	}
	h.writeJSON(w, http.StatusOK, export.Parts)
}

func (h *Handler) DeleteProgramFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid feedback id")
		return
	}
	if err := h.feedback.DeleteProgramFeedback(r.Context(), id); err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeletePartFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid feedback id")
		return
	}
	if err := h.feedback.DeletePartFeedback(r.Context(), id); err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Machines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.viewer.Machines(r.Context())
	if err != nil {
		h.logger.Error("machines query failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "machines query failed")
		return
	}
	if machines == nil {
		machines = []string{}
	}
	h.writeJSON(w, http.StatusOK, machines)
}

func (h *Handler) MachinePrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.viewer.ProgramsForMachine(r.Context(), r.PathValue("machine"))
	if err != nil {
		h.logger.Error("programs query failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "programs query failed")
		return
	}
	if programs == nil {
		programs = []viewer.ProgramSummary{}
	}
	h.writeJSON(w, http.StatusOK, programs)
}

func (h *Handler) Batches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.viewer.Batches(r.Context())
	if err != nil {
		h.logger.Error("batches query failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "batches query failed")
		return
	}
	if batches == nil {
		batches = []viewer.Batch{}
	}
	h.writeJSON(w, http.StatusOK, batches)
}

func (h *Handler) Program(w http.ResponseWriter, r *http.Request) {
	detail, err := h.viewer.Program(r.Context(), r.PathValue("program"))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("program query failed", "error", err)
		}
		h.writeError(w, status, "program query failed")
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) ProgramBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.viewer.BatchesForProgram(r.Context(), r.PathValue("program"))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("program batches query failed", "error", err)
		}
		h.writeError(w, status, "program batches query failed")
		return
	}
	if batches == nil {
		batches = []viewer.Batch{}
	}
	h.writeJSON(w, http.StatusOK, batches)
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
