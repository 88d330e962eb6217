// Package feedback reads Target's post-execution archive tables back out as
// an acknowledged delivery queue. Every export first applies the per-category
// retention policy, then extracts the surviving program and part rows; rows
// are removed one at a time once the consumer has durably recorded them.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/paddymills/nestbridge/pkg/errors"
	"github.com/paddymills/nestbridge/pkg/metrics"
)

// Category names one archive table written by Target.
type Category string

const (
	CategoryProgram   Category = "program"
	CategoryPart      Category = "pip"
	CategoryRemnant   Category = "remnant"
	CategorySheet     Category = "sheet"
	CategoryWorkOrder Category = "wo_closure"
)

// Op is the operation type Target tags each archive row with.
type Op string

const (
	OpPost   Op = "Post"
	OpDelete Op = "Delete"
	OpUpdate Op = "Update"
)

// RetentionPolicy names what the sweep does with an archive category. A nil
// Keep set discards every row.
type RetentionPolicy struct {
	Keep map[Op]bool
}

// KeepOnly builds a policy retaining the given operation types.
func KeepOnly(ops ...Op) RetentionPolicy {
	keep := make(map[Op]bool, len(ops))
	for _, op := range ops {
		keep[op] = true
	}
	return RetentionPolicy{Keep: keep}
}

// DiscardAll removes every row in the category. Nothing currently consumes
// the remnant, sheet, and work-order closure archives; adding a consumer
// means changing the policy here, not resurrecting implicit deletes.
var DiscardAll = RetentionPolicy{}

// DefaultPolicies is the retention policy per archive category.
var DefaultPolicies = map[Category]RetentionPolicy{
	CategoryProgram:   KeepOnly(OpPost, OpDelete),
	CategoryPart:      KeepOnly(OpPost),
	CategoryRemnant:   DiscardAll,
	CategorySheet:     DiscardAll,
	CategoryWorkOrder: DiscardAll,
}

// ProgramRow is a raw program archive row.
type ProgramRow struct {
	ID              int64
	ArchivePacketID string
	Op              Op
	ProgramName     string
	MachineName     string
	CuttingTime     float64
}

// PartRow is a raw part-in-process archive row, joined against the
// originating demand line for job and shipment context.
type PartRow struct {
	ID              int64
	ArchivePacketID string
	Op              Op
	SheetName       string
	PartName        string
	Qty             int
	Job             string
	Shipment        string
	TrueArea        float64
	NestedArea      float64
}

// Status is the program lifecycle state reported downstream.
type Status string

const (
	StatusCreated Status = "Created"
	StatusDeleted Status = "Deleted"
)

// ProgramFeedback is one exported program archive row.
type ProgramFeedback struct {
	ID              int64   `json:"id"`
	ArchivePacketID string  `json:"archive_packet_id"`
	Status          Status  `json:"status"`
	ProgramName     string  `json:"program_name"`
	MachineName     string  `json:"machine_name"`
	CuttingTime     float64 `json:"cutting_time"`
}

// PartFeedback is one exported part-in-process row.
type PartFeedback struct {
	ID              int64   `json:"id"`
	ArchivePacketID string  `json:"archive_packet_id"`
	SheetName       string  `json:"sheet_name"`
	PartName        string  `json:"part_name"`
	Qty             int     `json:"qty"`
	Job             string  `json:"job"`
	Shipment        string  `json:"shipment"`
	TrueArea        float64 `json:"true_area"`
	NestedArea      float64 `json:"nested_area"`
}

// Export is the result of one retention-sweep-plus-extraction pass.
type Export struct {
	Programs []ProgramFeedback `json:"programs"`
	Parts    []PartFeedback    `json:"parts"`
}

// ArchiveStore is the feedback channel's view of Target's archive tables.
type ArchiveStore interface {
	// PurgeArchive deletes rows of the category whose op is not in keep;
	// an empty keep set deletes every row. Returns the number removed.
	PurgeArchive(ctx context.Context, cat Category, keep []Op) (int64, error)

	// ProgramRows returns the remaining program archive rows.
	ProgramRows(ctx context.Context) ([]ProgramRow, error)

	// PartRows returns the remaining part-in-process rows joined to their
	// demand lines.
	PartRows(ctx context.Context) ([]PartRow, error)

	// DeleteProgramRow / DeletePartRow remove one archive row by id,
	// reporting whether it existed.
	DeleteProgramRow(ctx context.Context, id int64) (bool, error)
	DeletePartRow(ctx context.Context, id int64) (bool, error)
}

// Service performs retention sweeps, extraction, and per-row acks.
type Service struct {
	store    ArchiveStore
	policies map[Category]RetentionPolicy
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService creates a feedback Service with the default retention policies.
// metrics may be nil in tests.
func NewService(store ArchiveStore, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		policies: DefaultPolicies,
		metrics:  m,
		logger:   slog.Default().With("component", "feedback"),
	}
}

// Export applies the retention sweep to every archive category, then returns
// the surviving program rows and the part rows with positive processed
// quantity. Sweep and extraction are always performed as a pair; running
// Export twice with no new archive rows in between is idempotent.
func (s *Service) Export(ctx context.Context) (*Export, error) {
	if err := s.retentionSweep(ctx); err != nil {
		return nil, err
	}

	programRows, err := s.store.ProgramRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("extracting program archive: %w", err)
	}
	partRows, err := s.store.PartRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("extracting part archive: %w", err)
	}

	export := &Export{}
	for _, row := range programRows {
		var status Status
		switch row.Op {
		case OpPost:
			status = StatusCreated
		case OpDelete:
			status = StatusDeleted
		default:
			continue
		}
		export.Programs = append(export.Programs, ProgramFeedback{
			ID:              row.ID,
			ArchivePacketID: row.ArchivePacketID,
			Status:          status,
			ProgramName:     row.ProgramName,
			MachineName:     row.MachineName,
			CuttingTime:     row.CuttingTime,
		})
	}
	for _, row := range partRows {
		if row.Op != OpPost || row.Qty <= 0 {
			continue
		}
		export.Parts = append(export.Parts, PartFeedback{
			ID:              row.ID,
			ArchivePacketID: row.ArchivePacketID,
			SheetName:       row.SheetName,
			PartName:        row.PartName,
			Qty:             row.Qty,
			Job:             row.Job,
			Shipment:        row.Shipment,
			TrueArea:        row.TrueArea,
			NestedArea:      row.NestedArea,
		})
	}

	if s.metrics != nil {
		s.metrics.FeedbackRowsTotal.WithLabelValues(string(CategoryProgram)).Add(float64(len(export.Programs)))
		s.metrics.FeedbackRowsTotal.WithLabelValues(string(CategoryPart)).Add(float64(len(export.Parts)))
	}
	s.logger.Debug("feedback extracted",
		"programs", len(export.Programs),
		"parts", len(export.Parts),
	)
	return export, nil
}

// retentionSweep purges every archive category according to its policy.
func (s *Service) retentionSweep(ctx context.Context) error {
	for cat, policy := range s.policies {
		var keep []Op
		for op := range policy.Keep {
			keep = append(keep, op)
		}
		purged, err := s.store.PurgeArchive(ctx, cat, keep)
		if err != nil {
			return fmt.Errorf("purging %s archive: %w", cat, err)
		}
		if s.metrics != nil {
			s.metrics.FeedbackPurgedTotal.WithLabelValues(string(cat)).Add(float64(purged))
		}
		if purged > 0 {
			s.logger.Info("retention sweep purged rows", "category", cat, "rows", purged)
		}
	}
	return nil
}

// DeleteProgramFeedback acknowledges one program row after the consumer has
// durably recorded it.
func (s *Service) DeleteProgramFeedback(ctx context.Context, id int64) error {
	ok, err := s.store.DeleteProgramRow(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting program feedback %d: %w", id, err)
	}
	if !ok {
		return apperrors.Newf(apperrors.ErrFeedbackNotFound, http.StatusNotFound, "program feedback %d", id)
	}
	if s.metrics != nil {
		s.metrics.FeedbackAcksTotal.WithLabelValues(string(CategoryProgram)).Inc()
	}
	return nil
}

// DeletePartFeedback acknowledges one part row.
func (s *Service) DeletePartFeedback(ctx context.Context, id int64) error {
	ok, err := s.store.DeletePartRow(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting part feedback %d: %w", id, err)
	}
	if !ok {
		return apperrors.Newf(apperrors.ErrFeedbackNotFound, http.StatusNotFound, "part feedback %d", id)
	}
	if s.metrics != nil {
		s.metrics.FeedbackAcksTotal.WithLabelValues(string(CategoryPart)).Inc()
	}
	return nil
}
