package recon

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/paddymills/nestbridge/pkg/errors"
)

// PushProgramUpdate stages an instruction for Target to accept the program
// revision associated with archivePacketID. The referenced program must
// already exist in Target; the caller is responsible for sequencing this
// after the corresponding create/delete entries have drained. A missing
// program stages nothing and returns ErrProgramNotFound so the violation is
// observable instead of a silent no-op.
func (e *Engine) PushProgramUpdate(ctx context.Context, event SourceEvent, archivePacketID string) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if archivePacketID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "archive packet id is required")
	}

	route, err := e.routes.Resolve(event.System)
	if err != nil {
		return err
	}

	return e.store.Atomically(ctx, func(s Store) error {
		prog, err := s.ProgramByArchivePacket(ctx, archivePacketID)
		if err != nil {
			return fmt.Errorf("resolving program for packet %s: %w", archivePacketID, err)
		}
		if prog == nil {
			e.logger.Warn("program update for unknown packet",
				"event", event.Truncated(),
				"archive_packet", archivePacketID,
			)
			return apperrors.Newf(apperrors.ErrProgramNotFound, http.StatusNotFound,
				"no program for archive packet %s", archivePacketID)
		}

		entry := StagingEntry{
			TransType:     ProgramRevisionAccept,
			District:      route.District,
			EventID:       event.ID,
			EventTrunc:    event.Truncated(),
			ProgramName:   prog.Name,
			ProgramRepeat: prog.RepeatID,
		}
		if err := s.InsertStaging(ctx, entry); err != nil {
			return fmt.Errorf("staging program update: %w", err)
		}
		e.countEntry(ProgramRevisionAccept)
		e.logger.Info("program update staged",
			"event", event.Truncated(),
			"program", prog.Name,
			"repeat", prog.RepeatID,
		)
		return nil
	})
}
