package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
)

// SyncDraftState writes the header and the vehicle data of the active session
// to the server. The fields are overwritten as a whole, so pushing the same
// state twice is harmless. Pallets are not included; they are sent by SavePallet.
func (s *Service) SyncDraftState(ctx context.Context) error {
	snap := s.store.Snapshot()
	if snap.SessionID == "" {
		return ErrNoSession
	}
	fields, err := draftStateFields(snap)
	if err != nil {
		return err
	}
	if err := s.api.UpdateSession(ctx, snap.SessionID, fields); err != nil {
		return fmt.Errorf("failed to sync draft state: %w", err)
	}
	return nil
}

func draftStateFields(d draft.Draft) (map[string]string, error) {
	fields, err := draft.VehicleFields(d)
	if err != nil {
		return nil, err
	}
	for k, v := range draft.HeaderFields(d.Header) {
		fields[k] = v
	}
	return fields, nil
}

// checkpoint pushes the draft state and only logs failures
func (s *Service) checkpoint(ctx context.Context) {
	if !s.user.Network.IsOnline() {
		return
	}
	if err := s.SyncDraftState(ctx); err != nil && !errors.Is(err, ErrNoSession) {
		s.log("Checkpoint", err.Error(), applog.LevelWarn)
	}
}

// draftEdited is called after every local edit of header or vehicle data
func (s *Service) draftEdited() {
	s.InvalidatePDF()
	s.scheduleCheckpoint()
}

// scheduleCheckpoint pushes the draft state in the background. Edits made
// while a push is running are coalesced into one more push of the latest state.
func (s *Service) scheduleCheckpoint() {
	if s.api == nil {
		return
	}
	s.cpMu.Lock()
	defer s.cpMu.Unlock()
	if s.cpDone != nil {
		s.cpDirty = true
		return
	}
	done := make(chan struct{})
	s.cpDone = done
	go func() {
		defer close(done)
		for {
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.SyncTimeout)
			s.checkpoint(ctx)
			cancel()

			s.cpMu.Lock()
			if !s.cpDirty {
				s.cpDone = nil
				s.cpMu.Unlock()
				return
			}
			s.cpDirty = false
			s.cpMu.Unlock()
		}
	}()
}

// waitCheckpoint blocks until no background push is running
func (s *Service) waitCheckpoint() {
	for {
		s.cpMu.Lock()
		done := s.cpDone
		s.cpMu.Unlock()
		if done == nil {
			return
		}
		<-done
	}
}

// announceSession records the report type of a new session on the server so
// a resumed session keeps it even before the first pallet is saved
func (s *Service) announceSession(ctx context.Context, sid string, rt models.ReportType) {
	if s.api == nil || !s.user.Network.IsOnline() {
		return
	}
	fields := map[string]string{models.HeaderPath("report_type"): string(rt)}
	if err := s.api.UpdateSession(ctx, sid, fields); err != nil {
		s.log("Session", fmt.Sprintf("failed to register session %s: %v", sid, err), applog.LevelWarn)
	}
}
