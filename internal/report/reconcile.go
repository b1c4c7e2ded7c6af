package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
)

// SmartSync makes the server session document match the local draft.
// Saved pallets already present on the server are skipped, so running it
// twice without local changes uploads nothing the second time. The first
// failing step aborts the pass; nothing is retried here.
func (s *Service) SmartSync(ctx context.Context) (*models.SyncReport, error) {
	snap := s.store.Snapshot()
	if snap.SessionID == "" {
		return nil, ErrNoSession
	}
	sid := snap.SessionID
	rep := &models.SyncReport{}

	summary, err := s.api.GetSessionSummary(ctx, sid)
	if err != nil {
		return rep, fmt.Errorf("failed to fetch session summary: %w", err)
	}
	onServer := make(map[int]bool, len(summary.PalletIndices))
	for _, i := range summary.PalletIndices {
		onServer[i] = true
	}

	if err := s.api.UpdateSession(ctx, sid, draft.HeaderFields(snap.Header)); err != nil {
		return rep, fmt.Errorf("failed to sync header: %w", err)
	}

	local := make(map[int]bool, len(snap.Saved))
	for _, p := range snap.Saved {
		if p.ServerIndex == nil {
			msg := fmt.Sprintf("pallet %s (%s) has no server index", p.ID, p.PalletNumber)
			rep.Errors = append(rep.Errors, msg)
			s.log("SmartSync", msg, applog.LevelError)
			continue
		}
		idx := *p.ServerIndex
		local[idx] = true
		if onServer[idx] {
			rep.SkippedPallets = append(rep.SkippedPallets, idx)
			continue
		}
		fields, err := draft.PalletFields(idx, p)
		if err != nil {
			return rep, err
		}
		if err := s.api.UpdateSession(ctx, sid, fields); err != nil {
			return rep, fmt.Errorf("failed to sync pallet %d: %w", idx, err)
		}
		rep.SyncedPallets = append(rep.SyncedPallets, idx)
	}

	var extra []int
	for i := range onServer {
		if !local[i] {
			extra = append(extra, i)
		}
	}
	sort.Ints(extra)
	for _, i := range extra {
		msg := fmt.Sprintf("server has pallet %d that is not in the local draft", i)
		rep.Warnings = append(rep.Warnings, msg)
		s.log("SmartSync", msg, applog.LevelWarn)
	}

	vehicle, err := draft.VehicleFields(snap)
	if err != nil {
		return rep, err
	}
	for _, path := range []string{
		models.VehiclePositionsPath,
		models.VehicleMarkersPath,
		models.VehicleHeightsPath,
		models.VehicleLayoutPath,
	} {
		if err := s.api.UpdateSession(ctx, sid, map[string]string{path: vehicle[path]}); err != nil {
			return rep, fmt.Errorf("failed to sync %s: %w", path, err)
		}
	}

	if len(rep.Errors) > 0 {
		return rep, fmt.Errorf("%w: %d pallets", ErrPalletWithoutIdx, len(rep.Errors))
	}
	s.log("SmartSync", fmt.Sprintf("session %s: %d synced, %d skipped, %d warnings",
		sid, len(rep.SyncedPallets), len(rep.SkippedPallets), len(rep.Warnings)), applog.LevelInfo)
	return rep, nil
}
