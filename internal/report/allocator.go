package report

import (
	"context"
	"fmt"

	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
)

// GetOrFetchPalletIndex returns the server index of the current pallet,
// asking the server at most once per pallet. The index is the session's
// pallet count at the time of the first request and never changes after.
func (s *Service) GetOrFetchPalletIndex(ctx context.Context) (int, error) {
	snap := s.store.Snapshot()
	if snap.Current.ServerIndex != nil {
		return *snap.Current.ServerIndex, nil
	}
	if snap.SessionID == "" {
		return 0, ErrNoSession
	}
	palletID := snap.Current.ID

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	// Another caller may have assigned the index while we waited
	snap = s.store.Snapshot()
	if snap.Current.ID != palletID {
		return 0, ErrPalletChanged
	}
	if snap.Current.ServerIndex != nil {
		return *snap.Current.ServerIndex, nil
	}

	summary, err := s.api.GetSessionSummary(ctx, snap.SessionID)
	if err != nil {
		s.store.Update(func(d draft.Draft) draft.Draft {
			if d.Current.ID == palletID {
				d = draft.FailPendingPhotos(d)
			}
			return d
		})
		s.log("PalletIndex", fmt.Sprintf("summary for %s failed: %v", snap.SessionID, err), applog.LevelError)
		return 0, fmt.Errorf("%w: %v", ErrIndexUnresolved, err)
	}

	idx := summary.PalletCount
	assigned := idx
	s.store.Update(func(d draft.Draft) draft.Draft {
		if d.Current.ID != palletID {
			return d
		}
		if d.Current.ServerIndex != nil {
			assigned = *d.Current.ServerIndex
			return d
		}
		i := idx
		d.Current.ServerIndex = &i
		return d
	})
	s.log("PalletIndex", fmt.Sprintf("pallet %s -> index %d", palletID, assigned), applog.LevelInfo)
	return assigned, nil
}

// indexFor resolves the server index of any pallet in the draft
func (s *Service) indexFor(ctx context.Context, palletID string) (int, error) {
	snap := s.store.Snapshot()
	if snap.Current.ID == palletID {
		return s.GetOrFetchPalletIndex(ctx)
	}
	p, ok := snap.Pallet(palletID)
	if !ok {
		return 0, draft.ErrPalletNotFound
	}
	if p.ServerIndex == nil {
		return 0, ErrPalletWithoutIdx
	}
	return *p.ServerIndex, nil
}
