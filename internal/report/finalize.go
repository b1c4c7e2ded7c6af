package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
)

// SavePallet finalizes the current pallet: failed photos are retried, the
// pallet text fields are sent under its server index and the pallet is merged
// into the saved list. On failure the draft keeps everything but the error
// message, and calling SavePallet again resumes where it stopped.
func (s *Service) SavePallet(ctx context.Context, formValid bool) error {
	err := s.savePallet(ctx, formValid)
	if err != nil {
		s.setLastError(err.Error())
		s.log("SavePallet", err.Error(), applog.LevelError)
		return err
	}
	return nil
}

func (s *Service) savePallet(ctx context.Context, formValid bool) error {
	snap := s.store.Snapshot()
	if snap.SessionID == "" {
		return ErrNoSession
	}
	if !formValid {
		return ErrInvalidForm
	}
	palletID := snap.Current.ID

	idx, err := s.GetOrFetchPalletIndex(ctx)
	if err != nil {
		if errors.Is(err, ErrIndexUnresolved) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrIndexUnresolved, err)
	}

	if err := s.waitForUploads(ctx, palletID); err != nil {
		return err
	}

	cur := s.store.Snapshot().Current
	if cur.ID != palletID {
		return ErrPalletChanged
	}
	var retry []models.PhotoSlot
	for _, slot := range cur.PhotoSlots() {
		ph, _ := cur.PhotoAt(slot)
		if ph.Status != models.PhotoSuccess {
			retry = append(retry, slot)
		}
	}
	if len(retry) > 0 {
		s.log("SavePallet", fmt.Sprintf("uploading %d pending photos of pallet %d", len(retry), idx), applog.LevelInfo)
		if err := s.retryPhotos(ctx, palletID, retry); err != nil {
			return err
		}
	}

	cur = s.store.Snapshot().Current
	if cur.ID != palletID {
		return ErrPalletChanged
	}
	fields, err := draft.PalletFields(idx, cur)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendPallet, err)
	}
	if err := s.api.UpdateSession(ctx, snap.SessionID, fields); err != nil {
		return fmt.Errorf("%w: %v", ErrSendPallet, err)
	}

	s.store.Update(func(d draft.Draft) draft.Draft {
		if d.Current.ID != palletID {
			return draft.MergeSaved(d, cur)
		}
		d = draft.MergeSaved(d, d.Current)
		d.LastError = ""
		return d
	})
	s.InvalidatePDF()
	s.checkpoint(ctx)
	s.log("SavePallet", fmt.Sprintf("pallet %d saved in session %s", idx, snap.SessionID), applog.LevelInfo)
	return nil
}

// SaveAndExit saves the current pallet and starts a fresh one
func (s *Service) SaveAndExit(ctx context.Context, formValid bool) error {
	if err := s.SavePallet(ctx, formValid); err != nil {
		return err
	}
	s.StartNewPallet()
	return nil
}

// StartNewPallet replaces the current pallet with an empty one
func (s *Service) StartNewPallet() {
	s.store.Update(func(d draft.Draft) draft.Draft {
		d.Current = draft.NewPallet()
		return d
	})
}

// EditSavedPallet loads a saved pallet as the current one. Saving it again
// replaces the entry under the same index.
func (s *Service) EditSavedPallet(index int) error {
	_, err := s.store.TryUpdate(func(d draft.Draft) (draft.Draft, error) {
		p, ok := d.SavedByIndex(index)
		if !ok {
			return d, fmt.Errorf("%w: index %d", draft.ErrPalletNotFound, index)
		}
		cur := p.Clone()
		// Photos of a saved pallet are on the server already
		for _, slot := range cur.PhotoSlots() {
			ph, _ := cur.PhotoAt(slot)
			if ph.FileID != "" {
				ph.Status = models.PhotoSuccess
				cur.SetPhotoAt(slot, ph)
			}
		}
		d.Current = cur
		return d, nil
	})
	return err
}
