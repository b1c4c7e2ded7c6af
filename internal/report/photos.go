package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
)

// SetPhoto records a newly taken photo for the current pallet (status IDLE)
func (s *Service) SetPhoto(slot models.PhotoSlot, path string) error {
	_, err := s.store.TryUpdate(func(d draft.Draft) (draft.Draft, error) {
		return draft.SetPhoto(d, slot, path)
	})
	return err
}

// AddDamageInstance appends an empty damage instance to the current pallet
func (s *Service) AddDamageInstance() string {
	inst := draft.NewDamageInstance()
	s.store.Update(func(d draft.Draft) draft.Draft {
		d.Current.Damages = append(d.Current.Damages, inst)
		return d
	})
	return inst.ID
}

// SetDamageDetails replaces the categorized details of a damage instance
func (s *Service) SetDamageDetails(damageID string, details map[string][]models.DamageDetail) error {
	_, err := s.store.TryUpdate(func(d draft.Draft) (draft.Draft, error) {
		for i := range d.Current.Damages {
			if d.Current.Damages[i].ID == damageID {
				d.Current.Damages[i].Details = details
				return d, nil
			}
		}
		return d, draft.ErrUnknownPhotoSlot
	})
	return err
}

// UploadPhotoAsync starts a background upload of one photo of the current
// pallet. The slot is marked UPLOADING before the network call starts.
func (s *Service) UploadPhotoAsync(ctx context.Context, slot models.PhotoSlot) *Task {
	palletID := s.store.Snapshot().Current.ID
	s.markPhoto(palletID, slot, models.PhotoUploading, "")

	key := uploadKey(palletID, slot)
	task := startTask(ctx, func(ctx context.Context) error {
		return s.uploadPhoto(ctx, palletID, slot)
	})

	s.uploadsMu.Lock()
	s.uploads[key] = task
	s.uploadsMu.Unlock()
	go func() {
		<-task.Done()
		s.uploadsMu.Lock()
		if s.uploads[key] == task {
			delete(s.uploads, key)
		}
		s.uploadsMu.Unlock()
	}()
	return task
}

// uploadPhoto performs one upload attempt and records SUCCESS or FAILED
func (s *Service) uploadPhoto(ctx context.Context, palletID string, slot models.PhotoSlot) error {
	s.markPhoto(palletID, slot, models.PhotoUploading, "")

	snap := s.store.Snapshot()
	pallet, ok := snap.Pallet(palletID)
	if !ok {
		return draft.ErrPalletNotFound
	}
	photo, ok := pallet.PhotoAt(slot)
	if !ok || !photo.Taken() {
		s.markPhoto(palletID, slot, models.PhotoFailed, "")
		return fmt.Errorf("%w: %s", ErrNoPhoto, slot)
	}
	if !s.user.Network.IsOnline() {
		s.markPhoto(palletID, slot, models.PhotoFailed, "")
		return ErrOffline
	}

	idx, err := s.indexFor(ctx, palletID)
	if err != nil {
		s.markPhoto(palletID, slot, models.PhotoFailed, "")
		return err
	}

	fileID, err := s.api.UploadImage(ctx, snap.SessionID, idx, slot.ImageType(), photo.Path, photo.FileID)
	if err != nil {
		s.markPhoto(palletID, slot, models.PhotoFailed, "")
		s.log("PhotoUpload", fmt.Sprintf("pallet %d %s failed: %v", idx, slot, err), applog.LevelWarn)
		return fmt.Errorf("upload %s: %w", slot, err)
	}
	s.markPhoto(palletID, slot, models.PhotoSuccess, fileID)
	return nil
}

// markPhoto applies a status change to the latest draft
func (s *Service) markPhoto(palletID string, slot models.PhotoSlot, status models.PhotoStatus, fileID string) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		return draft.SetPhotoStatus(d, palletID, slot, status, fileID)
	})
}

// AnyPhotoUploading reports whether a photo of the current pallet is in flight
func (s *Service) AnyPhotoUploading() bool {
	return len(s.store.Snapshot().Current.SlotsWithStatus(models.PhotoUploading)) > 0
}

// FailedPhotoCount counts FAILED photos of the current pallet
func (s *Service) FailedPhotoCount() int {
	return len(s.store.Snapshot().Current.SlotsWithStatus(models.PhotoFailed))
}

// RetryFailedPhotos retries every failed photo of the current pallet
// concurrently and waits for all of them
func (s *Service) RetryFailedPhotos(ctx context.Context) error {
	cur := s.store.Snapshot().Current
	return s.retryPhotos(ctx, cur.ID, cur.SlotsWithStatus(models.PhotoFailed))
}

func (s *Service) retryPhotos(ctx context.Context, palletID string, slots []models.PhotoSlot) error {
	if len(slots) == 0 {
		return nil
	}
	errs := make([]error, len(slots))
	var wg sync.WaitGroup
	for i, slot := range slots {
		wg.Add(1)
		go func(i int, slot models.PhotoSlot) {
			defer wg.Done()
			errs[i] = s.uploadPhoto(ctx, palletID, slot)
		}(i, slot)
	}
	wg.Wait()

	failed := 0
	var first error
	for _, err := range errs {
		if err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d photos (%v)", ErrPhotoRetryFailed, failed, len(slots), first)
	}
	return nil
}

// waitForUploads blocks until in-flight uploads of a pallet finish
func (s *Service) waitForUploads(ctx context.Context, palletID string) error {
	s.uploadsMu.Lock()
	var pending []*Task
	for key, t := range s.uploads {
		if len(key) > len(palletID) && key[:len(palletID)+1] == palletID+"/" {
			pending = append(pending, t)
		}
	}
	s.uploadsMu.Unlock()

	for _, t := range pending {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func uploadKey(palletID string, slot models.PhotoSlot) string {
	return palletID + "/" + slot.String()
}
