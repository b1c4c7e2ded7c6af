package report

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
)

// BarcodeState is the state of the last barcode lookup:
// BarcodeIdle, BarcodeLoading, BarcodeFound, BarcodeNotFound or BarcodeError
type BarcodeState interface {
	isBarcodeState()
}

type BarcodeIdle struct{}

type BarcodeLoading struct {
	Barcode string
}

type BarcodeFound struct {
	Product models.ProductInfo
}

type BarcodeNotFound struct {
	Barcode string
}

type BarcodeError struct {
	Message string
}

func (BarcodeIdle) isBarcodeState()     {}
func (BarcodeLoading) isBarcodeState()  {}
func (BarcodeFound) isBarcodeState()    {}
func (BarcodeNotFound) isBarcodeState() {}
func (BarcodeError) isBarcodeState()    {}

// StartSession begins a new report with a client generated session id.
// Any previous draft and background PDF work are dropped. The report type is
// sent to the server right away; a failure there is only logged.
func (s *Service) StartSession(ctx context.Context, reportType models.ReportType) string {
	sid := uuid.New().String()
	s.resetSession(draft.New(sid, reportType))
	s.announceSession(ctx, sid, reportType)
	s.log("Session", fmt.Sprintf("started %s session %s", reportType, sid), applog.LevelInfo)
	return sid
}

// ResumeSession rebuilds the draft from the server copy of a session
func (s *Service) ResumeSession(ctx context.Context, sessionID string) error {
	details, err := s.api.GetSessionDetails(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if details.Finalized {
		return fmt.Errorf("session %s is already finalized", sessionID)
	}
	if details.SessionID == "" {
		details.SessionID = sessionID
	}
	d, err := draft.Restore(*details)
	if err != nil {
		return fmt.Errorf("failed to restore session %s: %w", sessionID, err)
	}
	s.resetSession(d)
	s.log("Session", fmt.Sprintf("resumed %s with %d pallets", sessionID, len(d.Saved)), applog.LevelInfo)
	return nil
}

// ListPendingSessions returns unfinished sessions on the server
func (s *Service) ListPendingSessions(ctx context.Context) ([]models.PendingSession, error) {
	list, err := s.api.ListPendingSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return list, nil
}

// AbandonSession deletes the active session on the server and clears the draft
func (s *Service) AbandonSession(ctx context.Context) error {
	snap := s.store.Snapshot()
	if snap.SessionID == "" {
		return ErrNoSession
	}
	s.waitCheckpoint()
	if err := s.api.DeleteSession(ctx, snap.SessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", snap.SessionID, err)
	}
	s.resetSession(draft.New("", snap.Header.ReportType))
	s.emit(Event{Type: EventSessionReset, SessionID: snap.SessionID})
	return nil
}

func (s *Service) resetSession(d draft.Draft) {
	s.waitCheckpoint()
	s.CleanupPDF()
	s.store.Replace(d)
	s.setSubmitState(SubmitIdle{})
	s.stateMu.Lock()
	s.barcodeState = BarcodeIdle{}
	s.stateMu.Unlock()
}

// UpdateHeader applies fn to the report header
func (s *Service) UpdateHeader(fn func(h *models.ReportHeader)) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		fn(&d.Header)
		return d
	})
	s.draftEdited()
}

// SetComments keeps the free text comments locally until submission
func (s *Service) SetComments(text string) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		d.Comments = text
		return d
	})
}

// UpdateCurrentPallet applies fn to the text fields of the current pallet
func (s *Service) UpdateCurrentPallet(fn func(p *models.DamagedPallet)) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		fn(&d.Current)
		return d
	})
}

// SetLayout selects the vehicle layout; positions outside it are dropped
func (s *Service) SetLayout(layout models.VehicleLayout) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		d.Layout = layout
		if n := layout.SlotCount(); n > 0 {
			kept := d.Positions[:0:0]
			for _, p := range d.Positions {
				if p.Slot < n {
					kept = append(kept, p)
				}
			}
			d.Positions = kept
		}
		return d
	})
	s.draftEdited()
}

// AssignPosition places a pallet on the vehicle
func (s *Service) AssignPosition(pos models.PalletPosition) error {
	if _, err := s.store.TryUpdate(func(d draft.Draft) (draft.Draft, error) {
		return draft.AssignPosition(d, pos)
	}); err != nil {
		return err
	}
	s.draftEdited()
	return nil
}

// RemovePosition takes a pallet off the vehicle
func (s *Service) RemovePosition(palletID string) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		return draft.RemovePosition(d, palletID)
	})
	s.draftEdited()
}

// AddMarker adds a damage marker to a pallet schematic
func (s *Service) AddMarker(palletID string, x, y float64) string {
	var id string
	s.store.Update(func(d draft.Draft) draft.Draft {
		d, id = draft.AddMarker(d, palletID, x, y)
		return d
	})
	s.draftEdited()
	return id
}

// RemoveMarker deletes a damage marker
func (s *Service) RemoveMarker(palletID, markerID string) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		return draft.RemoveMarker(d, palletID, markerID)
	})
	s.draftEdited()
}

// AssignMarkerDetail moves a damage detail onto a marker
func (s *Service) AssignMarkerDetail(palletID, markerID, detailID string) error {
	if _, err := s.store.TryUpdate(func(d draft.Draft) (draft.Draft, error) {
		return draft.AssignMarkerDetail(d, palletID, markerID, detailID)
	}); err != nil {
		return err
	}
	s.draftEdited()
	return nil
}

// SetHeights replaces the damage heights of a pallet
func (s *Service) SetHeights(palletID string, heights []string) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		return draft.SetHeights(d, palletID, heights)
	})
	s.draftEdited()
}

// BarcodeState returns the state of the last lookup
func (s *Service) BarcodeState() BarcodeState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.barcodeState
}

func (s *Service) setBarcodeState(st BarcodeState) {
	s.stateMu.Lock()
	s.barcodeState = st
	s.stateMu.Unlock()
}

// LookupBarcode resolves a scanned pallet barcode and fills the product
// fields of the current pallet when found
func (s *Service) LookupBarcode(ctx context.Context, barcode string) BarcodeState {
	if s.lookup == nil {
		st := BarcodeError{Message: "product lookup is not configured"}
		s.setBarcodeState(st)
		return st
	}
	s.setBarcodeState(BarcodeLoading{Barcode: barcode})
	s.UpdateCurrentPallet(func(p *models.DamagedPallet) { p.Barcode = barcode })

	product, err := s.lookup.LookupBarcode(ctx, barcode)
	var st BarcodeState
	switch {
	case err != nil:
		s.log("Barcode", fmt.Sprintf("lookup %s failed: %v", barcode, err), applog.LevelWarn)
		st = BarcodeError{Message: err.Error()}
	case product == nil:
		st = BarcodeNotFound{Barcode: barcode}
	default:
		st = BarcodeFound{Product: *product}
		s.UpdateCurrentPallet(func(p *models.DamagedPallet) {
			if product.ProductType != "" {
				p.ProductType = product.ProductType
			} else {
				p.ProductType = product.Name
			}
		})
	}
	s.setBarcodeState(st)
	return st
}
