package draft

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/palletdamage/internal/models"
)

var (
	ErrSlotOccupied     = errors.New("vehicle slot and level already occupied")
	ErrSlotOutOfRange   = errors.New("vehicle slot outside of layout")
	ErrMarkerNotFound   = errors.New("damage marker not found")
	ErrPalletNotFound   = errors.New("pallet not found")
	ErrUnknownPhotoSlot = errors.New("unknown photo slot")
)

// Draft is the whole local state of one report. It is treated as a value:
// the Store replaces it atomically and never mutates a published copy.
type Draft struct {
	SessionID string
	Header    models.ReportHeader
	Current   models.DamagedPallet
	Saved     []models.DamagedPallet
	Positions []models.PalletPosition
	Markers   map[string][]models.DamageMarker
	Heights   map[string][]string
	Layout    models.VehicleLayout
	Comments  string
	LastError string
}

// New returns an empty draft for a report type
func New(sessionID string, reportType models.ReportType) Draft {
	return Draft{
		SessionID: sessionID,
		Header: models.ReportHeader{
			ReportType: reportType,
			Timestamp:  time.Now().UTC(),
		},
		Current: NewPallet(),
		Markers: make(map[string][]models.DamageMarker),
		Heights: make(map[string][]string),
	}
}

// NewPallet returns an empty pallet with a fresh local id
func NewPallet() models.DamagedPallet {
	return models.DamagedPallet{
		ID:         uuid.New().String(),
		LabelPhoto: models.Photo{Status: models.PhotoIdle},
		WholePhoto: models.Photo{Status: models.PhotoIdle},
	}
}

// NewDamageInstance returns a damage instance with a fresh id
func NewDamageInstance() models.DamageInstance {
	return models.DamageInstance{
		ID:      uuid.New().String(),
		Photo:   models.Photo{Status: models.PhotoIdle},
		Details: make(map[string][]models.DamageDetail),
	}
}

// Clone returns a deep copy
func (d Draft) Clone() Draft {
	out := d
	out.Current = d.Current.Clone()
	if d.Saved != nil {
		out.Saved = make([]models.DamagedPallet, len(d.Saved))
		for i, p := range d.Saved {
			out.Saved[i] = p.Clone()
		}
	}
	out.Positions = append([]models.PalletPosition(nil), d.Positions...)
	out.Markers = make(map[string][]models.DamageMarker, len(d.Markers))
	for id, list := range d.Markers {
		cp := make([]models.DamageMarker, len(list))
		for i, m := range list {
			cp[i] = m
			cp[i].DetailIDs = append([]string(nil), m.DetailIDs...)
		}
		out.Markers[id] = cp
	}
	out.Heights = make(map[string][]string, len(d.Heights))
	for id, h := range d.Heights {
		out.Heights[id] = append([]string(nil), h...)
	}
	return out
}

// Pallet finds a pallet by local id in the current slot or the saved list
func (d Draft) Pallet(id string) (models.DamagedPallet, bool) {
	if d.Current.ID == id {
		return d.Current, true
	}
	for _, p := range d.Saved {
		if p.ID == id {
			return p, true
		}
	}
	return models.DamagedPallet{}, false
}

// SavedByIndex finds a saved pallet by server index
func (d Draft) SavedByIndex(index int) (models.DamagedPallet, bool) {
	for _, p := range d.Saved {
		if p.ServerIndex != nil && *p.ServerIndex == index {
			return p, true
		}
	}
	return models.DamagedPallet{}, false
}

// MergeSaved stores a finalized pallet: it replaces the saved entry with the
// same server index (or local id) and appends otherwise. Transient upload
// statuses are cleared before storing.
func MergeSaved(d Draft, p models.DamagedPallet) Draft {
	p = p.Clone()
	p.ResetTransient()
	for i, s := range d.Saved {
		sameIndex := s.ServerIndex != nil && p.ServerIndex != nil && *s.ServerIndex == *p.ServerIndex
		if sameIndex || s.ID == p.ID {
			d.Saved[i] = p
			return d
		}
	}
	d.Saved = append(d.Saved, p)
	return d
}

// SetPhoto records a taken photo in the current pallet: new path, status IDLE.
// The file id is kept so the next upload overwrites the server copy.
func SetPhoto(d Draft, slot models.PhotoSlot, path string) (Draft, error) {
	ph, ok := d.Current.PhotoAt(slot)
	if !ok {
		return d, ErrUnknownPhotoSlot
	}
	ph.Path = path
	ph.Status = models.PhotoIdle
	d.Current.SetPhotoAt(slot, ph)
	return d, nil
}

// SetPhotoStatus updates the status (and file id, if given) of a photo of the
// pallet with the given id, wherever it lives in the draft
func SetPhotoStatus(d Draft, palletID string, slot models.PhotoSlot, status models.PhotoStatus, fileID string) Draft {
	apply := func(p *models.DamagedPallet) {
		ph, ok := p.PhotoAt(slot)
		if !ok {
			return
		}
		ph.Status = status
		if fileID != "" {
			ph.FileID = fileID
		}
		p.SetPhotoAt(slot, ph)
	}
	if d.Current.ID == palletID {
		apply(&d.Current)
		return d
	}
	for i := range d.Saved {
		if d.Saved[i].ID == palletID {
			apply(&d.Saved[i])
		}
	}
	return d
}

// FailPendingPhotos marks every taken, not yet uploaded photo of the current
// pallet as FAILED
func FailPendingPhotos(d Draft) Draft {
	for _, slot := range d.Current.PhotoSlots() {
		ph, _ := d.Current.PhotoAt(slot)
		if ph.Status != models.PhotoSuccess {
			ph.Status = models.PhotoFailed
			d.Current.SetPhotoAt(slot, ph)
		}
	}
	return d
}

// AssignPosition places a pallet on a slot. Any previous position of the same
// pallet is removed; a slot/level held by another pallet is rejected.
func AssignPosition(d Draft, pos models.PalletPosition) (Draft, error) {
	if n := d.Layout.SlotCount(); n > 0 && (pos.Slot < 0 || pos.Slot >= n) {
		return d, ErrSlotOutOfRange
	}
	if pos.Level == "" {
		pos.Level = models.LevelAlone
	}
	kept := make([]models.PalletPosition, 0, len(d.Positions)+1)
	for _, p := range d.Positions {
		if p.PalletID == pos.PalletID {
			continue
		}
		if p.Slot == pos.Slot && p.Level == pos.Level {
			return d, ErrSlotOccupied
		}
		kept = append(kept, p)
	}
	d.Positions = append(kept, pos)
	return d, nil
}

// RemovePosition takes a pallet off the vehicle
func RemovePosition(d Draft, palletID string) Draft {
	kept := d.Positions[:0:0]
	for _, p := range d.Positions {
		if p.PalletID != palletID {
			kept = append(kept, p)
		}
	}
	d.Positions = kept
	return d
}

// PositionOf returns the position of a pallet
func (d Draft) PositionOf(palletID string) (models.PalletPosition, bool) {
	for _, p := range d.Positions {
		if p.PalletID == palletID {
			return p, true
		}
	}
	return models.PalletPosition{}, false
}

// AddMarker adds an empty marker to a pallet's schematic
func AddMarker(d Draft, palletID string, x, y float64) (Draft, string) {
	if d.Markers == nil {
		d.Markers = make(map[string][]models.DamageMarker)
	}
	id := uuid.New().String()
	d.Markers[palletID] = append(d.Markers[palletID], models.DamageMarker{
		ID:       id,
		PalletID: palletID,
		X:        x,
		Y:        y,
	})
	return d, id
}

// RemoveMarker deletes a marker; its detail ids become unassigned
func RemoveMarker(d Draft, palletID, markerID string) Draft {
	if d.Markers == nil {
		return d
	}
	list := d.Markers[palletID]
	kept := make([]models.DamageMarker, 0, len(list))
	for _, m := range list {
		if m.ID != markerID {
			kept = append(kept, m)
		}
	}
	d.Markers[palletID] = kept
	return d
}

// AssignMarkerDetail assigns a damage detail to a marker. The detail is
// removed from every other marker of the same pallet first.
func AssignMarkerDetail(d Draft, palletID, markerID, detailID string) (Draft, error) {
	list := d.Markers[palletID]
	found := false
	for _, m := range list {
		if m.ID == markerID {
			found = true
			break
		}
	}
	if !found {
		return d, ErrMarkerNotFound
	}
	for i := range list {
		list[i].DetailIDs = without(list[i].DetailIDs, detailID)
		if list[i].ID == markerID {
			list[i].DetailIDs = append(list[i].DetailIDs, detailID)
		}
	}
	d.Markers[palletID] = list
	return d, nil
}

// UnassignMarkerDetail removes a detail from whichever marker holds it
func UnassignMarkerDetail(d Draft, palletID, detailID string) Draft {
	if d.Markers == nil {
		return d
	}
	list := d.Markers[palletID]
	for i := range list {
		list[i].DetailIDs = without(list[i].DetailIDs, detailID)
	}
	d.Markers[palletID] = list
	return d
}

// SetHeights replaces the damage height selection of a pallet
func SetHeights(d Draft, palletID string, heights []string) Draft {
	if d.Heights == nil {
		d.Heights = make(map[string][]string)
	}
	if len(heights) == 0 {
		delete(d.Heights, palletID)
		return d
	}
	d.Heights[palletID] = append([]string(nil), heights...)
	return d
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
