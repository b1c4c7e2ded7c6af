package models

import "strings"

// SlotKind identifies which photo of a pallet a slot refers to
type SlotKind string

const (
	SlotLabel  SlotKind = "label"
	SlotWhole  SlotKind = "whole"
	SlotDamage SlotKind = "damage"
)

// PhotoSlot addresses one photo of a pallet
type PhotoSlot struct {
	Kind     SlotKind
	DamageID string
}

// LabelSlot is the pallet label photo
func LabelSlot() PhotoSlot { return PhotoSlot{Kind: SlotLabel} }

// WholeSlot is the whole-pallet photo
func WholeSlot() PhotoSlot { return PhotoSlot{Kind: SlotWhole} }

// DamageSlot is the photo of one damage instance
func DamageSlot(damageID string) PhotoSlot {
	return PhotoSlot{Kind: SlotDamage, DamageID: damageID}
}

// String renders the slot as label, whole or damage:<id>
func (s PhotoSlot) String() string {
	if s.Kind == SlotDamage {
		return string(SlotDamage) + ":" + s.DamageID
	}
	return string(s.Kind)
}

// ImageType is the image type sent to the upload endpoint
func (s PhotoSlot) ImageType() string {
	if s.Kind == SlotDamage {
		return "damage_" + s.DamageID
	}
	return string(s.Kind)
}

// ParsePhotoSlot is the inverse of String
func ParsePhotoSlot(v string) (PhotoSlot, bool) {
	switch {
	case v == string(SlotLabel):
		return LabelSlot(), true
	case v == string(SlotWhole):
		return WholeSlot(), true
	case strings.HasPrefix(v, string(SlotDamage)+":"):
		id := strings.TrimPrefix(v, string(SlotDamage)+":")
		if id == "" {
			return PhotoSlot{}, false
		}
		return DamageSlot(id), true
	}
	return PhotoSlot{}, false
}

// PhotoAt returns the photo in a slot
func (p DamagedPallet) PhotoAt(s PhotoSlot) (Photo, bool) {
	switch s.Kind {
	case SlotLabel:
		return p.LabelPhoto, true
	case SlotWhole:
		return p.WholePhoto, true
	case SlotDamage:
		for _, d := range p.Damages {
			if d.ID == s.DamageID {
				return d.Photo, true
			}
		}
	}
	return Photo{}, false
}

// SetPhotoAt replaces the photo in a slot. Returns false for an unknown slot.
func (p *DamagedPallet) SetPhotoAt(s PhotoSlot, photo Photo) bool {
	switch s.Kind {
	case SlotLabel:
		p.LabelPhoto = photo
		return true
	case SlotWhole:
		p.WholePhoto = photo
		return true
	case SlotDamage:
		for i := range p.Damages {
			if p.Damages[i].ID == s.DamageID {
				p.Damages[i].Photo = photo
				return true
			}
		}
	}
	return false
}

// PhotoSlots lists every slot that holds a photo, label first
func (p DamagedPallet) PhotoSlots() []PhotoSlot {
	var slots []PhotoSlot
	if p.LabelPhoto.Taken() {
		slots = append(slots, LabelSlot())
	}
	if p.WholePhoto.Taken() {
		slots = append(slots, WholeSlot())
	}
	for _, d := range p.Damages {
		if d.Photo.Taken() {
			slots = append(slots, DamageSlot(d.ID))
		}
	}
	return slots
}

// SlotsWithStatus lists the slots whose photo is in the given state
func (p DamagedPallet) SlotsWithStatus(status PhotoStatus) []PhotoSlot {
	var out []PhotoSlot
	for _, s := range p.PhotoSlots() {
		if ph, _ := p.PhotoAt(s); ph.Status == status {
			out = append(out, s)
		}
	}
	return out
}
