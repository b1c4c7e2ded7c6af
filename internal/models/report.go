package models

import (
	"sort"
	"strings"
	"time"
)

// ReportType selects the readiness rules and PDF title of a report
type ReportType string

const (
	ReportTypeStandard ReportType = "standard"
	ReportTypeNagoya   ReportType = "nagoya"
)

// PhotoStatus is the transient upload state of a single photo slot.
// It is never serialized: a restored pallet always starts IDLE.
type PhotoStatus string

const (
	PhotoIdle      PhotoStatus = "idle"
	PhotoUploading PhotoStatus = "uploading"
	PhotoSuccess   PhotoStatus = "success"
	PhotoFailed    PhotoStatus = "failed"
)

// StackingLevel describes how a pallet sits at a vehicle slot
type StackingLevel string

const (
	LevelAlone StackingLevel = "alone"
	LevelAbove StackingLevel = "above"
	LevelBelow StackingLevel = "below"
)

// ReportHeader holds the warehouse/event metadata of a report
type ReportHeader struct {
	ReportType    ReportType `json:"reportType"`
	Magazyner     string     `json:"magazyner"`
	Place         string     `json:"place"`
	Location      string     `json:"location"`
	VehicleType   string     `json:"vehicleType"`
	VehicleNumber string     `json:"vehicleNumber"`
	PalletType    string     `json:"palletType"`
	CMRNumber     string     `json:"cmrNumber"`
	DeliveryNote  string     `json:"deliveryNote"`
	Description   string     `json:"description"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Fields returns the header as header_data.<field> values
func (h ReportHeader) Fields() map[string]string {
	ts := ""
	if !h.Timestamp.IsZero() {
		ts = h.Timestamp.UTC().Format(time.RFC3339)
	}
	return map[string]string{
		"report_type":    string(h.ReportType),
		"magazyner":      h.Magazyner,
		"place":          h.Place,
		"location":       h.Location,
		"vehicle_type":   h.VehicleType,
		"vehicle_number": h.VehicleNumber,
		"pallet_type":    h.PalletType,
		"cmr_number":     h.CMRNumber,
		"delivery_note":  h.DeliveryNote,
		"description":    h.Description,
		"timestamp":      ts,
	}
}

// HeaderFromFields is the inverse of Fields
func HeaderFromFields(f map[string]string) ReportHeader {
	h := ReportHeader{
		ReportType:    ReportType(f["report_type"]),
		Magazyner:     f["magazyner"],
		Place:         f["place"],
		Location:      f["location"],
		VehicleType:   f["vehicle_type"],
		VehicleNumber: f["vehicle_number"],
		PalletType:    f["pallet_type"],
		CMRNumber:     f["cmr_number"],
		DeliveryNote:  f["delivery_note"],
		Description:   f["description"],
	}
	if ts, err := time.Parse(time.RFC3339, f["timestamp"]); err == nil {
		h.Timestamp = ts
	}
	if h.ReportType == "" {
		h.ReportType = ReportTypeStandard
	}
	return h
}

// Photo is one photo slot of a pallet
type Photo struct {
	Path   string      `json:"path,omitempty"`
	FileID string      `json:"fileId,omitempty"`
	Status PhotoStatus `json:"-"`
}

// Taken reports whether a photo has been recorded in this slot
func (p Photo) Taken() bool {
	return p.Path != ""
}

// DamageDetail is one recorded damage of a category
type DamageDetail struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Size        string `json:"size"`
	Description string `json:"description,omitempty"`
}

// DamageInstance is a damage photo plus its categorized details
type DamageInstance struct {
	ID      string                    `json:"id"`
	Photo   Photo                     `json:"photo"`
	Details map[string][]DamageDetail `json:"details,omitempty"`
}

// DamagedPallet is one inspected pallet
type DamagedPallet struct {
	ID           string           `json:"id"`
	ServerIndex  *int             `json:"serverIndex,omitempty"`
	PalletNumber string           `json:"palletNumber"`
	Barcode      string           `json:"barcode,omitempty"`
	Lot          string           `json:"lot,omitempty"`
	ProductType  string           `json:"productType,omitempty"`
	LabelPhoto   Photo            `json:"labelPhoto"`
	WholePhoto   Photo            `json:"wholePhoto"`
	Damages      []DamageInstance `json:"damages,omitempty"`
}

// Clone returns a deep copy
func (p DamagedPallet) Clone() DamagedPallet {
	out := p
	if p.ServerIndex != nil {
		idx := *p.ServerIndex
		out.ServerIndex = &idx
	}
	if p.Damages != nil {
		out.Damages = make([]DamageInstance, len(p.Damages))
		for i, d := range p.Damages {
			out.Damages[i] = d
			if d.Details != nil {
				out.Damages[i].Details = make(map[string][]DamageDetail, len(d.Details))
				for cat, list := range d.Details {
					out.Damages[i].Details[cat] = append([]DamageDetail(nil), list...)
				}
			}
		}
	}
	return out
}

// ResetTransient sets every photo status back to IDLE
func (p *DamagedPallet) ResetTransient() {
	p.LabelPhoto.Status = PhotoIdle
	p.WholePhoto.Status = PhotoIdle
	for i := range p.Damages {
		p.Damages[i].Photo.Status = PhotoIdle
	}
}

// DamageDetailIDs lists every damage detail id of the pallet
func (p DamagedPallet) DamageDetailIDs() []string {
	var ids []string
	for _, d := range p.Damages {
		for _, list := range d.Details {
			for _, det := range list {
				ids = append(ids, det.ID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// DamageSummary renders "category: type (size), ..." sorted by category
func (p DamagedPallet) DamageSummary() string {
	var parts []string
	for _, d := range p.Damages {
		cats := make([]string, 0, len(d.Details))
		for cat := range d.Details {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		for _, cat := range cats {
			for _, det := range d.Details[cat] {
				entry := cat + ": " + det.Type
				if det.Size != "" {
					entry += " (" + det.Size + ")"
				}
				parts = append(parts, entry)
			}
		}
	}
	return strings.Join(parts, ", ")
}

// DamageTypes returns the distinct damage types, sorted and comma separated
func (p DamagedPallet) DamageTypes() string {
	seen := make(map[string]struct{})
	for _, d := range p.Damages {
		for _, list := range d.Details {
			for _, det := range list {
				seen[det.Type] = struct{}{}
			}
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return strings.Join(types, ", ")
}

// PalletPosition places a pallet on a vehicle slot
type PalletPosition struct {
	PalletID         string        `json:"palletId"`
	Slot             int           `json:"slot"`
	Level            StackingLevel `json:"level"`
	MarkerBitmapPath string        `json:"markerBitmapPath,omitempty"`
	DamageParts      string        `json:"damageParts,omitempty"`
}

// DamageMarker is a point on the pallet schematic
type DamageMarker struct {
	ID        string   `json:"id"`
	PalletID  string   `json:"palletId"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	DetailIDs []string `json:"detailIds,omitempty"`
}

// VehicleLayout describes the vehicle schematic
type VehicleLayout struct {
	VehicleType string `json:"vehicleType"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
}

// SlotCount is the number of floor slots of the layout
func (l VehicleLayout) SlotCount() int {
	return l.Rows * l.Columns
}

// SyncReport is the outcome of one reconciliation pass. Never persisted.
type SyncReport struct {
	SyncedPallets  []int    `json:"syncedPallets"`
	SkippedPallets []int    `json:"skippedPallets"`
	Warnings       []string `json:"warnings,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}
