package draft

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xelth-com/palletdamage/internal/models"
)

// MarshalPallet serializes the full pallet model. Upload statuses are not
// part of the encoding.
func MarshalPallet(p models.DamagedPallet) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pallet %s: %w", p.ID, err)
	}
	return string(data), nil
}

// UnmarshalPallet restores a pallet; every photo comes back IDLE
func UnmarshalPallet(data string) (models.DamagedPallet, error) {
	var p models.DamagedPallet
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return models.DamagedPallet{}, fmt.Errorf("failed to unmarshal pallet: %w", err)
	}
	p.ResetTransient()
	return p, nil
}

// PalletFields builds the pallets_data.<index>.* patch for a pallet
func PalletFields(index int, p models.DamagedPallet) (map[string]string, error) {
	blob, err := MarshalPallet(p)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		models.PalletPath(index, "pallet_number"):        p.PalletNumber,
		models.PalletPath(index, "lot"):                  p.Lot,
		models.PalletPath(index, "product_type"):         p.ProductType,
		models.PalletPath(index, "damage_summary"):       p.DamageSummary(),
		models.PalletPath(index, "damage_types"):         p.DamageTypes(),
		models.PalletPath(index, models.PalletJSONField): blob,
	}, nil
}

// HeaderFields builds the header_data.* patch
func HeaderFields(h models.ReportHeader) map[string]string {
	out := make(map[string]string)
	for k, v := range h.Fields() {
		out[models.HeaderPath(k)] = v
	}
	return out
}

// VehicleFields serializes positions, markers, heights and layout, keyed by path
func VehicleFields(d Draft) (map[string]string, error) {
	out := make(map[string]string, 4)
	values := map[string]interface{}{
		models.VehiclePositionsPath: d.Positions,
		models.VehicleMarkersPath:   d.Markers,
		models.VehicleHeightsPath:   d.Heights,
		models.VehicleLayoutPath:    d.Layout,
	}
	for path, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", path, err)
		}
		out[path] = string(data)
	}
	return out, nil
}

// Restore rebuilds a draft from the server session document
func Restore(details models.SessionDetails) (Draft, error) {
	header := make(map[string]string)
	for path, v := range details.Fields {
		if field, ok := strings.CutPrefix(path, models.HeaderPrefix+"."); ok {
			header[field] = v
		}
	}
	d := New(details.SessionID, models.ReportTypeStandard)
	d.Header = models.HeaderFromFields(header)
	d.Comments = details.Fields[models.CommentsPath]

	for path, v := range details.Fields {
		idx, field, ok := models.ParsePalletPath(path)
		if !ok || field != models.PalletJSONField {
			continue
		}
		p, err := UnmarshalPallet(v)
		if err != nil {
			return Draft{}, fmt.Errorf("pallet %d: %w", idx, err)
		}
		i := idx
		p.ServerIndex = &i
		d.Saved = append(d.Saved, p)
	}
	sort.Slice(d.Saved, func(a, b int) bool {
		return *d.Saved[a].ServerIndex < *d.Saved[b].ServerIndex
	})

	if err := decodeField(details.Fields, models.VehiclePositionsPath, &d.Positions); err != nil {
		return Draft{}, err
	}
	if err := decodeField(details.Fields, models.VehicleMarkersPath, &d.Markers); err != nil {
		return Draft{}, err
	}
	if err := decodeField(details.Fields, models.VehicleHeightsPath, &d.Heights); err != nil {
		return Draft{}, err
	}
	if err := decodeField(details.Fields, models.VehicleLayoutPath, &d.Layout); err != nil {
		return Draft{}, err
	}
	if d.Markers == nil {
		d.Markers = make(map[string][]models.DamageMarker)
	}
	if d.Heights == nil {
		d.Heights = make(map[string][]string)
	}
	return d, nil
}

func decodeField(fields map[string]string, path string, target interface{}) error {
	raw, ok := fields[path]
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
