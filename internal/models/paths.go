package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Field path prefixes of the server session document
const (
	HeaderPrefix  = "header_data"
	PalletsPrefix = "pallets_data"
	VehiclePrefix = "vehicle_data"
	CommentsPath  = "comments.text"

	VehiclePositionsPath = VehiclePrefix + ".positions"
	VehicleMarkersPath   = VehiclePrefix + ".markers"
	VehicleHeightsPath   = VehiclePrefix + ".heights"
	VehicleLayoutPath    = VehiclePrefix + ".layout"

	PalletJSONField = "pallet_json"
)

// HeaderPath returns header_data.<field>
func HeaderPath(field string) string {
	return HeaderPrefix + "." + field
}

// PalletPath returns pallets_data.<index>.<field>
func PalletPath(index int, field string) string {
	return fmt.Sprintf("%s.%d.%s", PalletsPrefix, index, field)
}

// ParsePalletPath splits pallets_data.<index>.<field>
func ParsePalletPath(path string) (int, string, bool) {
	rest, ok := strings.CutPrefix(path, PalletsPrefix+".")
	if !ok {
		return 0, "", false
	}
	idxStr, field, ok := strings.Cut(rest, ".")
	if !ok || field == "" {
		return 0, "", false
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return 0, "", false
	}
	return idx, field, true
}
