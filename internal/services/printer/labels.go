package printer

var reportLabels = map[Language]map[string]string{
	LangPL: {
		"title":          "Raport uszkodzen palet",
		"title_nagoya":   "Raport uszkodzen - Nagoya",
		"session":        "Sesja",
		"magazyner":      "Magazynier",
		"place":          "Miejsce",
		"location":       "Lokalizacja",
		"vehicle":        "Pojazd",
		"pallet_type":    "Typ palety",
		"cmr":            "CMR",
		"delivery_note":  "WZ",
		"date":           "Data",
		"description":    "Opis zdarzenia",
		"pallets":        "Palety",
		"pallet":         "Paleta",
		"lot":            "Partia",
		"product":        "Produkt",
		"position":       "Pozycja",
		"damages":        "Uszkodzenia",
		"heights":        "Wysokosc uszkodzen",
		"markers":        "Znaczniki",
		"vehicle_layout": "Schemat pojazdu",
		"level_alone":    "",
		"level_above":    "gora",
		"level_below":    "dol",
	},
	LangEN: {
		"title":          "Pallet damage report",
		"title_nagoya":   "Damage report - Nagoya",
		"session":        "Session",
		"magazyner":      "Warehouse worker",
		"place":          "Place",
		"location":       "Location",
		"vehicle":        "Vehicle",
		"pallet_type":    "Pallet type",
		"cmr":            "CMR",
		"delivery_note":  "Delivery note",
		"date":           "Date",
		"description":    "Event description",
		"pallets":        "Pallets",
		"pallet":         "Pallet",
		"lot":            "Lot",
		"product":        "Product",
		"position":       "Position",
		"damages":        "Damages",
		"heights":        "Damage height",
		"markers":        "Markers",
		"vehicle_layout": "Vehicle layout",
		"level_alone":    "",
		"level_above":    "top",
		"level_below":    "bottom",
	},
}

func labelsFor(lang Language) map[string]string {
	if l, ok := reportLabels[lang]; ok {
		return l
	}
	return reportLabels[LangPL]
}
