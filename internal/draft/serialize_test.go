package draft

import (
	"reflect"
	"testing"

	"github.com/xelth-com/palletdamage/internal/models"
)

func samplePallet() models.DamagedPallet {
	idx := 3
	p := NewPallet()
	p.ServerIndex = &idx
	p.PalletNumber = "PAL-0042"
	p.Barcode = "5901234123457"
	p.Lot = "LOT-7"
	p.ProductType = "Beverages"
	p.LabelPhoto = models.Photo{Path: "/c/label.jpg", FileID: "lbl-1", Status: models.PhotoSuccess}
	p.WholePhoto = models.Photo{Path: "/c/whole.jpg", Status: models.PhotoFailed}
	dmg := NewDamageInstance()
	dmg.Photo = models.Photo{Path: "/c/d1.jpg", FileID: "d-1", Status: models.PhotoUploading}
	dmg.Details["foil"] = []models.DamageDetail{{ID: "det-1", Type: "torn", Size: "large"}}
	dmg.Details["box"] = []models.DamageDetail{{ID: "det-2", Type: "crushed", Size: "small", Description: "corner"}}
	p.Damages = []models.DamageInstance{dmg}
	return p
}

func TestPalletRoundTrip_ResetsTransientStatus(t *testing.T) {
	orig := samplePallet()

	blob, err := MarshalPallet(orig)
	if err != nil {
		t.Fatalf("MarshalPallet: %v", err)
	}
	restored, err := UnmarshalPallet(blob)
	if err != nil {
		t.Fatalf("UnmarshalPallet: %v", err)
	}

	want := orig.Clone()
	want.ResetTransient()
	if !reflect.DeepEqual(want, restored) {
		t.Fatalf("round trip mismatch\nwant %+v\n got %+v", want, restored)
	}
	if restored.WholePhoto.Status != models.PhotoIdle || restored.Damages[0].Photo.Status != models.PhotoIdle {
		t.Error("statuses must come back IDLE")
	}
}

func TestPalletFields(t *testing.T) {
	fields, err := PalletFields(3, samplePallet())
	if err != nil {
		t.Fatalf("PalletFields: %v", err)
	}
	if fields["pallets_data.3.pallet_number"] != "PAL-0042" {
		t.Errorf("pallet_number = %q", fields["pallets_data.3.pallet_number"])
	}
	if fields["pallets_data.3.damage_types"] != "crushed, torn" {
		t.Errorf("damage_types = %q", fields["pallets_data.3.damage_types"])
	}
	if fields["pallets_data.3.damage_summary"] != "box: crushed (small), foil: torn (large)" {
		t.Errorf("damage_summary = %q", fields["pallets_data.3.damage_summary"])
	}
	if fields["pallets_data.3.pallet_json"] == "" {
		t.Error("pallet_json missing")
	}
}

func TestRestore_FromSessionDetails(t *testing.T) {
	src := New("sess-1", models.ReportTypeNagoya)
	src.Header.Place = "Gate 4"
	src.Header.Magazyner = "Jan"
	p := samplePallet()
	src = MergeSaved(src, p)
	src.Layout = models.VehicleLayout{VehicleType: "trailer", Rows: 2, Columns: 6}
	src, _ = AssignPosition(src, models.PalletPosition{PalletID: p.ID, Slot: 2, Level: models.LevelBelow})
	src, mID := AddMarker(src, p.ID, 0.3, 0.4)
	src, _ = AssignMarkerDetail(src, p.ID, mID, "det-1")
	src = SetHeights(src, p.ID, []string{"bottom"})

	fields := HeaderFields(src.Header)
	pf, _ := PalletFields(*p.ServerIndex, p)
	vf, err := VehicleFields(src)
	if err != nil {
		t.Fatalf("VehicleFields: %v", err)
	}
	for k, v := range pf {
		fields[k] = v
	}
	for k, v := range vf {
		fields[k] = v
	}

	got, err := Restore(models.SessionDetails{SessionID: "sess-1", Fields: fields})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got.SessionID != "sess-1" || got.Header.Place != "Gate 4" || got.Header.ReportType != models.ReportTypeNagoya {
		t.Errorf("header not restored: %+v", got.Header)
	}
	if len(got.Saved) != 1 || *got.Saved[0].ServerIndex != 3 {
		t.Fatalf("saved pallets not restored: %+v", got.Saved)
	}
	if got.Saved[0].LabelPhoto.Status != models.PhotoIdle {
		t.Error("restored status must be IDLE")
	}
	if pos, ok := got.PositionOf(p.ID); !ok || pos.Slot != 2 {
		t.Errorf("position not restored: %+v", pos)
	}
	if len(got.Markers[p.ID]) != 1 || got.Markers[p.ID][0].DetailIDs[0] != "det-1" {
		t.Errorf("markers not restored: %+v", got.Markers)
	}
	if got.Layout.SlotCount() != 12 {
		t.Errorf("layout not restored: %+v", got.Layout)
	}
	if got.Heights[p.ID][0] != "bottom" {
		t.Errorf("heights not restored: %+v", got.Heights)
	}
}
