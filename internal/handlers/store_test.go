package handlers

import (
	"errors"
	"reflect"
	"testing"

	"github.com/xelth-com/palletdamage/internal/models"
)

func TestSessionStore_PatchMerges(t *testing.T) {
	s := NewSessionStore()
	s.Patch("s1", "jan", map[string]string{"header_data.place": "A", "header_data.magazyner": "Jan"})
	s.Patch("s1", "jan", map[string]string{"header_data.place": "B"})

	d, err := s.Details("s1")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Fields["header_data.place"] != "B" || d.Fields["header_data.magazyner"] != "Jan" {
		t.Errorf("expected merge, got %v", d.Fields)
	}
}

func TestSessionStore_Summary(t *testing.T) {
	s := NewSessionStore()
	if got := s.Summary("unknown"); got.PalletCount != 0 {
		t.Errorf("unknown session should be empty, got %+v", got)
	}
	s.Patch("s1", "jan", map[string]string{
		models.PalletPath(0, "lot"):           "a",
		models.PalletPath(0, "pallet_json"):   "{}",
		models.PalletPath(2, "pallet_number"): "c",
		models.HeaderPath("place"):            "x",
	})
	s.AttachFile("s1", "jan", models.PalletPath(7, "images.label"), "f1")

	got := s.Summary("s1")
	if got.PalletCount != 2 || !reflect.DeepEqual(got.PalletIndices, []int{0, 2}) {
		t.Errorf("unexpected summary %+v", got)
	}
}

func TestSessionStore_FinalizeLocks(t *testing.T) {
	s := NewSessionStore()
	if err := s.Finalize("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	s.Patch("s1", "jan", map[string]string{"a": "b"})
	if err := s.Finalize("s1"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := s.Patch("s1", "jan", map[string]string{"a": "c"}); !errors.Is(err, ErrSessionFinalized) {
		t.Errorf("expected finalized error, got %v", err)
	}
	if err := s.AttachFile("s1", "jan", "pdf.pl", "x"); !errors.Is(err, ErrSessionFinalized) {
		t.Errorf("expected finalized error, got %v", err)
	}
	if len(s.Pending("")) != 0 {
		t.Error("finalized sessions are not pending")
	}
}

func TestSessionStore_PendingPerUser(t *testing.T) {
	s := NewSessionStore()
	s.Patch("s1", "jan", map[string]string{models.HeaderPath("report_type"): "nagoya"})
	s.Patch("s2", "ola", map[string]string{"a": "b"})

	list := s.Pending("jan")
	if len(list) != 1 || list[0].SessionID != "s1" || list[0].ReportType != models.ReportTypeNagoya {
		t.Errorf("unexpected pending list %+v", list)
	}
	if len(s.Pending("")) != 2 {
		t.Error("empty user lists every session")
	}
}
