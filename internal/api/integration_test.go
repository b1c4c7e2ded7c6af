package api

import (
	"context"
	"testing"
	"time"

	"github.com/xelth-com/palletdamage/internal/models"
	"github.com/xelth-com/palletdamage/internal/report"
	"github.com/xelth-com/palletdamage/internal/services/printer"
	"github.com/xelth-com/palletdamage/internal/translate"
)

// TestFullReportAgainstServer drives a whole report through the real client,
// server and PDF generator
func TestFullReportAgainstServer(t *testing.T) {
	srv := newServer(t)
	client := newClient(srv, "pw")
	ctx := context.Background()
	cacheDir := t.TempDir()

	svc := report.NewService(report.Deps{
		API: client,
		PDF: printer.NewGenerator(printer.Config{CompanyName: "Test Logistics"}, translate.PassThrough{}),
	}, report.Options{CacheDir: cacheDir, PDFWaitTimeout: 5 * time.Second})

	sid := svc.StartSession(ctx, models.ReportTypeStandard)
	svc.UpdateHeader(func(h *models.ReportHeader) {
		h.Magazyner = "Jan"
		h.Place = "Rampa 2"
		h.VehicleNumber = "PO 1234A"
	})
	svc.SetLayout(models.VehicleLayout{VehicleType: "truck", Rows: 2, Columns: 4})

	for i, number := range []string{"P-1", "P-2"} {
		svc.UpdateCurrentPallet(func(p *models.DamagedPallet) { p.PalletNumber = number })
		if err := svc.SetPhoto(models.LabelSlot(), writeFile(t, "label.jpg", "jpeg")); err != nil {
			t.Fatalf("SetPhoto: %v", err)
		}
		if err := svc.UploadPhotoAsync(ctx, models.LabelSlot()).Wait(); err != nil {
			t.Fatalf("upload photo %d: %v", i, err)
		}
		palletID := svc.Snapshot().Current.ID
		if err := svc.SaveAndExit(ctx, true); err != nil {
			t.Fatalf("save pallet %d: %v", i, err)
		}
		if err := svc.AssignPosition(models.PalletPosition{PalletID: palletID, Slot: i}); err != nil {
			t.Fatalf("position %d: %v", i, err)
		}
	}

	snap := svc.Snapshot()
	for i, p := range snap.Saved {
		if p.ServerIndex == nil || *p.ServerIndex != i {
			t.Fatalf("pallet %d has index %v", i, p.ServerIndex)
		}
	}

	if err := svc.UploadFullReport(ctx, "Two pallets damaged by forklift"); err != nil {
		t.Fatalf("UploadFullReport: %v", err)
	}
	if _, ok := svc.SubmitState().(report.SubmitFinalizeSuccess); !ok {
		t.Fatalf("expected success, got %#v", svc.SubmitState())
	}

	details, err := client.GetSessionDetails(ctx, sid)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if !details.Finalized {
		t.Error("session should be finalized on the server")
	}
	if details.Files["pdf.pl"] == "" || details.Files["pdf.en"] == "" {
		t.Errorf("both PDFs expected on the server, files: %v", details.Files)
	}
	if details.Fields[models.CommentsPath] != "Two pallets damaged by forklift" {
		t.Errorf("comments missing: %v", details.Fields)
	}
	if details.Fields[models.VehiclePositionsPath] == "" {
		t.Error("positions were not reconciled")
	}
}
