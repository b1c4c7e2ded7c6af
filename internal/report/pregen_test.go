package report

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
)

func TestReadinessFor(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *draft.Draft)
		rt     models.ReportType
		ready  bool
	}{
		{"complete standard", func(d *draft.Draft) {}, models.ReportTypeStandard, true},
		{"missing place", func(d *draft.Draft) { d.Header.Place = "" }, models.ReportTypeStandard, false},
		{"unpositioned pallet", func(d *draft.Draft) { d.Positions = nil }, models.ReportTypeStandard, false},
		{"no pallets", func(d *draft.Draft) { d.Saved = nil; d.Positions = nil }, models.ReportTypeStandard, false},
		{"nagoya without documents", func(d *draft.Draft) {}, models.ReportTypeNagoya, false},
		{"nagoya with cmr", func(d *draft.Draft) { d.Header.CMRNumber = "CMR-7" }, models.ReportTypeNagoya, true},
		{"nagoya without layout", func(d *draft.Draft) {
			d.Header.DeliveryNote = "DN-1"
			d.Layout = models.VehicleLayout{}
		}, models.ReportTypeNagoya, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := completeDraft("s1")
			tt.mutate(&d)
			missing := ReadinessFor(tt.rt)(d)
			if got := len(missing) == 0; got != tt.ready {
				t.Errorf("ready = %v, want %v (missing %v)", got, tt.ready, missing)
			}
		})
	}
}

func TestStartPDFPregeneration_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if env.svc.StartPDFPregeneration(ctx) {
		t.Error("must not start without a session")
	}
	env.svc.StartSession(context.Background(), models.ReportTypeStandard)
	if env.svc.StartPDFPregeneration(ctx) {
		t.Error("must not start for an incomplete report")
	}

	env.pdf.block = make(chan struct{})
	env.svc.Store().Replace(completeDraft("s1"))
	if !env.svc.StartPDFPregeneration(ctx) {
		t.Fatal("expected generation to start")
	}
	if env.svc.StartPDFPregeneration(ctx) {
		t.Error("must not start twice while generating")
	}
	close(env.pdf.block)
	waitFor(t, "PDF ready", func() bool {
		_, ok := env.svc.PDFState().(PDFReady)
		return ok
	})
	if env.svc.StartPDFPregeneration(ctx) {
		t.Error("must not start when already ready")
	}
}

func TestPDF_EditAfterReadyInvalidates(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(completeDraft("s1"))

	if !env.svc.StartPDFPregeneration(context.Background()) {
		t.Fatal("expected generation to start")
	}
	waitFor(t, "PDF ready", func() bool {
		_, ok := env.svc.PDFState().(PDFReady)
		return ok
	})
	ready := env.svc.PDFState().(PDFReady)
	for _, p := range []string{ready.PLPath, ready.ENPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected cached file %s: %v", p, err)
		}
	}

	env.svc.UpdateHeader(func(h *models.ReportHeader) { h.Description = "forklift hit the stack" })

	if _, ok := env.svc.PDFState().(PDFIdle); !ok {
		t.Fatalf("expected PDFIdle after edit, got %T", env.svc.PDFState())
	}
	for _, p := range []string{ready.PLPath, ready.ENPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("cached file %s should be deleted, stat err %v", p, err)
		}
	}
}

func TestPDF_InvalidateWhileGeneratingDiscardsResult(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(completeDraft("s1"))
	env.pdf.block = make(chan struct{})

	env.svc.StartPDFPregeneration(context.Background())
	env.svc.SetHeights(env.svc.Snapshot().Saved[0].ID, []string{"bottom"})

	if _, ok := env.svc.PDFState().(PDFIdle); !ok {
		t.Fatalf("expected PDFIdle, got %T", env.svc.PDFState())
	}
	close(env.pdf.block)
	waitFor(t, "cache dir empty", func() bool { return len(cacheFiles(t, env.dir)) == 0 })
	if _, ok := env.svc.PDFState().(PDFIdle); !ok {
		t.Errorf("stale generation must not publish a result, got %T", env.svc.PDFState())
	}
}

func TestPDF_GenerationErrorIsAState(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(completeDraft("s1"))
	env.pdf.err = errors.New("font not found")

	env.svc.StartPDFPregeneration(context.Background())
	waitFor(t, "PDF error", func() bool {
		_, ok := env.svc.PDFState().(PDFError)
		return ok
	})
	if files := cacheFiles(t, env.dir); len(files) != 0 {
		t.Errorf("failed generation must leave no files, got %v", files)
	}
}
