package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xelth-com/palletdamage/internal/models"
)

func TestUploadFullReport_Success(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(completeDraft("s1"))
	ctx := context.Background()

	if err := env.svc.UploadFullReport(ctx, "  two pallets crushed  "); err != nil {
		t.Fatalf("UploadFullReport failed: %v", err)
	}

	if _, ok := env.svc.SubmitState().(SubmitFinalizeSuccess); !ok {
		t.Fatalf("expected SubmitFinalizeSuccess, got %#v", env.svc.SubmitState())
	}
	if got := env.api.sessions["s1"][models.CommentsPath]; got != "two pallets crushed" {
		t.Errorf("expected trimmed comments, got %q", got)
	}
	if len(env.api.pdfUploads) != 2 || env.api.pdfUploads[0] != "pl" || env.api.pdfUploads[1] != "en" {
		t.Errorf("expected PL then EN uploads, got %v", env.api.pdfUploads)
	}
	if len(env.api.finalized) != 1 {
		t.Errorf("expected session finalized once, got %v", env.api.finalized)
	}
	if len(env.archive.records) != 1 || env.archive.records[0].SessionID != "s1" {
		t.Errorf("expected session archived, got %+v", env.archive.records)
	}
	if sid := env.svc.Snapshot().SessionID; sid != "" {
		t.Errorf("draft should be reset, session id %q", sid)
	}
	if files := cacheFiles(t, env.dir); len(files) != 0 {
		t.Errorf("cache dir should be empty, got %v", files)
	}

	select {
	case ev := <-env.svc.Events():
		if ev.Type != EventSignOut || ev.SessionID != "s1" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("expected sign out event")
	}
}

func TestUploadFullReport_FinalizeFailureKeepsDraft(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(completeDraft("s1"))
	env.api.finalizeErr = errors.New("session is locked by another device")
	ctx := context.Background()

	if !env.svc.StartPDFPregeneration(ctx) {
		t.Fatal("expected background generation to start")
	}
	before := env.svc.Snapshot()

	if err := env.svc.UploadFullReport(ctx, ""); err == nil {
		t.Fatal("expected error")
	}

	st, ok := env.svc.SubmitState().(SubmitError)
	if !ok {
		t.Fatalf("expected SubmitError, got %#v", env.svc.SubmitState())
	}
	if st.Message != "session is locked by another device" {
		t.Errorf("expected server message, got %q", st.Message)
	}
	after := env.svc.Snapshot()
	if after.SessionID != "s1" || len(after.Saved) != len(before.Saved) {
		t.Error("draft must not be reset when finalize fails")
	}
	if len(env.archive.records) != 0 {
		t.Error("nothing may be archived on failure")
	}
	if _, ok := env.svc.PDFState().(PDFIdle); !ok {
		t.Errorf("expected background PDF cleaned up, got %T", env.svc.PDFState())
	}
	if files := cacheFiles(t, env.dir); len(files) != 0 {
		t.Errorf("cache dir should be empty, got %v", files)
	}
}

func TestUploadFullReport_WaitsForBackgroundPDF(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(completeDraft("s1"))
	env.pdf.block = make(chan struct{})
	ctx := context.Background()

	env.svc.StartPDFPregeneration(ctx)
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(env.pdf.block)
	}()

	if err := env.svc.UploadFullReport(ctx, ""); err != nil {
		t.Fatalf("UploadFullReport failed: %v", err)
	}
	if env.pdf.calls != 2 {
		t.Errorf("background PDFs should be reused, got %d generations", env.pdf.calls)
	}
}

func TestUploadFullReport_TimeoutFallsBackToSyncGeneration(t *testing.T) {
	env := newTestEnv(t)
	env.svc.opts.PDFWaitTimeout = 50 * time.Millisecond
	env.svc.Store().Replace(completeDraft("s1"))
	env.pdf.block = make(chan struct{})
	ctx := context.Background()

	env.svc.StartPDFPregeneration(ctx)
	waitFor(t, "generation started", func() bool {
		env.pdf.mu.Lock()
		defer env.pdf.mu.Unlock()
		return env.pdf.calls == 1
	})
	env.pdf.mu.Lock()
	env.pdf.block = nil
	env.pdf.mu.Unlock()

	if err := env.svc.UploadFullReport(ctx, ""); err != nil {
		t.Fatalf("UploadFullReport failed: %v", err)
	}
	if len(env.api.pdfUploads) != 2 {
		t.Errorf("expected both PDFs uploaded, got %v", env.api.pdfUploads)
	}
	waitFor(t, "cache dir empty", func() bool { return len(cacheFiles(t, env.dir)) == 0 })
}

func TestUploadFullReport_StepFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(env *testEnv)
		comment string
	}{
		{
			name: "comments",
			setup: func(env *testEnv) {
				env.api.updateErr = func(f map[string]string) error {
					if _, ok := f[models.CommentsPath]; ok {
						return errors.New("502")
					}
					return nil
				}
			},
			comment: "note",
		},
		{
			name:  "pdf generation",
			setup: func(env *testEnv) { env.pdf.err = errors.New("out of memory") },
		},
		{
			name: "sync",
			setup: func(env *testEnv) {
				env.api.updateErr = func(f map[string]string) error {
					if _, ok := f[models.VehiclePositionsPath]; ok {
						return errors.New("502")
					}
					return nil
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.svc.Store().Replace(completeDraft("s1"))
			tt.setup(env)

			if err := env.svc.UploadFullReport(context.Background(), tt.comment); err == nil {
				t.Fatal("expected error")
			}
			if _, ok := env.svc.SubmitState().(SubmitError); !ok {
				t.Errorf("expected SubmitError, got %#v", env.svc.SubmitState())
			}
			if len(env.api.finalized) != 0 {
				t.Error("pipeline must stop before finalize")
			}
			if files := cacheFiles(t, env.dir); len(files) != 0 {
				t.Errorf("cache dir should be empty, got %v", files)
			}
		})
	}
}
