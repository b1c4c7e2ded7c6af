package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
	"github.com/xelth-com/palletdamage/internal/services/printer"
)

// SubmitState is the state of the full report upload:
// SubmitIdle, SubmitInProgress, SubmitGenerating, SubmitFinalizeSuccess or SubmitError
type SubmitState interface {
	isSubmitState()
}

type SubmitIdle struct{}

type SubmitInProgress struct {
	Message string
}

// SubmitGenerating reports PDF work; Progress is in [0,1]
type SubmitGenerating struct {
	Step     string
	Progress float64
}

type SubmitFinalizeSuccess struct{}

type SubmitError struct {
	Message string
}

func (SubmitIdle) isSubmitState()            {}
func (SubmitInProgress) isSubmitState()      {}
func (SubmitGenerating) isSubmitState()      {}
func (SubmitFinalizeSuccess) isSubmitState() {}
func (SubmitError) isSubmitState()           {}

var errPDFWaitTimeout = errors.New("timed out waiting for background PDF")

// SubmitState returns the state of the last full upload
func (s *Service) SubmitState() SubmitState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.submitState
}

// DismissSubmitError returns an errored submission to idle
func (s *Service) DismissSubmitError() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if _, ok := s.submitState.(SubmitError); ok {
		s.submitState = SubmitIdle{}
	}
}

func (s *Service) setSubmitState(st SubmitState) {
	s.stateMu.Lock()
	s.submitState = st
	s.stateMu.Unlock()
}

// UploadFullReport pushes comments and PDFs, reconciles the session document
// and finalizes the session on the server. Every step stops the pipeline on
// failure with a step-specific message in SubmitError. Cached PDFs are
// removed whatever the outcome.
func (s *Service) UploadFullReport(ctx context.Context, comments string) error {
	defer s.CleanupPDF()

	var syncFiles []string
	defer func() { removeFiles(syncFiles...) }()

	fail := func(msg string, err error) error {
		full := msg
		if err != nil {
			full = fmt.Sprintf("%s: %v", msg, err)
		}
		s.setSubmitState(SubmitError{Message: full})
		s.log("Upload", full, applog.LevelError)
		if err != nil {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return errors.New(msg)
	}

	snap := s.store.Snapshot()
	if snap.SessionID == "" {
		return fail("No active session", ErrNoSession)
	}
	sid := snap.SessionID
	s.setSubmitState(SubmitInProgress{Message: "Uploading comments"})

	if text := strings.TrimSpace(comments); text != "" {
		if err := s.api.UpdateSession(ctx, sid, map[string]string{models.CommentsPath: text}); err != nil {
			return fail("Failed to upload comments", err)
		}
		s.store.Update(func(d draft.Draft) draft.Draft {
			d.Comments = text
			return d
		})
	}

	pl, en, generated, err := s.resolvePDFs(ctx)
	syncFiles = generated
	if err != nil {
		return fail("Failed to generate PDF", err)
	}
	uploads := []struct {
		lang printer.Language
		path string
	}{{printer.LangPL, pl}, {printer.LangEN, en}}
	for i, u := range uploads {
		s.setSubmitState(SubmitGenerating{
			Step:     "upload_pdf_" + string(u.lang),
			Progress: float64(i) / float64(len(uploads)),
		})
		if err := s.api.UploadPDF(ctx, sid, string(u.lang), u.path); err != nil {
			return fail(fmt.Sprintf("Failed to upload %s PDF", strings.ToUpper(string(u.lang))), err)
		}
	}

	s.setSubmitState(SubmitInProgress{Message: "Synchronizing report"})
	s.waitCheckpoint()
	if _, err := s.SmartSync(ctx); err != nil {
		return fail("Synchronization failed", err)
	}

	s.setSubmitState(SubmitInProgress{Message: "Finalizing session"})
	if err := s.api.FinalizeSession(ctx, sid); err != nil {
		s.setSubmitState(SubmitError{Message: err.Error()})
		s.log("Upload", "finalize failed: "+err.Error(), applog.LevelError)
		return fmt.Errorf("failed to finalize session: %w", err)
	}

	s.archiveSession(ctx, s.store.Snapshot())
	s.store.Replace(draft.New("", snap.Header.ReportType))
	s.setSubmitState(SubmitFinalizeSuccess{})
	s.log("Upload", "session "+sid+" finalized", applog.LevelInfo)
	s.emit(Event{Type: EventSignOut, SessionID: sid})
	return nil
}

// resolvePDFs returns both PDF paths, reusing the background result when
// possible. generated lists files created here that the caller must remove.
func (s *Service) resolvePDFs(ctx context.Context) (pl, en string, generated []string, err error) {
	state := s.PDFState()
	if _, ok := state.(PDFGenerating); ok {
		s.setSubmitState(SubmitGenerating{Step: "wait_pdf", Progress: 0})
		state, err = s.waitForPDF(ctx)
		if err != nil && !errors.Is(err, errPDFWaitTimeout) {
			return "", "", nil, err
		}
		if err != nil {
			s.log("Upload", "background PDF not ready, generating now", applog.LevelWarn)
		}
	}
	if ready, ok := state.(PDFReady); ok {
		return ready.PLPath, ready.ENPath, nil, nil
	}

	s.setSubmitState(SubmitGenerating{Step: "generate_pdf", Progress: 0})
	pl, en, err = s.generatePDFs(ctx, s.store.Snapshot(), "final")
	if err != nil {
		return "", "", nil, err
	}
	return pl, en, []string{pl, en}, nil
}

// waitForPDF polls the background state until it leaves Generating or the
// wait timeout expires
func (s *Service) waitForPDF(ctx context.Context) (PDFState, error) {
	deadline := time.NewTimer(s.opts.PDFWaitTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.opts.PDFPollInterval)
	defer tick.Stop()

	for {
		state := s.PDFState()
		if _, ok := state.(PDFGenerating); !ok {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-deadline.C:
			return state, errPDFWaitTimeout
		case <-tick.C:
		}
	}
}

// archiveSession stores the finalized draft locally. Failures are logged only.
func (s *Service) archiveSession(ctx context.Context, d draft.Draft) {
	if s.archive == nil {
		return
	}
	snapshot, err := json.Marshal(struct {
		Header    models.ReportHeader              `json:"header"`
		Pallets   []models.DamagedPallet           `json:"pallets"`
		Positions []models.PalletPosition          `json:"positions"`
		Markers   map[string][]models.DamageMarker `json:"markers"`
		Heights   map[string][]string              `json:"heights"`
		Layout    models.VehicleLayout             `json:"layout"`
		Comments  string                           `json:"comments"`
	}{d.Header, d.Saved, d.Positions, d.Markers, d.Heights, d.Layout, d.Comments})
	if err != nil {
		s.log("Archive", "failed to encode session: "+err.Error(), applog.LevelWarn)
		return
	}
	rec := models.ArchivedSession{
		SessionID:   d.SessionID,
		ReportType:  string(d.Header.ReportType),
		Magazyner:   d.Header.Magazyner,
		Place:       d.Header.Place,
		PalletCount: len(d.Saved),
		Snapshot:    snapshot,
		ArchivedAt:  time.Now().UTC(),
	}
	if err := s.archive.ArchiveSession(ctx, rec); err != nil {
		s.log("Archive", "failed to archive "+d.SessionID+": "+err.Error(), applog.LevelWarn)
	}
}
