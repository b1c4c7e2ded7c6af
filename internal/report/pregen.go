package report

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
	"github.com/xelth-com/palletdamage/internal/services/printer"
)

// PDFState is the state of background PDF generation:
// PDFIdle, PDFGenerating, PDFReady or PDFError
type PDFState interface {
	isPDFState()
}

type PDFIdle struct{}

type PDFGenerating struct{}

// PDFReady holds the cached files of both language variants
type PDFReady struct {
	PLPath string
	ENPath string
}

type PDFError struct {
	Message string
}

func (PDFIdle) isPDFState()       {}
func (PDFGenerating) isPDFState() {}
func (PDFReady) isPDFState()      {}
func (PDFError) isPDFState()      {}

// Readiness lists the fields a report still misses before its PDF can be built
type Readiness func(d draft.Draft) []string

// ReadinessFor returns the readiness rule of a report type
func ReadinessFor(rt models.ReportType) Readiness {
	if rt == models.ReportTypeNagoya {
		return nagoyaReadiness
	}
	return standardReadiness
}

func standardReadiness(d draft.Draft) []string {
	var missing []string
	if d.Header.Magazyner == "" {
		missing = append(missing, "magazyner")
	}
	if d.Header.Place == "" {
		missing = append(missing, "place")
	}
	if d.Header.VehicleNumber == "" {
		missing = append(missing, "vehicle_number")
	}
	if len(d.Saved) == 0 {
		missing = append(missing, "pallets")
	}
	for _, p := range d.Saved {
		if _, ok := d.PositionOf(p.ID); !ok {
			missing = append(missing, "position:"+p.ID)
		}
	}
	return missing
}

func nagoyaReadiness(d draft.Draft) []string {
	missing := standardReadiness(d)
	if d.Header.CMRNumber == "" && d.Header.DeliveryNote == "" {
		missing = append(missing, "document_refs")
	}
	if d.Layout.SlotCount() == 0 {
		missing = append(missing, "layout")
	}
	return missing
}

// PDFState returns the background generation state
func (s *Service) PDFState() PDFState {
	s.pdfMu.Lock()
	defer s.pdfMu.Unlock()
	return s.pdfState
}

// StartPDFPregeneration starts building both PDF variants in the background.
// It returns false when generation is running or done already, there is no
// session or the report is not complete enough.
func (s *Service) StartPDFPregeneration(ctx context.Context) bool {
	s.pdfMu.Lock()
	defer s.pdfMu.Unlock()

	switch s.pdfState.(type) {
	case PDFGenerating, PDFReady:
		return false
	}
	snap := s.store.Snapshot()
	if snap.SessionID == "" || s.pdf == nil {
		return false
	}
	if missing := ReadinessFor(snap.Header.ReportType)(snap); len(missing) > 0 {
		return false
	}

	s.pdfGeneration++
	gen := s.pdfGeneration
	s.pdfState = PDFGenerating{}
	s.pdfTask = startTask(ctx, func(ctx context.Context) error {
		pl, en, err := s.generatePDFs(ctx, snap, strconv.Itoa(gen))
		s.finishPregeneration(gen, pl, en, err)
		return err
	})
	s.log("PDF", "background generation started for "+snap.SessionID, applog.LevelDebug)
	return true
}

func (s *Service) finishPregeneration(gen int, pl, en string, err error) {
	s.pdfMu.Lock()
	defer s.pdfMu.Unlock()

	if gen != s.pdfGeneration {
		// Invalidated while running
		removeFiles(pl, en)
		return
	}
	s.pdfTask = nil
	if err != nil {
		removeFiles(pl, en)
		s.pdfState = PDFError{Message: err.Error()}
		s.log("PDF", "background generation failed: "+err.Error(), applog.LevelWarn)
		return
	}
	s.pdfState = PDFReady{PLPath: pl, ENPath: en}
}

// InvalidatePDF drops any pre-generated or in-flight PDFs. Called after
// every edit of data that appears in the report.
func (s *Service) InvalidatePDF() {
	s.resetPDF()
}

// CleanupPDF cancels background generation and deletes cached PDFs
func (s *Service) CleanupPDF() {
	s.resetPDF()
}

func (s *Service) resetPDF() {
	s.pdfMu.Lock()
	defer s.pdfMu.Unlock()

	s.pdfGeneration++
	if s.pdfTask != nil {
		s.pdfTask.Cancel()
		s.pdfTask = nil
	}
	if ready, ok := s.pdfState.(PDFReady); ok {
		removeFiles(ready.PLPath, ready.ENPath)
	}
	s.pdfState = PDFIdle{}
}

// generatePDFs renders both variants into the cache dir, PL first
func (s *Service) generatePDFs(ctx context.Context, d draft.Draft, tag string) (string, string, error) {
	if s.pdf == nil {
		return "", "", fmt.Errorf("no PDF generator configured")
	}
	dir := s.opts.CacheDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	paths := make(map[printer.Language]string, len(printer.Languages))
	for _, lang := range printer.Languages {
		path := filepath.Join(dir, fmt.Sprintf("report_%s_%s_%s.pdf", d.SessionID, tag, lang))
		paths[lang] = path
		if err := s.renderPDF(ctx, d, lang, path); err != nil {
			removeFiles(paths[printer.LangPL], paths[printer.LangEN])
			return "", "", err
		}
	}
	return paths[printer.LangPL], paths[printer.LangEN], nil
}

func (s *Service) renderPDF(ctx context.Context, d draft.Draft, lang printer.Language, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	in := printer.Input{
		SessionID: d.SessionID,
		Header:    d.Header,
		Pallets:   d.Saved,
		Positions: d.Positions,
		Layout:    d.Layout,
		Markers:   d.Markers,
		Heights:   d.Heights,
		Language:  lang,
		Title:     printer.TitleFor(d.Header.ReportType, lang),
	}
	genErr := s.pdf.GenerateToStream(ctx, f, in)
	closeErr := f.Close()
	if genErr != nil {
		return fmt.Errorf("failed to generate %s PDF: %w", lang, genErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to write %s: %w", path, closeErr)
	}
	return nil
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("⚠️ failed to remove %s: %v", p, err)
		}
	}
}
