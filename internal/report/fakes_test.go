package report

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
	"github.com/xelth-com/palletdamage/internal/services/printer"
)

// fakeAPI keeps one session document per id and applies updates as
// partial merges, like the real server
type fakeAPI struct {
	mu       sync.Mutex
	sessions map[string]map[string]string

	summaryCalls int
	summaryGate  chan struct{}
	summaryErr   error

	uploadCalls map[string]int
	uploadFails map[string]int // remaining failures per image type; -1 fails forever
	uploadGate  chan struct{}  // uploads block until closed
	inFlight    int
	maxInFlight int
	nextFile    int

	updates     []map[string]string
	updateErr   func(fields map[string]string) error
	pdfUploads  []string
	finalizeErr error
	finalized   []string
	deleted     []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		sessions:    make(map[string]map[string]string),
		uploadCalls: make(map[string]int),
		uploadFails: make(map[string]int),
	}
}

func (f *fakeAPI) doc(sid string) map[string]string {
	d, ok := f.sessions[sid]
	if !ok {
		d = make(map[string]string)
		f.sessions[sid] = d
	}
	return d
}

func (f *fakeAPI) UpdateSession(ctx context.Context, sid string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		if err := f.updateErr(fields); err != nil {
			return err
		}
	}
	cp := make(map[string]string, len(fields))
	doc := f.doc(sid)
	for k, v := range fields {
		doc[k] = v
		cp[k] = v
	}
	f.updates = append(f.updates, cp)
	return nil
}

func (f *fakeAPI) indices(sid string) []int {
	seen := make(map[int]bool)
	for path := range f.sessions[sid] {
		if idx, field, ok := models.ParsePalletPath(path); ok && field == models.PalletJSONField {
			seen[idx] = true
		}
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (f *fakeAPI) GetSessionSummary(ctx context.Context, sid string) (*models.SessionSummary, error) {
	f.mu.Lock()
	f.summaryCalls++
	gate := f.summaryGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	idx := f.indices(sid)
	return &models.SessionSummary{PalletCount: len(idx), PalletIndices: idx}, nil
}

func (f *fakeAPI) GetSessionDetails(ctx context.Context, sid string) (*models.SessionDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.sessions[sid]
	if !ok {
		return nil, errors.New("session not found")
	}
	fields := make(map[string]string, len(doc))
	for k, v := range doc {
		fields[k] = v
	}
	return &models.SessionDetails{SessionID: sid, Fields: fields}, nil
}

func (f *fakeAPI) UploadImage(ctx context.Context, sid string, idx int, imageType, path, existing string) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	gate := f.uploadGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.uploadCalls[imageType]++
	if n := f.uploadFails[imageType]; n != 0 {
		if n > 0 {
			f.uploadFails[imageType] = n - 1
		}
		return "", errors.New("connection reset")
	}
	if existing != "" {
		return existing, nil
	}
	f.nextFile++
	return imageType + "-" + strconv.Itoa(f.nextFile), nil
}

func (f *fakeAPI) UploadPDF(ctx context.Context, sid, lang, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		return err
	}
	f.pdfUploads = append(f.pdfUploads, lang)
	return nil
}

func (f *fakeAPI) FinalizeSession(ctx context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized = append(f.finalized, sid)
	return nil
}

func (f *fakeAPI) ListPendingSessions(ctx context.Context) ([]models.PendingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PendingSession
	for sid := range f.sessions {
		out = append(out, models.PendingSession{SessionID: sid, PalletCount: len(f.indices(sid))})
	}
	return out, nil
}

func (f *fakeAPI) DeleteSession(ctx context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sid)
	f.deleted = append(f.deleted, sid)
	return nil
}

func (f *fakeAPI) uploadsInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// field reads one field of a session document
func (f *fakeAPI) field(sid, path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.sessions[sid][path]
	return v, ok
}

func (f *fakeAPI) palletUpdates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.updates {
		for k := range u {
			if strings.HasSuffix(k, "."+models.PalletJSONField) {
				n++
			}
		}
	}
	return n
}

type fakePDF struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
	err   error
}

func (p *fakePDF) GenerateToStream(ctx context.Context, w io.Writer, in printer.Input) error {
	p.mu.Lock()
	p.calls++
	block := p.block
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.err != nil {
		return p.err
	}
	_, err := io.WriteString(w, "%PDF-1.3 "+string(in.Language))
	return err
}

type fakeArchive struct {
	mu      sync.Mutex
	records []models.ArchivedSession
	err     error
}

func (a *fakeArchive) ArchiveSession(ctx context.Context, rec models.ArchivedSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, rec)
	return nil
}

type offline struct{}

func (offline) IsOnline() bool { return false }

type fakeLookup struct {
	products map[string]models.ProductInfo
	err      error
}

func (l fakeLookup) LookupBarcode(ctx context.Context, code string) (*models.ProductInfo, error) {
	if l.err != nil {
		return nil, l.err
	}
	p, ok := l.products[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type testEnv struct {
	svc     *Service
	api     *fakeAPI
	pdf     *fakePDF
	archive *fakeArchive
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		api:     newFakeAPI(),
		pdf:     &fakePDF{},
		archive: &fakeArchive{},
		dir:     t.TempDir(),
	}
	env.svc = NewService(Deps{
		API:     env.api,
		PDF:     env.pdf,
		Archive: env.archive,
		User:    UserContext{Username: "tester"},
	}, Options{
		CacheDir:        env.dir,
		PDFWaitTimeout:  2 * time.Second,
		PDFPollInterval: 10 * time.Millisecond,
	})
	return env
}

// completeDraft is a standard report with one saved, positioned pallet
func completeDraft(sid string) draft.Draft {
	d := draft.New(sid, models.ReportTypeStandard)
	d.Header.Magazyner = "Jan Kowalski"
	d.Header.Place = "Gate 3"
	d.Header.VehicleNumber = "WX 12345"
	d.Layout = models.VehicleLayout{VehicleType: "truck", Rows: 2, Columns: 3}

	p := draft.NewPallet()
	p.PalletNumber = "P-001"
	idx := 0
	p.ServerIndex = &idx
	d.Saved = append(d.Saved, p)
	d.Positions = append(d.Positions, models.PalletPosition{PalletID: p.ID, Slot: 0, Level: models.LevelAlone})
	return d
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func cacheFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read cache dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
