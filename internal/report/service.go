// Package report is the client-side core of a damage report session: the
// draft store, background photo uploads, pallet index allocation, pallet
// finalization, reconciliation with the server session document, PDF
// pre-generation and the final submission pipeline.
package report

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
	"github.com/xelth-com/palletdamage/internal/services/printer"
)

var (
	ErrNoSession         = errors.New("no active report session")
	ErrIndexUnresolved   = errors.New("could not obtain pallet index from server")
	ErrInvalidForm       = errors.New("pallet form is incomplete")
	ErrPhotoRetryFailed  = errors.New("photo upload retry failed")
	ErrSendPallet        = errors.New("failed to send pallet data")
	ErrPalletChanged     = errors.New("current pallet changed while waiting for index")
	ErrOffline           = errors.New("network unavailable")
	ErrNoPhoto           = errors.New("no photo in slot")
	ErrPalletWithoutIdx  = errors.New("saved pallet has no server index")
	ErrPhotosNotUploaded = errors.New("not all photos are uploaded")
)

// SessionAPI is the remote session server
type SessionAPI interface {
	UpdateSession(ctx context.Context, sessionID string, fields map[string]string) error
	GetSessionSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	GetSessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error)
	UploadImage(ctx context.Context, sessionID string, palletIndex int, imageType, filePath, existingFileID string) (string, error)
	UploadPDF(ctx context.Context, sessionID, language, filePath string) error
	FinalizeSession(ctx context.Context, sessionID string) error
	ListPendingSessions(ctx context.Context) ([]models.PendingSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// PDFGenerator renders one language variant of a report
type PDFGenerator interface {
	GenerateToStream(ctx context.Context, w io.Writer, in printer.Input) error
}

// Archive keeps finalized sessions on the device
type Archive interface {
	ArchiveSession(ctx context.Context, rec models.ArchivedSession) error
}

// ProductLookup resolves a scanned barcode; nil product means not found
type ProductLookup interface {
	LookupBarcode(ctx context.Context, barcode string) (*models.ProductInfo, error)
}

// NetworkStatus reports connectivity
type NetworkStatus interface {
	IsOnline() bool
}

// AlwaysOnline is a NetworkStatus for environments without connectivity probing
type AlwaysOnline struct{}

// IsOnline implements NetworkStatus
func (AlwaysOnline) IsOnline() bool { return true }

// UserContext identifies the logged-in worker
type UserContext struct {
	Username string
	Network  NetworkStatus
}

// Deps are the collaborators of a Service
type Deps struct {
	API     SessionAPI
	PDF     PDFGenerator
	Archive Archive
	Lookup  ProductLookup
	Logger  applog.Logger
	User    UserContext
}

// Options tune the pipeline
type Options struct {
	CacheDir        string
	PDFWaitTimeout  time.Duration
	PDFPollInterval time.Duration
	// SyncTimeout bounds one background push of header and vehicle data
	SyncTimeout time.Duration
}

// EventType is a one-shot signal to the UI
type EventType string

const (
	EventSignOut      EventType = "sign_out"
	EventSessionReset EventType = "session_reset"
)

// Event is emitted on the Events channel
type Event struct {
	Type      EventType
	SessionID string
}

// Service drives one report session
type Service struct {
	store   *draft.Store
	api     SessionAPI
	pdf     PDFGenerator
	archive Archive
	lookup  ProductLookup
	logger  applog.Logger
	user    UserContext
	opts    Options

	// Serializes pallet index acquisition
	indexMu sync.Mutex

	uploadsMu sync.Mutex
	uploads   map[string]*Task

	pdfMu         sync.Mutex
	pdfState      PDFState
	pdfGeneration int
	pdfTask       *Task

	stateMu      sync.Mutex
	submitState  SubmitState
	barcodeState BarcodeState

	cpMu    sync.Mutex
	cpDone  chan struct{} // open while a background push runs
	cpDirty bool

	events chan Event
}

// NewService creates a service with an empty draft and no session
func NewService(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = applog.Nop{}
	}
	if deps.User.Network == nil {
		deps.User.Network = AlwaysOnline{}
	}
	if opts.PDFWaitTimeout <= 0 {
		opts.PDFWaitTimeout = 30 * time.Second
	}
	if opts.PDFPollInterval <= 0 {
		opts.PDFPollInterval = 500 * time.Millisecond
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 15 * time.Second
	}
	return &Service{
		store:        draft.NewStore(draft.New("", models.ReportTypeStandard)),
		api:          deps.API,
		pdf:          deps.PDF,
		archive:      deps.Archive,
		lookup:       deps.Lookup,
		logger:       deps.Logger,
		user:         deps.User,
		opts:         opts,
		uploads:      make(map[string]*Task),
		pdfState:     PDFIdle{},
		submitState:  SubmitIdle{},
		barcodeState: BarcodeIdle{},
		events:       make(chan Event, 8),
	}
}

// Store exposes the draft store for observers
func (s *Service) Store() *draft.Store {
	return s.store
}

// Snapshot returns the current draft
func (s *Service) Snapshot() draft.Draft {
	return s.store.Snapshot()
}

// Events delivers one-shot UI signals (sign out, session reset)
func (s *Service) Events() <-chan Event {
	return s.events
}

func (s *Service) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.log("events", "event buffer full, dropping "+string(e.Type), applog.LevelWarn)
	}
}

func (s *Service) log(context, message string, level applog.Level) {
	s.logger.Log(context, message, level)
}

func (s *Service) setLastError(msg string) {
	s.store.Update(func(d draft.Draft) draft.Draft {
		d.LastError = msg
		return d
	})
}

// ClearError dismisses the recorded error
func (s *Service) ClearError() {
	s.setLastError("")
}
