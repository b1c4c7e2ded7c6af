package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/xelth-com/palletdamage/internal/api"
	"github.com/xelth-com/palletdamage/internal/applog"
	"github.com/xelth-com/palletdamage/internal/archive"
	"github.com/xelth-com/palletdamage/internal/buildinfo"
	"github.com/xelth-com/palletdamage/internal/config"
	"github.com/xelth-com/palletdamage/internal/database"
	"github.com/xelth-com/palletdamage/internal/report"
	"github.com/xelth-com/palletdamage/internal/services/odoo"
	"github.com/xelth-com/palletdamage/internal/services/printer"
	"github.com/xelth-com/palletdamage/internal/translate"
	"github.com/xelth-com/palletdamage/internal/websocket"
)

const usage = `usage: reporter <command> [args]

  pending                    list unfinished sessions on the server
  show <session>             print a session restored from the server
  submit <session> [comment] generate PDFs, reconcile and finalize a session
  abandon <session>          delete a session on the server
  lookup <barcode>           resolve a pallet barcode in Odoo
  feed <session> [port]      serve the draft of a session on ws://:port/ws
  archive [prune <days>]     list archived sessions or drop old ones
  version                    print build information`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	if os.Args[1] == "version" {
		fmt.Println(buildinfo.Current())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := applog.NewAsyncLogger(nil, cfg.Report.LogBuffer)
	defer logger.Close()

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "archive" {
		listArchive(ctx, cfg, args)
		return
	}
	if cmd == "lookup" {
		requireArgs(args, 1)
		lookup(ctx, cfg, args[0])
		return
	}

	client := api.NewClient(cfg.API)
	if err := client.Login(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}

	switch cmd {
	case "pending":
		svc := report.NewService(report.Deps{API: client, Logger: logger}, report.Options{})
		sessions, err := svc.ListPendingSessions(ctx)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No pending sessions")
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-8s  %-20s  %2d pallets  %s\n",
				s.SessionID, s.ReportType, s.Magazyner, s.PalletCount, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}

	case "show":
		requireArgs(args, 1)
		svc := report.NewService(report.Deps{API: client, Logger: logger}, report.Options{})
		resume(ctx, svc, args[0])
		printDraft(svc)

	case "submit":
		requireArgs(args, 1)
		svc, cleanup := newFullService(ctx, cfg, client, logger)
		defer cleanup()
		resume(ctx, svc, args[0])
		comment := strings.Join(args[1:], " ")
		if err := svc.UploadFullReport(ctx, comment); err != nil {
			log.Fatalf("❌ Submission failed: %v", err)
		}
		log.Printf("✅ Session %s finalized", args[0])

	case "abandon":
		requireArgs(args, 1)
		svc := report.NewService(report.Deps{API: client, Logger: logger}, report.Options{})
		resume(ctx, svc, args[0])
		if err := svc.AbandonSession(ctx); err != nil {
			log.Fatalf("❌ %v", err)
		}
		log.Printf("🗑️ Session %s deleted", args[0])

	case "feed":
		requireArgs(args, 1)
		port := "3211"
		if len(args) > 1 {
			port = args[1]
		}
		svc := report.NewService(report.Deps{API: client, Logger: logger}, report.Options{})
		resume(ctx, svc, args[0])
		serveFeed(ctx, svc, port)

	default:
		fmt.Println(usage)
		os.Exit(2)
	}
}

func requireArgs(args []string, n int) {
	if len(args) < n {
		fmt.Println(usage)
		os.Exit(2)
	}
}

func resume(ctx context.Context, svc *report.Service, sessionID string) {
	if err := svc.ResumeSession(ctx, sessionID); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// newFullService wires every collaborator of the submission pipeline.
// Translation and archiving are optional.
func newFullService(ctx context.Context, cfg *config.Config, client *api.Client, logger applog.Logger) (*report.Service, func()) {
	var cleanups []func()

	var translator translate.Translator = translate.PassThrough{}
	if cfg.Translation.GeminiAPIKey != "" {
		gemini, err := translate.NewGeminiTranslator(ctx, cfg.Translation.GeminiAPIKey, cfg.Translation.Model)
		if err != nil {
			log.Printf("⚠️ Translation disabled: %v", err)
		} else {
			translator = gemini
			cleanups = append(cleanups, gemini.Close)
		}
	}

	deps := report.Deps{
		API:    client,
		PDF:    printer.NewGenerator(printer.Config{CompanyName: cfg.Report.CompanyName}, translator),
		Logger: logger,
		User:   report.UserContext{Username: cfg.API.Username},
	}

	if db, err := database.Connect(cfg.Database); err != nil {
		log.Printf("⚠️ Archive disabled: %v", err)
	} else {
		store := archive.NewStore(db.DB)
		if err := store.Migrate(); err != nil {
			log.Printf("⚠️ Migration warning: %v", err)
		}
		deps.Archive = store
		cleanups = append(cleanups, func() { db.Close() })
	}

	svc := report.NewService(deps, report.Options{
		CacheDir:        cfg.Report.CacheDir,
		PDFWaitTimeout:  cfg.Report.PDFWaitTimeout,
		PDFPollInterval: cfg.Report.PDFPollInterval,
		SyncTimeout:     cfg.Report.SyncTimeout,
	})
	return svc, func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

func printDraft(svc *report.Service) {
	d := svc.Snapshot()
	h := d.Header
	fmt.Printf("Session:   %s (%s)\n", d.SessionID, h.ReportType)
	fmt.Printf("Magazyner: %s\nPlace:     %s\nVehicle:   %s %s\n", h.Magazyner, h.Place, h.VehicleType, h.VehicleNumber)
	if missing := report.ReadinessFor(h.ReportType)(d); len(missing) > 0 {
		fmt.Printf("Missing:   %s\n", strings.Join(missing, ", "))
	}
	fmt.Printf("Pallets:   %d\n", len(d.Saved))
	for _, p := range d.Saved {
		idx := -1
		if p.ServerIndex != nil {
			idx = *p.ServerIndex
		}
		fmt.Printf("  [%d] %-12s %s\n", idx, p.PalletNumber, p.DamageSummary())
	}
}

func lookup(ctx context.Context, cfg *config.Config, barcode string) {
	if cfg.Lookup.URL == "" {
		log.Fatal("❌ ODOO_URL is not set")
	}
	products := odoo.NewProductLookup(odoo.NewClient(odoo.Config{
		URL:      cfg.Lookup.URL,
		Database: cfg.Lookup.Database,
		Username: cfg.Lookup.Username,
		Password: cfg.Lookup.Password,
	}))
	svc := report.NewService(report.Deps{Lookup: products}, report.Options{})
	switch st := svc.LookupBarcode(ctx, barcode).(type) {
	case report.BarcodeFound:
		fmt.Printf("✅ %s: %s (%s)\n", barcode, st.Product.Name, st.Product.ProductType)
	case report.BarcodeNotFound:
		fmt.Printf("❓ %s: not found\n", barcode)
	case report.BarcodeError:
		log.Fatalf("❌ %s", st.Message)
	}
}

func listArchive(ctx context.Context, cfg *config.Config, args []string) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer db.Close()

	store := archive.NewStore(db.DB)
	if err := store.Migrate(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	if len(args) == 2 && args[0] == "prune" {
		days, err := strconv.Atoi(args[1])
		if err != nil || days <= 0 {
			log.Fatalf("❌ invalid day count %q", args[1])
		}
		n, err := store.Prune(ctx, time.Now().AddDate(0, 0, -days))
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		log.Printf("🗑️ Pruned %d archived sessions", n)
		return
	}

	recs, err := store.List(ctx, 50)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	for _, r := range recs {
		fmt.Printf("%s  %-8s  %-20s  %2d pallets  %s\n",
			r.SessionID, r.ReportType, r.Place, r.PalletCount, r.ArchivedAt.Local().Format("2006-01-02 15:04"))
	}
}

// serveFeed pushes draft snapshots to websocket observers until ctx ends
func serveFeed(ctx context.Context, svc *report.Service, port string) {
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()
	go websocket.FeedDrafts(ctx, hub, svc.Store())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, w, r)
	})
	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		log.Printf("📡 Draft feed on ws://localhost:%s/ws", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start feed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}
