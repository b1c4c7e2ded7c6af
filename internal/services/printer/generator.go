package printer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/palletdamage/internal/models"
	"github.com/xelth-com/palletdamage/internal/translate"
)

// Language of a generated report
type Language string

const (
	LangPL Language = "pl"
	LangEN Language = "en"
)

// Languages lists the variants generated for every report, in upload order
var Languages = []Language{LangPL, LangEN}

// Input is everything that appears in a report PDF
type Input struct {
	SessionID string
	Header    models.ReportHeader
	Pallets   []models.DamagedPallet
	Positions []models.PalletPosition
	Layout    models.VehicleLayout
	Markers   map[string][]models.DamageMarker
	Heights   map[string][]string
	Language  Language
	Title     string
}

// Config holds generator settings
type Config struct {
	CompanyName string
}

// Generator renders damage reports with gofpdf
type Generator struct {
	cfg        Config
	translator translate.Translator
}

// NewGenerator creates a report generator. translator is used for the
// English variant only and may be nil.
func NewGenerator(cfg Config, translator translate.Translator) *Generator {
	return &Generator{cfg: cfg, translator: translator}
}

// TitleFor returns the document title of a report type in a language
func TitleFor(rt models.ReportType, lang Language) string {
	if rt == models.ReportTypeNagoya {
		return labelsFor(lang)["title_nagoya"]
	}
	return labelsFor(lang)["title"]
}

// GenerateToStream writes the report PDF to w
func (g *Generator) GenerateToStream(ctx context.Context, w io.Writer, in Input) error {
	if in.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if in.Title == "" {
		in.Title = TitleFor(in.Header.ReportType, in.Language)
	}
	lbl := labelsFor(in.Language)

	text := func(s string) string { return s }
	if in.Language == LangEN {
		text = func(s string) string { return translate.OrOriginal(ctx, g.translator, s) }
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(in.Title, true)
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Session QR code, top right
	qrPng, err := qrcode.Encode("SESSION/"+in.SessionID, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to encode session qr: %w", err)
	}
	qrOpts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("session_qr", qrOpts, bytes.NewReader(qrPng))
	pdf.ImageOptions("session_qr", 168, 10, 30, 30, false, qrOpts, 0, "")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(150, 9, tr(in.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if g.cfg.CompanyName != "" {
		pdf.CellFormat(150, 5, tr(g.cfg.CompanyName), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(150, 5, tr(lbl["session"]+": "+in.SessionID), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// Header table
	h := in.Header
	ts := ""
	if !h.Timestamp.IsZero() {
		ts = h.Timestamp.Format("02/01/2006 15:04")
	}
	rows := [][2]string{
		{lbl["magazyner"], h.Magazyner},
		{lbl["place"], h.Place},
		{lbl["location"], h.Location},
		{lbl["vehicle"], strings.TrimSpace(h.VehicleType + " " + h.VehicleNumber)},
		{lbl["pallet_type"], h.PalletType},
		{lbl["cmr"], h.CMRNumber},
		{lbl["delivery_note"], h.DeliveryNote},
		{lbl["date"], ts},
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 6, tr(r[0]), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(141, 6, tr(r[1]), "1", 1, "L", false, 0, "")
	}
	if h.Description != "" {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, tr(lbl["description"]), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(text(h.Description)), "1", "L", false)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Pallet table
	pdf.Ln(5)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("%s (%d)", lbl["pallets"], len(in.Pallets))), "", 1, "L", false, 0, "")
	positions := make(map[string]models.PalletPosition, len(in.Positions))
	for _, p := range in.Positions {
		positions[p.PalletID] = p
	}

	for i, p := range in.Pallets {
		if err := ctx.Err(); err != nil {
			return err
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%d. %s %s", i+1, lbl["pallet"], p.PalletNumber)), "T", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		if p.Lot != "" || p.ProductType != "" {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s: %s   %s: %s", lbl["lot"], p.Lot, lbl["product"], p.ProductType)), "", 1, "L", false, 0, "")
		}
		if pos, ok := positions[p.ID]; ok {
			line := fmt.Sprintf("%s: %d (%s)", lbl["position"], pos.Slot+1, lbl["level_"+string(pos.Level)])
			if pos.DamageParts != "" {
				line += "  " + pos.DamageParts
			}
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
		if summary := p.DamageSummary(); summary != "" {
			pdf.MultiCell(0, 5, tr(lbl["damages"]+": "+text(summary)), "", "L", false)
		}
		if heights := in.Heights[p.ID]; len(heights) > 0 {
			pdf.CellFormat(0, 5, tr(lbl["heights"]+": "+strings.Join(heights, ", ")), "", 1, "L", false, 0, "")
		}
		if markers := in.Markers[p.ID]; len(markers) > 0 {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s: %d", lbl["markers"], len(markers))), "", 1, "L", false, 0, "")
		}
		if p.PalletNumber != "" {
			if err := drawBarcode(pdf, fmt.Sprintf("pallet_bc_%d", i), p.PalletNumber); err != nil {
				return err
			}
		}
		pdf.Ln(2)
	}

	if in.Layout.SlotCount() > 0 {
		drawVehicleGrid(pdf, tr, in, lbl)
	}

	return pdf.Output(w)
}

// drawBarcode embeds a code128 barcode of value at the current position
func drawBarcode(pdf *gofpdf.Fpdf, name, value string) error {
	png, err := renderCode128PNG(value, 600, 120)
	if err != nil {
		return fmt.Errorf("failed to render barcode %q: %w", value, err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	x, y := pdf.GetXY()
	pdf.ImageOptions(name, x, y, 50, 10, false, opts, 0, "")
	pdf.SetY(y + 11)
	return nil
}

// drawVehicleGrid draws the vehicle slots with the pallets placed on them
func drawVehicleGrid(pdf *gofpdf.Fpdf, tr func(string) string, in Input, lbl map[string]string) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr(lbl["vehicle_layout"]+": "+in.Layout.VehicleType), "", 1, "L", false, 0, "")

	numbers := make(map[string]string, len(in.Pallets))
	for _, p := range in.Pallets {
		numbers[p.ID] = p.PalletNumber
	}
	bySlot := make(map[int][]models.PalletPosition)
	for _, pos := range in.Positions {
		bySlot[pos.Slot] = append(bySlot[pos.Slot], pos)
	}

	const cellW, cellH = 30.0, 18.0
	left, top := 15.0, pdf.GetY()+4
	pdf.SetFont("Helvetica", "", 7)
	for slot := 0; slot < in.Layout.SlotCount(); slot++ {
		row := slot / in.Layout.Columns
		col := slot % in.Layout.Columns
		x := left + float64(col)*cellW
		y := top + float64(row)*cellH
		pdf.Rect(x, y, cellW, cellH, "D")
		pdf.SetXY(x+1, y+1)
		pdf.CellFormat(cellW-2, 3, fmt.Sprintf("#%d", slot+1), "", 2, "L", false, 0, "")

		placed := bySlot[slot]
		sort.Slice(placed, func(i, j int) bool { return placed[i].Level < placed[j].Level })
		for _, pos := range placed {
			pdf.SetX(x + 1)
			pdf.CellFormat(cellW-2, 4, tr(fmt.Sprintf("%s %s", lbl["level_"+string(pos.Level)], numbers[pos.PalletID])), "", 2, "L", false, 0, "")
		}
	}
	pdf.SetY(top + float64(in.Layout.Rows)*cellH + 4)
}
