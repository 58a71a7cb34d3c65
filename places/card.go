package places

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"pilgrimsafe/admin"
	"pilgrimsafe/models"
	"pilgrimsafe/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// GeoURI is what the card's QR code encodes; phones open it in a map app.
func GeoURI(p models.Place) string {
	return fmt.Sprintf("geo:%g,%g?q=%g,%g(%s)", p.Latitude, p.Longitude, p.Latitude, p.Longitude,
		url.QueryEscape(p.Name))
}

// RenderCard builds the printable A5 help-desk card of a place. The core
// Arial font only covers Latin-1, so names in Devanagari need fontPath, a
// TrueType font with those glyphs. An empty fontPath uses Arial.
func RenderCard(p models.Place, fontPath string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(GeoURI(p), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	fontDir := ""
	if fontPath != "" {
		fontDir = filepath.Dir(fontPath)
	}
	pdf := gofpdf.New("P", "mm", "A5", fontDir)
	family, tr := "Arial", pdf.UnicodeTranslatorFromDescriptor("")
	if fontPath != "" {
		pdf.AddUTF8Font("card", "", filepath.Base(fontPath))
		pdf.AddUTF8Font("card", "B", filepath.Base(fontPath))
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("card font: %w", err)
		}
		family, tr = "card", func(s string) string { return s }
	}
	pdf.AddPage()
	pdf.SetFont(family, "B", 18)
	pdf.MultiCell(0, 9, tr(p.Name), "", "L", false)
	pdf.Ln(2)

	line := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont(family, "B", 11)
		pdf.Cell(34, 7, label)
		pdf.SetFont(family, "", 11)
		pdf.MultiCell(0, 7, tr(value), "", "L", false)
	}
	line("Categories", strings.Join(p.Categories, ", "))
	line("Crowd level", string(p.CrowdLevel))
	line("Entry", p.EntryFee.String())
	line("Open", p.OpeningHours)
	line("Visit time", p.VisitTime)
	line("Best season", p.BestSeason)
	line("Location", fmt.Sprintf("%.5f, %.5f", p.Latitude, p.Longitude))

	if len(p.Transport) > 0 {
		fares := make([]string, 0, len(p.Transport))
		for _, t := range p.Transport {
			fares = append(fares, fmt.Sprintf("%s Rs %g-%g", t.Mode, t.MinPrice, t.MaxPrice))
		}
		line("Getting there", strings.Join(fares, "; "))
	}
	if len(p.Facilities) > 0 {
		names := make([]string, 0, len(p.Facilities))
		for _, f := range p.Facilities {
			names = append(names, f.Name)
		}
		line("Facilities", strings.Join(names, ", "))
	}

	pdf.Ln(4)
	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 49, pdf.GetY(), 50, 50, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// PrintCard serves the place card as a PDF download.
func (h *Handlers) PrintCard(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.load(r.Context(), ps.ByName("placeid"))
	if err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	pdf, err := RenderCard(p, h.CardFont)
	if err != nil {
		h.Log.Error("card render failed", zap.String("placeid", p.ID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate card")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=place-"+utils.SanitizeFilename(p.ID)+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
