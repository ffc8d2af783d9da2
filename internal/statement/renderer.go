package statement

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/go-pdf/fpdf"
)

var columnWidths = []float64{34, 42, 26, 56, 56, 63}

// PDFRenderer lays a statement out as a landscape A4 table.
type PDFRenderer struct {
	title string
}

func NewPDFRenderer(title string) *PDFRenderer {
	if title == "" {
		title = "Account Statement"
	}
	return &PDFRenderer{title: title}
}

func (r *PDFRenderer) Render(ctx context.Context, doc models.StatementDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(r.title, true)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, r.title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Period: "+doc.Period, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Account Number: "+doc.AccountNumber, "", 1, "L", false, 0, "")
	if doc.HolderName != "" {
		pdf.CellFormat(0, 6, "Account Holder: "+doc.HolderName, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range models.StatementHeaders {
			pdf.CellFormat(columnWidths[i], 8, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})
	header()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, row := range doc.Rows {
		cells := []string{row.Reference, row.Date, row.Amount, row.Sender, row.Receiver, row.Description}
		for i, cell := range cells {
			align := "L"
			if i == 2 {
				align = "R"
			}
			pdf.CellFormat(columnWidths[i], 7, truncate(pdf, tr(cell), columnWidths[i]-2), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render statement pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// truncate shortens s with an ellipsis until it fits width.
func truncate(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
